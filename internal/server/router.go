package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/portside-labs/portside/internal/api"
	"github.com/portside-labs/portside/internal/api/handlers"
	"github.com/portside-labs/portside/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator middleware.AuthValidator
	ThreadHandler *handlers.ThreadHandler
	AuthHandler   *handlers.AuthHandler
	Logger        zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/threads", func(r chi.Router) {
			r.Post("/discover", cfg.ThreadHandler.Discover)
			r.Post("/discover/async", cfg.ThreadHandler.DiscoverAsync)
			r.Get("/review-queue", cfg.ThreadHandler.ReviewQueue)
			r.Get("/linked", cfg.ThreadHandler.ListLinked)
			r.Get("/{orderNumber}", cfg.ThreadHandler.Get)
			r.Delete("/{orderNumber}", cfg.ThreadHandler.Clear)
			r.Post("/{orderNumber}/approve", cfg.ThreadHandler.Approve)
			r.Post("/{orderNumber}/reject", cfg.ThreadHandler.Reject)
			r.Post("/{orderNumber}/link", cfg.ThreadHandler.Link)
			r.Get("/{orderNumber}/evidence", cfg.ThreadHandler.Evidence)
		})
	})

	r.Post("/operators", cfg.AuthHandler.CreateOperator)
	r.Post("/apikeys", cfg.AuthHandler.CreateAPIKey)

	return r
}
