package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/portside-labs/portside/internal/api"
	"github.com/portside-labs/portside/internal/domain"
)

type AuthService interface {
	CreateOperator(ctx context.Context, name, email string) (*domain.Operator, error)
	CreateAPIKey(ctx context.Context, operatorID, name string) (string, error)
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type CreateOperatorRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type OperatorResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at"`
}

type CreateAPIKeyRequest struct {
	OperatorID string `json:"operator_id"`
	Name       string `json:"name"`
}

type APIKeyResponse struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

func (h *AuthHandler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	var req CreateOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	op, err := h.svc.CreateOperator(r.Context(), req.Name, req.Email)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, OperatorResponse{
		ID:        op.ID,
		Name:      op.Name,
		Email:     op.Email,
		CreatedAt: op.CreatedAt.Format(timeFormat),
	})
}

func (h *AuthHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.OperatorID == "" {
		api.Error(w, http.StatusBadRequest, "operator_id is required")
		return
	}
	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	token, err := h.svc.CreateAPIKey(r.Context(), req.OperatorID, req.Name)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, APIKeyResponse{
		Token: token,
		Name:  req.Name,
	})
}
