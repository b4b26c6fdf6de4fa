package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/portside-labs/portside/internal/api"
	"github.com/portside-labs/portside/internal/api/middleware"
	"github.com/portside-labs/portside/internal/domain"
	"github.com/portside-labs/portside/internal/service"
)

type DiscoveryService interface {
	DiscoverThread(ctx context.Context, facts domain.OrderFacts) (*service.DiscoveryResult, error)
	EnqueueDiscovery(ctx context.Context, facts domain.OrderFacts) (*domain.DiscoveryJob, error)
}

type ReviewService interface {
	GetByOrder(ctx context.Context, orderNumber string) (*domain.ThreadLink, error)
	Approve(ctx context.Context, orderNumber, reviewedBy string) (*domain.ThreadLink, error)
	Reject(ctx context.Context, orderNumber, reviewedBy string) (*domain.ThreadLink, error)
	LinkDifferent(ctx context.Context, orderNumber, conversationID, reviewedBy string) (*domain.ThreadLink, error)
	Clear(ctx context.Context, orderNumber, reviewedBy string) error
	ListNeedingReview(ctx context.Context, limit int) ([]*domain.ThreadLink, error)
	ListLinked(ctx context.Context, cursor string, limit int) (*service.ThreadLinkPage, error)
}

// EvidenceProvider resolves the archived scoring payload for an order.
// Nil when no archive is configured.
type EvidenceProvider interface {
	EvidenceURL(ctx context.Context, orderNumber string) (string, error)
}

type ThreadHandler struct {
	discovery DiscoveryService
	review    ReviewService
	evidence  EvidenceProvider
}

func NewThreadHandler(discovery DiscoveryService, review ReviewService, evidence EvidenceProvider) *ThreadHandler {
	return &ThreadHandler{
		discovery: discovery,
		review:    review,
		evidence:  evidence,
	}
}

type DiscoverRequest struct {
	OrderNumber   string `json:"order_number"`
	OrderName     string `json:"order_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
}

func (r DiscoverRequest) facts() domain.OrderFacts {
	return domain.OrderFacts{
		OrderNumber:   r.OrderNumber,
		OrderName:     r.OrderName,
		CustomerEmail: r.CustomerEmail,
		CustomerName:  r.CustomerName,
	}
}

type LinkRequest struct {
	ConversationID string `json:"conversation_id"`
}

type ThreadLinkResponse struct {
	OrderNumber          string   `json:"order_number"`
	ConversationID       string   `json:"conversation_id,omitempty"`
	Status               string   `json:"status"`
	Confidence           *float64 `json:"confidence,omitempty"`
	EmailMatched         bool     `json:"email_matched"`
	OrderInSubject       bool     `json:"order_in_subject"`
	OrderInSearch        bool     `json:"order_in_search"`
	DaysSinceLastMessage *int     `json:"days_since_last_message,omitempty"`
	MatchedEmail         string   `json:"matched_email,omitempty"`
	ConversationSubject  string   `json:"conversation_subject,omitempty"`
	CandidatesFound      int      `json:"candidates_found"`
	ReviewedBy           string   `json:"reviewed_by,omitempty"`
	ReviewedAt           string   `json:"reviewed_at,omitempty"`
	CreatedAt            string   `json:"created_at"`
	UpdatedAt            string   `json:"updated_at"`
}

const timeFormat = "2006-01-02T15:04:05Z"

func threadLinkToResponse(l *domain.ThreadLink) *ThreadLinkResponse {
	resp := &ThreadLinkResponse{
		OrderNumber:          l.OrderNumber,
		ConversationID:       l.ConversationID,
		Status:               string(l.Status),
		Confidence:           l.Confidence,
		EmailMatched:         l.EmailMatched,
		OrderInSubject:       l.OrderInSubject,
		OrderInSearch:        l.OrderInSearch,
		DaysSinceLastMessage: l.DaysSinceLastMessage,
		MatchedEmail:         l.MatchedEmail,
		ConversationSubject:  l.ConversationSubject,
		CandidatesFound:      l.CandidatesFound,
		ReviewedBy:           l.ReviewedBy,
		CreatedAt:            l.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:            l.UpdatedAt.UTC().Format(timeFormat),
	}
	if l.ReviewedAt != nil {
		resp.ReviewedAt = l.ReviewedAt.UTC().Format(timeFormat)
	}
	return resp
}

type DiscoverResponse struct {
	Status          string              `json:"status"`
	CandidatesFound int                 `json:"candidates_found"`
	TopScore        *float64            `json:"top_score,omitempty"`
	ThreadLink      *ThreadLinkResponse `json:"thread_link,omitempty"`
}

func (h *ThreadHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.discovery.DiscoverThread(r.Context(), req.facts())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := DiscoverResponse{
		Status:          string(result.Status),
		CandidatesFound: result.CandidatesFound,
		TopScore:        result.TopScore,
	}
	if result.ThreadLink != nil {
		resp.ThreadLink = threadLinkToResponse(result.ThreadLink)
	}

	api.Success(w, http.StatusOK, resp)
}

type EnqueueResponse struct {
	JobID       string `json:"job_id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
}

func (h *ThreadHandler) DiscoverAsync(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.discovery.EnqueueDiscovery(r.Context(), req.facts())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, EnqueueResponse{
		JobID:       job.ID,
		OrderNumber: job.OrderNumber,
		Status:      string(job.Status),
	})
}

func (h *ThreadHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")
	if orderNumber == "" {
		api.Error(w, http.StatusBadRequest, "order number is required")
		return
	}

	link, err := h.review.GetByOrder(r.Context(), orderNumber)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, threadLinkToResponse(link))
}

type ReviewQueueResponse struct {
	Items []*ThreadLinkResponse `json:"items"`
}

func (h *ThreadHandler) ReviewQueue(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)

	links, err := h.review.ListNeedingReview(r.Context(), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ThreadLinkResponse, len(links))
	for i, l := range links {
		items[i] = threadLinkToResponse(l)
	}

	api.Success(w, http.StatusOK, ReviewQueueResponse{Items: items})
}

type LinkedListResponse struct {
	Items   []*ThreadLinkResponse `json:"items"`
	Cursor  string                `json:"cursor,omitempty"`
	HasMore bool                  `json:"has_more"`
}

func (h *ThreadHandler) ListLinked(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := parseLimit(r, 20)

	page, err := h.review.ListLinked(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ThreadLinkResponse, len(page.Items))
	for i, l := range page.Items {
		items[i] = threadLinkToResponse(l)
	}

	api.Success(w, http.StatusOK, LinkedListResponse{
		Items:   items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

func (h *ThreadHandler) Approve(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")
	if orderNumber == "" {
		api.Error(w, http.StatusBadRequest, "order number is required")
		return
	}

	link, err := h.review.Approve(r.Context(), orderNumber, middleware.GetOperator(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, threadLinkToResponse(link))
}

func (h *ThreadHandler) Reject(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")
	if orderNumber == "" {
		api.Error(w, http.StatusBadRequest, "order number is required")
		return
	}

	link, err := h.review.Reject(r.Context(), orderNumber, middleware.GetOperator(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, threadLinkToResponse(link))
}

func (h *ThreadHandler) Link(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")
	if orderNumber == "" {
		api.Error(w, http.StatusBadRequest, "order number is required")
		return
	}

	var req LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConversationID == "" {
		api.Error(w, http.StatusBadRequest, "conversation_id is required")
		return
	}

	link, err := h.review.LinkDifferent(r.Context(), orderNumber, req.ConversationID, middleware.GetOperator(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, threadLinkToResponse(link))
}

func (h *ThreadHandler) Clear(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")
	if orderNumber == "" {
		api.Error(w, http.StatusBadRequest, "order number is required")
		return
	}

	if err := h.review.Clear(r.Context(), orderNumber, middleware.GetOperator(r.Context())); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

type EvidenceResponse struct {
	OrderNumber string `json:"order_number"`
	URL         string `json:"url"`
}

func (h *ThreadHandler) Evidence(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")
	if orderNumber == "" {
		api.Error(w, http.StatusBadRequest, "order number is required")
		return
	}

	if h.evidence == nil {
		api.Error(w, http.StatusNotFound, "evidence archive is not configured")
		return
	}

	url, err := h.evidence.EvidenceURL(r.Context(), orderNumber)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, EvidenceResponse{
		OrderNumber: orderNumber,
		URL:         url,
	})
}

func parseLimit(r *http.Request, fallback int) int {
	limit := fallback
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return limit
}
