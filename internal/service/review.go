package service

import (
	"context"

	"github.com/portside-labs/portside/internal/domain"
	"github.com/portside-labs/portside/internal/pagination"
	"github.com/portside-labs/portside/internal/telemetry"
	"github.com/rs/zerolog"
)

// ThreadLinkPage is one page of linked threads.
type ThreadLinkPage struct {
	Items      []*domain.ThreadLink
	NextCursor string
	HasMore    bool
}

// ReviewStoreInterface defines the store operations the review surface needs.
type ReviewStoreInterface interface {
	GetByOrder(ctx context.Context, orderNumber string) (*domain.ThreadLink, error)
	UpdateStatus(ctx context.Context, orderNumber string, status domain.MatchStatus, reviewedBy string) error
	LinkConversation(ctx context.Context, orderNumber, conversationID, reviewedBy string) error
	Clear(ctx context.Context, orderNumber string) error
	ListNeedingReview(ctx context.Context, limit int) ([]*domain.ThreadLink, error)
	ListLinked(ctx context.Context, cursor *pagination.Cursor, limit int) (*ThreadLinkPage, error)
}

// ReviewService handles operator actions on thread links: approve,
// reject, manual override, and maintenance clears.
type ReviewService struct {
	links  ReviewStoreInterface
	audit  AuditRecorder
	events EventSink
	logger zerolog.Logger
}

// NewReviewService creates a ReviewService.
func NewReviewService(links ReviewStoreInterface, audit AuditRecorder, events EventSink, logger zerolog.Logger) *ReviewService {
	return &ReviewService{
		links:  links,
		audit:  audit,
		events: events,
		logger: logger,
	}
}

// Approve confirms a pending-review match: the candidate conversation
// becomes manually linked.
func (s *ReviewService) Approve(ctx context.Context, orderNumber, reviewedBy string) (*domain.ThreadLink, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReviewService.Approve", telemetry.SpanAttributes{
		OrderNumber: orderNumber,
		Operation:   "approve",
	})
	defer span.End()

	link, err := s.links.GetByOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if link.Status != domain.MatchStatusPendingReview {
		return nil, domain.ErrThreadNotReviewable
	}
	if link.ConversationID == "" {
		return nil, domain.ErrThreadNotMatched
	}

	if err := s.links.UpdateStatus(ctx, orderNumber, domain.MatchStatusManuallyLinked, reviewedBy); err != nil {
		span.SetError(err)
		return nil, err
	}

	s.record(ctx, orderNumber, AuditActionApprove, map[string]any{
		"conversation_id": link.ConversationID,
		"reviewed_by":     reviewedBy,
	})
	updated, err := s.links.GetByOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	s.emit(domain.ThreadEventManuallyLinked, updated, reviewedBy)
	return updated, nil
}

// Reject discards a pending-review match. The rejected state is terminal
// for automatic discovery; only LinkDifferent or Clear leave it.
func (s *ReviewService) Reject(ctx context.Context, orderNumber, reviewedBy string) (*domain.ThreadLink, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReviewService.Reject", telemetry.SpanAttributes{
		OrderNumber: orderNumber,
		Operation:   "reject",
	})
	defer span.End()

	link, err := s.links.GetByOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if link.Status != domain.MatchStatusPendingReview {
		return nil, domain.ErrThreadNotReviewable
	}

	if err := s.links.UpdateStatus(ctx, orderNumber, domain.MatchStatusRejected, reviewedBy); err != nil {
		span.SetError(err)
		return nil, err
	}

	s.record(ctx, orderNumber, AuditActionReject, map[string]any{
		"conversation_id": link.ConversationID,
		"reviewed_by":     reviewedBy,
	})
	updated, err := s.links.GetByOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	s.emit(domain.ThreadEventRejected, updated, reviewedBy)
	return updated, nil
}

// LinkDifferent overrides the link with an operator-chosen conversation.
// Valid from any state, including rejected and never-discovered orders.
func (s *ReviewService) LinkDifferent(ctx context.Context, orderNumber, conversationID, reviewedBy string) (*domain.ThreadLink, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReviewService.LinkDifferent", telemetry.SpanAttributes{
		OrderNumber:    orderNumber,
		ConversationID: conversationID,
		Operation:      "link_different",
	})
	defer span.End()

	if orderNumber == "" {
		return nil, domain.ErrMissingOrderNumber
	}
	if err := domain.ValidateConversationID(conversationID); err != nil {
		return nil, err
	}

	if err := s.links.LinkConversation(ctx, orderNumber, conversationID, reviewedBy); err != nil {
		span.SetError(err)
		return nil, err
	}

	s.record(ctx, orderNumber, AuditActionManualLink, map[string]any{
		"conversation_id": conversationID,
		"reviewed_by":     reviewedBy,
	})
	updated, err := s.links.GetByOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	s.emit(domain.ThreadEventManuallyLinked, updated, reviewedBy)
	return updated, nil
}

// Clear is the maintenance reset: every match field returns to the
// unmatched default and discovery may run again.
func (s *ReviewService) Clear(ctx context.Context, orderNumber, reviewedBy string) error {
	ctx, span := telemetry.StartSpan(ctx, "ReviewService.Clear", telemetry.SpanAttributes{
		OrderNumber: orderNumber,
		Operation:   "clear",
	})
	defer span.End()

	if err := s.links.Clear(ctx, orderNumber); err != nil {
		span.SetError(err)
		return err
	}

	s.record(ctx, orderNumber, AuditActionClearThread, map[string]any{
		"reviewed_by": reviewedBy,
	})
	cleared, err := s.links.GetByOrder(ctx, orderNumber)
	if err == nil {
		s.emit(domain.ThreadEventCleared, cleared, reviewedBy)
	}
	return nil
}

// GetByOrder returns the thread link for an order.
func (s *ReviewService) GetByOrder(ctx context.Context, orderNumber string) (*domain.ThreadLink, error) {
	return s.links.GetByOrder(ctx, orderNumber)
}

// ListNeedingReview returns the operator review queue.
func (s *ReviewService) ListNeedingReview(ctx context.Context, limit int) ([]*domain.ThreadLink, error) {
	return s.links.ListNeedingReview(ctx, limit)
}

// ListLinked returns linked threads, paginated.
func (s *ReviewService) ListLinked(ctx context.Context, cursor string, limit int) (*ThreadLinkPage, error) {
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	return s.links.ListLinked(ctx, decoded, limit)
}

func (s *ReviewService) record(ctx context.Context, orderNumber, action string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	entry := AuditEntry{EntityType: AuditEntityOrder, EntityID: orderNumber, Action: action, Metadata: metadata}
	if err := s.audit.RecordSuccess(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("audit record failed")
	}
}

func (s *ReviewService) emit(eventType domain.ThreadEventType, link *domain.ThreadLink, actor string) {
	if s.events == nil || link == nil {
		return
	}
	s.events.Emit(domain.ThreadEvent{
		Type:           eventType,
		OrderNumber:    link.OrderNumber,
		ConversationID: link.ConversationID,
		Status:         link.Status,
		Confidence:     link.Confidence,
		Actor:          actor,
		OccurredAt:     link.UpdatedAt,
	})
}
