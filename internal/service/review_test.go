package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/portside-labs/portside/internal/domain"
	"github.com/portside-labs/portside/internal/pagination"
)

type MockReviewStore struct {
	mock.Mock
}

func (m *MockReviewStore) GetByOrder(ctx context.Context, orderNumber string) (*domain.ThreadLink, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ThreadLink), args.Error(1)
}

func (m *MockReviewStore) UpdateStatus(ctx context.Context, orderNumber string, status domain.MatchStatus, reviewedBy string) error {
	args := m.Called(ctx, orderNumber, status, reviewedBy)
	return args.Error(0)
}

func (m *MockReviewStore) LinkConversation(ctx context.Context, orderNumber, conversationID, reviewedBy string) error {
	args := m.Called(ctx, orderNumber, conversationID, reviewedBy)
	return args.Error(0)
}

func (m *MockReviewStore) Clear(ctx context.Context, orderNumber string) error {
	args := m.Called(ctx, orderNumber)
	return args.Error(0)
}

func (m *MockReviewStore) ListNeedingReview(ctx context.Context, limit int) ([]*domain.ThreadLink, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ThreadLink), args.Error(1)
}

func (m *MockReviewStore) ListLinked(ctx context.Context, cursor *pagination.Cursor, limit int) (*ThreadLinkPage, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ThreadLinkPage), args.Error(1)
}

func pendingLink(orderNumber string) *domain.ThreadLink {
	confidence := 0.55
	return &domain.ThreadLink{
		OrderNumber:    orderNumber,
		ConversationID: "cnv_abc123",
		Status:         domain.MatchStatusPendingReview,
		Confidence:     &confidence,
		UpdatedAt:      time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
	}
}

func TestApprove(t *testing.T) {
	store := new(MockReviewStore)
	audit := new(MockAuditRecorder)
	sink := &recordingSink{}
	svc := NewReviewService(store, audit, sink, zerolog.Nop())

	pending := pendingLink("1001")
	approved := *pending
	approved.Status = domain.MatchStatusManuallyLinked
	approved.ReviewedBy = "maria"

	store.On("GetByOrder", mock.Anything, "1001").Return(pending, nil).Once()
	store.On("UpdateStatus", mock.Anything, "1001", domain.MatchStatusManuallyLinked, "maria").Return(nil)
	audit.On("RecordSuccess", mock.Anything, mock.MatchedBy(func(e AuditEntry) bool {
		return e.Action == AuditActionApprove && e.EntityID == "1001"
	})).Return(nil)
	store.On("GetByOrder", mock.Anything, "1001").Return(&approved, nil).Once()

	link, err := svc.Approve(context.Background(), "1001", "maria")
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusManuallyLinked, link.Status)
	assert.Equal(t, "maria", link.ReviewedBy)

	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.ThreadEventManuallyLinked, sink.events[0].Type)
	assert.Equal(t, "maria", sink.events[0].Actor)
	store.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestApprove_NotReviewable(t *testing.T) {
	store := new(MockReviewStore)
	svc := NewReviewService(store, nil, nil, zerolog.Nop())

	linked := pendingLink("1001")
	linked.Status = domain.MatchStatusAutoMatched
	store.On("GetByOrder", mock.Anything, "1001").Return(linked, nil)

	_, err := svc.Approve(context.Background(), "1001", "maria")
	require.ErrorIs(t, err, domain.ErrThreadNotReviewable)
	store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApprove_NoConversation(t *testing.T) {
	store := new(MockReviewStore)
	svc := NewReviewService(store, nil, nil, zerolog.Nop())

	pending := pendingLink("1001")
	pending.ConversationID = ""
	store.On("GetByOrder", mock.Anything, "1001").Return(pending, nil)

	_, err := svc.Approve(context.Background(), "1001", "maria")
	require.ErrorIs(t, err, domain.ErrThreadNotMatched)
}

func TestApprove_NotFoundPassesThrough(t *testing.T) {
	store := new(MockReviewStore)
	svc := NewReviewService(store, nil, nil, zerolog.Nop())

	store.On("GetByOrder", mock.Anything, "9999").Return(nil, domain.ErrThreadLinkNotFound)

	_, err := svc.Approve(context.Background(), "9999", "maria")
	require.ErrorIs(t, err, domain.ErrThreadLinkNotFound)
}

func TestReject(t *testing.T) {
	store := new(MockReviewStore)
	audit := new(MockAuditRecorder)
	sink := &recordingSink{}
	svc := NewReviewService(store, audit, sink, zerolog.Nop())

	pending := pendingLink("1001")
	// the store drops the candidate snapshot on reject; the refreshed
	// row must not reference the discarded conversation
	rejected := *pending
	rejected.Status = domain.MatchStatusRejected
	rejected.ConversationID = ""
	rejected.ConversationSubject = ""
	rejected.MatchedEmail = ""

	store.On("GetByOrder", mock.Anything, "1001").Return(pending, nil).Once()
	store.On("UpdateStatus", mock.Anything, "1001", domain.MatchStatusRejected, "maria").Return(nil)
	audit.On("RecordSuccess", mock.Anything, mock.MatchedBy(func(e AuditEntry) bool {
		return e.Action == AuditActionReject &&
			e.Metadata["conversation_id"] == "cnv_abc123"
	})).Return(nil)
	store.On("GetByOrder", mock.Anything, "1001").Return(&rejected, nil).Once()

	link, err := svc.Reject(context.Background(), "1001", "maria")
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusRejected, link.Status)
	assert.Empty(t, link.ConversationID)
	assert.NoError(t, domain.ValidateThreadLink(link))

	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.ThreadEventRejected, sink.events[0].Type)
	assert.Empty(t, sink.events[0].ConversationID)
}

func TestReject_NotReviewable(t *testing.T) {
	store := new(MockReviewStore)
	svc := NewReviewService(store, nil, nil, zerolog.Nop())

	linked := pendingLink("1001")
	linked.Status = domain.MatchStatusRejected
	linked.ConversationID = ""
	linked.ConversationSubject = ""
	linked.MatchedEmail = ""
	store.On("GetByOrder", mock.Anything, "1001").Return(linked, nil)

	_, err := svc.Reject(context.Background(), "1001", "maria")
	require.ErrorIs(t, err, domain.ErrThreadNotReviewable)
}

func TestLinkDifferent(t *testing.T) {
	store := new(MockReviewStore)
	audit := new(MockAuditRecorder)
	sink := &recordingSink{}
	svc := NewReviewService(store, audit, sink, zerolog.Nop())

	relinked := pendingLink("1001")
	relinked.ConversationID = "cnv_override9"
	relinked.Status = domain.MatchStatusManuallyLinked

	store.On("LinkConversation", mock.Anything, "1001", "cnv_override9", "maria").Return(nil)
	audit.On("RecordSuccess", mock.Anything, mock.MatchedBy(func(e AuditEntry) bool {
		return e.Action == AuditActionManualLink && e.Metadata["conversation_id"] == "cnv_override9"
	})).Return(nil)
	store.On("GetByOrder", mock.Anything, "1001").Return(relinked, nil)

	link, err := svc.LinkDifferent(context.Background(), "1001", "cnv_override9", "maria")
	require.NoError(t, err)
	assert.Equal(t, "cnv_override9", link.ConversationID)
	assert.Equal(t, domain.MatchStatusManuallyLinked, link.Status)

	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.ThreadEventManuallyLinked, sink.events[0].Type)
	store.AssertExpectations(t)
}

func TestLinkDifferent_InvalidConversationID(t *testing.T) {
	store := new(MockReviewStore)
	svc := NewReviewService(store, nil, nil, zerolog.Nop())

	cases := []string{"", "abc123", "cnv_", "conv_abc123"}
	for _, id := range cases {
		_, err := svc.LinkDifferent(context.Background(), "1001", id, "maria")
		require.Error(t, err, "conversation id %q", id)

		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	}
	store.AssertNotCalled(t, "LinkConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLinkDifferent_MissingOrderNumber(t *testing.T) {
	svc := NewReviewService(new(MockReviewStore), nil, nil, zerolog.Nop())

	_, err := svc.LinkDifferent(context.Background(), "", "cnv_abc123", "maria")
	require.ErrorIs(t, err, domain.ErrMissingOrderNumber)
}

func TestClear(t *testing.T) {
	store := new(MockReviewStore)
	audit := new(MockAuditRecorder)
	sink := &recordingSink{}
	svc := NewReviewService(store, audit, sink, zerolog.Nop())

	cleared := &domain.ThreadLink{
		OrderNumber: "1001",
		Status:      domain.MatchStatusNotFound,
	}
	store.On("Clear", mock.Anything, "1001").Return(nil)
	audit.On("RecordSuccess", mock.Anything, mock.MatchedBy(func(e AuditEntry) bool {
		return e.Action == AuditActionClearThread
	})).Return(nil)
	store.On("GetByOrder", mock.Anything, "1001").Return(cleared, nil)

	err := svc.Clear(context.Background(), "1001", "maria")
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.ThreadEventCleared, sink.events[0].Type)
	assert.Equal(t, domain.MatchStatusNotFound, sink.events[0].Status)
}

func TestClear_EmitIsBestEffort(t *testing.T) {
	store := new(MockReviewStore)
	audit := new(MockAuditRecorder)
	sink := &recordingSink{}
	svc := NewReviewService(store, audit, sink, zerolog.Nop())

	store.On("Clear", mock.Anything, "1001").Return(nil)
	audit.On("RecordSuccess", mock.Anything, mock.AnythingOfType("service.AuditEntry")).Return(nil)
	// The re-read after clearing failing must not fail the clear itself.
	store.On("GetByOrder", mock.Anything, "1001").Return(nil, errors.New("db down"))

	err := svc.Clear(context.Background(), "1001", "maria")
	require.NoError(t, err)
	assert.Empty(t, sink.events)
}

func TestClear_StoreError(t *testing.T) {
	store := new(MockReviewStore)
	svc := NewReviewService(store, nil, nil, zerolog.Nop())

	store.On("Clear", mock.Anything, "1001").Return(errors.New("db down"))

	err := svc.Clear(context.Background(), "1001", "maria")
	require.Error(t, err)
}

func TestListNeedingReview(t *testing.T) {
	store := new(MockReviewStore)
	svc := NewReviewService(store, nil, nil, zerolog.Nop())

	queue := []*domain.ThreadLink{pendingLink("1001"), pendingLink("1002")}
	store.On("ListNeedingReview", mock.Anything, 50).Return(queue, nil)

	got, err := svc.ListNeedingReview(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestListLinked(t *testing.T) {
	store := new(MockReviewStore)
	svc := NewReviewService(store, nil, nil, zerolog.Nop())

	page := &ThreadLinkPage{
		Items:      []*domain.ThreadLink{pendingLink("1001")},
		NextCursor: "eyJ1cGRhdGVkX2F0IjoxfQ",
		HasMore:    true,
	}
	store.On("ListLinked", mock.Anything, (*pagination.Cursor)(nil), 20).Return(page, nil)

	got, err := svc.ListLinked(context.Background(), "", 20)
	require.NoError(t, err)
	assert.True(t, got.HasMore)
	assert.Len(t, got.Items, 1)
}

func TestListLinked_InvalidCursor(t *testing.T) {
	store := new(MockReviewStore)
	svc := NewReviewService(store, nil, nil, zerolog.Nop())

	_, err := svc.ListLinked(context.Background(), "not-base64!!!", 20)
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	store.AssertNotCalled(t, "ListLinked", mock.Anything, mock.Anything, mock.Anything)
}
