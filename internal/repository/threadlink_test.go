//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portside-labs/portside/internal/domain"
	"github.com/portside-labs/portside/internal/pagination"
	"github.com/portside-labs/portside/internal/testutil"
)

func newPendingLink(orderNumber string, at time.Time) *domain.ThreadLink {
	confidence := 0.55
	days := 12
	return &domain.ThreadLink{
		OrderNumber:          orderNumber,
		ConversationID:       "cnv_abc123",
		Status:               domain.MatchStatusPendingReview,
		Confidence:           &confidence,
		EmailMatched:         true,
		OrderInSubject:       false,
		OrderInSearch:        false,
		DaysSinceLastMessage: &days,
		MatchedEmail:         "jordan@example.com",
		ConversationSubject:  "Question about my order",
		CandidatesFound:      3,
		CreatedAt:            at,
		UpdatedAt:            at,
	}
}

func TestThreadLinkRepository_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewThreadLinkRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	link := newPendingLink("1001", now)
	require.NoError(t, repo.Upsert(ctx, link))

	retrieved, err := repo.GetByOrder(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "1001", retrieved.OrderNumber)
	assert.Equal(t, "cnv_abc123", retrieved.ConversationID)
	assert.Equal(t, domain.MatchStatusPendingReview, retrieved.Status)
	require.NotNil(t, retrieved.Confidence)
	assert.InDelta(t, 0.55, *retrieved.Confidence, 0.0001)
	assert.True(t, retrieved.EmailMatched)
	require.NotNil(t, retrieved.DaysSinceLastMessage)
	assert.Equal(t, 12, *retrieved.DaysSinceLastMessage)
	assert.Equal(t, "jordan@example.com", retrieved.MatchedEmail)
	assert.Equal(t, 3, retrieved.CandidatesFound)
	assert.Empty(t, retrieved.ReviewedBy)
}

func TestThreadLinkRepository_UpsertReplacesExisting(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewThreadLinkRepository(pool)

	created := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Upsert(ctx, newPendingLink("1001", created)))

	confidence := 0.91
	updated := &domain.ThreadLink{
		OrderNumber:     "1001",
		ConversationID:  "cnv_def456",
		Status:          domain.MatchStatusAutoMatched,
		Confidence:      &confidence,
		EmailMatched:    true,
		OrderInSubject:  true,
		CandidatesFound: 1,
		CreatedAt:       created,
		UpdatedAt:       created.Add(time.Minute),
	}
	require.NoError(t, repo.Upsert(ctx, updated))

	retrieved, err := repo.GetByOrder(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "cnv_def456", retrieved.ConversationID)
	assert.Equal(t, domain.MatchStatusAutoMatched, retrieved.Status)
	assert.InDelta(t, 0.91, *retrieved.Confidence, 0.0001)
	assert.True(t, retrieved.OrderInSubject)
}

func TestThreadLinkRepository_UpsertValidation(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewThreadLinkRepository(pool)

	now := time.Now().UTC()
	missing := domain.NewUnmatchedThreadLink("", now)
	err := repo.Upsert(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrMissingOrderNumber)
}

func TestThreadLinkRepository_GetByOrder_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewThreadLinkRepository(pool)

	_, err := repo.GetByOrder(ctx, "9999")
	assert.ErrorIs(t, err, domain.ErrThreadLinkNotFound)
}

func TestThreadLinkRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewThreadLinkRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Upsert(ctx, newPendingLink("1001", now)))

	err := repo.UpdateStatus(ctx, "1001", domain.MatchStatusManuallyLinked, "maria")
	require.NoError(t, err)

	retrieved, err := repo.GetByOrder(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusManuallyLinked, retrieved.Status)
	assert.Equal(t, "maria", retrieved.ReviewedBy)
	require.NotNil(t, retrieved.ReviewedAt)
	assert.True(t, retrieved.UpdatedAt.After(now))
}

func TestThreadLinkRepository_UpdateStatus_RejectDropsConversation(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewThreadLinkRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Upsert(ctx, newPendingLink("1001", now)))

	require.NoError(t, repo.UpdateStatus(ctx, "1001", domain.MatchStatusRejected, "maria"))

	retrieved, err := repo.GetByOrder(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusRejected, retrieved.Status)
	assert.Empty(t, retrieved.ConversationID)
	assert.Empty(t, retrieved.ConversationSubject)
	assert.Empty(t, retrieved.MatchedEmail)
	assert.Equal(t, "maria", retrieved.ReviewedBy)
	assert.NoError(t, domain.ValidateThreadLink(retrieved))
}

func TestThreadLinkRepository_UpdateStatus_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewThreadLinkRepository(pool)

	err := repo.UpdateStatus(ctx, "9999", domain.MatchStatusRejected, "maria")
	assert.ErrorIs(t, err, domain.ErrThreadLinkNotFound)
}

func TestThreadLinkRepository_UpdateStatus_InvalidStatus(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewThreadLinkRepository(pool)

	err := repo.UpdateStatus(ctx, "1001", domain.MatchStatus("bogus"), "maria")
	assert.ErrorIs(t, err, domain.ErrInvalidMatchStatus)
}

func TestThreadLinkRepository_LinkConversation(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewThreadLinkRepository(pool)

	t.Run("creates row for undiscovered order", func(t *testing.T) {
		require.NoError(t, repo.LinkConversation(ctx, "2001", "cnv_manual01", "maria"))

		retrieved, err := repo.GetByOrder(ctx, "2001")
		require.NoError(t, err)
		assert.Equal(t, "cnv_manual01", retrieved.ConversationID)
		assert.Equal(t, domain.MatchStatusManuallyLinked, retrieved.Status)
		assert.Equal(t, "maria", retrieved.ReviewedBy)
	})

	t.Run("overrides existing link", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, repo.Upsert(ctx, newPendingLink("2002", now)))

		require.NoError(t, repo.LinkConversation(ctx, "2002", "cnv_manual02", "maria"))

		retrieved, err := repo.GetByOrder(ctx, "2002")
		require.NoError(t, err)
		assert.Equal(t, "cnv_manual02", retrieved.ConversationID)
		assert.Equal(t, domain.MatchStatusManuallyLinked, retrieved.Status)
	})
}

func TestThreadLinkRepository_Clear(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewThreadLinkRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Upsert(ctx, newPendingLink("1001", now)))
	require.NoError(t, repo.UpdateStatus(ctx, "1001", domain.MatchStatusManuallyLinked, "maria"))

	require.NoError(t, repo.Clear(ctx, "1001"))

	retrieved, err := repo.GetByOrder(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusNotFound, retrieved.Status)
	assert.Empty(t, retrieved.ConversationID)
	assert.Nil(t, retrieved.Confidence)
	assert.False(t, retrieved.EmailMatched)
	assert.Nil(t, retrieved.DaysSinceLastMessage)
	assert.Empty(t, retrieved.MatchedEmail)
	assert.Equal(t, 0, retrieved.CandidatesFound)
	assert.Empty(t, retrieved.ReviewedBy)
	assert.Nil(t, retrieved.ReviewedAt)
	assert.Equal(t, retrieved.CreatedAt, now)
}

func TestThreadLinkRepository_Clear_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewThreadLinkRepository(pool)

	err := repo.Clear(ctx, "9999")
	assert.ErrorIs(t, err, domain.ErrThreadLinkNotFound)
}

func TestThreadLinkRepository_ListNeedingReview(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewThreadLinkRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)

	lowConf := newPendingLink("3001", now)
	low := 0.30
	lowConf.Confidence = &low

	highConf := newPendingLink("3002", now)
	high := 0.65
	highConf.Confidence = &high

	notFound := domain.NewUnmatchedThreadLink("3003", now)

	autoMatched := newPendingLink("3004", now)
	autoMatched.Status = domain.MatchStatusAutoMatched

	require.NoError(t, repo.Upsert(ctx, lowConf))
	require.NoError(t, repo.Upsert(ctx, highConf))
	require.NoError(t, repo.Upsert(ctx, notFound))
	require.NoError(t, repo.Upsert(ctx, autoMatched))

	queue, err := repo.ListNeedingReview(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queue, 3)

	// pending_review first, by confidence descending, then not_found.
	assert.Equal(t, "3002", queue[0].OrderNumber)
	assert.Equal(t, "3001", queue[1].OrderNumber)
	assert.Equal(t, "3003", queue[2].OrderNumber)
}

func TestThreadLinkRepository_ListLinked_Pagination(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewThreadLinkRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		link := newPendingLink(fmt.Sprintf("40%02d", i), base.Add(time.Duration(i)*time.Minute))
		link.Status = domain.MatchStatusAutoMatched
		require.NoError(t, repo.Upsert(ctx, link))
	}
	// A pending link must never appear in the linked list.
	require.NoError(t, repo.Upsert(ctx, newPendingLink("4099", base)))

	page1, err := repo.ListLinked(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	assert.True(t, page1.HasMore)
	assert.NotEmpty(t, page1.NextCursor)
	assert.Equal(t, "4004", page1.Items[0].OrderNumber)
	assert.Equal(t, "4003", page1.Items[1].OrderNumber)

	cursor, err := pagination.DecodeCursor(page1.NextCursor)
	require.NoError(t, err)

	page2, err := repo.ListLinked(ctx, cursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	assert.True(t, page2.HasMore)
	assert.Equal(t, "4002", page2.Items[0].OrderNumber)
	assert.Equal(t, "4001", page2.Items[1].OrderNumber)

	cursor2, err := pagination.DecodeCursor(page2.NextCursor)
	require.NoError(t, err)

	page3, err := repo.ListLinked(ctx, cursor2, 2)
	require.NoError(t, err)
	require.Len(t, page3.Items, 1)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.NextCursor)
	assert.Equal(t, "4000", page3.Items[0].OrderNumber)
}
