package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/portside-labs/portside/internal/domain"
	"github.com/portside-labs/portside/internal/pagination"
	"github.com/portside-labs/portside/internal/service"
)

const threadLinkColumns = `order_number, conversation_id, status, confidence,
	 email_matched, order_in_subject, order_in_search, days_since_last_message,
	 matched_email, conversation_subject, candidates_found,
	 reviewed_by, reviewed_at, created_at, updated_at`

type ThreadLinkRepository struct {
	db dbtx
}

func NewThreadLinkRepository(pool *pgxpool.Pool) *ThreadLinkRepository {
	return &ThreadLinkRepository{db: pool}
}

func NewThreadLinkRepositoryWithTx(tx pgx.Tx) *ThreadLinkRepository {
	return &ThreadLinkRepository{db: tx}
}

// Upsert writes the thread link for its order, inserting or replacing the
// single row keyed by order number. This is the only serialization point
// for concurrent discovery attempts on the same order; last write wins.
func (r *ThreadLinkRepository) Upsert(ctx context.Context, l *domain.ThreadLink) error {
	if err := domain.ValidateThreadLink(l); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO thread_links (order_number, conversation_id, status, confidence,
		     email_matched, order_in_subject, order_in_search, days_since_last_message,
		     matched_email, conversation_subject, candidates_found,
		     reviewed_by, reviewed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (order_number) DO UPDATE SET
		     conversation_id = EXCLUDED.conversation_id,
		     status = EXCLUDED.status,
		     confidence = EXCLUDED.confidence,
		     email_matched = EXCLUDED.email_matched,
		     order_in_subject = EXCLUDED.order_in_subject,
		     order_in_search = EXCLUDED.order_in_search,
		     days_since_last_message = EXCLUDED.days_since_last_message,
		     matched_email = EXCLUDED.matched_email,
		     conversation_subject = EXCLUDED.conversation_subject,
		     candidates_found = EXCLUDED.candidates_found,
		     reviewed_by = EXCLUDED.reviewed_by,
		     reviewed_at = EXCLUDED.reviewed_at,
		     updated_at = EXCLUDED.updated_at`,
		l.OrderNumber, nullableString(l.ConversationID), l.Status, l.Confidence,
		l.EmailMatched, l.OrderInSubject, l.OrderInSearch, l.DaysSinceLastMessage,
		nullableString(l.MatchedEmail), nullableString(l.ConversationSubject), l.CandidatesFound,
		nullableString(l.ReviewedBy), l.ReviewedAt, l.CreatedAt, l.UpdatedAt,
	)
	return err
}

func (r *ThreadLinkRepository) GetByOrder(ctx context.Context, orderNumber string) (*domain.ThreadLink, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+threadLinkColumns+` FROM thread_links WHERE order_number = $1`,
		orderNumber,
	)
	link, err := scanThreadLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrThreadLinkNotFound
		}
		return nil, err
	}
	return link, nil
}

// UpdateStatus transitions the match status and stamps the reviewer.
// A rejected row must not keep referencing the discarded conversation,
// so that transition also drops the candidate snapshot; the rejected
// conversation id survives in the audit trail.
func (r *ThreadLinkRepository) UpdateStatus(ctx context.Context, orderNumber string, status domain.MatchStatus, reviewedBy string) error {
	if !status.IsValid() {
		return domain.ErrInvalidMatchStatus
	}
	now := time.Now().UTC()
	query := `UPDATE thread_links
		 SET status = $1, reviewed_by = $2, reviewed_at = $3, updated_at = $3
		 WHERE order_number = $4`
	if status == domain.MatchStatusRejected {
		query = `UPDATE thread_links
		 SET status = $1, reviewed_by = $2, reviewed_at = $3, updated_at = $3,
		     conversation_id = NULL, conversation_subject = NULL, matched_email = NULL
		 WHERE order_number = $4`
	}
	cmdTag, err := r.db.Exec(ctx, query,
		status, nullableString(reviewedBy), now, orderNumber,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrThreadLinkNotFound
	}
	return nil
}

// LinkConversation records a manual override: the supplied conversation
// becomes the link regardless of prior state, creating the row if the
// order was never discovered.
func (r *ThreadLinkRepository) LinkConversation(ctx context.Context, orderNumber, conversationID, reviewedBy string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO thread_links (order_number, conversation_id, status, reviewed_by, reviewed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5, $5)
		 ON CONFLICT (order_number) DO UPDATE SET
		     conversation_id = EXCLUDED.conversation_id,
		     status = EXCLUDED.status,
		     reviewed_by = EXCLUDED.reviewed_by,
		     reviewed_at = EXCLUDED.reviewed_at,
		     updated_at = EXCLUDED.updated_at`,
		orderNumber, conversationID, domain.MatchStatusManuallyLinked, nullableString(reviewedBy), now,
	)
	return err
}

// Clear resets every match field to the unmatched default. Maintenance
// action; the row itself survives so discovery history keys stay stable.
func (r *ThreadLinkRepository) Clear(ctx context.Context, orderNumber string) error {
	now := time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE thread_links
		 SET conversation_id = NULL,
		     status = $1,
		     confidence = NULL,
		     email_matched = FALSE,
		     order_in_subject = FALSE,
		     order_in_search = FALSE,
		     days_since_last_message = NULL,
		     matched_email = NULL,
		     conversation_subject = NULL,
		     candidates_found = 0,
		     reviewed_by = NULL,
		     reviewed_at = NULL,
		     updated_at = $2
		 WHERE order_number = $3`,
		domain.MatchStatusNotFound, now, orderNumber,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrThreadLinkNotFound
	}
	return nil
}

// ListNeedingReview returns the operator review queue: pending_review
// entries sort before not_found, then by confidence descending.
func (r *ThreadLinkRepository) ListNeedingReview(ctx context.Context, limit int) ([]*domain.ThreadLink, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+threadLinkColumns+`
		 FROM thread_links
		 WHERE status = ANY($1)
		 ORDER BY CASE status WHEN $2 THEN 0 ELSE 1 END,
		          confidence DESC NULLS LAST,
		          updated_at DESC
		 LIMIT $3`,
		[]string{string(domain.MatchStatusPendingReview), string(domain.MatchStatusNotFound)},
		domain.MatchStatusPendingReview, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanThreadLinkRows(rows)
}

// ListLinked returns linked threads (auto or manual) with keyset
// pagination on (updated_at, order_number).
func (r *ThreadLinkRepository) ListLinked(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.ThreadLinkPage, error) {
	if limit <= 0 {
		limit = 50
	}

	statuses := []string{string(domain.MatchStatusAutoMatched), string(domain.MatchStatusManuallyLinked)}

	var rows pgx.Rows
	var err error
	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+threadLinkColumns+`
			 FROM thread_links
			 WHERE status = ANY($1) AND (updated_at, order_number) < ($2, $3)
			 ORDER BY updated_at DESC, order_number DESC
			 LIMIT $4`,
			statuses, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+threadLinkColumns+`
			 FROM thread_links
			 WHERE status = ANY($1)
			 ORDER BY updated_at DESC, order_number DESC
			 LIMIT $2`,
			statuses, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanThreadLinkRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.OrderNumber, last.UpdatedAt)
	}

	return &service.ThreadLinkPage{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func scanThreadLink(row pgx.Row) (*domain.ThreadLink, error) {
	var l domain.ThreadLink
	var conversationID, matchedEmail, subject, reviewedBy pgtype.Text
	err := row.Scan(
		&l.OrderNumber, &conversationID, &l.Status, &l.Confidence,
		&l.EmailMatched, &l.OrderInSubject, &l.OrderInSearch, &l.DaysSinceLastMessage,
		&matchedEmail, &subject, &l.CandidatesFound,
		&reviewedBy, &l.ReviewedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if conversationID.Valid {
		l.ConversationID = conversationID.String
	}
	if matchedEmail.Valid {
		l.MatchedEmail = matchedEmail.String
	}
	if subject.Valid {
		l.ConversationSubject = subject.String
	}
	if reviewedBy.Valid {
		l.ReviewedBy = reviewedBy.String
	}
	return &l, nil
}

func scanThreadLinkRows(rows pgx.Rows) ([]*domain.ThreadLink, error) {
	var results []*domain.ThreadLink
	for rows.Next() {
		link, err := scanThreadLink(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, link)
	}
	return results, rows.Err()
}
