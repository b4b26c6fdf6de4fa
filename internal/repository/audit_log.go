package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/portside-labs/portside/internal/service"
)

// AuditLogRepository appends discovery and review decisions to the
// audit trail. Append-only; rows are never updated.
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

func NewAuditLogRepository(pool *pgxpool.Pool) *AuditLogRepository {
	return &AuditLogRepository{pool: pool}
}

func (r *AuditLogRepository) RecordSuccess(ctx context.Context, entry service.AuditEntry) error {
	return r.record(ctx, "success", entry)
}

func (r *AuditLogRepository) RecordSkipped(ctx context.Context, entry service.AuditEntry) error {
	return r.record(ctx, "skipped", entry)
}

func (r *AuditLogRepository) record(ctx context.Context, outcome string, entry service.AuditEntry) error {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		// Recording is best-effort from the callers, but a row with
		// silently nulled metadata is worse than no row: the services
		// log this failure like any other audit error.
		return fmt.Errorf("failed to marshal audit metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_logs (entity_type, entity_id, action, outcome, metadata)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		outcome,
		metadataJSON,
	)
	return err
}

// ListByEntity returns the audit trail for one entity, newest first.
func (r *AuditLogRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*service.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, entity_type, entity_id, action, outcome, metadata, created_at
		 FROM audit_logs
		 WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		entityType, entityID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*service.AuditRecord
	for rows.Next() {
		var rec service.AuditRecord
		var metadataJSON []byte
		if err := rows.Scan(&rec.ID, &rec.EntityType, &rec.EntityID, &rec.Action, &rec.Outcome, &metadataJSON, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadataJSON) > 0 {
			_ = json.Unmarshal(metadataJSON, &rec.Metadata)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
