package service

import (
	"context"
	"time"
)

// AuditEntry describes one search/match/override action for the
// append-only audit trail.
type AuditEntry struct {
	EntityType string
	EntityID   string
	Action     string
	Metadata   map[string]any
}

// AuditRecord is a persisted audit entry.
type AuditRecord struct {
	ID         string
	EntityType string
	EntityID   string
	Action     string
	Outcome    string
	Metadata   map[string]any
	CreatedAt  time.Time
}

// AuditRecorder receives every decision the engine makes. Recording is
// fire-and-forget from the engine's perspective: failures are logged and
// never surface to the discovery caller.
type AuditRecorder interface {
	RecordSuccess(ctx context.Context, entry AuditEntry) error
	RecordSkipped(ctx context.Context, entry AuditEntry) error
}

// Audit entity and action names.
const (
	AuditEntityOrder = "order"

	AuditActionSearch      = "conversation_search"
	AuditActionMatch       = "thread_match"
	AuditActionApprove     = "thread_approve"
	AuditActionReject      = "thread_reject"
	AuditActionManualLink  = "thread_manual_link"
	AuditActionClearThread = "thread_clear"
)
