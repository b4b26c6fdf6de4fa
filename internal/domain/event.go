package domain

import "time"

// ThreadEventType identifies a thread lifecycle event.
type ThreadEventType string

const (
	ThreadEventAutoMatched    ThreadEventType = "thread.auto_matched"
	ThreadEventPendingReview  ThreadEventType = "thread.pending_review"
	ThreadEventNotFound       ThreadEventType = "thread.not_found"
	ThreadEventManuallyLinked ThreadEventType = "thread.manually_linked"
	ThreadEventRejected       ThreadEventType = "thread.rejected"
	ThreadEventCleared        ThreadEventType = "thread.cleared"
)

// ThreadEvent is emitted after a thread link state change has been
// durably written. Delivery is fire-and-forget: the store write is the
// fact of record and event failures never roll it back.
type ThreadEvent struct {
	Type           ThreadEventType `json:"type"`
	OrderNumber    string          `json:"order_number"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Status         MatchStatus     `json:"status"`
	Confidence     *float64        `json:"confidence,omitempty"`
	Actor          string          `json:"actor,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
