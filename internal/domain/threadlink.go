package domain

import (
	"regexp"
	"time"
)

// MatchStatus is the reconciliation state of a thread link.
type MatchStatus string

const (
	// MatchStatusNotFound means discovery ran (or was skipped) and no
	// conversation was linked. Re-discovery is allowed.
	MatchStatusNotFound MatchStatus = "not_found"
	// MatchStatusPendingReview means a candidate was found but its score
	// landed below the auto-match threshold. Re-discovery is allowed.
	MatchStatusPendingReview MatchStatus = "pending_review"
	// MatchStatusAutoMatched means the top candidate cleared the
	// auto-match threshold. Terminal for automatic discovery.
	MatchStatusAutoMatched MatchStatus = "auto_matched"
	// MatchStatusManuallyLinked means an operator confirmed or overrode
	// the link. Terminal for automatic discovery.
	MatchStatusManuallyLinked MatchStatus = "manually_linked"
	// MatchStatusRejected means an operator rejected the candidate.
	// Terminal for automatic discovery; only LinkDifferent or Clear leave it.
	MatchStatusRejected MatchStatus = "rejected"
)

// ValidMatchStatuses lists every status a thread link may hold.
var ValidMatchStatuses = []MatchStatus{
	MatchStatusNotFound,
	MatchStatusPendingReview,
	MatchStatusAutoMatched,
	MatchStatusManuallyLinked,
	MatchStatusRejected,
}

// IsValid returns true if the status is one of the known match statuses.
func (s MatchStatus) IsValid() bool {
	for _, v := range ValidMatchStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ConfidenceRank orders statuses by how confident the match is.
// Used to assert classifier monotonicity.
func (s MatchStatus) ConfidenceRank() int {
	switch s {
	case MatchStatusAutoMatched:
		return 2
	case MatchStatusPendingReview:
		return 1
	default:
		return 0
	}
}

// AllowsRediscovery reports whether automatic discovery may overwrite a
// link in this state. Confirmed matches and explicit rejections require a
// human action to leave.
func (s MatchStatus) AllowsRediscovery() bool {
	return s == MatchStatusNotFound || s == MatchStatusPendingReview
}

// ThreadLink ties an order to a customer-support conversation. Exactly one
// row exists per order number; writes are upserts keyed on it.
type ThreadLink struct {
	OrderNumber          string
	ConversationID       string
	Status               MatchStatus
	Confidence           *float64
	EmailMatched         bool
	OrderInSubject       bool
	OrderInSearch        bool
	DaysSinceLastMessage *int
	MatchedEmail         string
	ConversationSubject  string
	CandidatesFound      int
	ReviewedBy           string
	ReviewedAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewUnmatchedThreadLink returns the not_found default for an order.
func NewUnmatchedThreadLink(orderNumber string, now time.Time) *ThreadLink {
	return &ThreadLink{
		OrderNumber: orderNumber,
		Status:      MatchStatusNotFound,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ValidateThreadLink checks structural invariants before persistence.
func ValidateThreadLink(l *ThreadLink) error {
	if l == nil {
		return NewDomainError(ErrCodeValidation, "thread link cannot be nil")
	}
	if l.OrderNumber == "" {
		return ErrMissingOrderNumber
	}
	if !l.Status.IsValid() {
		return ErrInvalidMatchStatus
	}
	if l.ConversationID != "" {
		switch l.Status {
		case MatchStatusAutoMatched, MatchStatusPendingReview, MatchStatusManuallyLinked:
		default:
			return NewDomainError(ErrCodeValidation, "conversation id set but status does not carry a candidate")
		}
	}
	if l.Status == MatchStatusNotFound && l.ConversationID != "" {
		return NewDomainError(ErrCodeValidation, "not_found thread link must not reference a conversation")
	}
	if l.Confidence != nil && (*l.Confidence < 0 || *l.Confidence > 1) {
		return NewDomainError(ErrCodeValidation, "confidence must be within [0,1]")
	}
	return nil
}

var conversationIDPattern = regexp.MustCompile(`^cnv_[A-Za-z0-9]{1,64}$`)

// ValidateConversationID checks the communication platform's id shape.
// Operator-entered ids are validated before any store write.
func ValidateConversationID(id string) error {
	if !conversationIDPattern.MatchString(id) {
		return ErrInvalidConversationID
	}
	return nil
}
