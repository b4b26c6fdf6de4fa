package domain

import "time"

// Candidate is a conversation returned by a communication-system search.
// Candidates are produced fresh on every search and never persisted.
type Candidate struct {
	ConversationID string     `json:"conversation_id"`
	Subject        string     `json:"subject"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	Participants   []string   `json:"participants"`
}

// ScoreBreakdown records which signals contributed to a candidate's score.
type ScoreBreakdown struct {
	EmailMatched         bool `json:"email_matched"`
	OrderInSubject       bool `json:"order_in_subject"`
	OrderInSearch        bool `json:"order_in_search"`
	DaysSinceLastMessage *int `json:"days_since_last_message"`
}

// ScoringResult pairs a candidate with its confidence score and breakdown.
type ScoringResult struct {
	Candidate Candidate      `json:"candidate"`
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}
