package client

import (
	"fmt"
	"strings"
)

// ThreadLink mirrors the API's thread link representation.
type ThreadLink struct {
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

func printThreadLink(link *ThreadLink) {
	fmt.Printf("Order:        %s\n", link.OrderNumber)
	fmt.Printf("Status:       %s\n", link.Status)
	if link.ConversationID != "" {
		fmt.Printf("Conversation: %s\n", link.ConversationID)
	}
	if link.Confidence != nil {
		fmt.Printf("Confidence:   %.2f\n", *link.Confidence)
	}
	if link.ConversationSubject != "" {
		fmt.Printf("Subject:      %s\n", link.ConversationSubject)
	}
	if link.MatchedEmail != "" {
		fmt.Printf("Email:        %s\n", link.MatchedEmail)
	}
	var signals []string
	if link.EmailMatched {
		signals = append(signals, "email")
	}
	if link.OrderInSubject {
		signals = append(signals, "subject")
	}
	if link.OrderInSearch {
		signals = append(signals, "search")
	}
	if len(signals) > 0 {
		fmt.Printf("Signals:      %s\n", strings.Join(signals, ", "))
	}
	fmt.Printf("Candidates:   %d\n", link.CandidatesFound)
	if link.ReviewedBy != "" {
		fmt.Printf("Reviewed by:  %s", link.ReviewedBy)
		if link.ReviewedAt != "" {
			fmt.Printf(" at %s", link.ReviewedAt)
		}
		fmt.Println()
	}
	fmt.Printf("Updated:      %s\n", link.UpdatedAt)
}

func printThreadLinkRow(i int, link *ThreadLink) {
	confidence := "-"
	if link.Confidence != nil {
		confidence = fmt.Sprintf("%.2f", *link.Confidence)
	}
	conv := link.ConversationID
	if conv == "" {
		conv = "-"
	}
	fmt.Printf("%d. %s  [%s]  conf=%s  %s\n", i+1, link.OrderNumber, link.Status, confidence, conv)
	if link.ConversationSubject != "" {
		subject := link.ConversationSubject
		if len(subject) > 80 {
			subject = subject[:77] + "..."
		}
		fmt.Printf("   %s\n", subject)
	}
}
