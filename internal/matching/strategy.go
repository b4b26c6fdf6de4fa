package matching

import (
	"strings"

	"github.com/portside-labs/portside/internal/domain"
)

// SearchMethod names the query shape used against the communication system.
type SearchMethod string

const (
	// SearchMethodEmail searches conversations involving a contact handle.
	SearchMethodEmail SearchMethod = "email"
	// SearchMethodOrderName free-text searches on the order's human label.
	SearchMethodOrderName SearchMethod = "order_name"
	// SearchMethodOrderNumber free-text searches on the order number.
	SearchMethodOrderNumber SearchMethod = "order_number"
)

// SearchRequest is one concrete query the orchestrator can run.
type SearchRequest struct {
	Method SearchMethod
	Term   string
}

// A strategy inspects the order facts and either yields a search request
// or declines. Strategies are pure so the fallback order is testable in
// isolation.
type strategy func(domain.OrderFacts) *SearchRequest

func emailStrategy(o domain.OrderFacts) *SearchRequest {
	email := strings.TrimSpace(o.CustomerEmail)
	if email == "" {
		return nil
	}
	return &SearchRequest{Method: SearchMethodEmail, Term: email}
}

func orderNameStrategy(o domain.OrderFacts) *SearchRequest {
	name := strings.TrimSpace(o.OrderName)
	if name == "" {
		return nil
	}
	return &SearchRequest{Method: SearchMethodOrderName, Term: name}
}

func orderNumberStrategy(o domain.OrderFacts) *SearchRequest {
	number := strings.TrimSpace(o.OrderNumber)
	if number == "" {
		return nil
	}
	return &SearchRequest{Method: SearchMethodOrderNumber, Term: number}
}

// strategies in fallback order: contact search first, then free-text on
// the order name, then on the order number.
var strategies = []strategy{
	emailStrategy,
	orderNameStrategy,
	orderNumberStrategy,
}

// Plan returns the ordered search requests applicable to the given order.
// The orchestrator tries them in sequence and stops at the first request
// that yields any candidates. An empty plan means there is nothing to
// search with.
func Plan(o domain.OrderFacts) []SearchRequest {
	var plan []SearchRequest
	for _, s := range strategies {
		if req := s(o); req != nil {
			plan = append(plan, *req)
		}
	}
	return plan
}
