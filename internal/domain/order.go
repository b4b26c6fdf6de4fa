package domain

import "strings"

// OrderFacts are the identifying facts of an order as supplied by the
// caller. The engine never fetches order data itself.
type OrderFacts struct {
	OrderNumber   string
	OrderName     string
	CustomerEmail string
	CustomerName  string
}

// HasSearchableFacts reports whether any fact exists to search with.
func (o OrderFacts) HasSearchableFacts() bool {
	return strings.TrimSpace(o.CustomerEmail) != "" ||
		strings.TrimSpace(o.OrderName) != "" ||
		strings.TrimSpace(o.OrderNumber) != ""
}

// ValidateOrderFacts requires at minimum an order number, which keys the
// thread link row. The remaining facts are optional search inputs.
func ValidateOrderFacts(o OrderFacts) error {
	if strings.TrimSpace(o.OrderNumber) == "" {
		return ErrMissingOrderNumber
	}
	return nil
}
