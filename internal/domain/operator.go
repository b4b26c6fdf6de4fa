package domain

import (
	"fmt"
	"time"
)

// Operator is a human user of the dashboard. Review actions are stamped
// with the operator's name.
type Operator struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// NewOperator creates a new Operator instance
func NewOperator(id, name, email string, createdAt time.Time) *Operator {
	return &Operator{
		ID:        id,
		Name:      name,
		Email:     email,
		CreatedAt: createdAt,
	}
}

// ValidateOperator validates an Operator instance
func ValidateOperator(o *Operator) error {
	if o == nil {
		return fmt.Errorf("operator cannot be nil")
	}

	if o.ID == "" {
		return fmt.Errorf("operator ID is required")
	}

	if o.Name == "" {
		return fmt.Errorf("operator Name is required")
	}

	return nil
}
