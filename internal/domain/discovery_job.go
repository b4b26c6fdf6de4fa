package domain

import "time"

// DiscoveryJobStatus represents the lifecycle state of a queued discovery.
type DiscoveryJobStatus string

const (
	DiscoveryJobStatusPending    DiscoveryJobStatus = "pending"
	DiscoveryJobStatusProcessing DiscoveryJobStatus = "processing"
	DiscoveryJobStatusCompleted  DiscoveryJobStatus = "completed"
	DiscoveryJobStatusFailed     DiscoveryJobStatus = "failed"
)

// IsValid returns true if the status is a known discovery job status.
func (s DiscoveryJobStatus) IsValid() bool {
	switch s {
	case DiscoveryJobStatusPending, DiscoveryJobStatusProcessing,
		DiscoveryJobStatusCompleted, DiscoveryJobStatusFailed:
		return true
	}
	return false
}

// DiscoveryJob is a queued request to run thread discovery for an order.
// Order create/update side effects enqueue one; the background worker
// claims and runs it.
type DiscoveryJob struct {
	ID            string
	OrderNumber   string
	OrderName     string
	CustomerEmail string
	CustomerName  string
	Status        DiscoveryJobStatus
	Retries       int
	Error         string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// Facts returns the order-identifying facts carried by the job.
func (j *DiscoveryJob) Facts() OrderFacts {
	return OrderFacts{
		OrderNumber:   j.OrderNumber,
		OrderName:     j.OrderName,
		CustomerEmail: j.CustomerEmail,
		CustomerName:  j.CustomerName,
	}
}

// ValidateDiscoveryJob checks a job before persistence.
func ValidateDiscoveryJob(j *DiscoveryJob) error {
	if j == nil {
		return NewDomainError(ErrCodeValidation, "discovery job cannot be nil")
	}
	if j.ID == "" {
		return NewDomainError(ErrCodeValidation, "discovery job ID is required")
	}
	if j.OrderNumber == "" {
		return ErrMissingOrderNumber
	}
	if !j.Status.IsValid() {
		return ErrInvalidDiscoveryJobStatus
	}
	return nil
}
