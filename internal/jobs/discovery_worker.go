package jobs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/portside-labs/portside/internal/domain"
	"github.com/portside-labs/portside/internal/service"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3

	// claimBatchSize bounds how many jobs one poll claims
	claimBatchSize = 10
)

// DiscoveryJobStore defines the interface for discovery job persistence
type DiscoveryJobStore interface {
	// ClaimPending atomically claims up to limit pending jobs for processing
	ClaimPending(ctx context.Context, limit int) ([]*domain.DiscoveryJob, error)

	// UpdateStatus updates the status of a discovery job
	UpdateStatus(ctx context.Context, id string, status domain.DiscoveryJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, id string) error

	// Requeue resets a job to pending for another attempt
	Requeue(ctx context.Context, id string, errMsg string) error
}

// ThreadDiscoverer runs discovery for one order's facts
type ThreadDiscoverer interface {
	DiscoverThread(ctx context.Context, facts domain.OrderFacts) (*service.DiscoveryResult, error)
}

// DiscoveryWorker processes queued discovery jobs
type DiscoveryWorker struct {
	store      DiscoveryJobStore
	discoverer ThreadDiscoverer
	logger     zerolog.Logger
}

// NewDiscoveryWorker creates a new DiscoveryWorker instance
func NewDiscoveryWorker(store DiscoveryJobStore, discoverer ThreadDiscoverer, logger zerolog.Logger) *DiscoveryWorker {
	return &DiscoveryWorker{
		store:      store,
		discoverer: discoverer,
		logger:     logger,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *DiscoveryWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.store.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	w.logger.Info().Int("count", len(jobs)).Msg("processing claimed discovery jobs")

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			w.logger.Error().Err(err).Str("job_id", job.ID).Msg("error processing discovery job")
		}
	}

	return nil
}

func (w *DiscoveryWorker) processJob(ctx context.Context, job *domain.DiscoveryJob) error {
	w.logger.Info().
		Str("job_id", job.ID).
		Str("order_number", job.OrderNumber).
		Msg("running discovery job")

	result, err := w.discoverer.DiscoverThread(ctx, job.Facts())
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.store.UpdateStatus(ctx, job.ID, domain.DiscoveryJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	w.logger.Info().
		Str("job_id", job.ID).
		Str("order_number", job.OrderNumber).
		Str("result", string(result.Status)).
		Msg("discovery job completed")
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *DiscoveryWorker) handleJobFailure(ctx context.Context, job *domain.DiscoveryJob, jobErr error) error {
	w.logger.Warn().Err(jobErr).Str("job_id", job.ID).Msg("discovery job failed")

	if err := w.store.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		w.logger.Warn().
			Str("job_id", job.ID).
			Int("max_retries", MaxRetries).
			Msg("discovery job exceeded max retries, marking as failed")
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.store.UpdateStatus(ctx, job.ID, domain.DiscoveryJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.store.Requeue(ctx, job.ID, errMsg); err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}

	return nil
}
