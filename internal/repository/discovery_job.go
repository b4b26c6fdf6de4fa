package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/portside-labs/portside/internal/domain"
)

type DiscoveryJobRepository struct {
	db dbtx
}

func NewDiscoveryJobRepository(pool *pgxpool.Pool) *DiscoveryJobRepository {
	return &DiscoveryJobRepository{db: pool}
}

func NewDiscoveryJobRepositoryWithTx(tx pgx.Tx) *DiscoveryJobRepository {
	return &DiscoveryJobRepository{db: tx}
}

func (r *DiscoveryJobRepository) Create(ctx context.Context, job *domain.DiscoveryJob) error {
	if err := domain.ValidateDiscoveryJob(job); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO discovery_jobs (id, order_number, order_name, customer_email, customer_name, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.OrderNumber, nullableString(job.OrderName), nullableString(job.CustomerEmail),
		nullableString(job.CustomerName), job.Status, job.Retries, nullableString(job.Error),
		job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *DiscoveryJobRepository) GetByID(ctx context.Context, id string) (*domain.DiscoveryJob, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, order_number, order_name, customer_email, customer_name, status, retries, error, created_at, processed_at
		 FROM discovery_jobs WHERE id = $1`,
		id,
	)
	job, err := scanDiscoveryJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDiscoveryJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimPending atomically claims up to limit pending jobs, marking them
// processing. SKIP LOCKED keeps concurrent workers from double-claiming.
func (r *DiscoveryJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.DiscoveryJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM discovery_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE discovery_jobs
		 SET status = $3,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE discovery_jobs.id = cte.id
		 RETURNING discovery_jobs.id, discovery_jobs.order_number, discovery_jobs.order_name,
		           discovery_jobs.customer_email, discovery_jobs.customer_name, discovery_jobs.status,
		           discovery_jobs.retries, discovery_jobs.error, discovery_jobs.created_at, discovery_jobs.processed_at`,
		domain.DiscoveryJobStatusPending, limit, domain.DiscoveryJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.DiscoveryJob
	for rows.Next() {
		job, err := scanDiscoveryJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *DiscoveryJobRepository) UpdateStatus(ctx context.Context, id string, status domain.DiscoveryJobStatus, errMsg string) error {
	if !status.IsValid() {
		return domain.ErrInvalidDiscoveryJobStatus
	}
	var processedAt *time.Time
	if status == domain.DiscoveryJobStatusCompleted || status == domain.DiscoveryJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE discovery_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDiscoveryJobNotFound
	}
	return nil
}

func (r *DiscoveryJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE discovery_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDiscoveryJobNotFound
	}
	return nil
}

// Requeue returns a processing job to pending (retry path).
func (r *DiscoveryJobRepository) Requeue(ctx context.Context, id string, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE discovery_jobs SET status = $1, error = $2 WHERE id = $3`,
		domain.DiscoveryJobStatusPending, nullableString(errMsg), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDiscoveryJobNotFound
	}
	return nil
}

func scanDiscoveryJob(row pgx.Row) (*domain.DiscoveryJob, error) {
	var job domain.DiscoveryJob
	var orderName, customerEmail, customerName, errMsg pgtype.Text
	err := row.Scan(
		&job.ID, &job.OrderNumber, &orderName, &customerEmail, &customerName,
		&job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	if orderName.Valid {
		job.OrderName = orderName.String
	}
	if customerEmail.Valid {
		job.CustomerEmail = customerEmail.String
	}
	if customerName.Valid {
		job.CustomerName = customerName.String
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}
