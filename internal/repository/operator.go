package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/portside-labs/portside/internal/domain"
)

type OperatorRepository struct {
	pool *pgxpool.Pool
}

func NewOperatorRepository(pool *pgxpool.Pool) *OperatorRepository {
	return &OperatorRepository{pool: pool}
}

func (r *OperatorRepository) Create(ctx context.Context, op *domain.Operator) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO operators (id, name, email, created_at)
		 VALUES ($1, $2, $3, $4)`,
		op.ID, op.Name, nullableString(op.Email), op.CreatedAt,
	)
	return err
}

func (r *OperatorRepository) GetByID(ctx context.Context, id string) (*domain.Operator, error) {
	var op domain.Operator
	var email pgtype.Text
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, created_at FROM operators WHERE id = $1`,
		id,
	).Scan(&op.ID, &op.Name, &email, &op.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOperatorNotFound
		}
		return nil, err
	}
	if email.Valid {
		op.Email = email.String
	}
	return &op, nil
}

func (r *OperatorRepository) GetByName(ctx context.Context, name string) (*domain.Operator, error) {
	var op domain.Operator
	var email pgtype.Text
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, created_at FROM operators WHERE name = $1`,
		name,
	).Scan(&op.ID, &op.Name, &email, &op.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOperatorNotFound
		}
		return nil, err
	}
	if email.Valid {
		op.Email = email.String
	}
	return &op, nil
}

func (r *OperatorRepository) List(ctx context.Context) ([]*domain.Operator, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email, created_at FROM operators ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var operators []*domain.Operator
	for rows.Next() {
		var op domain.Operator
		var email pgtype.Text
		if err := rows.Scan(&op.ID, &op.Name, &email, &op.CreatedAt); err != nil {
			return nil, err
		}
		if email.Valid {
			op.Email = email.String
		}
		operators = append(operators, &op)
	}
	return operators, rows.Err()
}

func (r *OperatorRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM operators WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrOperatorNotFound
	}
	return nil
}
