package bindingadvice

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists binding advices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the advice and returns its id.
func (r *Repository) Create(ctx context.Context, advice BindingAdvice) (int64, error) {
	if r == nil {
		return 0, errors.New("bindingadvice repository not initialised")
	}
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO binding_advices (number, customer_name, notebook_type, quantity, status, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING id`,
		advice.Number, advice.CustomerName, advice.NotebookType, advice.Quantity, advice.Status, advice.Notes).Scan(&id)
	return id, err
}

// Get loads one advice by id.
func (r *Repository) Get(ctx context.Context, id int64) (BindingAdvice, error) {
	if r == nil {
		return BindingAdvice{}, errors.New("bindingadvice repository not initialised")
	}
	var a BindingAdvice
	err := r.pool.QueryRow(ctx, `SELECT id, number, customer_name, notebook_type, quantity, status, notes, created_at, updated_at
FROM binding_advices WHERE id=$1`, id).
		Scan(&a.ID, &a.Number, &a.CustomerName, &a.NotebookType, &a.Quantity, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return BindingAdvice{}, ErrNotFound
	}
	return a, err
}

// List returns a page of advices newest first, plus the total count.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]BindingAdvice, int, error) {
	if r == nil {
		return nil, 0, errors.New("bindingadvice repository not initialised")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `SELECT id, number, customer_name, notebook_type, quantity, status, notes, created_at, updated_at
FROM binding_advices ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	advices := []BindingAdvice{}
	for rows.Next() {
		var a BindingAdvice
		if err := rows.Scan(&a.ID, &a.Number, &a.CustomerName, &a.NotebookType, &a.Quantity, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		advices = append(advices, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM binding_advices`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return advices, total, nil
}

// UpdateStatus sets the advice status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if r == nil {
		return errors.New("bindingadvice repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE binding_advices SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
