package jobcard

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bindery-erp/bindery-erp/internal/pipeline"
)

// Repository persists job cards in PostgreSQL. Stage allocations are
// stored as a JSONB document alongside the card row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the card and returns its id.
func (r *Repository) Create(ctx context.Context, card JobCard) (int64, error) {
	if r == nil {
		return 0, errors.New("jobcard repository not initialised")
	}
	tracker, err := json.Marshal(card.Tracker)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO job_cards (number, binding_advice_id, quantity, status, stage_allocations, dispatched_quantity, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, NOW(), NOW())
RETURNING id`,
		card.Number, card.BindingAdviceID, card.Quantity, card.Status, tracker).Scan(&id)
	return id, err
}

// Get loads one card by id.
func (r *Repository) Get(ctx context.Context, id int64) (JobCard, error) {
	if r == nil {
		return JobCard{}, errors.New("jobcard repository not initialised")
	}
	var (
		card    JobCard
		tracker []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT id, number, binding_advice_id, quantity, status, stage_allocations, dispatched_quantity, created_at, updated_at
FROM job_cards WHERE id=$1`, id).
		Scan(&card.ID, &card.Number, &card.BindingAdviceID, &card.Quantity, &card.Status, &tracker, &card.DispatchedQuantity, &card.CreatedAt, &card.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return JobCard{}, ErrNotFound
	}
	if err != nil {
		return JobCard{}, err
	}
	if err := json.Unmarshal(tracker, &card.Tracker); err != nil {
		return JobCard{}, err
	}
	return card, nil
}

// ListByAdvice returns every card allocated against an advice, oldest
// first so allocation order is visible.
func (r *Repository) ListByAdvice(ctx context.Context, adviceID int64) ([]JobCard, error) {
	if r == nil {
		return nil, errors.New("jobcard repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, number, binding_advice_id, quantity, status, stage_allocations, dispatched_quantity, created_at, updated_at
FROM job_cards WHERE binding_advice_id=$1 ORDER BY id`, adviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []JobCard{}
	for rows.Next() {
		var (
			card    JobCard
			tracker []byte
		)
		if err := rows.Scan(&card.ID, &card.Number, &card.BindingAdviceID, &card.Quantity, &card.Status, &tracker, &card.DispatchedQuantity, &card.CreatedAt, &card.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(tracker, &card.Tracker); err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// AllocatedQuantity sums the live job card quantities committed against
// an advice. Cancelled cards release their allocation.
func (r *Repository) AllocatedQuantity(ctx context.Context, adviceID int64) (int, error) {
	if r == nil {
		return 0, errors.New("jobcard repository not initialised")
	}
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM job_cards
WHERE binding_advice_id=$1 AND status <> $2`, adviceID, StatusCancelled).Scan(&total)
	return total, err
}

// UpdateTracker persists the card's stage allocations and status after
// progress is recorded or a stage advances.
func (r *Repository) UpdateTracker(ctx context.Context, id int64, tracker pipeline.Tracker, status Status) error {
	if r == nil {
		return errors.New("jobcard repository not initialised")
	}
	raw, err := json.Marshal(tracker)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE job_cards SET stage_allocations=$2, status=$3, updated_at=NOW() WHERE id=$1`,
		id, raw, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
