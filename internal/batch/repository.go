package batch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bindery-erp/bindery-erp/internal/pipeline"
)

// Repository persists production batches in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the batch and returns its id.
func (r *Repository) Create(ctx context.Context, batch ProductionBatch) (int64, error) {
	if r == nil {
		return 0, errors.New("batch repository not initialised")
	}
	tracker, err := json.Marshal(batch.Tracker)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO production_batches (job_card_id, batch_number, range_from, range_to, quantity, status, stage_allocations, dispatched_quantity, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW(), NOW())
RETURNING id`,
		batch.JobCardID, batch.BatchNumber, batch.Range.From, batch.Range.To, batch.Quantity, batch.Status, tracker).Scan(&id)
	return id, err
}

// Get loads one batch by id.
func (r *Repository) Get(ctx context.Context, id int64) (ProductionBatch, error) {
	if r == nil {
		return ProductionBatch{}, errors.New("batch repository not initialised")
	}
	batch, err := scanBatch(r.pool.QueryRow(ctx, `SELECT id, job_card_id, batch_number, range_from, range_to, quantity, status, stage_allocations, dispatched_quantity, created_at, updated_at
FROM production_batches WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductionBatch{}, ErrNotFound
	}
	return batch, err
}

// ListByJobCard returns a card's batches in batch number order.
func (r *Repository) ListByJobCard(ctx context.Context, jobCardID int64) ([]ProductionBatch, error) {
	if r == nil {
		return nil, errors.New("batch repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, job_card_id, batch_number, range_from, range_to, quantity, status, stage_allocations, dispatched_quantity, created_at, updated_at
FROM production_batches WHERE job_card_id=$1 ORDER BY batch_number`, jobCardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := []ProductionBatch{}
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// UpdateTracker persists stage allocations and status after progress
// is recorded, a stage advances or the batch is cancelled.
func (r *Repository) UpdateTracker(ctx context.Context, id int64, tracker pipeline.Tracker, status Status) error {
	if r == nil {
		return errors.New("batch repository not initialised")
	}
	raw, err := json.Marshal(tracker)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE production_batches SET stage_allocations=$2, status=$3, updated_at=NOW() WHERE id=$1`,
		id, raw, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (ProductionBatch, error) {
	var (
		batch   ProductionBatch
		tracker []byte
	)
	err := row.Scan(&batch.ID, &batch.JobCardID, &batch.BatchNumber, &batch.Range.From, &batch.Range.To, &batch.Quantity, &batch.Status, &tracker, &batch.DispatchedQuantity, &batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		return ProductionBatch{}, err
	}
	if err := json.Unmarshal(tracker, &batch.Tracker); err != nil {
		return ProductionBatch{}, err
	}
	return batch, nil
}
