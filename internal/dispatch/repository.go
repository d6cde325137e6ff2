package dispatch

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bindery-erp/bindery-erp/internal/platform/db"
)

// Repository persists dispatches in PostgreSQL. A dispatch insert and
// the counters it moves are one transaction: either the challan, the
// batch's dispatched quantity and the job card roll-up all land, or
// none do.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the dispatch and advances the batch and job card
// dispatched counters in one transaction.
func (r *Repository) Create(ctx context.Context, d Dispatch) (int64, error) {
	if r == nil {
		return 0, errors.New("dispatch repository not initialised")
	}
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO dispatches (job_card_id, batch_id, challan_number, quantity, destination, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
RETURNING id`,
			d.JobCardID, d.BatchID, d.ChallanNumber, d.Quantity, d.Destination, d.Notes).Scan(&id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE production_batches SET dispatched_quantity = dispatched_quantity + $2, updated_at=NOW() WHERE id=$1`,
			d.BatchID, d.Quantity)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		tag, err = tx.Exec(ctx, `UPDATE job_cards SET dispatched_quantity = dispatched_quantity + $2, updated_at=NOW() WHERE id=$1`,
			d.JobCardID, d.Quantity)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	return id, err
}

// Get loads one dispatch by id.
func (r *Repository) Get(ctx context.Context, id int64) (Dispatch, error) {
	if r == nil {
		return Dispatch{}, errors.New("dispatch repository not initialised")
	}
	var d Dispatch
	err := r.pool.QueryRow(ctx, `SELECT id, job_card_id, batch_id, challan_number, quantity, destination, notes, created_at
FROM dispatches WHERE id=$1`, id).
		Scan(&d.ID, &d.JobCardID, &d.BatchID, &d.ChallanNumber, &d.Quantity, &d.Destination, &d.Notes, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Dispatch{}, ErrNotFound
	}
	return d, err
}

// ListByJobCard returns a card's dispatches newest first.
func (r *Repository) ListByJobCard(ctx context.Context, jobCardID int64) ([]Dispatch, error) {
	if r == nil {
		return nil, errors.New("dispatch repository not initialised")
	}
	return r.list(ctx, `SELECT id, job_card_id, batch_id, challan_number, quantity, destination, notes, created_at
FROM dispatches WHERE job_card_id=$1 ORDER BY created_at DESC, id DESC`, jobCardID)
}

// ListByBatch returns a batch's dispatches newest first.
func (r *Repository) ListByBatch(ctx context.Context, batchID int64) ([]Dispatch, error) {
	if r == nil {
		return nil, errors.New("dispatch repository not initialised")
	}
	return r.list(ctx, `SELECT id, job_card_id, batch_id, challan_number, quantity, destination, notes, created_at
FROM dispatches WHERE batch_id=$1 ORDER BY created_at DESC, id DESC`, batchID)
}

func (r *Repository) list(ctx context.Context, query string, arg any) ([]Dispatch, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dispatches := []Dispatch{}
	for rows.Next() {
		var d Dispatch
		if err := rows.Scan(&d.ID, &d.JobCardID, &d.BatchID, &d.ChallanNumber, &d.Quantity, &d.Destination, &d.Notes, &d.CreatedAt); err != nil {
			return nil, err
		}
		dispatches = append(dispatches, d)
	}
	return dispatches, rows.Err()
}
