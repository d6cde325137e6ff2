// Package batch manages production batches: the range claims carved
// out of a job card's unit space and their per-stage progress.
package batch

import (
	"errors"
	"time"

	"github.com/bindery-erp/bindery-erp/internal/pipeline"
	"github.com/bindery-erp/bindery-erp/internal/ranges"
)

// Status is the batch lifecycle state.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ProductionBatch is one lot of notebooks moving through the pipeline
// together. Its range claim is the source of truth: the quantity is
// always derived from it.
type ProductionBatch struct {
	ID                 int64            `json:"id"`
	JobCardID          int64            `json:"job_card_id"`
	BatchNumber        int              `json:"batch_number"`
	Range              ranges.Range     `json:"range"`
	Quantity           int              `json:"quantity"`
	Status             Status           `json:"status"`
	Tracker            pipeline.Tracker `json:"stage_allocations"`
	DispatchedQuantity int              `json:"dispatched_quantity"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Progress derives the batch's 0-100 completion from its stages.
func (b ProductionBatch) Progress() int {
	return b.Tracker.Percent()
}

// CurrentStage returns the active stage key.
func (b ProductionBatch) CurrentStage() pipeline.Stage {
	return b.Tracker.CurrentStage()
}

// AvailableForDispatch is the undelivered remainder of the units that
// survived the full pipeline. Zero while any stage is still open.
func (b ProductionBatch) AvailableForDispatch() int {
	if b.Status == StatusCancelled {
		return 0
	}
	done := b.Tracker.CompletedQuantity()
	if done == 0 {
		return 0
	}
	return done - b.DispatchedQuantity
}

var (
	// ErrNotFound indicates the batch does not exist.
	ErrNotFound = errors.New("batch: not found")
	// ErrValidation indicates invalid input, including range conflicts.
	ErrValidation = errors.New("batch: invalid input")
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = errors.New("batch: invalid state transition")
	// ErrNoCapacity means no gap in the job card's unit space can hold
	// the requested quantity.
	ErrNoCapacity = errors.New("batch: no available range for requested quantity")
	// ErrHasDispatches blocks cancelling a batch with delivered units.
	ErrHasDispatches = errors.New("batch: units already dispatched")
)
