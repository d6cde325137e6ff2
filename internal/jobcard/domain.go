// Package jobcard manages production work orders allocated out of a
// binding advice's quantity. A job card owns the unit space its batches
// claim ranges from, and carries its own stage allocations for work
// tracked at card level.
package jobcard

import (
	"errors"
	"time"

	"github.com/bindery-erp/bindery-erp/internal/pipeline"
	"github.com/bindery-erp/bindery-erp/internal/ranges"
)

// Status is the job card lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// JobCard is a production work order for part of an advice's quantity.
type JobCard struct {
	ID                 int64            `json:"id"`
	Number             string           `json:"number"`
	BindingAdviceID    int64            `json:"binding_advice_id"`
	Quantity           int              `json:"quantity"`
	Status             Status           `json:"status"`
	Tracker            pipeline.Tracker `json:"stage_allocations"`
	DispatchedQuantity int              `json:"dispatched_quantity"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Progress derives the card's 0-100 completion from its stage
// allocations; it is never stored.
func (j JobCard) Progress() int {
	return j.Tracker.Percent()
}

// CurrentStage returns the card-level active stage key.
func (j JobCard) CurrentStage() pipeline.Stage {
	return j.Tracker.CurrentStage()
}

// BatchSummary is the lightweight batch view used in overviews and
// planning endpoints.
type BatchSummary struct {
	ID                   int64          `json:"id"`
	BatchNumber          int            `json:"batch_number"`
	Range                *ranges.Range  `json:"range,omitempty"`
	Quantity             int            `json:"quantity"`
	Status               string         `json:"status"`
	CurrentStage         pipeline.Stage `json:"current_stage"`
	Progress             int            `json:"progress"`
	DispatchedQuantity   int            `json:"dispatched_quantity"`
	AvailableForDispatch int            `json:"available_for_dispatch"`
}

var (
	// ErrNotFound indicates the job card does not exist.
	ErrNotFound = errors.New("jobcard: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("jobcard: invalid input")
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = errors.New("jobcard: invalid state transition")
	// ErrAdviceNotApproved blocks allocation against an unapproved advice.
	ErrAdviceNotApproved = errors.New("jobcard: binding advice is not approved")
)
