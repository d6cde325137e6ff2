package pipeline

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Status is a stage's lifecycle state. Transitions are forward-only:
// pending moves to in_progress when the stage receives quantity, and to
// completed exactly when every allocated unit is accounted for. There
// is no backward transition and no way to skip a state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

var (
	// ErrExceedsAllocation rejects completion reports above the allocated quantity.
	ErrExceedsAllocation = errors.New("pipeline: reported quantity exceeds allocation")
	// ErrStageIncomplete rejects an advance before the active stage is fully complete.
	ErrStageIncomplete = errors.New("pipeline: current stage is not fully complete")
	// ErrPipelineFinished rejects an advance past the final stage.
	ErrPipelineFinished = errors.New("pipeline: already at the final stage")
	// ErrNothingSurvived rejects an advance when the whole allocation was scrapped.
	ErrNothingSurvived = errors.New("pipeline: no units survived the stage")
	// ErrUnknownProduct indicates a product id not present in the stage breakdown.
	ErrUnknownProduct = errors.New("pipeline: unknown product")
	// ErrNegativeQuantity rejects negative completion reports.
	ErrNegativeQuantity = errors.New("pipeline: quantity must not be negative")
)

// ProductProgress tracks one product's share of a stage for
// multi-product job cards.
type ProductProgress struct {
	ProductID string `json:"product_id"`
	Allocated int    `json:"allocated_quantity"`
	Completed int    `json:"completed_quantity"`
	Scrapped  int    `json:"scrapped_quantity"`
}

// StageProgress is the per-stage record. A stage is accounted for when
// completed plus scrapped reaches the allocation; only completed units
// move forward. Remaining and the aggregate quantities of a
// multi-product stage are always derived from their components, never
// stored independently.
type StageProgress struct {
	Stage       Stage             `json:"stage"`
	Allocated   int               `json:"allocated_quantity"`
	Completed   int               `json:"completed_quantity"`
	Scrapped    int               `json:"scrapped_quantity"`
	Status      Status            `json:"status"`
	StartedAt   *time.Time        `json:"start_date,omitempty"`
	CompletedAt *time.Time        `json:"completed_date,omitempty"`
	Products    []ProductProgress `json:"products,omitempty"`
}

// Remaining returns the units not yet accounted for at this stage.
func (p StageProgress) Remaining() int {
	return p.Allocated - p.Completed - p.Scrapped
}

// CanMoveNext reports whether the stage releases its quantity forward:
// at least one unit allocated and every allocated unit accounted for,
// either completed or scrapped.
func (p StageProgress) CanMoveNext() bool {
	return p.Allocated > 0 && p.Completed+p.Scrapped == p.Allocated
}

// ProductShare is a creation-time product breakdown entry.
type ProductShare struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Tracker walks a quantity through the pipeline. The first stage
// receives the full quantity at creation; every later stage receives
// the completed quantity of its predecessor when the tracker advances,
// so units scrapped at a stage never reappear downstream.
type Tracker struct {
	Entries []StageProgress `json:"entries"`
	Current int             `json:"current_stage_index"`
}

// NewTracker starts a tracker with total units at the first stage. When
// products are given their quantities must sum to total; they seed the
// first stage's per-product breakdown.
func NewTracker(total int, products []ProductShare, now time.Time) (Tracker, error) {
	if total <= 0 {
		return Tracker{}, fmt.Errorf("pipeline: total must be greater than 0, got %d", total)
	}
	if len(products) > 0 {
		sum := 0
		for _, p := range products {
			if p.Quantity <= 0 {
				return Tracker{}, fmt.Errorf("pipeline: product %s quantity must be greater than 0", p.ProductID)
			}
			sum += p.Quantity
		}
		if sum != total {
			return Tracker{}, fmt.Errorf("pipeline: product quantities sum to %d, want %d", sum, total)
		}
	}

	entries := make([]StageProgress, len(Stages))
	for i, stage := range Stages {
		entries[i] = StageProgress{Stage: stage, Status: StatusPending}
	}
	started := now
	entries[0].Allocated = total
	entries[0].Status = StatusInProgress
	entries[0].StartedAt = &started
	for _, p := range products {
		entries[0].Products = append(entries[0].Products, ProductProgress{ProductID: p.ProductID, Allocated: p.Quantity})
	}
	return Tracker{Entries: entries}, nil
}

// CurrentStage returns the active stage key.
func (t *Tracker) CurrentStage() Stage {
	return t.Entries[t.Current].Stage
}

// active returns the mutable record for the current stage.
func (t *Tracker) active() *StageProgress {
	return &t.Entries[t.Current]
}

// RecordCompletion sets the current stage's completed and scrapped
// quantities. Reports are absolute, not incremental, matching how
// operators key in counts from the floor. Stages with a product
// breakdown must be reported per product instead.
func (t *Tracker) RecordCompletion(completed, scrapped int, now time.Time) error {
	stage := t.active()
	if len(stage.Products) > 0 {
		return fmt.Errorf("pipeline: stage %s tracks products, report per product", stage.Stage)
	}
	if completed < 0 || scrapped < 0 {
		return ErrNegativeQuantity
	}
	if completed+scrapped > stage.Allocated {
		return fmt.Errorf("%w: %d completed + %d scrapped > %d at stage %s",
			ErrExceedsAllocation, completed, scrapped, stage.Allocated, stage.Stage)
	}
	stage.Completed = completed
	stage.Scrapped = scrapped
	t.settle(stage, now)
	return nil
}

// RecordProductCompletion sets one product's completed and scrapped
// quantities at the current stage and recomputes the stage aggregates
// from the breakdown in the same step, so the aggregate can never
// drift from its components.
func (t *Tracker) RecordProductCompletion(productID string, completed, scrapped int, now time.Time) error {
	stage := t.active()
	if completed < 0 || scrapped < 0 {
		return ErrNegativeQuantity
	}
	found := false
	for i := range stage.Products {
		if stage.Products[i].ProductID != productID {
			continue
		}
		if completed+scrapped > stage.Products[i].Allocated {
			return fmt.Errorf("%w: %d completed + %d scrapped > %d for product %s",
				ErrExceedsAllocation, completed, scrapped, stage.Products[i].Allocated, productID)
		}
		stage.Products[i].Completed = completed
		stage.Products[i].Scrapped = scrapped
		found = true
		break
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	completedSum, scrappedSum := 0, 0
	for _, p := range stage.Products {
		completedSum += p.Completed
		scrappedSum += p.Scrapped
	}
	stage.Completed = completedSum
	stage.Scrapped = scrappedSum
	t.settle(stage, now)
	return nil
}

// settle applies the status transition after a completion update.
func (t *Tracker) settle(stage *StageProgress, now time.Time) {
	if stage.StartedAt == nil {
		started := now
		stage.StartedAt = &started
	}
	if stage.CanMoveNext() {
		stage.Status = StatusCompleted
		completed := now
		stage.CompletedAt = &completed
		return
	}
	stage.Status = StatusInProgress
	stage.CompletedAt = nil
}

// CanAdvance reports whether the tracker may move to the next stage.
func (t *Tracker) CanAdvance() bool {
	return t.Current < len(t.Entries)-1 &&
		t.Entries[t.Current].CanMoveNext() &&
		t.Entries[t.Current].Completed > 0
}

// Advance hands the current stage's completed quantity forward as the
// next stage's allocation. Only good units propagate: a stage that
// scraps part of its allocation shrinks everything downstream. The
// completed stage keeps its record.
func (t *Tracker) Advance(now time.Time) error {
	if t.Current >= len(t.Entries)-1 {
		return ErrPipelineFinished
	}
	cur := t.active()
	if !cur.CanMoveNext() {
		return fmt.Errorf("%w: stage %s has %d of %d units accounted for",
			ErrStageIncomplete, cur.Stage, cur.Completed+cur.Scrapped, cur.Allocated)
	}
	if cur.Completed == 0 {
		return ErrNothingSurvived
	}

	t.Current++
	next := t.active()
	next.Allocated = cur.Completed
	next.Status = StatusInProgress
	started := now
	next.StartedAt = &started
	for _, p := range cur.Products {
		if p.Completed > 0 {
			next.Products = append(next.Products, ProductProgress{ProductID: p.ProductID, Allocated: p.Completed})
		}
	}
	return nil
}

// Done reports whether every stage has completed.
func (t *Tracker) Done() bool {
	for _, e := range t.Entries {
		if e.Status != StatusCompleted {
			return false
		}
	}
	return len(t.Entries) > 0
}

// CompletedQuantity returns the units that survived the full pipeline,
// or 0 while any stage is still open. Dispatch availability is gated on
// this, never on per-stage completions.
func (t *Tracker) CompletedQuantity() int {
	if !t.Done() {
		return 0
	}
	return t.Entries[len(t.Entries)-1].Completed
}

// Percent reports overall progress as 0-100, weighting each stage
// equally and crediting the active stage with its accounted fraction.
func (t *Tracker) Percent() int {
	n := len(t.Entries)
	if n == 0 {
		return 0
	}
	score := 0.0
	for _, e := range t.Entries {
		switch {
		case e.Status == StatusCompleted:
			score++
		case e.Allocated > 0:
			score += float64(e.Completed+e.Scrapped) / float64(e.Allocated)
		}
	}
	return int(math.Round(100 * score / float64(n)))
}
