// Package ledger implements the three-level quantity allocation cascade:
// binding advice to job cards, job card to batches, stage allocation to
// completions. Each level computes the same balance shape and reuses the
// same validator, so no allocation anywhere can oversubscribe its parent.
package ledger

import (
	"fmt"
	"math"
)

// Level names the cascade level an allocation is validated at. It only
// affects the reason text; the arithmetic is identical everywhere.
type Level string

const (
	LevelBindingAdvice Level = "binding advice"
	LevelJobCard       Level = "job card"
	LevelStage         Level = "stage"
	LevelDispatch      Level = "dispatch"
)

// Validation is the structured result every allocation call-site must
// check before committing. The cascade has no transactional enforcement
// of its own; its safety rests entirely on this check happening first.
type Validation struct {
	Valid  bool   `json:"isValid"`
	Reason string `json:"error,omitempty"`
}

// ValidateAllocation checks a requested quantity against the available
// balance at the given level.
func ValidateAllocation(requested, available int, level Level) Validation {
	if requested <= 0 {
		return Validation{Reason: fmt.Sprintf("requested quantity must be greater than 0, got %d", requested)}
	}
	if requested > available {
		return Validation{Reason: fmt.Sprintf("requested quantity %d exceeds available %s balance %d", requested, level, available)}
	}
	return Validation{Valid: true}
}

// Remaining computes the open balance: the level's total minus the sum
// of child allocations. Callers pass only the allocations that count
// (active or completed children; cancelled ones release their units).
func Remaining(total int, allocations []int) int {
	remaining := total
	for _, a := range allocations {
		remaining -= a
	}
	return remaining
}

// Balance is the snapshot exposed by balance endpoints.
type Balance struct {
	Total     int `json:"total_quantity"`
	Allocated int `json:"allocated_quantity"`
	Remaining int `json:"remaining_balance"`
}

// NewBalance builds a Balance from a total and its child allocations.
func NewBalance(total int, allocations []int) Balance {
	allocated := 0
	for _, a := range allocations {
		allocated += a
	}
	return Balance{Total: total, Allocated: allocated, Remaining: total - allocated}
}

// Percent returns round(100*part/total), with a zero total mapping to 0.
func Percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}
