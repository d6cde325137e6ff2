// Package bindingadvice manages customer binding advices, the root of
// the allocation tree. An advice's quantity is the finite space every
// downstream job card allocation draws from.
package bindingadvice

import (
	"errors"
	"time"
)

// Status is the advice lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// BindingAdvice is a customer order for a total notebook quantity.
type BindingAdvice struct {
	ID           int64     `json:"id"`
	Number       string    `json:"number"`
	CustomerName string    `json:"customer_name"`
	NotebookType string    `json:"notebook_type"`
	Quantity     int       `json:"quantity"`
	Status       Status    `json:"status"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var (
	// ErrNotFound indicates the advice does not exist.
	ErrNotFound = errors.New("bindingadvice: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("bindingadvice: invalid input")
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = errors.New("bindingadvice: invalid state transition")
	// ErrHasAllocations blocks cancelling an advice that job cards draw from.
	ErrHasAllocations = errors.New("bindingadvice: job cards are allocated against this advice")
)
