// Package dispatch records deliveries of finished units out of
// completed batches, under challan numbers.
package dispatch

import (
	"errors"
	"time"
)

// Dispatch is one delivery of finished notebooks from a batch.
type Dispatch struct {
	ID            int64     `json:"id"`
	JobCardID     int64     `json:"job_card_id"`
	BatchID       int64     `json:"batch_id"`
	ChallanNumber string    `json:"challan_number"`
	Quantity      int       `json:"quantity"`
	Destination   string    `json:"destination"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}

var (
	// ErrNotFound indicates the dispatch does not exist.
	ErrNotFound = errors.New("dispatch: not found")
	// ErrValidation indicates invalid input, including oversubscription.
	ErrValidation = errors.New("dispatch: invalid input")
	// ErrNotReady blocks dispatching from a batch that has not cleared
	// every pipeline stage.
	ErrNotReady = errors.New("dispatch: batch has not completed all stages")
)
