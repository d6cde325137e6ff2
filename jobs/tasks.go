// Package jobs holds the background workload: the nightly allocation
// integrity scan and housekeeping tasks, processed by an Asynq worker.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIntegrityScan re-validates range disjointness and allocation
	// ledgers across all live job cards and advices.
	TaskIntegrityScan = "allocation:integrity_scan"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// IntegrityScanPayload tunes the integrity scan.
type IntegrityScanPayload struct {
	// IncludeCompleted also scans completed job cards. Off by default:
	// their ranges are frozen.
	IncludeCompleted bool `json:"include_completed"`
}

// NewIntegrityScanTask constructs the integrity scan task.
func NewIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIntegrityScan, data), nil
}

// IdempotencyCleanupPayload tunes key retention.
type IdempotencyCleanupPayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
