package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bindery-erp/bindery-erp/internal/ranges"
)

// CardSnapshot is one job card's unit space and the range claims its
// live batches hold, as read in a single pass.
type CardSnapshot struct {
	JobCardID int64
	Number    string
	Quantity  int
	Claims    []ranges.Claim
}

// AdviceSnapshot is one advice's quantity against the job card
// allocations committed to it.
type AdviceSnapshot struct {
	AdviceID  int64
	Number    string
	Quantity  int
	Allocated int
}

// SnapshotSource reads allocation state for the scan. Backed by
// PostgreSQL in production, by fixtures in tests.
type SnapshotSource interface {
	CardSnapshots(ctx context.Context, includeCompleted bool) ([]CardSnapshot, error)
	AdviceSnapshots(ctx context.Context) ([]AdviceSnapshot, error)
}

// Violation names one broken invariant found by the scan.
type Violation struct {
	Entity string `json:"entity"`
	Number string `json:"number"`
	Reason string `json:"reason"`
}

// IntegrityScanJob re-validates the allocation invariants nothing in
// the request path should ever break: batch ranges disjoint and inside
// their card's space, card allocations inside their advice's quantity.
// A violation means a bug or manual data edit, so it is logged loudly
// rather than repaired.
type IntegrityScanJob struct {
	Source SnapshotSource
	Logger *slog.Logger
	clock  func() time.Time
}

// NewIntegrityScanJob initialises the scan handler.
func NewIntegrityScanJob(source SnapshotSource, logger *slog.Logger) *IntegrityScanJob {
	return &IntegrityScanJob{
		Source: source,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the scan.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	logger := j.logger()
	logger.Info("starting allocation integrity scan")

	cards, advices, violations, err := j.Scan(ctx, payload)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	for _, v := range violations {
		logger.Warn("allocation invariant violated",
			slog.String("entity", v.Entity),
			slog.String("number", v.Number),
			slog.String("reason", v.Reason),
		)
	}

	logger.Info("completed allocation integrity scan",
		slog.Int("job_cards", cards),
		slog.Int("binding_advices", advices),
		slog.Int("violations", len(violations)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Scan walks every snapshot and collects violations.
func (j *IntegrityScanJob) Scan(ctx context.Context, payload IntegrityScanPayload) (int, int, []Violation, error) {
	if j.Source == nil {
		return 0, 0, nil, errors.New("integrity scan: source not configured")
	}
	cards, err := j.Source.CardSnapshots(ctx, payload.IncludeCompleted)
	if err != nil {
		return 0, 0, nil, err
	}
	advices, err := j.Source.AdviceSnapshots(ctx)
	if err != nil {
		return 0, 0, nil, err
	}

	var violations []Violation
	for _, card := range cards {
		if check := ranges.ValidateDisjoint(card.Claims, card.Quantity); !check.Valid {
			violations = append(violations, Violation{
				Entity: "job_card",
				Number: card.Number,
				Reason: check.Reason,
			})
		}
	}
	for _, advice := range advices {
		if advice.Allocated > advice.Quantity {
			violations = append(violations, Violation{
				Entity: "binding_advice",
				Number: advice.Number,
				Reason: fmt.Sprintf("job card allocations %d exceed advice quantity %d", advice.Allocated, advice.Quantity),
			})
		}
	}
	return len(cards), len(advices), violations, nil
}

func (j *IntegrityScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// PgSnapshotSource reads allocation snapshots straight from PostgreSQL.
type PgSnapshotSource struct {
	Pool *pgxpool.Pool
}

// CardSnapshots loads every job card with its live batch claims.
func (s *PgSnapshotSource) CardSnapshots(ctx context.Context, includeCompleted bool) ([]CardSnapshot, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("integrity scan: pool not configured")
	}
	statuses := []string{"active"}
	if includeCompleted {
		statuses = append(statuses, "completed")
	}
	rows, err := s.Pool.Query(ctx, `SELECT jc.id, jc.number, jc.quantity, pb.batch_number, pb.range_from, pb.range_to
FROM job_cards jc
LEFT JOIN production_batches pb ON pb.job_card_id = jc.id AND pb.status <> 'cancelled'
WHERE jc.status = ANY($1)
ORDER BY jc.id, pb.batch_number`, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []CardSnapshot
	for rows.Next() {
		var (
			id       int64
			number   string
			quantity int
			batchNum *int
			from, to *int
		)
		if err := rows.Scan(&id, &number, &quantity, &batchNum, &from, &to); err != nil {
			return nil, err
		}
		if len(snapshots) == 0 || snapshots[len(snapshots)-1].JobCardID != id {
			snapshots = append(snapshots, CardSnapshot{JobCardID: id, Number: number, Quantity: quantity})
		}
		if batchNum != nil && from != nil && to != nil {
			last := &snapshots[len(snapshots)-1]
			last.Claims = append(last.Claims, ranges.Claim{
				BatchNumber: *batchNum,
				Range:       &ranges.Range{From: *from, To: *to},
			})
		}
	}
	return snapshots, rows.Err()
}

// AdviceSnapshots loads every non-cancelled advice with its committed
// job card total.
func (s *PgSnapshotSource) AdviceSnapshots(ctx context.Context) ([]AdviceSnapshot, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("integrity scan: pool not configured")
	}
	rows, err := s.Pool.Query(ctx, `SELECT ba.id, ba.number, ba.quantity, COALESCE(SUM(jc.quantity), 0)
FROM binding_advices ba
LEFT JOIN job_cards jc ON jc.binding_advice_id = ba.id AND jc.status <> 'cancelled'
WHERE ba.status <> 'cancelled'
GROUP BY ba.id, ba.number, ba.quantity
ORDER BY ba.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []AdviceSnapshot
	for rows.Next() {
		var snap AdviceSnapshot
		if err := rows.Scan(&snap.AdviceID, &snap.Number, &snap.Quantity, &snap.Allocated); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}
