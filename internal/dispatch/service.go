package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bindery-erp/bindery-erp/internal/batch"
	"github.com/bindery-erp/bindery-erp/internal/ledger"
	"github.com/bindery-erp/bindery-erp/internal/observability"
	"github.com/bindery-erp/bindery-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, d Dispatch) (int64, error)
	Get(ctx context.Context, id int64) (Dispatch, error)
	ListByJobCard(ctx context.Context, jobCardID int64) ([]Dispatch, error)
	ListByBatch(ctx context.Context, batchID int64) ([]Dispatch, error)
}

// BatchPort exposes the batch lookup the dispatch module needs.
type BatchPort interface {
	Get(ctx context.Context, id int64) (batch.ProductionBatch, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates dispatch operations.
type Service struct {
	repo        RepositoryPort
	batches     BatchPort
	idempotency *shared.IdempotencyStore
	audit       AuditPort
	metrics     *observability.Metrics
}

// NewService builds Service. idempotency, audit and metrics may be nil.
func NewService(repo RepositoryPort, batches BatchPort, idempotency *shared.IdempotencyStore, audit AuditPort, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, batches: batches, idempotency: idempotency, audit: audit, metrics: metrics}
}

// CreateInput describes a dispatch request.
type CreateInput struct {
	BatchID        int64
	Quantity       int
	Destination    string
	Notes          string
	IdempotencyKey string
	ActorID        int64
}

// Create dispatches finished units from a completed batch under a new
// challan number. The quantity is validated against the batch's
// undelivered remainder, and a repeated idempotency key is rejected
// before any counter moves.
func (s *Service) Create(ctx context.Context, input CreateInput) (Dispatch, error) {
	b, err := s.batches.Get(ctx, input.BatchID)
	if err != nil {
		return Dispatch{}, err
	}
	if b.Status != batch.StatusCompleted || !b.Tracker.Done() {
		return Dispatch{}, fmt.Errorf("%w: batch #%d is %s at stage %s", ErrNotReady, b.BatchNumber, b.Status, b.CurrentStage())
	}
	check := ledger.ValidateAllocation(input.Quantity, b.AvailableForDispatch(), ledger.LevelDispatch)
	s.metrics.RecordAllocation(string(ledger.LevelDispatch), check.Valid)
	if !check.Valid {
		return Dispatch{}, fmt.Errorf("%w: %s", ErrValidation, check.Reason)
	}

	keyed := s.idempotency != nil && input.IdempotencyKey != ""
	if keyed {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "dispatch"); err != nil {
			return Dispatch{}, err
		}
	}

	d := Dispatch{
		JobCardID:     b.JobCardID,
		BatchID:       b.ID,
		ChallanNumber: generateChallanNumber(),
		Quantity:      input.Quantity,
		Destination:   input.Destination,
		Notes:         input.Notes,
	}
	id, err := s.repo.Create(ctx, d)
	if err != nil {
		if keyed {
			// Release the key so the caller can retry.
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return Dispatch{}, err
	}
	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return Dispatch{}, err
	}
	s.metrics.RecordDispatch(created.Quantity)
	s.record(ctx, input.ActorID, "dispatch:create", created.ID, map[string]any{
		"challan":  created.ChallanNumber,
		"batch":    b.BatchNumber,
		"quantity": created.Quantity,
	})
	return created, nil
}

// Get loads one dispatch.
func (s *Service) Get(ctx context.Context, id int64) (Dispatch, error) {
	return s.repo.Get(ctx, id)
}

// ListByJobCard returns a card's dispatches.
func (s *Service) ListByJobCard(ctx context.Context, jobCardID int64) ([]Dispatch, error) {
	return s.repo.ListByJobCard(ctx, jobCardID)
}

// ListByBatch returns a batch's dispatches.
func (s *Service) ListByBatch(ctx context.Context, batchID int64) ([]Dispatch, error) {
	return s.repo.ListByBatch(ctx, batchID)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "dispatch",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}

func generateChallanNumber() string {
	return "CH-" + strings.ToUpper(uuid.NewString()[:8])
}
