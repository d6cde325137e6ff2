package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/bindery-erp/bindery-erp/internal/jobcard"
	"github.com/bindery-erp/bindery-erp/internal/ledger"
	"github.com/bindery-erp/bindery-erp/internal/observability"
	"github.com/bindery-erp/bindery-erp/internal/pipeline"
	"github.com/bindery-erp/bindery-erp/internal/ranges"
	"github.com/bindery-erp/bindery-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, batch ProductionBatch) (int64, error)
	Get(ctx context.Context, id int64) (ProductionBatch, error)
	ListByJobCard(ctx context.Context, jobCardID int64) ([]ProductionBatch, error)
	UpdateTracker(ctx context.Context, id int64, tracker pipeline.Tracker, status Status) error
}

// JobCardPort exposes the card lookup the batch module needs.
type JobCardPort interface {
	Get(ctx context.Context, id int64) (jobcard.JobCard, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates batch operations.
type Service struct {
	repo    RepositoryPort
	cards   JobCardPort
	cache   *jobcard.Cache
	audit   AuditPort
	metrics *observability.Metrics
}

// NewService builds Service. cache, audit and metrics may be nil.
func NewService(repo RepositoryPort, cards JobCardPort, cache *jobcard.Cache, audit AuditPort, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, cards: cards, cache: cache, audit: audit, metrics: metrics}
}

// CreateInput describes a new batch. Either Range or Quantity is
// given: with a range the quantity is derived from it, with a bare
// quantity the first gap that fits is claimed automatically.
type CreateInput struct {
	JobCardID int64
	Range     *ranges.Range
	Quantity  int
	Products  []pipeline.ProductShare
	ActorID   int64
}

// Create claims a unit range under a job card and opens the batch at
// the first pipeline stage. The claim must stay inside the card's
// quantity and must not touch any sibling claim.
func (s *Service) Create(ctx context.Context, input CreateInput) (ProductionBatch, error) {
	card, err := s.cards.Get(ctx, input.JobCardID)
	if err != nil {
		return ProductionBatch{}, err
	}
	if card.Status != jobcard.StatusActive {
		return ProductionBatch{}, fmt.Errorf("%w: job card %s is %s", ErrInvalidState, card.Number, card.Status)
	}
	siblings, err := s.repo.ListByJobCard(ctx, input.JobCardID)
	if err != nil {
		return ProductionBatch{}, err
	}
	claims := liveClaims(siblings)

	claim := ranges.Range{}
	if input.Range != nil {
		claim = *input.Range
	} else {
		gap, ok := ranges.NextAvailable(claims, card.Quantity, input.Quantity)
		if !ok {
			return ProductionBatch{}, fmt.Errorf("%w: %d units in job card %s", ErrNoCapacity, input.Quantity, card.Number)
		}
		claim = gap
	}

	check := ranges.ValidateRange(claim, claims, card.Quantity)
	s.metrics.RecordAllocation(string(ledger.LevelJobCard), check.Valid)
	if !check.Valid {
		return ProductionBatch{}, fmt.Errorf("%w: %s", ErrValidation, check.Reason)
	}

	tracker, err := pipeline.NewTracker(claim.Quantity(), input.Products, time.Now())
	if err != nil {
		return ProductionBatch{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	batch := ProductionBatch{
		JobCardID:   input.JobCardID,
		BatchNumber: nextBatchNumber(siblings),
		Range:       claim,
		Quantity:    claim.Quantity(),
		Status:      StatusInProgress,
		Tracker:     tracker,
	}
	id, err := s.repo.Create(ctx, batch)
	if err != nil {
		return ProductionBatch{}, err
	}
	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return ProductionBatch{}, err
	}
	s.record(ctx, input.ActorID, "batch:create", created.ID, map[string]any{
		"job_card": card.Number,
		"batch":    created.BatchNumber,
		"range":    created.Range.String(),
	})
	s.invalidate(ctx)
	return created, nil
}

// Get loads one batch.
func (s *Service) Get(ctx context.Context, id int64) (ProductionBatch, error) {
	return s.repo.Get(ctx, id)
}

// ListByJobCard returns a card's batches.
func (s *Service) ListByJobCard(ctx context.Context, jobCardID int64) ([]ProductionBatch, error) {
	return s.repo.ListByJobCard(ctx, jobCardID)
}

// SuggestRange returns the first free range of the requested quantity
// in the card's unit space, without claiming it.
func (s *Service) SuggestRange(ctx context.Context, jobCardID int64, quantity int) (ranges.Range, error) {
	card, err := s.cards.Get(ctx, jobCardID)
	if err != nil {
		return ranges.Range{}, err
	}
	siblings, err := s.repo.ListByJobCard(ctx, jobCardID)
	if err != nil {
		return ranges.Range{}, err
	}
	gap, ok := ranges.NextAvailable(liveClaims(siblings), card.Quantity, quantity)
	if !ok {
		return ranges.Range{}, fmt.Errorf("%w: %d units in job card %s", ErrNoCapacity, quantity, card.Number)
	}
	return gap, nil
}

// Gaps lists the unclaimed ranges in the card's unit space.
func (s *Service) Gaps(ctx context.Context, jobCardID int64) ([]ranges.Range, error) {
	card, err := s.cards.Get(ctx, jobCardID)
	if err != nil {
		return nil, err
	}
	siblings, err := s.repo.ListByJobCard(ctx, jobCardID)
	if err != nil {
		return nil, err
	}
	return ranges.Gaps(liveClaims(siblings), card.Quantity), nil
}

// Coverage reports whether the card's live batches tile its unit space
// exactly, naming the first hole or overlap when they do not.
func (s *Service) Coverage(ctx context.Context, jobCardID int64) (ranges.Check, error) {
	card, err := s.cards.Get(ctx, jobCardID)
	if err != nil {
		return ranges.Check{}, err
	}
	siblings, err := s.repo.ListByJobCard(ctx, jobCardID)
	if err != nil {
		return ranges.Check{}, err
	}
	return ranges.ValidateCoverage(liveClaims(siblings), card.Quantity), nil
}

// RecordProgress reports absolute completed and scrapped counts for
// the batch's active stage.
func (s *Service) RecordProgress(ctx context.Context, id int64, productID string, completed, scrapped int, actorID int64) (ProductionBatch, error) {
	batch, err := s.repo.Get(ctx, id)
	if err != nil {
		return ProductionBatch{}, err
	}
	if batch.Status != StatusInProgress {
		return ProductionBatch{}, fmt.Errorf("%w: cannot record progress on %s batch", ErrInvalidState, batch.Status)
	}
	now := time.Now()
	if productID != "" {
		err = batch.Tracker.RecordProductCompletion(productID, completed, scrapped, now)
	} else {
		err = batch.Tracker.RecordCompletion(completed, scrapped, now)
	}
	if err != nil {
		return ProductionBatch{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.repo.UpdateTracker(ctx, id, batch.Tracker, batch.Status); err != nil {
		return ProductionBatch{}, err
	}
	s.record(ctx, actorID, "batch:progress", id, map[string]any{
		"stage":     batch.Tracker.CurrentStage(),
		"completed": completed,
		"scrapped":  scrapped,
	})
	s.invalidate(ctx)
	return batch, nil
}

// Advance moves the batch to its next stage. Finishing the last stage
// completes the batch and opens it for dispatch.
func (s *Service) Advance(ctx context.Context, id, actorID int64) (ProductionBatch, error) {
	batch, err := s.repo.Get(ctx, id)
	if err != nil {
		return ProductionBatch{}, err
	}
	if batch.Status != StatusInProgress {
		return ProductionBatch{}, fmt.Errorf("%w: cannot advance %s batch", ErrInvalidState, batch.Status)
	}
	now := time.Now()
	if batch.Tracker.Done() {
		batch.Status = StatusCompleted
	} else if err := batch.Tracker.Advance(now); err != nil {
		return ProductionBatch{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err := s.repo.UpdateTracker(ctx, id, batch.Tracker, batch.Status); err != nil {
		return ProductionBatch{}, err
	}
	s.record(ctx, actorID, "batch:advance", id, map[string]any{
		"stage":  batch.Tracker.CurrentStage(),
		"status": batch.Status,
	})
	s.invalidate(ctx)
	return batch, nil
}

// Cancel releases the batch's range claim. Batches with dispatched
// units cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id, actorID int64) (ProductionBatch, error) {
	batch, err := s.repo.Get(ctx, id)
	if err != nil {
		return ProductionBatch{}, err
	}
	if batch.Status == StatusCancelled {
		return ProductionBatch{}, fmt.Errorf("%w: batch already cancelled", ErrInvalidState)
	}
	if batch.DispatchedQuantity > 0 {
		return ProductionBatch{}, ErrHasDispatches
	}
	batch.Status = StatusCancelled
	if err := s.repo.UpdateTracker(ctx, id, batch.Tracker, batch.Status); err != nil {
		return ProductionBatch{}, err
	}
	s.record(ctx, actorID, "batch:cancel", id, map[string]any{
		"range": batch.Range.String(),
	})
	s.invalidate(ctx)
	return batch, nil
}

// Summaries lists a card's batches in the compact form the job card
// overview embeds. Cancelled batches are excluded; their ranges are
// free again.
func (s *Service) Summaries(ctx context.Context, jobCardID int64) ([]jobcard.BatchSummary, error) {
	batches, err := s.repo.ListByJobCard(ctx, jobCardID)
	if err != nil {
		return nil, err
	}
	summaries := make([]jobcard.BatchSummary, 0, len(batches))
	for _, b := range batches {
		if b.Status == StatusCancelled {
			continue
		}
		r := b.Range
		summaries = append(summaries, jobcard.BatchSummary{
			ID:                   b.ID,
			BatchNumber:          b.BatchNumber,
			Range:                &r,
			Quantity:             b.Quantity,
			Status:               string(b.Status),
			CurrentStage:         b.CurrentStage(),
			Progress:             b.Progress(),
			DispatchedQuantity:   b.DispatchedQuantity,
			AvailableForDispatch: b.AvailableForDispatch(),
		})
	}
	return summaries, nil
}

// liveClaims converts non-cancelled batches into allocator claims.
func liveClaims(batches []ProductionBatch) []ranges.Claim {
	claims := make([]ranges.Claim, 0, len(batches))
	for _, b := range batches {
		if b.Status == StatusCancelled {
			continue
		}
		r := b.Range
		claims = append(claims, ranges.Claim{BatchNumber: b.BatchNumber, Range: &r})
	}
	return claims
}

func nextBatchNumber(batches []ProductionBatch) int {
	next := 1
	for _, b := range batches {
		if b.BatchNumber >= next {
			next = b.BatchNumber + 1
		}
	}
	return next
}

func (s *Service) invalidate(ctx context.Context) {
	_ = s.cache.Bump(ctx)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "production_batch",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}
