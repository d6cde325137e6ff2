package jobcard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bindery-erp/bindery-erp/internal/bindingadvice"
	"github.com/bindery-erp/bindery-erp/internal/ledger"
	"github.com/bindery-erp/bindery-erp/internal/observability"
	"github.com/bindery-erp/bindery-erp/internal/pipeline"
	"github.com/bindery-erp/bindery-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, card JobCard) (int64, error)
	Get(ctx context.Context, id int64) (JobCard, error)
	ListByAdvice(ctx context.Context, adviceID int64) ([]JobCard, error)
	AllocatedQuantity(ctx context.Context, adviceID int64) (int, error)
	UpdateTracker(ctx context.Context, id int64, tracker pipeline.Tracker, status Status) error
}

// AdvicePort exposes the binding advice lookups the card module needs.
type AdvicePort interface {
	Get(ctx context.Context, id int64) (bindingadvice.BindingAdvice, error)
}

// BatchPort lists the batches claimed under a job card. Implemented by
// the batch module so the card side never reads batch tables directly.
type BatchPort interface {
	Summaries(ctx context.Context, jobCardID int64) ([]BatchSummary, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates job card operations.
type Service struct {
	repo    RepositoryPort
	advices AdvicePort
	batches BatchPort
	cache   *Cache
	audit   AuditPort
	metrics *observability.Metrics
}

// NewService builds Service. cache, audit and metrics may be nil.
func NewService(repo RepositoryPort, advices AdvicePort, batches BatchPort, cache *Cache, audit AuditPort, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, advices: advices, batches: batches, cache: cache, audit: audit, metrics: metrics}
}

// CreateInput describes a new job card allocation.
type CreateInput struct {
	BindingAdviceID int64
	Quantity        int
	Products        []pipeline.ProductShare
	ActorID         int64
}

// Create allocates part of an approved advice's quantity to a new card.
// The requested quantity is validated against the advice's open balance
// so the sum of live cards never exceeds the advice.
func (s *Service) Create(ctx context.Context, input CreateInput) (JobCard, error) {
	advice, err := s.advices.Get(ctx, input.BindingAdviceID)
	if err != nil {
		return JobCard{}, err
	}
	if advice.Status != bindingadvice.StatusApproved {
		return JobCard{}, fmt.Errorf("%w: advice %s is %s", ErrAdviceNotApproved, advice.Number, advice.Status)
	}
	allocated, err := s.repo.AllocatedQuantity(ctx, input.BindingAdviceID)
	if err != nil {
		return JobCard{}, err
	}
	check := ledger.ValidateAllocation(input.Quantity, advice.Quantity-allocated, ledger.LevelBindingAdvice)
	s.metrics.RecordAllocation(string(ledger.LevelBindingAdvice), check.Valid)
	if !check.Valid {
		return JobCard{}, fmt.Errorf("%w: %s", ErrValidation, check.Reason)
	}
	tracker, err := pipeline.NewTracker(input.Quantity, input.Products, time.Now())
	if err != nil {
		return JobCard{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	card := JobCard{
		Number:          generateNumber("JC"),
		BindingAdviceID: input.BindingAdviceID,
		Quantity:        input.Quantity,
		Status:          StatusActive,
		Tracker:         tracker,
	}
	id, err := s.repo.Create(ctx, card)
	if err != nil {
		return JobCard{}, err
	}
	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return JobCard{}, err
	}
	s.record(ctx, input.ActorID, "job_card:create", created.ID, map[string]any{
		"number":   created.Number,
		"advice":   advice.Number,
		"quantity": created.Quantity,
	})
	s.invalidate(ctx)
	return created, nil
}

// Get loads one card.
func (s *Service) Get(ctx context.Context, id int64) (JobCard, error) {
	return s.repo.Get(ctx, id)
}

// ListByAdvice returns every card under an advice.
func (s *Service) ListByAdvice(ctx context.Context, adviceID int64) ([]JobCard, error) {
	return s.repo.ListByAdvice(ctx, adviceID)
}

// RecordStageCompletion reports absolute completed and scrapped counts
// for the card's active stage. ProductID targets one product on stages
// that carry a product breakdown; leave it empty otherwise.
func (s *Service) RecordStageCompletion(ctx context.Context, id int64, productID string, completed, scrapped int, actorID int64) (JobCard, error) {
	card, err := s.repo.Get(ctx, id)
	if err != nil {
		return JobCard{}, err
	}
	if card.Status != StatusActive {
		return JobCard{}, fmt.Errorf("%w: cannot record progress on %s card", ErrInvalidState, card.Status)
	}
	now := time.Now()
	if productID != "" {
		err = card.Tracker.RecordProductCompletion(productID, completed, scrapped, now)
	} else {
		err = card.Tracker.RecordCompletion(completed, scrapped, now)
	}
	if err != nil {
		return JobCard{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.repo.UpdateTracker(ctx, id, card.Tracker, card.Status); err != nil {
		return JobCard{}, err
	}
	s.record(ctx, actorID, "job_card:progress", id, map[string]any{
		"stage":     card.Tracker.CurrentStage(),
		"completed": completed,
		"scrapped":  scrapped,
	})
	s.invalidate(ctx)
	return card, nil
}

// Advance moves the card to its next stage, handing the completed
// quantity over as the next stage's allocation. Finishing the last
// stage completes the card.
func (s *Service) Advance(ctx context.Context, id, actorID int64) (JobCard, error) {
	card, err := s.repo.Get(ctx, id)
	if err != nil {
		return JobCard{}, err
	}
	if card.Status != StatusActive {
		return JobCard{}, fmt.Errorf("%w: cannot advance %s card", ErrInvalidState, card.Status)
	}
	now := time.Now()
	if card.Tracker.Done() {
		// Last stage already settled; the advance completes the card.
		card.Status = StatusCompleted
	} else if err := card.Tracker.Advance(now); err != nil {
		return JobCard{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err := s.repo.UpdateTracker(ctx, id, card.Tracker, card.Status); err != nil {
		return JobCard{}, err
	}
	s.record(ctx, actorID, "job_card:advance", id, map[string]any{
		"stage":  card.Tracker.CurrentStage(),
		"status": card.Status,
	})
	s.invalidate(ctx)
	return card, nil
}

// ProgressSummary is the cached roll-up served to dashboards.
type ProgressSummary struct {
	JobCardID          int64                    `json:"job_card_id"`
	Number             string                   `json:"number"`
	Quantity           int                      `json:"quantity"`
	Status             Status                   `json:"status"`
	CurrentStage       pipeline.Stage           `json:"current_stage"`
	Progress           int                      `json:"progress"`
	Stages             []pipeline.StageProgress `json:"stages"`
	DispatchedQuantity int                      `json:"dispatched_quantity"`
	DispatchedPercent  int                      `json:"dispatched_percent"`
}

// Progress returns the card's stage roll-up, cached in Redis until the
// next write bumps the cache version.
func (s *Service) Progress(ctx context.Context, id int64) (ProgressSummary, error) {
	key, err := s.cache.BuildKey(ctx, "jobcard", "progress", strconv.FormatInt(id, 10))
	if err != nil {
		return ProgressSummary{}, err
	}
	var summary ProgressSummary
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		card, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return ProgressSummary{
			JobCardID:          card.ID,
			Number:             card.Number,
			Quantity:           card.Quantity,
			Status:             card.Status,
			CurrentStage:       card.Tracker.CurrentStage(),
			Progress:           card.Progress(),
			Stages:             card.Tracker.Entries,
			DispatchedQuantity: card.DispatchedQuantity,
			DispatchedPercent:  ledger.Percent(card.DispatchedQuantity, card.Quantity),
		}, nil
	})
	return summary, err
}

// Overview bundles the card with its advice and batch summaries.
type Overview struct {
	JobCard JobCard                     `json:"job_card"`
	Advice  bindingadvice.BindingAdvice `json:"binding_advice"`
	Batches []BatchSummary              `json:"batches"`
	Balance ledger.Balance              `json:"batch_balance"`
}

// Overview assembles the card detail view, fanning the advice and
// batch lookups out concurrently.
func (s *Service) Overview(ctx context.Context, id int64) (Overview, error) {
	card, err := s.repo.Get(ctx, id)
	if err != nil {
		return Overview{}, err
	}

	var (
		advice  bindingadvice.BindingAdvice
		batches []BatchSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		advice, err = s.advices.Get(gctx, card.BindingAdviceID)
		return err
	})
	g.Go(func() error {
		if s.batches == nil {
			return nil
		}
		var err error
		batches, err = s.batches.Summaries(gctx, card.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	claimed := make([]int, 0, len(batches))
	for _, b := range batches {
		claimed = append(claimed, b.Quantity)
	}
	return Overview{
		JobCard: card,
		Advice:  advice,
		Batches: batches,
		Balance: ledger.NewBalance(card.Quantity, claimed),
	}, nil
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
		Entity:   "job_card",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
