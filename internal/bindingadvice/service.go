package bindingadvice

import (
	"context"
	"fmt"
	"time"

	"github.com/bindery-erp/bindery-erp/internal/ledger"
	"github.com/bindery-erp/bindery-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, advice BindingAdvice) (int64, error)
	Get(ctx context.Context, id int64) (BindingAdvice, error)
	List(ctx context.Context, limit, offset int) ([]BindingAdvice, int, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

// AllocationSource reports how much of an advice's quantity is already
// committed to job cards. Implemented by the job card repository; the
// advice module never reaches into job card tables itself.
type AllocationSource interface {
	AllocatedQuantity(ctx context.Context, adviceID int64) (int, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates binding advice operations.
type Service struct {
	repo        RepositoryPort
	allocations AllocationSource
	audit       AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, allocations AllocationSource, audit AuditPort) *Service {
	return &Service{repo: repo, allocations: allocations, audit: audit}
}

// CreateInput describes a new advice.
type CreateInput struct {
	CustomerName string
	NotebookType string
	Quantity     int
	Notes        string
	ActorID      int64
}

// Create validates and persists a draft advice.
func (s *Service) Create(ctx context.Context, input CreateInput) (BindingAdvice, error) {
	if input.CustomerName == "" {
		return BindingAdvice{}, fmt.Errorf("%w: customer name required", ErrValidation)
	}
	if input.Quantity <= 0 {
		return BindingAdvice{}, fmt.Errorf("%w: quantity must be greater than 0, got %d", ErrValidation, input.Quantity)
	}
	advice := BindingAdvice{
		Number:       generateNumber("BA"),
		CustomerName: input.CustomerName,
		NotebookType: input.NotebookType,
		Quantity:     input.Quantity,
		Status:       StatusDraft,
		Notes:        input.Notes,
	}
	id, err := s.repo.Create(ctx, advice)
	if err != nil {
		return BindingAdvice{}, err
	}
	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return BindingAdvice{}, err
	}
	s.record(ctx, input.ActorID, "binding_advice:create", created.ID, map[string]any{
		"number":   created.Number,
		"quantity": created.Quantity,
	})
	return created, nil
}

// Get loads one advice.
func (s *Service) Get(ctx context.Context, id int64) (BindingAdvice, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of advices.
func (s *Service) List(ctx context.Context, page, perPage int) ([]BindingAdvice, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	advices, total, err := s.repo.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return advices, shared.NewPagination(page, perPage, total), nil
}

// Approve moves a draft advice to approved, opening it for job card
// allocation.
func (s *Service) Approve(ctx context.Context, id, actorID int64) (BindingAdvice, error) {
	advice, err := s.repo.Get(ctx, id)
	if err != nil {
		return BindingAdvice{}, err
	}
	if advice.Status != StatusDraft {
		return BindingAdvice{}, fmt.Errorf("%w: cannot approve %s advice", ErrInvalidState, advice.Status)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusApproved); err != nil {
		return BindingAdvice{}, err
	}
	advice.Status = StatusApproved
	s.record(ctx, actorID, "binding_advice:approve", id, map[string]any{"number": advice.Number})
	return advice, nil
}

// Cancel cancels an advice that has no job card allocations yet.
func (s *Service) Cancel(ctx context.Context, id, actorID int64) (BindingAdvice, error) {
	advice, err := s.repo.Get(ctx, id)
	if err != nil {
		return BindingAdvice{}, err
	}
	if advice.Status == StatusCompleted || advice.Status == StatusCancelled {
		return BindingAdvice{}, fmt.Errorf("%w: cannot cancel %s advice", ErrInvalidState, advice.Status)
	}
	allocated, err := s.allocations.AllocatedQuantity(ctx, id)
	if err != nil {
		return BindingAdvice{}, err
	}
	if allocated > 0 {
		return BindingAdvice{}, ErrHasAllocations
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		return BindingAdvice{}, err
	}
	advice.Status = StatusCancelled
	s.record(ctx, actorID, "binding_advice:cancel", id, map[string]any{"number": advice.Number})
	return advice, nil
}

// Balance reports the advice-level ledger snapshot: total quantity,
// committed job card allocations and the open remainder.
func (s *Service) Balance(ctx context.Context, id int64) (ledger.Balance, error) {
	advice, err := s.repo.Get(ctx, id)
	if err != nil {
		return ledger.Balance{}, err
	}
	allocated, err := s.allocations.AllocatedQuantity(ctx, id)
	if err != nil {
		return ledger.Balance{}, err
	}
	return ledger.NewBalance(advice.Quantity, []int{allocated}), nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "binding_advice",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
