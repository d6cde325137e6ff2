package jobcard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bindery-erp/bindery-erp/internal/bindingadvice"
	"github.com/bindery-erp/bindery-erp/internal/pipeline"
)

type memoryRepo struct {
	seq   int64
	cards map[int64]JobCard
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{cards: map[int64]JobCard{}}
}

func (m *memoryRepo) Create(_ context.Context, card JobCard) (int64, error) {
	m.seq++
	card.ID = m.seq
	card.CreatedAt = time.Now()
	card.UpdatedAt = card.CreatedAt
	m.cards[card.ID] = card
	return card.ID, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (JobCard, error) {
	card, ok := m.cards[id]
	if !ok {
		return JobCard{}, ErrNotFound
	}
	return card, nil
}

func (m *memoryRepo) ListByAdvice(_ context.Context, adviceID int64) ([]JobCard, error) {
	var cards []JobCard
	for id := int64(1); id <= m.seq; id++ {
		if card, ok := m.cards[id]; ok && card.BindingAdviceID == adviceID {
			cards = append(cards, card)
		}
	}
	return cards, nil
}

func (m *memoryRepo) AllocatedQuantity(_ context.Context, adviceID int64) (int, error) {
	total := 0
	for _, card := range m.cards {
		if card.BindingAdviceID == adviceID && card.Status != StatusCancelled {
			total += card.Quantity
		}
	}
	return total, nil
}

func (m *memoryRepo) UpdateTracker(_ context.Context, id int64, tracker pipeline.Tracker, status Status) error {
	card, ok := m.cards[id]
	if !ok {
		return ErrNotFound
	}
	card.Tracker = tracker
	card.Status = status
	m.cards[id] = card
	return nil
}

type fakeAdvices struct {
	advices map[int64]bindingadvice.BindingAdvice
}

func (f *fakeAdvices) Get(_ context.Context, id int64) (bindingadvice.BindingAdvice, error) {
	advice, ok := f.advices[id]
	if !ok {
		return bindingadvice.BindingAdvice{}, bindingadvice.ErrNotFound
	}
	return advice, nil
}

type fakeBatches struct {
	summaries []BatchSummary
}

func (f *fakeBatches) Summaries(_ context.Context, _ int64) ([]BatchSummary, error) {
	return f.summaries, nil
}

func approvedAdvice(id int64, quantity int) *fakeAdvices {
	return &fakeAdvices{advices: map[int64]bindingadvice.BindingAdvice{
		id: {ID: id, Number: "BA-1", Quantity: quantity, Status: bindingadvice.StatusApproved},
	}}
}

func newTestService(repo *memoryRepo, advices AdvicePort, batches BatchPort) *Service {
	return NewService(repo, advices, batches, nil, nil, nil)
}

func TestCreateRequiresApprovedAdvice(t *testing.T) {
	repo := newMemoryRepo()
	advices := &fakeAdvices{advices: map[int64]bindingadvice.BindingAdvice{
		7: {ID: 7, Quantity: 1000, Status: bindingadvice.StatusDraft},
	}}
	svc := newTestService(repo, advices, nil)

	_, err := svc.Create(context.Background(), CreateInput{BindingAdviceID: 7, Quantity: 100})
	require.ErrorIs(t, err, ErrAdviceNotApproved)
}

func TestCreateValidatesAgainstAdviceBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, approvedAdvice(1, 1000), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{BindingAdviceID: 1, Quantity: 600})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{BindingAdviceID: 1, Quantity: 500})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "400")

	card, err := svc.Create(ctx, CreateInput{BindingAdviceID: 1, Quantity: 400})
	require.NoError(t, err)
	require.Equal(t, StatusActive, card.Status)
	require.Equal(t, pipeline.StageDesigning, card.CurrentStage())
	require.Equal(t, 400, card.Tracker.Entries[0].Allocated)
}

func TestRecordProgressAndAdvance(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, approvedAdvice(1, 1000), nil)
	ctx := context.Background()

	card, err := svc.Create(ctx, CreateInput{BindingAdviceID: 1, Quantity: 500})
	require.NoError(t, err)

	_, err = svc.Advance(ctx, card.ID, 0)
	require.ErrorIs(t, err, ErrInvalidState)

	card, err = svc.RecordStageCompletion(ctx, card.ID, "", 480, 20, 0)
	require.NoError(t, err)

	card, err = svc.Advance(ctx, card.ID, 0)
	require.NoError(t, err)
	require.Equal(t, pipeline.StageProcurement, card.CurrentStage())
	require.Equal(t, 480, card.Tracker.Entries[1].Allocated)
}

func TestAdvanceCompletesCard(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, approvedAdvice(1, 1000), nil)
	ctx := context.Background()

	card, err := svc.Create(ctx, CreateInput{BindingAdviceID: 1, Quantity: 200})
	require.NoError(t, err)

	for range pipeline.Stages {
		card, err = svc.RecordStageCompletion(ctx, card.ID, "", 200, 0, 0)
		require.NoError(t, err)
		card, err = svc.Advance(ctx, card.ID, 0)
		require.NoError(t, err)
	}
	require.Equal(t, StatusCompleted, card.Status)
	require.Equal(t, 200, card.Tracker.CompletedQuantity())
	require.Equal(t, 100, card.Progress())
}

func TestOverviewAggregatesBatches(t *testing.T) {
	repo := newMemoryRepo()
	batches := &fakeBatches{summaries: []BatchSummary{
		{ID: 1, BatchNumber: 1, Quantity: 600},
		{ID: 2, BatchNumber: 2, Quantity: 300},
	}}
	svc := newTestService(repo, approvedAdvice(1, 1000), batches)
	ctx := context.Background()

	card, err := svc.Create(ctx, CreateInput{BindingAdviceID: 1, Quantity: 1000})
	require.NoError(t, err)

	overview, err := svc.Overview(ctx, card.ID)
	require.NoError(t, err)
	require.Equal(t, "BA-1", overview.Advice.Number)
	require.Len(t, overview.Batches, 2)
	require.Equal(t, 1000, overview.Balance.Total)
	require.Equal(t, 900, overview.Balance.Allocated)
	require.Equal(t, 100, overview.Balance.Remaining)
}

func TestProgressSummaryWithoutCache(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, approvedAdvice(1, 1000), nil)
	ctx := context.Background()

	card, err := svc.Create(ctx, CreateInput{BindingAdviceID: 1, Quantity: 300})
	require.NoError(t, err)

	summary, err := svc.Progress(ctx, card.ID)
	require.NoError(t, err)
	require.Equal(t, card.ID, summary.JobCardID)
	require.Equal(t, pipeline.StageDesigning, summary.CurrentStage)
	require.Len(t, summary.Stages, len(pipeline.Stages))
	require.Equal(t, 0, summary.Progress)
	require.Equal(t, 0, summary.DispatchedPercent)

	stored := repo.cards[card.ID]
	stored.DispatchedQuantity = 150
	repo.cards[card.ID] = stored

	summary, err = svc.Progress(ctx, card.ID)
	require.NoError(t, err)
	require.Equal(t, 150, summary.DispatchedQuantity)
	require.Equal(t, 50, summary.DispatchedPercent)
}
