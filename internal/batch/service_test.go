package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bindery-erp/bindery-erp/internal/jobcard"
	"github.com/bindery-erp/bindery-erp/internal/pipeline"
	"github.com/bindery-erp/bindery-erp/internal/ranges"
)

type memoryRepo struct {
	seq     int64
	batches map[int64]ProductionBatch
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{batches: map[int64]ProductionBatch{}}
}

func (m *memoryRepo) Create(_ context.Context, batch ProductionBatch) (int64, error) {
	m.seq++
	batch.ID = m.seq
	batch.CreatedAt = time.Now()
	batch.UpdatedAt = batch.CreatedAt
	m.batches[batch.ID] = batch
	return batch.ID, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (ProductionBatch, error) {
	batch, ok := m.batches[id]
	if !ok {
		return ProductionBatch{}, ErrNotFound
	}
	return batch, nil
}

func (m *memoryRepo) ListByJobCard(_ context.Context, jobCardID int64) ([]ProductionBatch, error) {
	var batches []ProductionBatch
	for id := int64(1); id <= m.seq; id++ {
		if b, ok := m.batches[id]; ok && b.JobCardID == jobCardID {
			batches = append(batches, b)
		}
	}
	return batches, nil
}

func (m *memoryRepo) UpdateTracker(_ context.Context, id int64, tracker pipeline.Tracker, status Status) error {
	batch, ok := m.batches[id]
	if !ok {
		return ErrNotFound
	}
	batch.Tracker = tracker
	batch.Status = status
	m.batches[id] = batch
	return nil
}

type fakeCards struct {
	cards map[int64]jobcard.JobCard
}

func (f *fakeCards) Get(_ context.Context, id int64) (jobcard.JobCard, error) {
	card, ok := f.cards[id]
	if !ok {
		return jobcard.JobCard{}, jobcard.ErrNotFound
	}
	return card, nil
}

func activeCard(id int64, quantity int) *fakeCards {
	tracker, err := pipeline.NewTracker(quantity, nil, time.Now())
	if err != nil {
		panic(err)
	}
	return &fakeCards{cards: map[int64]jobcard.JobCard{
		id: {ID: id, Number: "JC-1", Quantity: quantity, Status: jobcard.StatusActive, Tracker: tracker},
	}}
}

func newTestService(repo *memoryRepo, cards JobCardPort) *Service {
	return NewService(repo, cards, nil, nil, nil)
}

func rng(from, to int) *ranges.Range {
	return &ranges.Range{From: from, To: to}
}

func TestCreateWithExplicitRange(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, activeCard(1, 2000))
	ctx := context.Background()

	batch, err := svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(1, 1000)})
	require.NoError(t, err)
	require.Equal(t, 1, batch.BatchNumber)
	require.Equal(t, 1000, batch.Quantity)
	require.Equal(t, StatusInProgress, batch.Status)
	require.Equal(t, pipeline.StageDesigning, batch.CurrentStage())
}

func TestCreateRejectsOverlap(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, activeCard(1, 2000))
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(101, 200)})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(150, 250)})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "batch #1")

	_, err = svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(1500, 2500)})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateByQuantityClaimsFirstGap(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, activeCard(1, 2000))
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(1, 1000)})
	require.NoError(t, err)

	batch, err := svc.Create(ctx, CreateInput{JobCardID: 1, Quantity: 500})
	require.NoError(t, err)
	require.Equal(t, ranges.Range{From: 1001, To: 1500}, batch.Range)
	require.Equal(t, 2, batch.BatchNumber)

	_, err = svc.Create(ctx, CreateInput{JobCardID: 1, Quantity: 600})
	require.ErrorIs(t, err, ErrNoCapacity)
}

func TestCancelledRangeIsReusable(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, activeCard(1, 1000))
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(1, 400)})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, first.ID, 0)
	require.NoError(t, err)

	again, err := svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(1, 400)})
	require.NoError(t, err)
	require.Equal(t, 2, again.BatchNumber)
}

func TestCancelBlockedByDispatches(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, activeCard(1, 1000))
	ctx := context.Background()

	batch, err := svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(1, 100)})
	require.NoError(t, err)

	stored := repo.batches[batch.ID]
	stored.DispatchedQuantity = 50
	repo.batches[batch.ID] = stored

	_, err = svc.Cancel(ctx, batch.ID, 0)
	require.ErrorIs(t, err, ErrHasDispatches)
}

func TestGapsAndCoverage(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, activeCard(1, 300))
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(1, 100)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(201, 300)})
	require.NoError(t, err)

	gaps, err := svc.Gaps(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []ranges.Range{{From: 101, To: 200}}, gaps)

	check, err := svc.Coverage(ctx, 1)
	require.NoError(t, err)
	require.False(t, check.Valid)
	require.Contains(t, check.Reason, "101-200")

	_, err = svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(101, 200)})
	require.NoError(t, err)

	check, err = svc.Coverage(ctx, 1)
	require.NoError(t, err)
	require.True(t, check.Valid)
}

func TestProgressThroughPipelineOpensDispatch(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, activeCard(1, 1000))
	ctx := context.Background()

	batch, err := svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(1, 500)})
	require.NoError(t, err)
	require.Equal(t, 0, batch.AvailableForDispatch())

	for range pipeline.Stages {
		batch, err = svc.RecordProgress(ctx, batch.ID, "", batch.Tracker.Entries[batch.Tracker.Current].Allocated, 0, 0)
		require.NoError(t, err)
		batch, err = svc.Advance(ctx, batch.ID, 0)
		require.NoError(t, err)
	}
	require.Equal(t, StatusCompleted, batch.Status)
	require.Equal(t, 500, batch.AvailableForDispatch())
}

func TestScrapShrinksDownstreamAllocation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, activeCard(1, 1000))
	ctx := context.Background()

	batch, err := svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(1, 500)})
	require.NoError(t, err)

	batch, err = svc.RecordProgress(ctx, batch.ID, "", 480, 20, 0)
	require.NoError(t, err)

	batch, err = svc.Advance(ctx, batch.ID, 0)
	require.NoError(t, err)
	require.Equal(t, pipeline.StageProcurement, batch.CurrentStage())
	require.Equal(t, 480, batch.Tracker.Entries[1].Allocated)
}

func TestSummariesExcludeCancelled(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, activeCard(1, 1000))
	ctx := context.Background()

	kept, err := svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(1, 400)})
	require.NoError(t, err)
	gone, err := svc.Create(ctx, CreateInput{JobCardID: 1, Range: rng(401, 600)})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, gone.ID, 0)
	require.NoError(t, err)

	summaries, err := svc.Summaries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, kept.ID, summaries[0].ID)
	require.Equal(t, 400, summaries[0].Quantity)
}
