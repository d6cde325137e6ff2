package dispatch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bindery-erp/bindery-erp/internal/batch"
	"github.com/bindery-erp/bindery-erp/internal/pipeline"
	"github.com/bindery-erp/bindery-erp/internal/ranges"
)

type fakeBatches struct {
	batches map[int64]batch.ProductionBatch
}

func (f *fakeBatches) Get(_ context.Context, id int64) (batch.ProductionBatch, error) {
	b, ok := f.batches[id]
	if !ok {
		return batch.ProductionBatch{}, batch.ErrNotFound
	}
	return b, nil
}

// memoryRepo mirrors the transactional repository: a successful create
// also moves the batch counter.
type memoryRepo struct {
	seq        int64
	dispatches map[int64]Dispatch
	batches    *fakeBatches
}

func newMemoryRepo(batches *fakeBatches) *memoryRepo {
	return &memoryRepo{dispatches: map[int64]Dispatch{}, batches: batches}
}

func (m *memoryRepo) Create(_ context.Context, d Dispatch) (int64, error) {
	m.seq++
	d.ID = m.seq
	d.CreatedAt = time.Now()
	m.dispatches[d.ID] = d
	b := m.batches.batches[d.BatchID]
	b.DispatchedQuantity += d.Quantity
	m.batches.batches[d.BatchID] = b
	return d.ID, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Dispatch, error) {
	d, ok := m.dispatches[id]
	if !ok {
		return Dispatch{}, ErrNotFound
	}
	return d, nil
}

func (m *memoryRepo) ListByJobCard(_ context.Context, jobCardID int64) ([]Dispatch, error) {
	var out []Dispatch
	for id := m.seq; id >= 1; id-- {
		if d, ok := m.dispatches[id]; ok && d.JobCardID == jobCardID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListByBatch(_ context.Context, batchID int64) ([]Dispatch, error) {
	var out []Dispatch
	for id := m.seq; id >= 1; id-- {
		if d, ok := m.dispatches[id]; ok && d.BatchID == batchID {
			out = append(out, d)
		}
	}
	return out, nil
}

func completedTracker(t *testing.T, quantity int) pipeline.Tracker {
	t.Helper()
	now := time.Now()
	tracker, err := pipeline.NewTracker(quantity, nil, now)
	require.NoError(t, err)
	for i := range pipeline.Stages {
		require.NoError(t, tracker.RecordCompletion(quantity, 0, now))
		if i < len(pipeline.Stages)-1 {
			require.NoError(t, tracker.Advance(now))
		}
	}
	require.True(t, tracker.Done())
	return tracker
}

func fixtures(t *testing.T) (*fakeBatches, *memoryRepo, *Service) {
	t.Helper()
	batches := &fakeBatches{batches: map[int64]batch.ProductionBatch{
		1: {
			ID:          1,
			JobCardID:   10,
			BatchNumber: 1,
			Range:       ranges.Range{From: 1, To: 1000},
			Quantity:    1000,
			Status:      batch.StatusCompleted,
			Tracker:     completedTracker(t, 1000),
		},
		2: {
			ID:          2,
			JobCardID:   10,
			BatchNumber: 2,
			Range:       ranges.Range{From: 1001, To: 1500},
			Quantity:    500,
			Status:      batch.StatusInProgress,
			Tracker: func() pipeline.Tracker {
				tr, err := pipeline.NewTracker(500, nil, time.Now())
				require.NoError(t, err)
				return tr
			}(),
		},
	}}
	repo := newMemoryRepo(batches)
	return batches, repo, NewService(repo, batches, nil, nil, nil)
}

func TestDispatchRequiresCompletedBatch(t *testing.T) {
	_, _, svc := fixtures(t)

	_, err := svc.Create(context.Background(), CreateInput{BatchID: 2, Quantity: 100})
	require.ErrorIs(t, err, ErrNotReady)
}

func TestDispatchValidatesAvailability(t *testing.T) {
	_, _, svc := fixtures(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{BatchID: 1, Quantity: 1200})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "1000")

	d, err := svc.Create(ctx, CreateInput{BatchID: 1, Quantity: 1000})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(d.ChallanNumber, "CH-"))

	_, err = svc.Create(ctx, CreateInput{BatchID: 1, Quantity: 1})
	require.ErrorIs(t, err, ErrValidation)
}

func TestPartialDispatches(t *testing.T) {
	batches, repo, svc := fixtures(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{BatchID: 1, Quantity: 600, Destination: "warehouse"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{BatchID: 1, Quantity: 400})
	require.NoError(t, err)

	require.Equal(t, 1000, batches.batches[1].DispatchedQuantity)
	require.Equal(t, 0, batches.batches[1].AvailableForDispatch())

	listed, err := svc.ListByJobCard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Len(t, repo.dispatches, 2)
}
