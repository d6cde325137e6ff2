// Package e2e exercises the full allocation path through the real
// services: advice approval, card allocation, batch range claims, the
// stage pipeline and dispatch, with storage faked in memory.
package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bindery-erp/bindery-erp/internal/batch"
	"github.com/bindery-erp/bindery-erp/internal/bindingadvice"
	"github.com/bindery-erp/bindery-erp/internal/dispatch"
	"github.com/bindery-erp/bindery-erp/internal/jobcard"
	"github.com/bindery-erp/bindery-erp/internal/pipeline"
	"github.com/bindery-erp/bindery-erp/internal/ranges"
)

type adviceStore struct {
	seq     int64
	advices map[int64]bindingadvice.BindingAdvice
}

func (s *adviceStore) Create(_ context.Context, a bindingadvice.BindingAdvice) (int64, error) {
	s.seq++
	a.ID = s.seq
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	s.advices[a.ID] = a
	return a.ID, nil
}

func (s *adviceStore) Get(_ context.Context, id int64) (bindingadvice.BindingAdvice, error) {
	a, ok := s.advices[id]
	if !ok {
		return bindingadvice.BindingAdvice{}, bindingadvice.ErrNotFound
	}
	return a, nil
}

func (s *adviceStore) List(_ context.Context, _, _ int) ([]bindingadvice.BindingAdvice, int, error) {
	var out []bindingadvice.BindingAdvice
	for id := int64(1); id <= s.seq; id++ {
		if a, ok := s.advices[id]; ok {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (s *adviceStore) UpdateStatus(_ context.Context, id int64, status bindingadvice.Status) error {
	a, ok := s.advices[id]
	if !ok {
		return bindingadvice.ErrNotFound
	}
	a.Status = status
	s.advices[id] = a
	return nil
}

type cardStore struct {
	seq   int64
	cards map[int64]jobcard.JobCard
}

func (s *cardStore) Create(_ context.Context, c jobcard.JobCard) (int64, error) {
	s.seq++
	c.ID = s.seq
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	s.cards[c.ID] = c
	return c.ID, nil
}

func (s *cardStore) Get(_ context.Context, id int64) (jobcard.JobCard, error) {
	c, ok := s.cards[id]
	if !ok {
		return jobcard.JobCard{}, jobcard.ErrNotFound
	}
	return c, nil
}

func (s *cardStore) ListByAdvice(_ context.Context, adviceID int64) ([]jobcard.JobCard, error) {
	var out []jobcard.JobCard
	for id := int64(1); id <= s.seq; id++ {
		if c, ok := s.cards[id]; ok && c.BindingAdviceID == adviceID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *cardStore) AllocatedQuantity(_ context.Context, adviceID int64) (int, error) {
	total := 0
	for _, c := range s.cards {
		if c.BindingAdviceID == adviceID && c.Status != jobcard.StatusCancelled {
			total += c.Quantity
		}
	}
	return total, nil
}

func (s *cardStore) UpdateTracker(_ context.Context, id int64, tracker pipeline.Tracker, status jobcard.Status) error {
	c, ok := s.cards[id]
	if !ok {
		return jobcard.ErrNotFound
	}
	c.Tracker = tracker
	c.Status = status
	s.cards[id] = c
	return nil
}

type batchStore struct {
	seq     int64
	batches map[int64]batch.ProductionBatch
}

func (s *batchStore) Create(_ context.Context, b batch.ProductionBatch) (int64, error) {
	s.seq++
	b.ID = s.seq
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	s.batches[b.ID] = b
	return b.ID, nil
}

func (s *batchStore) Get(_ context.Context, id int64) (batch.ProductionBatch, error) {
	b, ok := s.batches[id]
	if !ok {
		return batch.ProductionBatch{}, batch.ErrNotFound
	}
	return b, nil
}

func (s *batchStore) ListByJobCard(_ context.Context, jobCardID int64) ([]batch.ProductionBatch, error) {
	var out []batch.ProductionBatch
	for id := int64(1); id <= s.seq; id++ {
		if b, ok := s.batches[id]; ok && b.JobCardID == jobCardID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *batchStore) UpdateTracker(_ context.Context, id int64, tracker pipeline.Tracker, status batch.Status) error {
	b, ok := s.batches[id]
	if !ok {
		return batch.ErrNotFound
	}
	b.Tracker = tracker
	b.Status = status
	s.batches[id] = b
	return nil
}

type dispatchStore struct {
	seq        int64
	dispatches map[int64]dispatch.Dispatch
	batches    *batchStore
	cards      *cardStore
}

func (s *dispatchStore) Create(_ context.Context, d dispatch.Dispatch) (int64, error) {
	s.seq++
	d.ID = s.seq
	d.CreatedAt = time.Now()
	s.dispatches[d.ID] = d
	b := s.batches.batches[d.BatchID]
	b.DispatchedQuantity += d.Quantity
	s.batches.batches[d.BatchID] = b
	c := s.cards.cards[d.JobCardID]
	c.DispatchedQuantity += d.Quantity
	s.cards.cards[d.JobCardID] = c
	return d.ID, nil
}

func (s *dispatchStore) Get(_ context.Context, id int64) (dispatch.Dispatch, error) {
	d, ok := s.dispatches[id]
	if !ok {
		return dispatch.Dispatch{}, dispatch.ErrNotFound
	}
	return d, nil
}

func (s *dispatchStore) ListByJobCard(_ context.Context, jobCardID int64) ([]dispatch.Dispatch, error) {
	var out []dispatch.Dispatch
	for id := int64(1); id <= s.seq; id++ {
		if d, ok := s.dispatches[id]; ok && d.JobCardID == jobCardID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *dispatchStore) ListByBatch(_ context.Context, batchID int64) ([]dispatch.Dispatch, error) {
	var out []dispatch.Dispatch
	for id := int64(1); id <= s.seq; id++ {
		if d, ok := s.dispatches[id]; ok && d.BatchID == batchID {
			out = append(out, d)
		}
	}
	return out, nil
}

type services struct {
	advices    *bindingadvice.Service
	cards      *jobcard.Service
	batches    *batch.Service
	dispatches *dispatch.Service
}

func wire() services {
	advices := &adviceStore{advices: map[int64]bindingadvice.BindingAdvice{}}
	cards := &cardStore{cards: map[int64]jobcard.JobCard{}}
	batches := &batchStore{batches: map[int64]batch.ProductionBatch{}}
	dispatches := &dispatchStore{dispatches: map[int64]dispatch.Dispatch{}, batches: batches, cards: cards}

	batchService := batch.NewService(batches, cards, nil, nil, nil)
	return services{
		advices:    bindingadvice.NewService(advices, cards, nil),
		cards:      jobcard.NewService(cards, advices, batchService, nil, nil, nil),
		batches:    batchService,
		dispatches: dispatch.NewService(dispatches, batches, nil, nil, nil),
	}
}

func TestAllocationFlow(t *testing.T) {
	svc := wire()
	ctx := context.Background()

	advice, err := svc.advices.Create(ctx, bindingadvice.CreateInput{
		CustomerName: "Crescent Stationers",
		NotebookType: "ruled-96p",
		Quantity:     2000,
	})
	require.NoError(t, err)

	advice, err = svc.advices.Approve(ctx, advice.ID, 0)
	require.NoError(t, err)

	card, err := svc.cards.Create(ctx, jobcard.CreateInput{BindingAdviceID: advice.ID, Quantity: 2000})
	require.NoError(t, err)

	balance, err := svc.advices.Balance(ctx, advice.ID)
	require.NoError(t, err)
	require.Equal(t, 0, balance.Remaining)

	first, err := svc.batches.Create(ctx, batch.CreateInput{
		JobCardID: card.ID,
		Range:     &ranges.Range{From: 1, To: 1000},
	})
	require.NoError(t, err)

	suggested, err := svc.batches.SuggestRange(ctx, card.ID, 1000)
	require.NoError(t, err)
	require.Equal(t, ranges.Range{From: 1001, To: 2000}, suggested)

	second, err := svc.batches.Create(ctx, batch.CreateInput{JobCardID: card.ID, Quantity: 1000})
	require.NoError(t, err)
	require.Equal(t, suggested, second.Range)

	coverage, err := svc.batches.Coverage(ctx, card.ID)
	require.NoError(t, err)
	require.True(t, coverage.Valid)

	// Walk the first batch through every stage without losses.
	b := first
	for range pipeline.Stages {
		b, err = svc.batches.RecordProgress(ctx, b.ID, "", b.Tracker.Entries[b.Tracker.Current].Allocated, 0, 0)
		require.NoError(t, err)
		b, err = svc.batches.Advance(ctx, b.ID, 0)
		require.NoError(t, err)
	}
	require.Equal(t, batch.StatusCompleted, b.Status)
	require.Equal(t, 1000, b.AvailableForDispatch())

	// The second batch is untouched and cannot dispatch.
	_, err = svc.dispatches.Create(ctx, dispatch.CreateInput{BatchID: second.ID, Quantity: 1})
	require.ErrorIs(t, err, dispatch.ErrNotReady)

	d, err := svc.dispatches.Create(ctx, dispatch.CreateInput{
		BatchID:     b.ID,
		Quantity:    1000,
		Destination: "Crescent Stationers",
	})
	require.NoError(t, err)
	require.Equal(t, 1000, d.Quantity)
	require.NotEmpty(t, d.ChallanNumber)

	refreshed, err := svc.batches.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, 0, refreshed.AvailableForDispatch())

	_, err = svc.dispatches.Create(ctx, dispatch.CreateInput{BatchID: b.ID, Quantity: 1})
	require.ErrorIs(t, err, dispatch.ErrValidation)

	overview, err := svc.cards.Overview(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, overview.Batches, 2)
	require.Equal(t, 0, overview.Balance.Remaining)
	require.Equal(t, 1000, overview.JobCard.DispatchedQuantity)
}

func TestScrapShrinksDispatchableQuantity(t *testing.T) {
	svc := wire()
	ctx := context.Background()

	advice, err := svc.advices.Create(ctx, bindingadvice.CreateInput{CustomerName: "A", Quantity: 500})
	require.NoError(t, err)
	advice, err = svc.advices.Approve(ctx, advice.ID, 0)
	require.NoError(t, err)

	card, err := svc.cards.Create(ctx, jobcard.CreateInput{BindingAdviceID: advice.ID, Quantity: 500})
	require.NoError(t, err)

	b, err := svc.batches.Create(ctx, batch.CreateInput{JobCardID: card.ID, Range: &ranges.Range{From: 1, To: 500}})
	require.NoError(t, err)

	// 20 units scrapped in the first stage never reach dispatch.
	b, err = svc.batches.RecordProgress(ctx, b.ID, "", 480, 20, 0)
	require.NoError(t, err)
	for i := range pipeline.Stages {
		if i > 0 {
			b, err = svc.batches.RecordProgress(ctx, b.ID, "", b.Tracker.Entries[b.Tracker.Current].Allocated, 0, 0)
			require.NoError(t, err)
		}
		b, err = svc.batches.Advance(ctx, b.ID, 0)
		require.NoError(t, err)
	}
	require.Equal(t, batch.StatusCompleted, b.Status)
	require.Equal(t, 480, b.AvailableForDispatch())

	_, err = svc.dispatches.Create(ctx, dispatch.CreateInput{BatchID: b.ID, Quantity: 500})
	require.ErrorIs(t, err, dispatch.ErrValidation)

	d, err := svc.dispatches.Create(ctx, dispatch.CreateInput{BatchID: b.ID, Quantity: 480})
	require.NoError(t, err)
	require.Equal(t, 480, d.Quantity)
}
