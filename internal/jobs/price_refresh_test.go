package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitypulse/portfolio-service/internal/marketdata"
	"github.com/equitypulse/portfolio-service/internal/models"
)

type fakeSymbolSource struct {
	symbols []string
	err     error
}

func (f *fakeSymbolSource) DistinctHoldingSymbols() ([]string, error) {
	return f.symbols, f.err
}

type fakeGateway struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	fail   map[string]error
	calls  map[string]int
}

func (f *fakeGateway) LatestPrice(_ context.Context, symbol string) (marketdata.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[symbol]++

	if err, ok := f.fail[symbol]; ok {
		return marketdata.PricePoint{}, err
	}
	return marketdata.PricePoint{
		Symbol:     symbol,
		Price:      f.prices[symbol],
		ObservedAt: time.Now(),
	}, nil
}

func (f *fakeGateway) callCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

type fakePriceWriter struct {
	mu      sync.Mutex
	batches [][]*models.PriceSnapshot
	err     error
}

func (f *fakePriceWriter) UpsertPricesBatch(snapshots []*models.PriceSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, snapshots)
	return nil
}

func (f *fakePriceWriter) lastBatch() []*models.PriceSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil
	}
	return f.batches[len(f.batches)-1]
}

type fakePublisher struct {
	mu       sync.Mutex
	updated  []string
	runCalls []string
}

func (f *fakePublisher) PublishPriceUpdated(_ context.Context, snapshot *models.PriceSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, snapshot.Symbol)
	return nil
}

func (f *fakePublisher) PublishJobRun(_ context.Context, jobID string, _, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runCalls = append(f.runCalls, jobID)
	return nil
}

func newRefreshJob(symbols *fakeSymbolSource, gateway *fakeGateway, store *fakePriceWriter, events EventPublisher) *PriceRefreshJob {
	return NewPriceRefreshJob(symbols, gateway, store, nil, events, 4, zerolog.Nop())
}

func TestPriceRefreshJob(t *testing.T) {
	t.Run("fetches each distinct symbol exactly once", func(t *testing.T) {
		gateway := &fakeGateway{prices: map[string]decimal.Decimal{
			"AAPL": decimal.NewFromFloat(150.00),
			"MSFT": decimal.NewFromFloat(380.00),
		}}
		store := &fakePriceWriter{}
		job := newRefreshJob(&fakeSymbolSource{symbols: []string{"AAPL", "MSFT", "AAPL"}}, gateway, store, nil)

		result, err := job.RunOnce(context.Background())
		require.NoError(t, err)

		assert.Len(t, result.Succeeded, 2)
		assert.Empty(t, result.Failed)
		assert.Equal(t, 1, gateway.callCount("AAPL"))
		assert.Equal(t, 1, gateway.callCount("MSFT"))
		assert.Len(t, store.lastBatch(), 2)
	})

	t.Run("one symbol's failure does not block the others", func(t *testing.T) {
		gateway := &fakeGateway{
			prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromFloat(150.00)},
			fail:   map[string]error{"MSFT": errors.New("provider throttled")},
		}
		store := &fakePriceWriter{}
		job := newRefreshJob(&fakeSymbolSource{symbols: []string{"AAPL", "MSFT"}}, gateway, store, nil)

		result, err := job.RunOnce(context.Background())
		require.NoError(t, err)

		assert.Equal(t, []string{"AAPL"}, result.Succeeded)
		require.Len(t, result.Failed, 1)
		assert.Equal(t, "MSFT", result.Failed[0].Symbol)

		// the successful symbol still commits
		batch := store.lastBatch()
		require.Len(t, batch, 1)
		assert.Equal(t, "AAPL", batch[0].Symbol)
	})

	t.Run("all symbols failing still commits an empty batch without error", func(t *testing.T) {
		gateway := &fakeGateway{fail: map[string]error{
			"AAPL": errors.New("unavailable"),
			"MSFT": errors.New("unavailable"),
		}}
		store := &fakePriceWriter{}
		job := newRefreshJob(&fakeSymbolSource{symbols: []string{"AAPL", "MSFT"}}, gateway, store, nil)

		result, err := job.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Empty(t, result.Succeeded)
		assert.Len(t, result.Failed, 2)
	})

	t.Run("symbol enumeration failure aborts the run", func(t *testing.T) {
		job := newRefreshJob(&fakeSymbolSource{err: errors.New("connection refused")}, &fakeGateway{}, &fakePriceWriter{}, nil)

		_, err := job.RunOnce(context.Background())
		require.Error(t, err)
	})

	t.Run("commit failure aborts the run", func(t *testing.T) {
		gateway := &fakeGateway{prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromFloat(150.00)}}
		store := &fakePriceWriter{err: errors.New("deadlock detected")}
		job := newRefreshJob(&fakeSymbolSource{symbols: []string{"AAPL"}}, gateway, store, nil)

		_, err := job.RunOnce(context.Background())
		require.Error(t, err)
	})

	t.Run("running twice converges to the same committed prices", func(t *testing.T) {
		gateway := &fakeGateway{prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromFloat(150.00)}}
		store := &fakePriceWriter{}
		job := newRefreshJob(&fakeSymbolSource{symbols: []string{"AAPL"}}, gateway, store, nil)

		_, err := job.RunOnce(context.Background())
		require.NoError(t, err)
		_, err = job.RunOnce(context.Background())
		require.NoError(t, err)

		require.Len(t, store.batches, 2)
		assert.True(t, store.batches[0][0].Price.Equal(store.batches[1][0].Price))
	})

	t.Run("publishes per-symbol updates and a run summary", func(t *testing.T) {
		gateway := &fakeGateway{prices: map[string]decimal.Decimal{
			"AAPL": decimal.NewFromFloat(150.00),
			"MSFT": decimal.NewFromFloat(380.00),
		}}
		events := &fakePublisher{}
		job := newRefreshJob(&fakeSymbolSource{symbols: []string{"AAPL", "MSFT"}}, gateway, &fakePriceWriter{}, events)

		_, err := job.RunOnce(context.Background())
		require.NoError(t, err)

		assert.Len(t, events.updated, 2)
		assert.Equal(t, []string{PriceRefreshJobID}, events.runCalls)
	})
}
