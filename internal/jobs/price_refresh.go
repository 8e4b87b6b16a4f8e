package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/equitypulse/portfolio-service/internal/marketdata"
	"github.com/equitypulse/portfolio-service/internal/models"
)

// PriceRefreshJobID identifies the stock price refresh job in scheduler
// logs and run events
const PriceRefreshJobID = "update_stock_prices"

// SymbolSource enumerates the distinct symbols held anywhere in the system
type SymbolSource interface {
	DistinctHoldingSymbols() ([]string, error)
}

// PriceGateway fetches the current price for one symbol
type PriceGateway interface {
	LatestPrice(ctx context.Context, symbol string) (marketdata.PricePoint, error)
}

// PriceWriter commits a run's accumulated snapshots in one transaction
type PriceWriter interface {
	UpsertPricesBatch(snapshots []*models.PriceSnapshot) error
}

// PriceCache mirrors committed snapshots for fast lookups. May be nil.
type PriceCache interface {
	SetLatest(ctx context.Context, symbol string, price decimal.Decimal) error
}

// EventPublisher announces run outcomes. May be nil.
type EventPublisher interface {
	PublishPriceUpdated(ctx context.Context, snapshot *models.PriceSnapshot) error
	PublishJobRun(ctx context.Context, jobID string, succeeded, failed int) error
}

// SymbolError records one symbol's failure within a run
type SymbolError struct {
	Symbol string
	Err    error
}

// RunResult summarizes one refresh run so the job boundary can report the
// aggregate outcome instead of relying on log scraping
type RunResult struct {
	Succeeded []string
	Failed    []SymbolError
}

// PriceRefreshJob fetches the latest price for every distinct held symbol
// and upserts the results into the price store. One symbol's failure never
// blocks the others, and successful symbols commit even when some fail.
type PriceRefreshJob struct {
	symbols     SymbolSource
	gateway     PriceGateway
	store       PriceWriter
	cache       PriceCache
	events      EventPublisher
	concurrency int
	log         zerolog.Logger
}

// NewPriceRefreshJob creates a refresh job. cache and events are optional.
func NewPriceRefreshJob(symbols SymbolSource, gateway PriceGateway, store PriceWriter, cache PriceCache, events EventPublisher, concurrency int, log zerolog.Logger) *PriceRefreshJob {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &PriceRefreshJob{
		symbols:     symbols,
		gateway:     gateway,
		store:       store,
		cache:       cache,
		events:      events,
		concurrency: concurrency,
		log:         log.With().Str("component", "jobs").Str("job", PriceRefreshJobID).Logger(),
	}
}

// Name implements scheduler.Job
func (j *PriceRefreshJob) Name() string { return PriceRefreshJobID }

// Run implements scheduler.Job
func (j *PriceRefreshJob) Run(ctx context.Context) error {
	_, err := j.RunOnce(ctx)
	return err
}

// RunOnce executes a single refresh run and returns its per-symbol result.
// It returns an error only when the run as a whole cannot make progress
// (symbol enumeration or the end-of-run commit fails); per-symbol fetch
// failures are reported in the result.
func (j *PriceRefreshJob) RunOnce(ctx context.Context) (*RunResult, error) {
	j.log.Info().Msg("starting stock price update")

	symbols, err := j.symbols.DistinctHoldingSymbols()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate symbols: %w", err)
	}
	j.log.Info().Int("symbols", len(symbols)).Msg("found symbols to update")

	var (
		mu        sync.Mutex
		snapshots []*models.PriceSnapshot
		result    RunResult
		seen      = make(map[string]struct{}, len(symbols))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)

	for _, symbol := range symbols {
		// per-run dedup guard in case the source enumerates a symbol twice
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}

		symbol := symbol
		g.Go(func() error {
			point, err := j.gateway.LatestPrice(gctx, symbol)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				j.log.Warn().Err(err).Str("symbol", symbol).Msg("price fetch failed")
				result.Failed = append(result.Failed, SymbolError{Symbol: symbol, Err: err})
				return nil
			}
			snapshots = append(snapshots, &models.PriceSnapshot{
				Symbol:     point.Symbol,
				Price:      point.Price,
				ObservedAt: point.ObservedAt,
			})
			result.Succeeded = append(result.Succeeded, symbol)
			return nil
		})
	}

	// workers never return errors, so this only propagates ctx cancellation
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := j.store.UpsertPricesBatch(snapshots); err != nil {
		return nil, fmt.Errorf("failed to commit price snapshots: %w", err)
	}

	j.mirrorAndPublish(ctx, snapshots, &result)

	if len(result.Failed) > 0 {
		j.log.Warn().
			Int("succeeded", len(result.Succeeded)).
			Int("failed", len(result.Failed)).
			Strs("failed_symbols", failedSymbols(result.Failed)).
			Msg("stock price update completed with failures")
	} else {
		j.log.Info().Int("succeeded", len(result.Succeeded)).Msg("stock price update completed successfully")
	}

	return &result, nil
}

// mirrorAndPublish updates the cache and emits events after a successful
// commit. Both are best effort.
func (j *PriceRefreshJob) mirrorAndPublish(ctx context.Context, snapshots []*models.PriceSnapshot, result *RunResult) {
	for _, s := range snapshots {
		if j.cache != nil {
			if err := j.cache.SetLatest(ctx, s.Symbol, s.Price); err != nil {
				j.log.Warn().Err(err).Str("symbol", s.Symbol).Msg("failed to update price cache")
			}
		}
		if j.events != nil {
			if err := j.events.PublishPriceUpdated(ctx, s); err != nil {
				j.log.Warn().Err(err).Str("symbol", s.Symbol).Msg("failed to publish price update event")
			}
		}
	}

	if j.events != nil {
		if err := j.events.PublishJobRun(ctx, PriceRefreshJobID, len(result.Succeeded), len(result.Failed)); err != nil {
			j.log.Warn().Err(err).Msg("failed to publish job run event")
		}
	}
}

func failedSymbols(errs []SymbolError) []string {
	symbols := make([]string, 0, len(errs))
	for _, e := range errs {
		symbols = append(symbols, e.Symbol)
	}
	return symbols
}
