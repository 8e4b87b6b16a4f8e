package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/equitypulse/portfolio-service/internal/models"
	"github.com/equitypulse/portfolio-service/internal/portfolio"
)

// HistoryUpdateJobID identifies the portfolio history job in scheduler
// logs and run events
const HistoryUpdateJobID = "update_portfolio_history"

// UserSource enumerates every user in the system
type UserSource interface {
	GetAllUsers() ([]*models.User, error)
}

// SnapshotEngine computes one aggregate snapshot per user
type SnapshotEngine interface {
	ComputeAggregateSnapshot(ctx context.Context, userID int) (*models.PortfolioHistoryRecord, error)
}

// HistoryWriter commits a run's records in one transaction
type HistoryWriter interface {
	AppendHistoryBatch(records []*models.PortfolioHistoryRecord) error
}

// UserError records one user's failure within a run
type UserError struct {
	UserID int
	Err    error
}

// HistoryRunResult summarizes one history run
type HistoryRunResult struct {
	Recorded int
	Skipped  int
	Failed   []UserError
}

// HistoryUpdateJob appends an aggregate valuation snapshot for every user
// with holdings. Failures are isolated per user; all records for a run
// commit together at the end, so a failed commit leaves no partial
// history.
type HistoryUpdateJob struct {
	users       UserSource
	engine      SnapshotEngine
	store       HistoryWriter
	events      EventPublisher
	concurrency int
	log         zerolog.Logger
}

// NewHistoryUpdateJob creates a history job. events is optional.
func NewHistoryUpdateJob(users UserSource, engine SnapshotEngine, store HistoryWriter, events EventPublisher, concurrency int, log zerolog.Logger) *HistoryUpdateJob {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &HistoryUpdateJob{
		users:       users,
		engine:      engine,
		store:       store,
		events:      events,
		concurrency: concurrency,
		log:         log.With().Str("component", "jobs").Str("job", HistoryUpdateJobID).Logger(),
	}
}

// Name implements scheduler.Job
func (j *HistoryUpdateJob) Name() string { return HistoryUpdateJobID }

// Run implements scheduler.Job
func (j *HistoryUpdateJob) Run(ctx context.Context) error {
	_, err := j.RunOnce(ctx)
	return err
}

// RunOnce executes a single history run and returns its per-user result.
// An error is returned only when the run cannot make progress (user
// enumeration or the end-of-run commit fails).
func (j *HistoryUpdateJob) RunOnce(ctx context.Context) (*HistoryRunResult, error) {
	j.log.Info().Msg("starting portfolio history update")

	users, err := j.users.GetAllUsers()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate users: %w", err)
	}

	var (
		mu      sync.Mutex
		records []*models.PortfolioHistoryRecord
		result  HistoryRunResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)

	for _, user := range users {
		user := user
		g.Go(func() error {
			record, err := j.engine.ComputeAggregateSnapshot(gctx, user.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, portfolio.ErrNoHoldings):
				j.log.Info().Int("user_id", user.ID).Msg("user has no holdings, skipping")
				result.Skipped++
			case err != nil:
				j.log.Error().Err(err).Int("user_id", user.ID).Msg("failed to compute snapshot")
				result.Failed = append(result.Failed, UserError{UserID: user.ID, Err: err})
			default:
				records = append(records, record)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := j.store.AppendHistoryBatch(records); err != nil {
		return nil, fmt.Errorf("failed to commit history records: %w", err)
	}
	result.Recorded = len(records)

	if j.events != nil {
		if err := j.events.PublishJobRun(ctx, HistoryUpdateJobID, result.Recorded, len(result.Failed)); err != nil {
			j.log.Warn().Err(err).Msg("failed to publish job run event")
		}
	}

	j.log.Info().
		Int("recorded", result.Recorded).
		Int("skipped", result.Skipped).
		Int("failed", len(result.Failed)).
		Msg("portfolio history update completed")

	return &result, nil
}
