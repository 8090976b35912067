// Package cards resolves link preview metadata for cards queued by new molts.
// The worker is a batch job meant to be run periodically; a lock file keeps
// overlapping runs from fetching the same cards twice.
package cards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crabber/internal/middleware"
	"crabber/internal/models"
	"crabber/internal/observability"
	"crabber/internal/repository"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// JobName names the worker's lock file.
const JobName = "fetch-cards"

// Result summarises one worker run.
type Result struct {
	Locked  bool // another run held the lock; nothing was done
	Ready   int
	Failed  int
	Skipped int // left pending because the breaker was open or the run was cancelled
}

// Worker fetches every pending card once.
type Worker struct {
	cards   repository.CardRepository
	fetcher Fetcher
	lockDir string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[Metadata]
	now     func() time.Time
}

// Options tune a Worker. Zero values disable pacing and the breaker.
type Options struct {
	LockDir         string
	RequestsPerSec  float64
	BreakerFailures int
}

// NewWorker builds a worker. A breaker that trips after BreakerFailures
// consecutive failures leaves the remaining cards pending for the next run
// instead of marking them failed during a network outage.
func NewWorker(cards repository.CardRepository, fetcher Fetcher, opts Options) *Worker {
	limit := rate.Inf
	if opts.RequestsPerSec > 0 {
		limit = rate.Limit(opts.RequestsPerSec)
	}
	threshold := uint32(opts.BreakerFailures)
	w := &Worker{
		cards:   cards,
		fetcher: fetcher,
		lockDir: opts.LockDir,
		limiter: rate.NewLimiter(limit, 1),
		now:     func() time.Time { return time.Now().UTC() },
	}
	w.breaker = gobreaker.NewCircuitBreaker[Metadata](gobreaker.Settings{
		Name: JobName,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			middleware.Logger.Warn("card fetch breaker changed state",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return w
}

// Run fetches all pending cards sequentially and commits every result in one
// transaction. Failed cards are never retried.
func (w *Worker) Run(ctx context.Context) (Result, error) {
	lock := NewFileLock(w.lockDir, JobName)
	acquired, err := lock.Acquire()
	if err != nil {
		observability.CardWorkerRuns.WithLabelValues("error").Inc()
		return Result{}, err
	}
	if !acquired {
		middleware.Logger.InfoContext(ctx, "Job already in process. Exiting.", slog.String("lock", lock.Path()))
		observability.CardWorkerRuns.WithLabelValues("skipped").Inc()
		return Result{Locked: true}, nil
	}
	defer func() {
		if err := lock.Release(); err != nil {
			middleware.Logger.ErrorContext(ctx, "failed to release lock", slog.String("error", err.Error()))
		}
	}()

	span, ctx := observability.NewSpan(ctx, "cards.Worker.Run")
	defer span.End()

	res, err := w.run(ctx)
	span.AddAttributes(
		attribute.Int("cards.ready", res.Ready),
		attribute.Int("cards.failed", res.Failed),
		attribute.Int("cards.skipped", res.Skipped),
	)
	if err != nil {
		span.SetError(err)
		observability.CardWorkerRuns.WithLabelValues("error").Inc()
		return res, err
	}
	observability.CardWorkerRuns.WithLabelValues("completed").Inc()
	return res, nil
}

func (w *Worker) run(ctx context.Context) (Result, error) {
	var res Result

	pending, err := w.cards.Pending(ctx)
	if err != nil {
		return res, fmt.Errorf("list pending cards: %w", err)
	}

	done := make([]*models.Card, 0, len(pending))
	for i, card := range pending {
		if err := w.limiter.Wait(ctx); err != nil {
			res.Skipped += len(pending) - i
			break
		}

		meta, err := w.breaker.Execute(func() (Metadata, error) {
			page, err := w.fetcher.Fetch(ctx, card.URL)
			if err != nil {
				return Metadata{}, err
			}
			return ParseMetadata(page)
		})
		// A fetch cut short by cancellation says nothing about the URL.
		if ctx.Err() != nil {
			res.Skipped += len(pending) - i
			break
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			res.Skipped++
			continue
		}

		fetchedAt := w.now()
		card.FetchedAt = &fetchedAt
		if err != nil {
			card.Failed = true
			res.Failed++
			observability.CardFetches.WithLabelValues("failed").Inc()
			middleware.Logger.WarnContext(ctx, "Failed to fetch card",
				slog.String("url", card.URL),
				slog.String("error", err.Error()),
			)
		} else {
			card.Title, card.Description, card.Image = meta.Title, meta.Description, meta.Image
			card.Ready = true
			res.Ready++
			observability.CardFetches.WithLabelValues("ready").Inc()
			middleware.Logger.InfoContext(ctx, "Fetched card", slog.String("url", card.URL))
		}
		done = append(done, card)
	}

	// Commit what was fetched even when the run was cancelled part way.
	if err := w.cards.SaveResults(context.WithoutCancel(ctx), done); err != nil {
		return res, fmt.Errorf("save cards: %w", err)
	}
	return res, nil
}
