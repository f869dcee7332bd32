// Package scheduler implements the Worker Scheduler (C2): it owns one seed
// chunk, keeps K Domain Pipelines in flight at all times, and drains each
// cohort to completion before starting the next. It knows nothing about
// fetch tiers, extraction, or sinks — only about running pipelines as a
// bounded, restartable batch.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pacmancrawl/pacman"
)

// PipelineRunner runs one Domain Pipeline to completion for a single seed.
// Implemented by package pipeline; kept as an interface here so the
// scheduler can be tested without a real fetch stack.
type PipelineRunner interface {
	RunPipeline(ctx context.Context, seed pacman.Seed) PipelineResult
}

// PipelineResult is the cohort-level outcome of one Domain Pipeline.
type PipelineResult struct {
	Seed        pacman.Seed
	PagesFetched int
	Err         error // nil, or a *pacman.Error such as DomainUnreachable, PartialTimeout, SinkUnavailable or InternalError
}

// Options configures a Scheduler.
type Options struct {
	// K is the number of Domain Pipelines kept in flight per cohort.
	K int
	// InternalErrorThreshold is the number of InternalError outcomes
	// allowed within WindowSize before Run returns
	// ErrInternalErrorThreshold.
	InternalErrorThreshold int
	// WindowSize is the sliding window InternalErrorThreshold is measured
	// over. Zero means an unbounded window (count since process start).
	WindowSize time.Duration
	Logger     zerolog.Logger
}

// Run streams seeds from next, running them in cohorts of at most o.K
// concurrent pipelines. A cohort is a drain barrier: Run does not start
// seed N+K until all of cohort [N, N+K) have returned. Per-pipeline panics
// are recovered and converted to an InternalError outcome; they never
// cancel the rest of the cohort or the run. Run returns
// ErrInternalErrorThreshold, wrapped as KindInternal, if the sliding-window
// InternalError count crosses o.InternalErrorThreshold; the caller (package
// cmd) is responsible for exiting nonzero in that case. Once ctx is
// cancelled Run starts no further cohort: the cohort already in flight runs
// to completion (its pipelines do not see the cancellation) and Run
// returns nil.
func Run(ctx context.Context, next func() (pacman.Seed, bool), runner PipelineRunner, o Options) error {
	if o.K < 1 {
		o.K = 1
	}
	win := newWindow(o.WindowSize)

	for {
		if ctx.Err() != nil {
			return nil
		}
		seeds := make([]pacman.Seed, 0, o.K)
		for len(seeds) < o.K {
			seed, ok := next()
			if !ok {
				break
			}
			seeds = append(seeds, seed)
		}
		if len(seeds) == 0 {
			return nil
		}

		results, err := runCohort(ctx, seeds, runner, o.K)
		if err != nil {
			return err
		}

		var merr *multierror.Error
		for _, r := range results {
			o.Logger.Info().
				Str("seed", r.Seed.URL).
				Int("pages_fetched", r.PagesFetched).
				AnErr("outcome", r.Err).
				Msg("domain pipeline completed")

			if r.Err == nil {
				continue
			}
			merr = multierror.Append(merr, r.Err)

			var e *pacman.Error
			if errors.As(r.Err, &e) && e.Kind == pacman.KindInternal {
				if win.record() > o.InternalErrorThreshold {
					return pacman.Wrap(pacman.KindInternal, pacman.ErrInternalErrorThreshold,
						"too many internal errors in current window")
				}
			}
		}
		if merr != nil && merr.Len() > 0 {
			o.Logger.Warn().Err(merr).Int("cohort_size", len(seeds)).Msg("cohort completed with failures")
		}
	}
}

// runCohort launches up to K pipelines concurrently via errgroup.SetLimit
// and waits for all of them, recovering any panic into an InternalError
// PipelineResult rather than letting it escape or cancel siblings.
func runCohort(ctx context.Context, seeds []pacman.Seed, runner PipelineRunner, k int) ([]PipelineResult, error) {
	results := make([]PipelineResult, len(seeds))

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(k)

	for i, seed := range seeds {
		i, seed := i, seed
		g.Go(func() error {
			results[i] = runOne(gctx, runner, seed)
			return nil
		})
	}
	// g.Wait's error is always nil here since runOne never returns an
	// error to the group: failures are cohort-local PipelineResults, not
	// errgroup-level cancellations, per the "failures must not cancel
	// peers" rule.
	_ = g.Wait()
	return results, nil
}

func runOne(ctx context.Context, runner PipelineRunner, seed pacman.Seed) (result PipelineResult) {
	defer func() {
		if r := recover(); r != nil {
			result = PipelineResult{
				Seed: seed,
				Err:  pacman.Wrap(pacman.KindInternal, pacman.ErrInvariantViolation, "recovered panic in domain pipeline"),
			}
		}
	}()
	return runner.RunPipeline(ctx, seed)
}
