package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacmancrawl/pacman"
)

func seedIterator(seeds []pacman.Seed) func() (pacman.Seed, bool) {
	i := 0
	return func() (pacman.Seed, bool) {
		if i >= len(seeds) {
			return pacman.Seed{}, false
		}
		s := seeds[i]
		i++
		return s, true
	}
}

type funcRunner func(ctx context.Context, seed pacman.Seed) PipelineResult

func (f funcRunner) RunPipeline(ctx context.Context, seed pacman.Seed) PipelineResult {
	return f(ctx, seed)
}

func TestRunProcessesAllSeeds(t *testing.T) {
	var processed int64
	runner := funcRunner(func(ctx context.Context, seed pacman.Seed) PipelineResult {
		atomic.AddInt64(&processed, 1)
		return PipelineResult{Seed: seed, PagesFetched: 1}
	})

	seeds := []pacman.Seed{{URL: "http://a.com"}, {URL: "http://b.com"}, {URL: "http://c.com"}}
	err := Run(context.Background(), seedIterator(seeds), runner, Options{K: 2, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if processed != 3 {
		t.Errorf("processed = %d, want 3", processed)
	}
}

func TestRunBoundsConcurrencyAtK(t *testing.T) {
	var inFlight, maxInFlight int64
	runner := funcRunner(func(ctx context.Context, seed pacman.Seed) PipelineResult {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			cur := atomic.LoadInt64(&maxInFlight)
			if n <= cur || atomic.CompareAndSwapInt64(&maxInFlight, cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return PipelineResult{Seed: seed}
	})

	seeds := make([]pacman.Seed, 20)
	for i := range seeds {
		seeds[i] = pacman.Seed{URL: "http://example.com"}
	}
	err := Run(context.Background(), seedIterator(seeds), runner, Options{K: 3, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if maxInFlight > 3 {
		t.Errorf("observed max in-flight pipelines = %d, want <= 3", maxInFlight)
	}
}

func TestRunRecoversPanicAsInternalError(t *testing.T) {
	runner := funcRunner(func(ctx context.Context, seed pacman.Seed) PipelineResult {
		panic("boom")
	})

	seeds := []pacman.Seed{{URL: "http://a.com"}}
	// Threshold of 5 means a single panic must not trip the sentinel.
	err := Run(context.Background(), seedIterator(seeds), runner, Options{K: 2, InternalErrorThreshold: 5, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("a single recovered panic should not fail Run, got: %v", err)
	}
}

func TestRunTripsInternalErrorThreshold(t *testing.T) {
	runner := funcRunner(func(ctx context.Context, seed pacman.Seed) PipelineResult {
		return PipelineResult{
			Seed: seed,
			Err:  pacman.Wrap(pacman.KindInternal, pacman.ErrInvariantViolation, "boom"),
		}
	})

	seeds := make([]pacman.Seed, 5)
	for i := range seeds {
		seeds[i] = pacman.Seed{URL: "http://a.com"}
	}
	err := Run(context.Background(), seedIterator(seeds), runner, Options{K: 1, InternalErrorThreshold: 2, Logger: zerolog.Nop()})
	if err == nil {
		t.Fatal("expected Run to return an error once the internal error threshold is crossed")
	}
	if pacman.ExitCode(err) != 4 {
		t.Errorf("ExitCode = %d, want 4", pacman.ExitCode(err))
	}
}

func TestRunDoesNotCancelPeersOnFailure(t *testing.T) {
	var completed int64
	runner := funcRunner(func(ctx context.Context, seed pacman.Seed) PipelineResult {
		if seed.URL == "http://fails.com" {
			return PipelineResult{Seed: seed, Err: pacman.Wrap(pacman.KindTransient, pacman.ErrDomainUnreachable, "")}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&completed, 1)
		return PipelineResult{Seed: seed}
	})

	seeds := []pacman.Seed{{URL: "http://fails.com"}, {URL: "http://a.com"}, {URL: "http://b.com"}}
	err := Run(context.Background(), seedIterator(seeds), runner, Options{K: 3, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if completed != 2 {
		t.Errorf("completed = %d, want 2 (peers must finish despite a sibling failure)", completed)
	}
}
