package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/BartekS5/fieldmapper/internal/strategy"
	"github.com/BartekS5/fieldmapper/pkg/logger"
	"github.com/BartekS5/fieldmapper/pkg/models"
	"golang.org/x/sync/errgroup"
)

// StrategyFailure records a strategy that returned an error or panicked.
// It is logged and the strategy contributes no candidates.
type StrategyFailure struct {
	Strategy models.StrategyTag
	Err      error
	Panicked bool
}

func (f *StrategyFailure) Error() string {
	if f.Panicked {
		return fmt.Sprintf("strategy %s panicked: %v", f.Strategy, f.Err)
	}
	return fmt.Sprintf("strategy %s failed: %v", f.Strategy, f.Err)
}

func (f *StrategyFailure) Unwrap() error { return f.Err }

// executor runs every strategy concurrently and returns what settled before
// the deadline.
type executor struct {
	strategies []strategy.Strategy
	deadline   time.Duration
}

// collector gathers results until it is sealed; later results are dropped.
type collector struct {
	mu      sync.Mutex
	sealed  bool
	results []models.StrategyResult
}

func (c *collector) add(r models.StrategyResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return false
	}
	c.results = append(c.results, r)
	return true
}

func (c *collector) seal() []models.StrategyResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
	out := make([]models.StrategyResult, len(c.results))
	copy(out, c.results)
	return out
}

// run returns the settled results ordered by strategy priority, and whether
// the deadline cut the wait short.
func (x *executor) run(ctx context.Context, in strategy.Input) ([]models.StrategyResult, bool) {
	runCtx, cancel := context.WithTimeout(ctx, x.deadline)
	defer cancel()

	col := &collector{}
	var g errgroup.Group
	for _, s := range x.strategies {
		g.Go(func() error {
			res := runOne(runCtx, s, in)
			if !col.add(res) {
				logger.Debugf("strategy %s settled after the deadline, result discarded", s.Tag())
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	timedOut := false
	select {
	case <-done:
	case <-runCtx.Done():
		// A strategy may have settled in the same instant.
		select {
		case <-done:
		default:
			timedOut = true
		}
	}
	results := col.seal()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Strategy.Priority() < results[j].Strategy.Priority()
	})
	return results, timedOut
}

func runOne(ctx context.Context, s strategy.Strategy, in strategy.Input) (res models.StrategyResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = models.StrategyResult{
				Strategy: s.Tag(),
				Err:      &StrategyFailure{Strategy: s.Tag(), Err: fmt.Errorf("%v", r), Panicked: true},
			}
			logger.WithFields(logger.Fields{"strategy": s.Tag()}).
				Errorf("strategy panicked: %v\n%s", r, debug.Stack())
		}
		res.Elapsed = time.Since(start)
	}()

	res, err := s.Run(ctx, in)
	if err != nil {
		logger.WithFields(logger.Fields{"strategy": s.Tag()}).WithError(err).Warn("strategy failed, ignoring its candidates")
		return models.StrategyResult{
			Strategy: s.Tag(),
			Err:      &StrategyFailure{Strategy: s.Tag(), Err: err},
		}
	}
	res.Strategy = s.Tag()
	return res
}
