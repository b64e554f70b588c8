// Package engine turns source column descriptors into target field mappings
// by running every strategy concurrently and reconciling their candidates.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/BartekS5/fieldmapper/internal/cost"
	"github.com/BartekS5/fieldmapper/internal/learning"
	"github.com/BartekS5/fieldmapper/internal/reasoner"
	"github.com/BartekS5/fieldmapper/internal/strategy"
	"github.com/BartekS5/fieldmapper/pkg/logger"
	"github.com/BartekS5/fieldmapper/pkg/models"
	"github.com/google/uuid"
)

// DefaultDeadline bounds how long a request waits for strategies.
const DefaultDeadline = 10 * time.Second

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Registry       *models.Registry
	Store          learning.Store
	Governor       *cost.Governor
	Reasoner       reasoner.Reasoner
	Deadline       time.Duration
	MinConfidence  int
	LearnThreshold int
	// Strategies replaces the built-in set when not empty.
	Strategies []strategy.Strategy
}

// Request is one mapping job.
type Request struct {
	SessionID  string
	Fields     []models.SourceField
	SampleRows []map[string]string
	FileType   string
}

// Engine is safe for concurrent use. Build it once and share it.
type Engine struct {
	registry      *models.Registry
	store         learning.Store
	governor      *cost.Governor
	updater       *learning.Updater
	exec          *executor
	minConfidence int
}

func New(opts Options) (*Engine, error) {
	reg := opts.Registry
	if reg == nil {
		reg = models.MustDefaultRegistry()
	}
	store := opts.Store
	if store == nil {
		store = learning.NewMemoryStore()
	}
	gov := opts.Governor
	if gov == nil {
		gov = cost.NewGovernor(cost.DefaultCeilingUSD, nil)
	}
	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	minConf := opts.MinConfidence
	if minConf <= 0 {
		minConf = DefaultMinConfidence
	}
	if minConf > 100 {
		return nil, fmt.Errorf("minimum confidence %d outside [1,100]", minConf)
	}

	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = []strategy.Strategy{
			strategy.NewExact(),
			strategy.NewFuzzy(),
			strategy.NewSemantic(nil),
			strategy.NewHistorical(store),
			strategy.NewExternal(opts.Reasoner, gov),
		}
	}

	return &Engine{
		registry:      reg,
		store:         store,
		governor:      gov,
		updater:       learning.NewUpdater(store, opts.LearnThreshold),
		exec:          &executor{strategies: strategies, deadline: deadline},
		minConfidence: minConf,
	}, nil
}

func (e *Engine) Registry() *models.Registry { return e.registry }

func (e *Engine) Governor() *cost.Governor { return e.governor }

func (e *Engine) Store() learning.Store { return e.store }

// Map runs one mapping request. It never fails outright: setup and
// aggregation errors come back as a result with Success false and every
// source field unmapped.
func (e *Engine) Map(ctx context.Context, req Request) (res models.MappingResult) {
	start := time.Now()
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = uuid.NewString()
	}
	log := logger.WithFields(logger.Fields{"session": req.SessionID})

	phase := PhaseIdle
	enter := func(p Phase) {
		log.Debugf("phase %s -> %s", phase, p)
		phase = p
	}
	fail := func(err error) models.MappingResult {
		enter(PhaseFailed)
		log.WithError(err).Error("mapping request failed")
		return failedResult(req, err, time.Since(start))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic while mapping: %v\n%s", r, debug.Stack())
			res = fail(fmt.Errorf("internal error during %s: %v", phase, r))
		}
	}()

	if err := validate(req, e.registry); err != nil {
		return fail(err)
	}
	if len(req.Fields) == 0 {
		enter(PhaseDone)
		return models.MappingResult{
			Success:        true,
			SessionID:      req.SessionID,
			Mappings:       []models.FieldMapping{},
			UnmappedFields: []string{},
			Strategies:     []models.StrategyTag{},
			Elapsed:        time.Since(start),
		}
	}

	enter(PhaseDispatching)
	in := strategy.Input{
		SessionID:  req.SessionID,
		FileType:   req.FileType,
		Fields:     req.Fields,
		SampleRows: req.SampleRows,
		Registry:   e.registry,
	}
	enter(PhaseAwaiting)
	results, timedOut := e.exec.run(ctx, in)
	if timedOut {
		log.Warnf("deadline %s reached, continuing with %d of %d strategies",
			e.exec.deadline, len(results), len(e.exec.strategies))
	}
	for _, r := range results {
		log.WithFields(logger.Fields{
			"strategy":   r.Strategy,
			"elapsed":    r.Elapsed,
			"candidates": len(r.Mappings),
		}).Debug("strategy settled")
	}

	enter(PhaseAggregating)
	agg := reconcile(req.Fields, results, e.minConfidence)

	enter(PhasePersisting)
	if n, err := e.updater.Record(ctx, agg.mappings); err != nil {
		log.WithError(err).Warn("failed to update learning cache")
	} else if n > 0 {
		log.Debugf("learned %d mappings", n)
	}

	// Cost is what the session has spent so far, across every run that
	// reused its ID. The ledger is authoritative; this run's sum is the fallback.
	spent, err := e.governor.Spent(ctx, req.SessionID)
	if err != nil {
		log.WithError(err).Warn("failed to read session cost, reporting this run only")
		spent = agg.cost
	}

	enter(PhaseDone)
	return models.MappingResult{
		Success:        true,
		SessionID:      req.SessionID,
		Mappings:       agg.mappings,
		UnmappedFields: agg.unmapped,
		Confidence:     agg.confidence,
		Elapsed:        time.Since(start),
		Strategies:     agg.strategies,
		Cost:           spent,
	}
}

// Learn records mappings confirmed outside a mapping run, e.g. after review.
// They are stored regardless of the learning threshold.
func (e *Engine) Learn(ctx context.Context, mappings []models.FieldMapping) error {
	if err := validateLearned(mappings, e.registry); err != nil {
		return err
	}
	items := make([]learning.Upsert, 0, len(mappings))
	for _, m := range mappings {
		target, _ := e.registry.Lookup(m.TargetField)
		items = append(items, learning.Upsert{
			Pattern:     m.SourceField,
			TargetField: target.Name,
			Confidence:  m.Confidence,
			Strategy:    m.Strategy,
		})
	}
	if len(items) == 0 {
		return nil
	}
	if err := e.store.Upsert(ctx, items); err != nil {
		return fmt.Errorf("update learning cache: %w", err)
	}
	return nil
}

func failedResult(req Request, err error, elapsed time.Duration) models.MappingResult {
	unmapped := make([]string, 0, len(req.Fields))
	for _, f := range req.Fields {
		unmapped = append(unmapped, f.Name)
	}
	return models.MappingResult{
		Success:        false,
		SessionID:      req.SessionID,
		Mappings:       []models.FieldMapping{},
		UnmappedFields: unmapped,
		Strategies:     []models.StrategyTag{},
		Elapsed:        elapsed,
		Error:          err.Error(),
	}
}
