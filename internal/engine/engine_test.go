package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BartekS5/fieldmapper/internal/cost"
	"github.com/BartekS5/fieldmapper/internal/learning"
	"github.com/BartekS5/fieldmapper/internal/reasoner"
	"github.com/BartekS5/fieldmapper/internal/strategy"
	"github.com/BartekS5/fieldmapper/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := New(opts)
	require.NoError(t, err)
	return e
}

func fields(names ...string) []models.SourceField {
	out := make([]models.SourceField, len(names))
	for i, n := range names {
		out[i] = models.SourceField{Name: n, DataType: models.TypeString}
	}
	return out
}

func TestMapExactName(t *testing.T) {
	e := newEngine(t, Options{})
	res := e.Map(context.Background(), Request{Fields: fields("Name")})

	require.True(t, res.Success)
	require.Len(t, res.Mappings, 1)
	m := res.Mappings[0]
	assert.Equal(t, "Name", m.SourceField)
	assert.Equal(t, "name", m.TargetField)
	assert.Equal(t, 95, m.Confidence)
	assert.Equal(t, models.StrategyExact, m.Strategy)
	assert.Empty(t, res.UnmappedFields)
	assert.Equal(t, []models.StrategyTag{models.StrategyExact}, res.Strategies)
	assert.Equal(t, 95.0, res.Confidence)
	assert.NotEmpty(t, res.SessionID)
}

func TestMapMisspelledName(t *testing.T) {
	e := newEngine(t, Options{})
	res := e.Map(context.Background(), Request{Fields: fields("prodcut_pric")})

	require.True(t, res.Success)
	require.Len(t, res.Mappings, 1)
	assert.Equal(t, "price", res.Mappings[0].TargetField)
	assert.Equal(t, 68, res.Mappings[0].Confidence)
	assert.Equal(t, models.StrategyFuzzy, res.Mappings[0].Strategy)
}

func TestMapUnmatchedField(t *testing.T) {
	e := newEngine(t, Options{})
	res := e.Map(context.Background(), Request{Fields: fields("Name", "internal_note")})

	require.True(t, res.Success)
	assert.Equal(t, []string{"internal_note"}, res.UnmappedFields)
	_, ok := res.MappingFor("internal_note")
	assert.False(t, ok)
	_, ok = res.MappingFor("name")
	assert.True(t, ok)
}

func TestMapPrefersSemanticOverPartialName(t *testing.T) {
	store := learning.NewMemoryStore()
	e := newEngine(t, Options{Store: store})
	res := e.Map(context.Background(), Request{Fields: fields("category_name", "brand_name")})
	require.True(t, res.Success)

	tests := map[string]string{"category_name": "category", "brand_name": "brand"}
	for source, target := range tests {
		m, ok := res.MappingFor(source)
		require.True(t, ok, source)
		assert.Equal(t, target, m.TargetField, source)
		assert.Equal(t, models.StrategySemantic, m.Strategy, source)

		entry, ok := store.Get(source)
		require.True(t, ok, source)
		assert.Equal(t, target, entry.TargetField, source)
	}
}

func TestMapDoesNotReuseUnrelatedPattern(t *testing.T) {
	store := learning.NewMemoryStore(models.LearningCacheEntry{
		Pattern: "unit_cost", TargetField: "price", Confidence: 80,
		Strategy: models.StrategySemantic, UsageCount: 50, SuccessRate: 90,
	})
	e := newEngine(t, Options{Store: store})
	res := e.Map(context.Background(), Request{Fields: fields("cost_center")})
	require.True(t, res.Success)

	if m, ok := res.MappingFor("cost_center"); ok {
		assert.NotEqual(t, models.StrategyHistorical, m.Strategy)
	}
	assert.NotContains(t, res.Strategies, models.StrategyHistorical)
}

func TestMapReusesLearnedPattern(t *testing.T) {
	store := learning.NewMemoryStore(models.LearningCacheEntry{
		Pattern: "unit_cost", TargetField: "price", Confidence: 80,
		Strategy: models.StrategySemantic, UsageCount: 50, SuccessRate: 90,
	})
	e := newEngine(t, Options{Store: store})
	res := e.Map(context.Background(), Request{Fields: fields("unit_cost")})

	require.True(t, res.Success)
	require.Len(t, res.Mappings, 1)
	m := res.Mappings[0]
	assert.Equal(t, "price", m.TargetField)
	assert.Equal(t, 65, m.Confidence)
	assert.Equal(t, models.StrategyHistorical, m.Strategy)
	meta, ok := m.Metadata.(models.HistoricalMeta)
	require.True(t, ok)
	assert.Equal(t, 50, meta.UsageCount)

	// 65 is below the learning threshold, so the entry is untouched.
	entry, ok := store.Get("unit_cost")
	require.True(t, ok)
	assert.Equal(t, 50, entry.UsageCount)
}

func TestMapLearnsConfidentMappings(t *testing.T) {
	store := learning.NewMemoryStore()
	e := newEngine(t, Options{Store: store})
	res := e.Map(context.Background(), Request{Fields: fields("Name", "prodcut_pric")})
	require.True(t, res.Success)

	entry, ok := store.Get("name")
	require.True(t, ok)
	assert.Equal(t, "name", entry.TargetField)
	assert.Equal(t, 1, entry.UsageCount)
	assert.Equal(t, models.StrategyExact, entry.Strategy)

	_, ok = store.Get("prodcut_pric")
	assert.False(t, ok, "confidence 68 is below the learning threshold")
}

func TestMapIsIdempotent(t *testing.T) {
	e := newEngine(t, Options{})
	req := Request{SessionID: "s1", Fields: fields("Name", "SKU", "prodcut_pric", "internal_note", "unit_cost")}

	first := e.Map(context.Background(), req)
	second := e.Map(context.Background(), req)
	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.Equal(t, first.Mappings, second.Mappings)
	assert.Equal(t, first.UnmappedFields, second.UnmappedFields)
}

func TestMapKeepsInputOrder(t *testing.T) {
	e := newEngine(t, Options{})
	res := e.Map(context.Background(), Request{Fields: fields("SKU", "internal_note", "Name", "prodcut_pric")})

	var got []string
	for _, m := range res.Mappings {
		got = append(got, m.SourceField)
	}
	assert.Equal(t, []string{"SKU", "Name", "prodcut_pric"}, got)
}

func TestMapEmptyFieldList(t *testing.T) {
	e := newEngine(t, Options{})
	res := e.Map(context.Background(), Request{SessionID: "empty"})

	assert.True(t, res.Success)
	assert.Equal(t, "empty", res.SessionID)
	assert.Empty(t, res.Mappings)
	assert.Empty(t, res.UnmappedFields)
	assert.Zero(t, res.Confidence)
}

func TestMapInvalidRequest(t *testing.T) {
	e := newEngine(t, Options{})
	tests := []struct {
		name   string
		fields []models.SourceField
		errMsg string
	}{
		{"duplicate names", fields("Name", "name"), "duplicate source field"},
		{"empty name", fields("Name", " "), "has no name"},
		{"null percentage", []models.SourceField{{Name: "a", NullPercentage: 120}}, "outside [0,100]"},
		{"data type", []models.SourceField{{Name: "a", DataType: "blob"}}, "unknown data type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Map(context.Background(), Request{Fields: tt.fields})
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.errMsg)
			assert.Empty(t, res.Mappings)
			assert.Len(t, res.UnmappedFields, len(tt.fields))
		})
	}
}

func TestValidateEmptyRegistry(t *testing.T) {
	err := validate(Request{Fields: fields("a")}, &models.Registry{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	e := newEngine(t, Options{Registry: &models.Registry{}})
	res := e.Map(context.Background(), Request{Fields: fields("a")})
	assert.False(t, res.Success)
	assert.Equal(t, []string{"a"}, res.UnmappedFields)
}

type stubStrategy struct {
	tag      models.StrategyTag
	delay    time.Duration
	mappings []models.FieldMapping
	err      error
	panics   bool
	calls    atomic.Int32
}

func (s *stubStrategy) Tag() models.StrategyTag { return s.tag }

func (s *stubStrategy) Run(_ context.Context, _ strategy.Input) (models.StrategyResult, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panics {
		panic("index out of range")
	}
	return models.StrategyResult{Strategy: s.tag, Mappings: s.mappings}, s.err
}

func candidate(source, target string, conf int, tag models.StrategyTag) models.FieldMapping {
	return models.FieldMapping{SourceField: source, TargetField: target, Confidence: conf, Strategy: tag}
}

func TestMapDeadlineDiscardsSlowStrategies(t *testing.T) {
	fast := &stubStrategy{tag: models.StrategyFuzzy, mappings: []models.FieldMapping{
		candidate("title", "name", 70, models.StrategyFuzzy),
	}}
	slow := &stubStrategy{tag: models.StrategyExternal, delay: 500 * time.Millisecond, mappings: []models.FieldMapping{
		candidate("title", "description", 89, models.StrategyExternal),
	}}
	e := newEngine(t, Options{Deadline: 50 * time.Millisecond, Strategies: []strategy.Strategy{fast, slow}})

	start := time.Now()
	res := e.Map(context.Background(), Request{Fields: fields("title")})
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	require.True(t, res.Success)
	require.Len(t, res.Mappings, 1)
	assert.Equal(t, "name", res.Mappings[0].TargetField)
	assert.Equal(t, []models.StrategyTag{models.StrategyFuzzy}, res.Strategies)
}

func TestMapIsolatesStrategyFailures(t *testing.T) {
	good := &stubStrategy{tag: models.StrategyExact, mappings: []models.FieldMapping{
		candidate("Name", "name", 95, models.StrategyExact),
	}}
	panicking := &stubStrategy{tag: models.StrategySemantic, panics: true}
	failing := &stubStrategy{tag: models.StrategyHistorical, err: errors.New("cache offline"), mappings: []models.FieldMapping{
		candidate("Name", "brand", 99, models.StrategyHistorical),
	}}
	e := newEngine(t, Options{Strategies: []strategy.Strategy{good, panicking, failing}})

	res := e.Map(context.Background(), Request{Fields: fields("Name")})
	require.True(t, res.Success)
	require.Len(t, res.Mappings, 1)
	assert.Equal(t, "name", res.Mappings[0].TargetField)
	assert.Equal(t, int32(1), panicking.calls.Load())
}

func TestMapTieBreaksByStrategyPriority(t *testing.T) {
	external := &stubStrategy{tag: models.StrategyExternal, mappings: []models.FieldMapping{
		candidate("col", "brand", 75, models.StrategyExternal),
	}}
	semantic := &stubStrategy{tag: models.StrategySemantic, mappings: []models.FieldMapping{
		candidate("col", "category", 75, models.StrategySemantic),
	}}
	historical := &stubStrategy{tag: models.StrategyHistorical, mappings: []models.FieldMapping{
		candidate("col", "name", 75, models.StrategyHistorical),
	}}
	e := newEngine(t, Options{Strategies: []strategy.Strategy{external, historical, semantic}})

	res := e.Map(context.Background(), Request{Fields: fields("col")})
	require.Len(t, res.Mappings, 1)
	assert.Equal(t, "category", res.Mappings[0].TargetField)
	assert.Equal(t, models.StrategySemantic, res.Mappings[0].Strategy)
}

type countingReasoner struct {
	calls atomic.Int32
	reply string
	cost  float64
}

func (r *countingReasoner) Name() string    { return "counting" }
func (r *countingReasoner) Available() bool { return true }

func (r *countingReasoner) Complete(context.Context, reasoner.Request) (reasoner.Response, error) {
	r.calls.Add(1)
	return reasoner.Response{Content: r.reply, Model: "test", CostUSD: r.cost}, nil
}

func TestMapExhaustedBudgetMatchesDisabledExternal(t *testing.T) {
	req := Request{SessionID: "spent", Fields: fields("Name", "prodcut_pric", "internal_note")}

	disabled := newEngine(t, Options{}).Map(context.Background(), req)

	r := &countingReasoner{reply: `{"mappings":[{"sourceField":"internal_note","targetField":"description","confidence":80}]}`}
	gov := cost.NewGovernor(cost.DefaultCeilingUSD, nil)
	_, err := gov.Charge(context.Background(), "spent", cost.DefaultCeilingUSD)
	require.NoError(t, err)
	exhausted := newEngine(t, Options{Reasoner: r, Governor: gov}).Map(context.Background(), req)

	assert.Equal(t, int32(0), r.calls.Load())
	assert.Equal(t, disabled.Mappings, exhausted.Mappings)
	assert.Equal(t, disabled.UnmappedFields, exhausted.UnmappedFields)
	assert.Zero(t, disabled.Cost)
	assert.InDelta(t, cost.DefaultCeilingUSD, exhausted.Cost, 1e-12)
}

func TestMapUsesExternalWithinBudget(t *testing.T) {
	r := &countingReasoner{
		reply: "```json\n{\"mappings\":[{\"sourceField\":\"internal_note\",\"targetField\":\"description\",\"confidence\":80,\"reasoning\":\"notes are free text\"}]}\n```",
		cost:  0.0003,
	}
	gov := cost.NewGovernor(cost.DefaultCeilingUSD, nil)
	e := newEngine(t, Options{Reasoner: r, Governor: gov})

	res := e.Map(context.Background(), Request{SessionID: "llm", Fields: fields("Name", "internal_note")})
	require.True(t, res.Success)
	assert.Equal(t, int32(1), r.calls.Load())

	m, ok := res.MappingFor("internal_note")
	require.True(t, ok)
	assert.Equal(t, "description", m.TargetField)
	assert.Equal(t, 80, m.Confidence)
	assert.Equal(t, models.StrategyExternal, m.Strategy)
	assert.Equal(t, []models.StrategyTag{models.StrategyExact, models.StrategyExternal}, res.Strategies)
	assert.InDelta(t, 0.0003, res.Cost, 1e-12)
	assert.InDelta(t, 87.5, res.Confidence, 1e-9)

	spent, err := gov.Spent(context.Background(), "llm")
	require.NoError(t, err)
	assert.InDelta(t, 0.0003, spent, 1e-12)
}

func TestMapReportsSessionCost(t *testing.T) {
	r := &countingReasoner{
		reply: `{"mappings":[{"sourceField":"internal_note","targetField":"description","confidence":80}]}`,
		cost:  0.0003,
	}
	e := newEngine(t, Options{Reasoner: r, Governor: cost.NewGovernor(cost.DefaultCeilingUSD, nil)})
	req := Request{SessionID: "reused", Fields: fields("internal_note")}

	first := e.Map(context.Background(), req)
	second := e.Map(context.Background(), req)
	other := e.Map(context.Background(), Request{SessionID: "fresh", Fields: fields("internal_note")})

	assert.InDelta(t, 0.0003, first.Cost, 1e-12)
	assert.InDelta(t, 0.0006, second.Cost, 1e-12)
	assert.InDelta(t, 0.0003, other.Cost, 1e-12)
	assert.Equal(t, int32(3), r.calls.Load())
}

func TestLearn(t *testing.T) {
	store := learning.NewMemoryStore()
	e := newEngine(t, Options{Store: store})

	err := e.Learn(context.Background(), []models.FieldMapping{
		candidate("unit_cost", "PRICE", 50, models.StrategyExternal),
	})
	require.NoError(t, err)
	entry, ok := store.Get("unit_cost")
	require.True(t, ok)
	assert.Equal(t, "price", entry.TargetField)

	res := e.Map(context.Background(), Request{Fields: fields("unit_cost")})
	m, ok := res.MappingFor("unit_cost")
	require.True(t, ok)
	assert.Equal(t, models.StrategyHistorical, m.Strategy)

	err = e.Learn(context.Background(), []models.FieldMapping{candidate("x", "colour", 90, models.StrategyExact)})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestNewRejectsBadMinConfidence(t *testing.T) {
	_, err := New(Options{MinConfidence: 101})
	assert.Error(t, err)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "awaiting", PhaseAwaiting.String())
	assert.Equal(t, "failed", PhaseFailed.String())
	assert.True(t, PhaseDone.Terminal())
	assert.False(t, PhaseAggregating.Terminal())
	assert.Equal(t, "unknown", Phase(42).String())
}
