package learning

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/BartekS5/fieldmapper/pkg/database"
	"github.com/BartekS5/fieldmapper/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestApply(t *testing.T) {
	created := Apply(nil, Upsert{Pattern: " Unit_Cost ", TargetField: "price", Confidence: 80, Strategy: models.StrategySemantic}, t0)
	assert.Equal(t, models.LearningCacheEntry{
		Pattern:     "unit_cost",
		TargetField: "price",
		Confidence:  80,
		Strategy:    models.StrategySemantic,
		UsageCount:  1,
		SuccessRate: 80,
		LastUsedAt:  t0,
	}, created)

	later := t0.Add(time.Hour)
	same := Apply(&created, Upsert{Pattern: "unit_cost", TargetField: "PRICE", Confidence: 72, Strategy: models.StrategyFuzzy}, later)
	assert.Equal(t, 2, same.UsageCount)
	assert.Equal(t, 85, same.SuccessRate)
	assert.Equal(t, 80, same.Confidence)
	assert.Equal(t, "price", same.TargetField)
	assert.Equal(t, models.StrategySemantic, same.Strategy)
	assert.Equal(t, later, same.LastUsedAt)

	other := Apply(&same, Upsert{Pattern: "unit_cost", TargetField: "compare_at_price", Confidence: 99, Strategy: models.StrategyExternal}, later)
	assert.Equal(t, "price", other.TargetField)
	assert.Equal(t, 80, other.Confidence)
	assert.Equal(t, models.StrategySemantic, other.Strategy)
	assert.Equal(t, 3, other.UsageCount)
	assert.Equal(t, 90, other.SuccessRate)

	// The input entry is not modified.
	assert.Equal(t, 1, created.UsageCount)
}

func TestApplyNeverLowersCounters(t *testing.T) {
	e := models.LearningCacheEntry{Pattern: "title", TargetField: "brand", Confidence: 70, UsageCount: 5, SuccessRate: 90}
	for i, target := range []string{"name", "brand", "name", "sku"} {
		next := Apply(&e, Upsert{Pattern: "title", TargetField: target, Confidence: 95}, t0)
		assert.Equal(t, "brand", next.TargetField)
		assert.Greater(t, next.UsageCount, e.UsageCount, "step %d", i)
		assert.GreaterOrEqual(t, next.SuccessRate, e.SuccessRate, "step %d", i)
		e = next
	}
	assert.Equal(t, 9, e.UsageCount)
	assert.Equal(t, 100, e.SuccessRate)
}

func TestApplyMergesMetadata(t *testing.T) {
	first := Apply(nil, Upsert{Pattern: "Qty", TargetField: "quantity", Confidence: 75,
		Metadata: map[string]string{"sourceField": "Qty", "lastStrategy": "semantic"}}, t0)
	next := Apply(&first, Upsert{Pattern: "QTY", TargetField: "quantity", Confidence: 95,
		Metadata: map[string]string{"lastStrategy": "exact"}}, t0)

	assert.Equal(t, map[string]string{"sourceField": "Qty", "lastStrategy": "exact"}, next.Metadata)
	assert.Equal(t, "semantic", first.Metadata["lastStrategy"])

	plain := Apply(&next, Upsert{Pattern: "qty", TargetField: "quantity"}, t0)
	assert.Equal(t, next.Metadata, plain.Metadata)
}

func TestApplyCapsSuccessRate(t *testing.T) {
	e := &models.LearningCacheEntry{Pattern: "title", TargetField: "name", Confidence: 95, UsageCount: 9, SuccessRate: 98}
	next := Apply(e, Upsert{Pattern: "title", TargetField: "name", Confidence: 95}, t0)
	assert.Equal(t, 100, next.SuccessRate)
	next = Apply(&next, Upsert{Pattern: "title", TargetField: "name", Confidence: 95}, t0)
	assert.Equal(t, 100, next.SuccessRate)
	assert.Equal(t, 11, next.UsageCount)
}

func TestMemoryStoreTopEntries(t *testing.T) {
	s := NewMemoryStore(
		models.LearningCacheEntry{Pattern: "b", TargetField: "name", UsageCount: 5},
		models.LearningCacheEntry{Pattern: "a", TargetField: "sku", UsageCount: 5},
		models.LearningCacheEntry{Pattern: "C", TargetField: "price", UsageCount: 9},
	)
	entries, err := s.TopEntries(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"c", "a", "b"}, patterns(entries))

	entries, err = s.TopEntries(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, patterns(entries))
}

func TestMemoryStoreUpsert(t *testing.T) {
	s := NewMemoryStore()
	s.now = func() time.Time { return t0 }
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Upsert{
		{Pattern: "Title", TargetField: "name", Confidence: 90, Strategy: models.StrategyFuzzy},
		{Pattern: "title", TargetField: "name", Confidence: 95, Strategy: models.StrategyExact},
	}))

	e, ok := s.Get("TITLE")
	require.True(t, ok)
	assert.Equal(t, 2, e.UsageCount)
	assert.Equal(t, 95, e.SuccessRate)
	assert.Equal(t, 95, e.Confidence)
	assert.Equal(t, t0, e.LastUsedAt)
}

type failingStore struct{ MemoryStore }

func (*failingStore) Upsert(context.Context, []Upsert) error { return errors.New("disk full") }

func TestUpdaterRecord(t *testing.T) {
	s := NewMemoryStore()
	u := NewUpdater(s, 0)

	n, err := u.Record(context.Background(), []models.FieldMapping{
		{SourceField: "Name", TargetField: "name", Confidence: 95, Strategy: models.StrategyExact},
		{SourceField: "unit_cost", TargetField: "price", Confidence: 65, Strategy: models.StrategyHistorical},
		{SourceField: "Qty", TargetField: "quantity", Confidence: 70, Strategy: models.StrategySemantic},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok := s.Get("unit_cost")
	assert.False(t, ok)
	e, ok := s.Get("qty")
	require.True(t, ok)
	assert.Equal(t, "quantity", e.TargetField)
	assert.Equal(t, models.StrategySemantic, e.Strategy)
	assert.Equal(t, map[string]string{"sourceField": "Qty", "lastStrategy": "semantic"}, e.Metadata)

	n, err = u.Record(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = NewUpdater(&failingStore{}, 70).Record(context.Background(), []models.FieldMapping{
		{SourceField: "Name", TargetField: "name", Confidence: 95},
	})
	assert.EqualError(t, err, "disk full")
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in          string
		want        string
		placeholder string
	}{
		{"sqlserver", DialectSQLServer, "@p2"},
		{"MSSQL", DialectSQLServer, "@p2"},
		{"postgres", DialectPostgres, "$2"},
		{"pgx", DialectPostgres, "$2"},
		{"sqlite", DialectSQLite, "?"},
	}
	for _, tt := range tests {
		d, err := ParseDialect(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, d.Name)
		assert.Equal(t, tt.placeholder, d.Placeholder(2))
	}

	_, err := ParseDialect("oracle")
	assert.Error(t, err)
}

func TestSelectTop(t *testing.T) {
	assert.Equal(t, "SELECT TOP (5) a, b FROM t ORDER BY a",
		Dialect{Name: DialectSQLServer}.SelectTop("a, b", "t ORDER BY a", 5))
	assert.Equal(t, "SELECT a, b FROM t ORDER BY a LIMIT 5",
		Dialect{Name: DialectPostgres}.SelectTop("a, b", "t ORDER BY a", 5))
}

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := database.ConnectSQL("sqlite", filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewSQLStore(db, Dialect{Name: DialectSQLite}, "")
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestSQLStoreRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	store.now = func() time.Time { return t0 }
	ctx := context.Background()

	// Creating the table twice is fine.
	require.NoError(t, store.EnsureSchema(ctx))

	entries, err := store.TopEntries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, store.Upsert(ctx, []Upsert{
		{Pattern: "Unit_Cost", TargetField: "price", Confidence: 80, Strategy: models.StrategySemantic},
		{Pattern: "title", TargetField: "name", Confidence: 90, Strategy: models.StrategyFuzzy},
		{Pattern: "unit_cost", TargetField: "price", Confidence: 70, Strategy: models.StrategySemantic},
	}))

	entries, err = store.TopEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.LearningCacheEntry{
		Pattern:     "unit_cost",
		TargetField: "price",
		Confidence:  80,
		Strategy:    models.StrategySemantic,
		UsageCount:  2,
		SuccessRate: 85,
		LastUsedAt:  t0,
	}, entries[0])
	assert.Equal(t, "title", entries[1].Pattern)
	assert.Equal(t, 1, entries[1].UsageCount)

	require.NoError(t, store.Upsert(ctx, []Upsert{
		{Pattern: "title", TargetField: "description", Confidence: 60, Strategy: models.StrategyExternal},
	}))
	entries, err = store.TopEntries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "title", entries[0].Pattern)
	assert.Nil(t, entries[0].Metadata)
	assert.Equal(t, "name", entries[0].TargetField)
	assert.Equal(t, 2, entries[0].UsageCount)
	assert.Equal(t, 95, entries[0].SuccessRate)
}

func TestSQLStoreKeepsMetadata(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	u := NewUpdater(store, 0)

	_, err := u.Record(ctx, []models.FieldMapping{
		{SourceField: "Qty", TargetField: "quantity", Confidence: 75, Strategy: models.StrategySemantic},
	})
	require.NoError(t, err)
	_, err = u.Record(ctx, []models.FieldMapping{
		{SourceField: "QTY", TargetField: "quantity", Confidence: 95, Strategy: models.StrategyExact},
	})
	require.NoError(t, err)

	entries, err := store.TopEntries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]string{"sourceField": "QTY", "lastStrategy": "exact"}, entries[0].Metadata)
	assert.Equal(t, 2, entries[0].UsageCount)
}

func TestSQLStoreFeedsHistoricalOrder(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Upsert(ctx, []Upsert{{Pattern: "b", TargetField: "sku", Confidence: 90}}))
	}
	require.NoError(t, store.Upsert(ctx, []Upsert{
		{Pattern: "a", TargetField: "name", Confidence: 90},
		{Pattern: "c", TargetField: "name", Confidence: 90},
	}))

	entries, err := store.TopEntries(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, patterns(entries))
}

func patterns(entries []models.LearningCacheEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Pattern
	}
	return out
}
