// Package learning persists confirmed source-pattern -> target-field
// associations so later runs can reuse them. Entries are never deleted.
package learning

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/BartekS5/fieldmapper/pkg/models"
)

// Store is the persistence interface of the learning cache.
type Store interface {
	// TopEntries returns up to limit entries ordered by usage count, highest
	// first, ties broken by pattern.
	TopEntries(ctx context.Context, limit int) ([]models.LearningCacheEntry, error)
	// Upsert creates or updates one entry per item.
	Upsert(ctx context.Context, items []Upsert) error
}

// Upsert is one accepted mapping to fold into the cache.
type Upsert struct {
	Pattern     string
	TargetField string
	Confidence  int
	Strategy    models.StrategyTag
	// Metadata is merged into the entry's metadata, later keys winning.
	Metadata map[string]string
}

// successStep is how far a repeated confirmation moves the success rate.
const successStep = 5

// PatternKey normalizes a source field name into the cache lookup key.
func PatternKey(sourceField string) string {
	return strings.ToLower(strings.TrimSpace(sourceField))
}

// Apply folds u into the existing entry (nil if none) and returns the entry
// to store. An existing entry keeps its target: reuse only grows the usage
// count and moves the success rate toward 100, so concurrent writers on one
// pattern converge on the same entry.
func Apply(existing *models.LearningCacheEntry, u Upsert, now time.Time) models.LearningCacheEntry {
	if existing == nil {
		return models.LearningCacheEntry{
			Pattern:     PatternKey(u.Pattern),
			TargetField: u.TargetField,
			Confidence:  u.Confidence,
			Strategy:    u.Strategy,
			UsageCount:  1,
			SuccessRate: models.ClampConfidence(u.Confidence, 0, 100),
			LastUsedAt:  now,
			Metadata:    mergeMetadata(nil, u.Metadata),
		}
	}

	e := *existing
	e.UsageCount++
	e.SuccessRate = min(100, e.SuccessRate+successStep)
	e.LastUsedAt = now
	e.Metadata = mergeMetadata(e.Metadata, u.Metadata)
	if strings.EqualFold(e.TargetField, u.TargetField) {
		e.Confidence = max(e.Confidence, u.Confidence)
	}
	return e
}

func mergeMetadata(base, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(extra))
	maps.Copy(out, base)
	maps.Copy(out, extra)
	return out
}
