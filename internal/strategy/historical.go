package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/BartekS5/fieldmapper/internal/match"
	"github.com/BartekS5/fieldmapper/pkg/logger"
	"github.com/BartekS5/fieldmapper/pkg/models"
)

const (
	// HistoricalLimit is how many cache entries are read per run.
	HistoricalLimit = 100
	// HistoricalThreshold is the similarity a cached pattern must exceed.
	HistoricalThreshold = 0.6
	// HistoricalScale keeps past decisions below fresh heuristics.
	HistoricalScale = 65
)

// CacheReader is the read side of the learning cache.
type CacheReader interface {
	TopEntries(ctx context.Context, limit int) ([]models.LearningCacheEntry, error)
}

// Historical reuses previously confirmed mappings from the learning cache.
type Historical struct {
	cache CacheReader
}

func NewHistorical(cache CacheReader) *Historical {
	return &Historical{cache: cache}
}

func (*Historical) Tag() models.StrategyTag { return models.StrategyHistorical }

func (h *Historical) Run(ctx context.Context, in Input) (models.StrategyResult, error) {
	if h.cache == nil {
		return result(h.Tag(), nil), nil
	}
	entries, err := h.cache.TopEntries(ctx, HistoricalLimit)
	if err != nil {
		return result(h.Tag(), nil), fmt.Errorf("read learning cache: %w", err)
	}

	// Entries pointing at fields the schema no longer has are skipped.
	live := entries[:0:0]
	for _, e := range entries {
		if in.Registry.Has(e.TargetField) {
			live = append(live, e)
			continue
		}
		logger.Debugf("historical: skipping cache entry %q -> %q, target not in schema", e.Pattern, e.TargetField)
	}

	var out []models.FieldMapping
	for _, f := range in.Fields {
		var (
			best  models.LearningCacheEntry
			score float64
		)
		for _, e := range live {
			if s := match.Similarity(f.Name, e.Pattern); s > score {
				best, score = e, s
			}
		}
		if score <= HistoricalThreshold {
			continue
		}
		target, _ := in.Registry.Lookup(best.TargetField)
		out = append(out, models.FieldMapping{
			SourceField: f.Name,
			TargetField: target.Name,
			Confidence:  models.ClampConfidence(int(math.Round(score*HistoricalScale)), 0, 100),
			Strategy:    models.StrategyHistorical,
			Reasoning: fmt.Sprintf("previously mapped %q to %q %d times", best.Pattern, best.TargetField,
				best.UsageCount),
			Metadata: models.HistoricalMeta{
				Pattern:     best.Pattern,
				Similarity:  score,
				UsageCount:  best.UsageCount,
				SuccessRate: best.SuccessRate,
			},
		})
	}
	return result(h.Tag(), out), nil
}
