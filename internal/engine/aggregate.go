package engine

import (
	"sort"
	"strings"

	"github.com/BartekS5/fieldmapper/pkg/models"
)

// DefaultMinConfidence is the lowest confidence accepted into a result.
const DefaultMinConfidence = 60

type aggregate struct {
	mappings   []models.FieldMapping
	unmapped   []string
	strategies []models.StrategyTag
	confidence float64
	cost       float64
}

// reconcile picks at most one candidate per source field: highest confidence
// first, ties by strategy priority. Output follows the order of fields.
func reconcile(fields []models.SourceField, results []models.StrategyResult, minConfidence int) aggregate {
	groups := make(map[string][]models.FieldMapping, len(fields))
	var agg aggregate
	for _, r := range results {
		agg.cost += r.Cost
		if r.Err != nil {
			continue
		}
		for _, m := range r.Mappings {
			key := strings.ToLower(m.SourceField)
			if m.Strategy == "" {
				m.Strategy = r.Strategy
			}
			m.Confidence = models.ClampConfidence(m.Confidence, 0, 100)
			groups[key] = append(groups[key], m)
		}
	}

	contributed := make(map[models.StrategyTag]bool)
	agg.mappings = []models.FieldMapping{}
	agg.unmapped = []string{}
	for _, f := range fields {
		candidates := groups[strings.ToLower(f.Name)]
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Confidence != candidates[j].Confidence {
				return candidates[i].Confidence > candidates[j].Confidence
			}
			return candidates[i].Strategy.Priority() < candidates[j].Strategy.Priority()
		})
		if len(candidates) == 0 || candidates[0].Confidence < minConfidence {
			agg.unmapped = append(agg.unmapped, f.Name)
			continue
		}
		best := candidates[0]
		best.SourceField = f.Name
		agg.mappings = append(agg.mappings, best)
		contributed[best.Strategy] = true
	}

	agg.confidence = models.MeanConfidence(agg.mappings)
	for tag := range contributed {
		agg.strategies = append(agg.strategies, tag)
	}
	sort.Slice(agg.strategies, func(i, j int) bool {
		return agg.strategies[i].Priority() < agg.strategies[j].Priority()
	})
	if agg.strategies == nil {
		agg.strategies = []models.StrategyTag{}
	}
	return agg
}
