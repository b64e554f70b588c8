// Package strategy holds the independent heuristics that propose candidate
// field mappings. Every strategy sees the same input and reports candidates
// with confidences on its own scale; reconciling them is the engine's job.
package strategy

import (
	"context"

	"github.com/BartekS5/fieldmapper/pkg/models"
)

// Input is shared, read-only data handed to every strategy of one run.
type Input struct {
	SessionID  string
	FileType   string
	Fields     []models.SourceField
	SampleRows []map[string]string
	Registry   *models.Registry
}

// Strategy proposes candidate mappings for the source fields of one run.
// Implementations must be safe for concurrent use across runs and must not
// mutate Input.
type Strategy interface {
	Tag() models.StrategyTag
	Run(ctx context.Context, in Input) (models.StrategyResult, error)
}

// result wraps candidates into a StrategyResult with their mean confidence.
func result(tag models.StrategyTag, mappings []models.FieldMapping) models.StrategyResult {
	return models.StrategyResult{
		Strategy:   tag,
		Mappings:   mappings,
		Confidence: models.MeanConfidence(mappings),
	}
}

// targetNames lists the registry field names in declaration order.
func targetNames(r *models.Registry) []string {
	fields := r.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
