package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/BartekS5/fieldmapper/pkg/models"
)

// ExactConfidence is the fixed confidence of a case-insensitive name match.
const ExactConfidence = 95

// Exact maps a source field onto the target field with the same name.
type Exact struct{}

func NewExact() *Exact { return &Exact{} }

func (*Exact) Tag() models.StrategyTag { return models.StrategyExact }

func (e *Exact) Run(ctx context.Context, in Input) (models.StrategyResult, error) {
	var out []models.FieldMapping
	for _, f := range in.Fields {
		target, ok := in.Registry.Lookup(f.Name)
		if !ok {
			continue
		}
		out = append(out, models.FieldMapping{
			SourceField: f.Name,
			TargetField: target.Name,
			Confidence:  ExactConfidence,
			Strategy:    models.StrategyExact,
			Reasoning:   fmt.Sprintf("column name %q equals target field %q", f.Name, target.Name),
			Metadata:    models.ExactMeta{MatchedName: strings.ToLower(strings.TrimSpace(f.Name))},
		})
	}
	return result(e.Tag(), out), nil
}
