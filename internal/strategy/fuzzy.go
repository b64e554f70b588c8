package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/BartekS5/fieldmapper/internal/match"
	"github.com/BartekS5/fieldmapper/pkg/models"
)

const (
	// FuzzyThreshold is the similarity a best match must exceed.
	FuzzyThreshold = 0.7
	// FuzzyScale caps fuzzy confidence below exact matches.
	FuzzyScale = 85
)

// Fuzzy maps each source field onto the most similar target name.
type Fuzzy struct{}

func NewFuzzy() *Fuzzy { return &Fuzzy{} }

func (*Fuzzy) Tag() models.StrategyTag { return models.StrategyFuzzy }

func (fz *Fuzzy) Run(ctx context.Context, in Input) (models.StrategyResult, error) {
	names := targetNames(in.Registry)
	var out []models.FieldMapping
	for _, f := range in.Fields {
		if err := ctx.Err(); err != nil {
			return result(fz.Tag(), out), err
		}
		best := match.BestMatch(f.Name, names)
		if best.Score <= FuzzyThreshold {
			continue
		}
		out = append(out, models.FieldMapping{
			SourceField: f.Name,
			TargetField: best.Name,
			Confidence:  models.ClampConfidence(int(math.Round(best.Score*FuzzyScale)), 0, 100),
			Strategy:    models.StrategyFuzzy,
			Reasoning:   fmt.Sprintf("name %q is %.0f%% similar to %q", f.Name, best.Score*100, best.Name),
			Metadata:    models.FuzzyMeta{Similarity: best.Score},
		})
	}
	return result(fz.Tag(), out), nil
}
