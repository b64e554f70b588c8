package strategy

import (
	"context"
	"fmt"

	"github.com/BartekS5/fieldmapper/internal/match"
	"github.com/BartekS5/fieldmapper/pkg/models"
)

// Semantic confidence bands.
const (
	SemanticBase         = 65
	SemanticNameBonus    = 10
	SemanticContentBonus = 5
	SemanticDenseBonus   = 5
	SemanticMin          = 60
	SemanticMax          = 79

	// denseNullLimit is the null percentage under which a column counts as dense.
	denseNullLimit = 10
)

// Semantic applies the first rule whose name pattern or content matcher fires.
type Semantic struct {
	rules []Rule
}

// NewSemantic keeps rules in the given order. Nil means DefaultRules.
func NewSemantic(rules []Rule) *Semantic {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Semantic{rules: rules}
}

func (*Semantic) Tag() models.StrategyTag { return models.StrategySemantic }

func (s *Semantic) Run(ctx context.Context, in Input) (models.StrategyResult, error) {
	var out []models.FieldMapping
	for _, f := range in.Fields {
		if err := ctx.Err(); err != nil {
			return result(s.Tag(), out), err
		}
		if m, ok := s.apply(f, in.Registry); ok {
			out = append(out, m)
		}
	}
	return result(s.Tag(), out), nil
}

func (s *Semantic) apply(f models.SourceField, reg *models.Registry) (models.FieldMapping, bool) {
	name := match.NormalizeName(f.Name)
	for _, rule := range s.rules {
		target, ok := reg.Lookup(rule.Target)
		if !ok {
			continue
		}
		nameHit := rule.Pattern != nil && rule.Pattern.MatchString(name)
		contentHit := rule.Content != nil && rule.Content(f.SampleValues)
		if !nameHit && !contentHit {
			continue
		}

		conf := SemanticBase
		if nameHit {
			conf += SemanticNameBonus
		}
		if contentHit {
			conf += SemanticContentBonus
		}
		if f.NullPercentage < denseNullLimit {
			conf += SemanticDenseBonus
		}
		return models.FieldMapping{
			SourceField: f.Name,
			TargetField: target.Name,
			Confidence:  models.ClampConfidence(conf, SemanticMin, SemanticMax),
			Strategy:    models.StrategySemantic,
			Reasoning:   fmt.Sprintf("rule %s: %s", rule.Name, rule.Reasoning),
			Metadata: models.SemanticMeta{
				Rule:           rule.Name,
				PatternMatched: nameHit,
				ContentMatched: contentHit,
			},
		}, true
	}
	return models.FieldMapping{}, false
}
