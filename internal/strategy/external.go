package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/BartekS5/fieldmapper/internal/cost"
	"github.com/BartekS5/fieldmapper/internal/reasoner"
	"github.com/BartekS5/fieldmapper/pkg/logger"
	"github.com/BartekS5/fieldmapper/pkg/models"
)

// External confidence band. Answers from the reasoning service are always
// ranked as less certain than a deterministic match.
const (
	ExternalMin = 40
	ExternalMax = 89

	promptSampleRows   = 3
	promptSampleValues = 3
)

const externalSystemPrompt = `You map columns of an uploaded product file onto a fixed target schema.
Answer with JSON only: {"mappings":[{"sourceField":"...","targetField":"...","confidence":0-100,"reasoning":"...","transformation":"optional hint"}]}.
Use only target field names from the schema. Omit columns that fit no target field.`

// External asks the reasoning service for mappings, within the session budget.
type External struct {
	reasoner reasoner.Reasoner
	governor *cost.Governor
}

func NewExternal(r reasoner.Reasoner, g *cost.Governor) *External {
	return &External{reasoner: r, governor: g}
}

func (*External) Tag() models.StrategyTag { return models.StrategyExternal }

// Enabled reports whether a reasoning service is wired in and configured.
func (x *External) Enabled() bool {
	return x.reasoner != nil && x.reasoner.Available() && x.governor != nil
}

func (x *External) Run(ctx context.Context, in Input) (models.StrategyResult, error) {
	empty := result(x.Tag(), nil)
	if !x.Enabled() || len(in.Fields) == 0 {
		return empty, nil
	}

	remaining, err := x.governor.Remaining(ctx, in.SessionID)
	if err != nil {
		return empty, fmt.Errorf("read session spend: %w", err)
	}
	if remaining <= 0 {
		logger.Debugf("external: session %s has no budget left, skipping", in.SessionID)
		return empty, nil
	}

	prompt, err := buildPrompt(in)
	if err != nil {
		return empty, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := x.reasoner.Complete(ctx, reasoner.Request{
		System:     externalSystemPrompt,
		Prompt:     prompt,
		MaxCostUSD: remaining,
	})
	if errors.Is(err, reasoner.ErrBudgetExceeded) {
		logger.Debugf("external: prompt does not fit remaining budget $%.6f", remaining)
		return empty, nil
	}
	if err != nil {
		logger.WithError(err).Warn("external: reasoning service call failed")
		return empty, nil
	}

	if _, err := x.governor.Charge(ctx, in.SessionID, resp.CostUSD); err != nil {
		logger.WithError(err).Warn("external: failed to record spend")
	}

	mappings, err := parseMappings(resp.Content, in, resp.Model)
	if err != nil {
		logger.WithError(err).Warn("external: could not parse reasoning service answer")
		mappings = nil
	}

	res := result(x.Tag(), mappings)
	res.Cost = resp.CostUSD
	return res, nil
}

type promptPayload struct {
	TargetFields []models.TargetFieldSpec `json:"targetFields"`
	SourceFields []promptSource           `json:"sourceFields"`
	SampleRows   []map[string]string      `json:"sampleRows,omitempty"`
	FileType     string                   `json:"fileType,omitempty"`
}

type promptSource struct {
	Name           string          `json:"name"`
	DataType       models.DataType `json:"dataType"`
	NullPercentage float64         `json:"nullPercentage"`
	SampleValues   []string        `json:"sampleValues,omitempty"`
}

func buildPrompt(in Input) (string, error) {
	payload := promptPayload{
		TargetFields: in.Registry.Fields(),
		FileType:     in.FileType,
	}
	for _, f := range in.Fields {
		samples := f.SampleValues
		if len(samples) > promptSampleValues {
			samples = samples[:promptSampleValues]
		}
		payload.SourceFields = append(payload.SourceFields, promptSource{
			Name:           f.Name,
			DataType:       f.DataType,
			NullPercentage: f.NullPercentage,
			SampleValues:   samples,
		})
	}
	rows := in.SampleRows
	if len(rows) > promptSampleRows {
		rows = rows[:promptSampleRows]
	}
	payload.SampleRows = rows

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return "Map these columns:\n" + string(data), nil
}

type externalMapping struct {
	SourceField    string      `json:"sourceField"`
	TargetField    string      `json:"targetField"`
	Confidence     json.Number `json:"confidence"`
	Reasoning      string      `json:"reasoning"`
	Transformation string      `json:"transformation"`
}

// parseMappings accepts {"mappings":[...]} or a bare array, optionally
// wrapped in markdown fences or prose.
func parseMappings(content string, in Input, model string) ([]models.FieldMapping, error) {
	raw := extractJSON(content)
	if raw == "" {
		return nil, errors.New("no JSON value in answer")
	}

	var items []externalMapping
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, err
		}
	} else {
		var wrapped struct {
			Mappings []externalMapping `json:"mappings"`
		}
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, err
		}
		items = wrapped.Mappings
	}

	sources := make(map[string]string, len(in.Fields))
	for _, f := range in.Fields {
		sources[strings.ToLower(strings.TrimSpace(f.Name))] = f.Name
	}

	seen := make(map[string]bool)
	var out []models.FieldMapping
	for _, it := range items {
		source, ok := sources[strings.ToLower(strings.TrimSpace(it.SourceField))]
		if !ok || seen[source] {
			continue
		}
		target, ok := in.Registry.Lookup(it.TargetField)
		if !ok {
			continue
		}
		seen[source] = true

		rawConf := parseConfidence(it.Confidence)
		reasoning := strings.TrimSpace(it.Reasoning)
		if reasoning == "" {
			reasoning = "suggested by reasoning service"
		}
		out = append(out, models.FieldMapping{
			SourceField: source,
			TargetField: target.Name,
			Confidence:  models.ClampConfidence(rawConf, ExternalMin, ExternalMax),
			Strategy:    models.StrategyExternal,
			Reasoning:   reasoning,
			Metadata: models.ExternalMeta{
				Model:          model,
				Transformation: strings.TrimSpace(it.Transformation),
				RawConfidence:  rawConf,
			},
		})
	}
	return out, nil
}

// parseConfidence reads 0-100 scores as well as 0-1 fractions. Only values
// written with a decimal point or exponent count as fractions, so 1 means 1
// and 1.0 means 100.
func parseConfidence(n json.Number) int {
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	if f > 0 && f <= 1 && strings.ContainsAny(n.String(), ".eE") {
		f *= 100
	}
	return int(math.Round(f))
}

// extractJSON strips markdown fences and returns the first decodable JSON
// object or array in s.
func extractJSON(s string) string {
	s = stripCodeFences(strings.TrimSpace(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		dec.UseNumber()
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return strings.TrimSpace(string(raw))
		}
	}
	return ""
}

func stripCodeFences(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		if strings.HasPrefix(strings.TrimSpace(ln), "```") {
			continue
		}
		out = append(out, ln)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
