package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DataType is the primitive type inferred for a source column.
type DataType string

const (
	TypeString  DataType = "string"
	TypeNumber  DataType = "number"
	TypeBoolean DataType = "boolean"
	TypeDate    DataType = "date"
)

// Valid reports whether t is one of the known primitive types.
func (t DataType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDate:
		return true
	}
	return false
}

// StrategyTag names the heuristic that produced a mapping.
type StrategyTag string

const (
	StrategyExact      StrategyTag = "exact"
	StrategyFuzzy      StrategyTag = "fuzzy"
	StrategySemantic   StrategyTag = "semantic"
	StrategyHistorical StrategyTag = "historical"
	StrategyExternal   StrategyTag = "external"
)

// Priority orders strategies for tie-breaks. Lower wins.
func (s StrategyTag) Priority() int {
	switch s {
	case StrategyExact:
		return 0
	case StrategyFuzzy:
		return 1
	case StrategySemantic:
		return 2
	case StrategyHistorical:
		return 3
	case StrategyExternal:
		return 4
	default:
		return 5
	}
}

// SourceField describes one column found in an uploaded file.
type SourceField struct {
	Name           string   `json:"name"`
	DataType       DataType `json:"dataType"`
	SampleValues   []string `json:"sampleValues,omitempty"`
	NullPercentage float64  `json:"nullPercentage"`
}

// FieldMapping is one proposed (source -> target) association.
type FieldMapping struct {
	SourceField string      `json:"sourceField"`
	TargetField string      `json:"targetField"`
	Confidence  int         `json:"confidence"`
	Strategy    StrategyTag `json:"strategyTag"`
	Reasoning   string      `json:"reasoning"`
	Metadata    Metadata    `json:"metadata,omitempty"`
}

// ClampConfidence bounds c to [lo, hi].
func ClampConfidence(c, lo, hi int) int {
	if c < lo {
		return lo
	}
	if c > hi {
		return hi
	}
	return c
}

// StrategyResult is what a single strategy hands back to the executor.
type StrategyResult struct {
	Strategy   StrategyTag    `json:"strategyTag"`
	Mappings   []FieldMapping `json:"mappings"`
	Confidence float64        `json:"confidence"`
	Elapsed    time.Duration  `json:"elapsed"`
	Cost       float64        `json:"cost,omitempty"`
	Err        error          `json:"-"`
}

// MeanConfidence returns the arithmetic mean of the mapping confidences, or 0.
func MeanConfidence(mappings []FieldMapping) float64 {
	if len(mappings) == 0 {
		return 0
	}
	total := 0
	for _, m := range mappings {
		total += m.Confidence
	}
	return float64(total) / float64(len(mappings))
}

// MappingResult is the final answer returned to the caller.
type MappingResult struct {
	Success        bool           `json:"success"`
	SessionID      string         `json:"sessionId"`
	Mappings       []FieldMapping `json:"mappings"`
	UnmappedFields []string       `json:"unmappedFields"`
	Confidence     float64        `json:"confidence"`
	Elapsed        time.Duration  `json:"elapsed"`
	Strategies     []StrategyTag  `json:"strategies"`
	// Cost is the session's cumulative external spend in USD.
	Cost           float64        `json:"cost"`
	Error          string         `json:"error,omitempty"`
}

// MappingFor returns the accepted mapping for a source field, if any.
func (r MappingResult) MappingFor(source string) (FieldMapping, bool) {
	for _, m := range r.Mappings {
		if strings.EqualFold(m.SourceField, source) {
			return m, true
		}
	}
	return FieldMapping{}, false
}

// ApplyMappings renames the columns of a raw row to their mapped target names.
// Columns without an accepted mapping are dropped.
func ApplyMappings(row map[string]string, mappings []FieldMapping) map[string]string {
	out := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if val, ok := row[m.SourceField]; ok {
			out[m.TargetField] = val
		}
	}
	return out
}

// String renders the result as indented JSON, mostly for the CLI.
func (r MappingResult) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf("MappingResult{success=%v, mappings=%d}", r.Success, len(r.Mappings))
	}
	return string(data)
}
