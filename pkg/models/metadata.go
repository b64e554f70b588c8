package models

// Metadata carries strategy-specific explanation for a FieldMapping.
// Each strategy has its own variant; the tag tells them apart.
type Metadata interface {
	StrategyTag() StrategyTag
}

// ExactMeta is attached to case-insensitive name matches.
type ExactMeta struct {
	MatchedName string `json:"matchedName"`
}

func (ExactMeta) StrategyTag() StrategyTag { return StrategyExact }

// FuzzyMeta records the raw similarity that produced the confidence.
type FuzzyMeta struct {
	Similarity float64 `json:"similarity"`
}

func (FuzzyMeta) StrategyTag() StrategyTag { return StrategyFuzzy }

// SemanticMeta records which rule fired and why.
type SemanticMeta struct {
	Rule           string `json:"rule"`
	PatternMatched bool   `json:"patternMatched"`
	ContentMatched bool   `json:"contentMatched"`
}

func (SemanticMeta) StrategyTag() StrategyTag { return StrategySemantic }

// HistoricalMeta points back at the learning cache entry that was reused.
type HistoricalMeta struct {
	Pattern     string  `json:"pattern"`
	Similarity  float64 `json:"similarity"`
	UsageCount  int     `json:"usageCount"`
	SuccessRate int     `json:"successRate"`
}

func (HistoricalMeta) StrategyTag() StrategyTag { return StrategyHistorical }

// ExternalMeta carries what the reasoning service said beyond the mapping itself.
type ExternalMeta struct {
	Model          string `json:"model,omitempty"`
	Transformation string `json:"transformation,omitempty"`
	RawConfidence  int    `json:"rawConfidence"`
}

func (ExternalMeta) StrategyTag() StrategyTag { return StrategyExternal }
