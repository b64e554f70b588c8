package models

import "time"

// LearningCacheEntry is a persisted source-pattern -> target-field association.
// Entries are created on the first qualifying mapping and only updated afterwards.
type LearningCacheEntry struct {
	Pattern     string            `json:"sourceFieldPattern" bson:"_id"`
	TargetField string            `json:"targetField" bson:"targetField"`
	Confidence  int               `json:"confidence" bson:"confidence"`
	Strategy    StrategyTag       `json:"strategyTag" bson:"strategyTag"`
	UsageCount  int               `json:"usageCount" bson:"usageCount"`
	SuccessRate int               `json:"successRate" bson:"successRate"`
	LastUsedAt  time.Time         `json:"lastUsedAt" bson:"lastUsedAt"`
	Metadata    map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}
