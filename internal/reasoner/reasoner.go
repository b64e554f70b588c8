// Package reasoner talks to external LLM services that can propose field
// mappings when the deterministic strategies run out of ideas. Every call is
// bounded by a spend ceiling supplied by the caller.
package reasoner

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrNotConfigured is returned when no API key or model is set.
	ErrNotConfigured = errors.New("reasoner: not configured")
	// ErrBudgetExceeded is returned before a call whose prompt alone would
	// cost more than the allowed ceiling.
	ErrBudgetExceeded = errors.New("reasoner: budget exceeded")
)

// Request is one completion request.
type Request struct {
	System     string
	Prompt     string
	MaxCostUSD float64
}

// Response is the raw completion plus what it cost.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Reasoner is an external reasoning service.
type Reasoner interface {
	Name() string
	Available() bool
	Complete(ctx context.Context, req Request) (Response, error)
}

// Pricing converts token counts into dollars.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost returns the dollar cost of a call.
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*p.InputPerMTok/1e6 + float64(outputTokens)*p.OutputPerMTok/1e6
}

// EstimateTokens approximates the token count of text at four characters per token.
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(len(text)) / 4))
}

// OutputBudget returns how many output tokens fit into maxCost once the
// prompt is paid for, capped at limit. It fails with ErrBudgetExceeded when
// nothing useful fits.
func (p Pricing) OutputBudget(prompt string, maxCost float64, limit int) (int, error) {
	if maxCost <= 0 {
		return 0, ErrBudgetExceeded
	}
	remaining := maxCost - p.Cost(EstimateTokens(prompt), 0)
	if remaining <= 0 {
		return 0, ErrBudgetExceeded
	}
	if p.OutputPerMTok <= 0 {
		return limit, nil
	}
	n := int(remaining * 1e6 / p.OutputPerMTok)
	if n > limit {
		n = limit
	}
	if n < minOutputTokens {
		return 0, ErrBudgetExceeded
	}
	return n, nil
}

// minOutputTokens is the smallest answer worth paying for.
const minOutputTokens = 64
