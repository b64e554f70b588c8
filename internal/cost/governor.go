// Package cost tracks what a mapping session has spent on the external
// reasoning service and gates further calls once the ceiling is reached.
package cost

import (
	"context"
	"sync"
)

// DefaultCeilingUSD is the per-session spend ceiling.
const DefaultCeilingUSD = 0.001

// Ledger stores the running spend per session.
type Ledger interface {
	Spent(ctx context.Context, session string) (float64, error)
	Add(ctx context.Context, session string, usd float64) (float64, error)
}

// Governor applies a spend ceiling on top of a Ledger. Only the external
// strategy charges it, after its call returns.
type Governor struct {
	ceiling float64
	ledger  Ledger
}

// NewGovernor returns a governor with the given ceiling. A nil ledger means
// an in-memory one.
func NewGovernor(ceiling float64, ledger Ledger) *Governor {
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	return &Governor{ceiling: ceiling, ledger: ledger}
}

func (g *Governor) Ceiling() float64 { return g.ceiling }

// Spent is the total charged to session so far.
func (g *Governor) Spent(ctx context.Context, session string) (float64, error) {
	return g.ledger.Spent(ctx, session)
}

// Remaining is what session may still spend, never negative.
func (g *Governor) Remaining(ctx context.Context, session string) (float64, error) {
	spent, err := g.ledger.Spent(ctx, session)
	if err != nil {
		return 0, err
	}
	return max(0, g.ceiling-spent), nil
}

// Allow reports whether session has any budget left.
func (g *Governor) Allow(ctx context.Context, session string) (bool, error) {
	remaining, err := g.Remaining(ctx, session)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}

// Charge records usd against session and returns the new total.
func (g *Governor) Charge(ctx context.Context, session string, usd float64) (float64, error) {
	if usd <= 0 {
		return g.ledger.Spent(ctx, session)
	}
	return g.ledger.Add(ctx, session, usd)
}

// MemoryLedger keeps spend in process memory.
type MemoryLedger struct {
	mu    sync.Mutex
	spent map[string]float64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{spent: make(map[string]float64)}
}

func (l *MemoryLedger) Spent(_ context.Context, session string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spent[session], nil
}

func (l *MemoryLedger) Add(_ context.Context, session string, usd float64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.spent[session] += usd
	return l.spent[session], nil
}
