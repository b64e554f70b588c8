package engine

// Phase is the stage a mapping request is in.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDispatching
	PhaseAwaiting
	PhaseAggregating
	PhasePersisting
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDispatching:
		return "dispatching"
	case PhaseAwaiting:
		return "awaiting"
	case PhaseAggregating:
		return "aggregating"
	case PhasePersisting:
		return "persisting"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition follows p.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}
