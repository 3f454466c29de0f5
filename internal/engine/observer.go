package engine

import "time"

// PhaseStatus reports whether a build phase started or finished.
type PhaseStatus int

const (
	// PhaseStart indicates that a build phase has begun.
	PhaseStart PhaseStatus = iota
	PhaseEnd
)

// Build phases, in order. Prepare writes the generated entry sources,
// Bundle runs the external bundler, Seal writes the remote entry and
// swaps the staging directory live.
const (
	PhasePrepare = "prepare"
	PhaseBundle  = "bundle"
	PhaseSeal    = "seal"
)

// PhaseEvent describes a phase boundary during one build.
type PhaseEvent struct {
	Phase   string
	Status  PhaseStatus
	Deps    int // size of the dependency set being built
	Elapsed time.Duration
	Err     error
}

// PhaseObserver receives phase events emitted during Build. May be nil.
type PhaseObserver func(PhaseEvent)

func (o PhaseObserver) emit(ev PhaseEvent) {
	if o != nil {
		o(ev)
	}
}
