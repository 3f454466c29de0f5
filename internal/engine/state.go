package engine

// State is the build lifecycle of one mode's artifact. Control flow keys
// off this enum; the filesystem is probed exactly once, at construction,
// to seed it.
type State uint8

const (
	// StateIdle means no build has run in this process yet.
	StateIdle State = iota
	// StateBuilding means the single build slot is occupied.
	StateBuilding
	// StateReady means the last build succeeded and its artifact is live.
	StateReady
	// StateFailed means the last build failed; an older artifact may still
	// be on disk and keeps being served.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
