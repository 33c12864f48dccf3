package control

// State is the lifecycle state of a binding.
//
//	Idle -> Resolving -> Reading -> Ready
//	Ready -> Writing -> Committed | RolledBack -> Ready
//
// A failed resolve or read returns to Idle with the cache unchanged.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateReading
	StateReady
	StateWriting
	StateCommitted
	StateRolledBack
)

var stateNames = [...]string{
	"Idle", "Resolving", "Reading", "Ready", "Writing", "Committed", "RolledBack",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// StateFunc observes state transitions.
type StateFunc func(from, to State)
