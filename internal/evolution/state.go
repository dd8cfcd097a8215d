package evolution

// State is a position in the evolution state machine.
type State int

const (
	// StateInit is the state before the first generation call.
	StateInit State = iota
	// StateGenerated means a new artifact has been stored.
	StateGenerated
	// StateAnalyzed means the current artifact has a report and verdict.
	StateAnalyzed
	// StateRepairing means a repair call is about to be issued.
	StateRepairing
	// StatePassed is terminal: the current artifact passed the gate.
	StatePassed
	// StateExhausted is terminal: the iteration bound was reached.
	StateExhausted
	// StateAborted is terminal: generation or repair failed, storage
	// failed, or the run was stopped.
	StateAborted
)

var stateNames = map[State]string{
	StateInit:      "init",
	StateGenerated: "generated",
	StateAnalyzed:  "analyzed",
	StateRepairing: "repairing",
	StatePassed:    "passed",
	StateExhausted: "exhausted",
	StateAborted:   "aborted",
}

// String returns the lowercase state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal returns true for states no transition leaves.
func (s State) Terminal() bool {
	return s == StatePassed || s == StateExhausted || s == StateAborted
}
