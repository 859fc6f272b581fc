package crawler

// State is a crawl driver state.
type State string

// Driver states.
const (
	StateStart      State = "START"
	StateFetching   State = "FETCHING"
	StateExtracting State = "EXTRACTING"
	StateWriting    State = "WRITING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

var transitions = map[State][]State{
	StateStart:      {StateFetching},
	StateFetching:   {StateExtracting, StateFailed},
	StateExtracting: {StateWriting, StateFailed},
	StateWriting:    {StateFetching, StateDone, StateFailed},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether to is a legal successor of s.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Next returns the state following s once the work for s has finished.
// failed reports whether that work returned an error; hasNext whether the
// page just written carried a next-page link. Terminal states are absorbing.
func Next(s State, failed, hasNext bool) State {
	switch s {
	case StateStart:
		return StateFetching
	case StateFetching:
		if failed {
			return StateFailed
		}
		return StateExtracting
	case StateExtracting:
		if failed {
			return StateFailed
		}
		return StateWriting
	case StateWriting:
		switch {
		case failed:
			return StateFailed
		case hasNext:
			return StateFetching
		default:
			return StateDone
		}
	default:
		return s
	}
}
