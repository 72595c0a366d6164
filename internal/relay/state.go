package relay

// State is the lifecycle state of a relay session.
type State int

const (
	// StateRunning is the normal bidirectional forwarding state.
	StateRunning State = iota
	// StateDraining means an exit was requested or a fatal fault occurred;
	// in-flight work is being flushed and the reader pumps wound down.
	StateDraining
	// StateTerminated is the final state; the relay will not move again.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// transition moves the relay to newState, enforcing the forward-only
// Running -> Draining -> Terminated order.
func (r *Relay) transition(newState State, reason string) {
	r.mu.Lock()
	old := r.state
	if newState < old {
		r.mu.Unlock()
		return
	}
	r.state = newState
	r.mu.Unlock()

	if old != newState {
		r.log.Debug().
			Str("from", old.String()).
			Str("to", newState.String()).
			Str("reason", reason).
			Msg("relay state")
	}
}

// State returns the current relay state.
func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
