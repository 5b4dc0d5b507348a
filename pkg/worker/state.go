package worker

// State is a position in the session state machine
type State int32

const (
	StateConnecting State = iota
	StateHandshaking
	StateFlushing
	StateRequestingJob
	StateAwaitingJob
	StateExecuting
	StateSendingResult
	StateDisconnected
	StateShuttingDown
)

var stateNames = [...]string{
	StateConnecting:    "connecting",
	StateHandshaking:   "handshaking",
	StateFlushing:      "flushing",
	StateRequestingJob: "requesting_job",
	StateAwaitingJob:   "awaiting_job",
	StateExecuting:     "executing",
	StateSendingResult: "sending_result",
	StateDisconnected:  "disconnected",
	StateShuttingDown:  "shutting_down",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Serving reports whether the worker is taking or running jobs in this state
func (s State) Serving() bool {
	switch s {
	case StateRequestingJob, StateAwaitingJob, StateExecuting, StateSendingResult:
		return true
	}
	return false
}

// States returns every state in declaration order
func States() []State {
	out := make([]State, len(stateNames))
	for i := range out {
		out[i] = State(i)
	}
	return out
}
