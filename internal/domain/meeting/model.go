package meeting

import "time"

// Meeting represents a recorded session with its artifacts.
type Meeting struct {
	ID             string
	Name           string
	URL            string
	Dir            string
	StartedAt      time.Time
	EndedAt        time.Time
	Outcome        State
	AudioPath      string
	AudioDuration  time.Duration
	TranscriptPath string
	SummaryPath    string
	ArchivedTo     string
	ManualLeave    bool
}

// State is a step of the session lifecycle.
type State int

const (
	StateCreated State = iota
	StateInputsDisabled
	StateJoining
	StateJoined
	StateRecording
	StateTimedOut
	StateEarlyExit
	StateInterrupted
	StateCaptureLost
	StateLeft
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateCreated:        "created",
	StateInputsDisabled: "inputs_disabled",
	StateJoining:        "joining",
	StateJoined:         "joined",
	StateRecording:      "recording",
	StateTimedOut:       "timed_out",
	StateEarlyExit:      "early_exit",
	StateInterrupted:    "interrupted",
	StateCaptureLost:    "capture_lost",
	StateLeft:           "left",
	StateDone:           "done",
	StateFailed:         "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, bool) {
	for st, n := range stateNames {
		if n == s {
			return st, true
		}
	}
	return StateFailed, false
}

// SessionPlan is the immutable configuration of one run.
type SessionPlan struct {
	MeetingURL      string
	MaxDuration     time.Duration
	PollInterval    time.Duration
	Confirmations   int
	MonitorPresence bool
}

// SessionResult records what happened during a run.
type SessionResult struct {
	StartedAt time.Time
	EndedAt   time.Time
	// Outcome is the state that ended recording.
	Outcome State
	States  []State

	JoinConfirmed       bool
	LeaveAttempted      bool
	ManualLeaveRequired bool

	AudioPath     string
	AudioSamples  int
	AudioDuration time.Duration
	Warnings      []string
}

// Reached reports whether the run passed through st.
func (r *SessionResult) Reached(st State) bool {
	for _, s := range r.States {
		if s == st {
			return true
		}
	}
	return false
}

// Last returns the most recent state.
func (r *SessionResult) Last() State {
	if len(r.States) == 0 {
		return StateCreated
	}
	return r.States[len(r.States)-1]
}
