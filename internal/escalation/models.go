package escalation

import "time"

// State is the incident lifecycle state.
type State string

// Incident states. Suppressed and resolved are terminal.
const (
	StateCandidate     State = "candidate"
	StateAssessed      State = "assessed"
	StateEscalated     State = "escalated"
	StateCallTriggered State = "call_triggered"
	StateResolved      State = "resolved"
	StateSuppressed    State = "suppressed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateResolved || s == StateSuppressed
}

// Incident tracks one candidate emergency situation for one callsign.
type Incident struct {
	ID            string    `json:"id"`
	Callsign      string    `json:"callsign"`
	EmergencyType string    `json:"emergency_type"`
	UrgencyLevel  string    `json:"urgency_level"`
	Confidence    float64   `json:"confidence"`
	Summary       string    `json:"summary"`
	State         State     `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Call tracking
	CallID         string    `json:"call_id,omitempty"`
	CallRecipients []string  `json:"call_recipients,omitempty"`
	CallTriggered  time.Time `json:"call_triggered,omitempty"`
	UnknownOutcome bool      `json:"unknown_outcome,omitempty"`
	CallError      string    `json:"call_error,omitempty"`

	// callPublished guards the at-most-once emergency.call publish for
	// this incident, regardless of how often the controller runs.
	callPublished bool
	resolvedAt    time.Time
}

// Config holds the escalation controller settings.
type Config struct {
	EvalInterval      time.Duration
	LookbackMinutes   int
	WindowMinutes     int
	MinConfidence     float64
	CriticalThreshold float64
	HighThreshold     float64
	MediumThreshold   float64
	CallTimeout       time.Duration
	EvictionGrace     time.Duration

	// MaxIncidentAge bounds how long a pre-call incident may stay open
	// without reaching a terminal state. Zero disables the bound.
	MaxIncidentAge time.Duration
}
