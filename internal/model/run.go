package model

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a new run ID. ULIDs sort by creation time.
func NewID() string {
	return ulid.Make().String()
}

// Run status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run mode constants. A declarative run is assembled from a configuration;
// a programmatic run receives already-constructed components.
const (
	ModeDeclarative  = "declarative"
	ModeProgrammatic = "programmatic"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether no further transitions are possible from status.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Run is one ground-state computation, from submission to result.
type Run struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Mode       string          `json:"mode"`
	Algorithm  string          `json:"algorithm"`
	Problem    string          `json:"problem"`
	Config     json.RawMessage `json:"config,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Energy     *float64        `json:"energy,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMS *int            `json:"duration_ms,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}
