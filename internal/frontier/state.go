package frontier

import "fmt"

// Mode selects how a run uses the frontier.
type Mode int

const (
	// ModeLeveled crawls Pending level by level.
	ModeLeveled Mode = iota
	// ModeSeeding processes one batch of seed titles and stops.
	ModeSeeding
)

// Phase is the coarse state of the frontier state machine.
type Phase string

// Phases of a run.
const (
	PhaseSeeding  Phase = "seeding"
	PhaseLeveled  Phase = "leveled"
	PhaseTerminal Phase = "terminal"
)

// Reason explains why a run reached the terminal phase.
type Reason string

// Terminal reasons.
const (
	ReasonNone      Reason = ""
	ReasonExhausted Reason = "exhausted"
	ReasonMaxLevels Reason = "max-levels"
	ReasonCapacity  Reason = "capacity"
	ReasonSeeded    Reason = "seeded"
)

// State is the current position in the state machine.
type State struct {
	Phase  Phase
	Level  int
	Reason Reason
}

// Terminal reports whether the run is over.
func (s State) Terminal() bool {
	return s.Phase == PhaseTerminal
}

func (s State) String() string {
	switch s.Phase {
	case PhaseLeveled:
		return fmt.Sprintf("leveled(%d)", s.Level)
	case PhaseTerminal:
		return fmt.Sprintf("terminal(%s)", s.Reason)
	default:
		return string(s.Phase)
	}
}

// Counts holds the sizes of the frontier sets.
type Counts struct {
	Crawled     int `json:"crawled"`
	Pending     int `json:"pending"`
	NextPending int `json:"next_pending"`
	Discarded   int `json:"discarded"`
	Redirected  int `json:"redirected"`
	Held        int `json:"held"`
	PageIDs     int `json:"page_ids"`
}
