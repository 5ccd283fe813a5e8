package dialog

import "time"

// Step is the position of a client in the booking dialog.
type Step string

const (
	StepIdle            Step = "idle"
	StepAwaitingPurpose Step = "awaiting_purpose"
	StepAwaitingConfirm Step = "awaiting_confirm"
	StepAwaitingNewTime Step = "awaiting_new_time"
)

// State is the per-client dialog state. Every non-idle step carries a
// PendingDateTime; a state without one is corrupt and gets reset.
type State struct {
	Step            Step       `json:"step"`
	PendingDateTime *time.Time `json:"pendingDateTime,omitempty"`
	PendingPurpose  string     `json:"pendingPurpose,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// IdleState is the initial state of every client.
func IdleState() State {
	return State{Step: StepIdle}
}

func (s State) pending() (time.Time, bool) {
	if s.PendingDateTime == nil || s.PendingDateTime.IsZero() {
		return time.Time{}, false
	}
	return *s.PendingDateTime, true
}

func awaiting(step Step, at time.Time, purpose string) State {
	return State{Step: step, PendingDateTime: &at, PendingPurpose: purpose}
}
