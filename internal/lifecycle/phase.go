// Package lifecycle drives a chat page through its interaction phases and
// detects when the backend workflow signals that the conversation is over.
package lifecycle

import "errors"

// Phase is the current step of the visitor-facing interaction.
type Phase int

const (
	// PhaseWelcome is the initial phase: only the welcome surface is shown.
	PhaseWelcome Phase = iota
	// PhaseActive means the chat is open and accepting input.
	PhaseActive
	// PhaseCompleted is the sub-state of Active entered once the completion
	// marker has been seen. Input is locked and the end control is visible.
	PhaseCompleted
	// PhaseClosed is terminal: the thank-you surface is shown.
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseWelcome:
		return "welcome"
	case PhaseActive:
		return "active"
	case PhaseCompleted:
		return "completed"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IsActive reports whether the chat surface is open, completed or not.
func (p Phase) IsActive() bool {
	return p == PhaseActive || p == PhaseCompleted
}

var (
	// ErrInvalidTransition is returned when an action is not reachable from
	// the current phase.
	ErrInvalidTransition = errors.New("lifecycle: invalid phase transition")
	// ErrDetectorSpent is returned when arming a detector that already disarmed.
	ErrDetectorSpent = errors.New("lifecycle: detector already disarmed")
	// ErrStopped is returned when posting work to a controller whose loop exited.
	ErrStopped = errors.New("lifecycle: controller stopped")
)
