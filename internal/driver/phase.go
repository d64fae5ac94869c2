package driver

import "fmt"

// Phase is the lifecycle state of a Driver.
type Phase string

const (
	PhaseInit                  Phase = "INIT"
	PhaseEnumeratePriorOutputs Phase = "ENUMERATE_PRIOR_OUTPUTS"
	PhaseWalking               Phase = "WALKING"
	PhaseReconciling           Phase = "RECONCILING"
	PhaseReported              Phase = "REPORTED"

	// PhaseAborted is entered when a fatal error stops the run early.
	PhaseAborted Phase = "ABORTED"
)

// IsTerminal reports whether no further transition is possible.
func IsTerminal(p Phase) bool {
	return p == PhaseReported || p == PhaseAborted
}

func isAllowedTransition(from, to Phase) bool {
	if to == PhaseAborted {
		return !IsTerminal(from)
	}
	switch from {
	case PhaseInit:
		return to == PhaseEnumeratePriorOutputs
	case PhaseEnumeratePriorOutputs:
		return to == PhaseWalking
	case PhaseWalking:
		return to == PhaseReconciling
	case PhaseReconciling:
		return to == PhaseReported
	default:
		return false
	}
}

// transition moves d from the expected phase to the next one.
func (d *Driver) transition(from, to Phase) error {
	if d.phase != from {
		return fmt.Errorf("invalid transition: expected %s, got %s", from, d.phase)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", from, to)
	}
	d.phase = to
	return nil
}

func (d *Driver) abort() {
	if !IsTerminal(d.phase) {
		d.phase = PhaseAborted
	}
}
