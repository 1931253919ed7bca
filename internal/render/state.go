package render

import "fmt"

// State is the orchestrator's position in a run.
type State int32

const (
	StateIdle State = iota
	StateStagingBase
	StateStagingAudio
	StateExecuting
	StateReadingOutput
	StateCleaningUp
	StateFinalizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStagingBase:
		return "staging_base"
	case StateStagingAudio:
		return "staging_audio"
	case StateExecuting:
		return "executing"
	case StateReadingOutput:
		return "reading_output"
	case StateCleaningUp:
		return "cleaning_up"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// FailurePolicy selects how per-track failures reach the caller.
type FailurePolicy int

const (
	// PolicyOmit drops failed tracks from Results and reports success.
	PolicyOmit FailurePolicy = iota
	// PolicyReport also returns ErrPartialFailure when any track failed.
	PolicyReport
)

func (p FailurePolicy) String() string {
	switch p {
	case PolicyOmit:
		return "omit"
	case PolicyReport:
		return "report"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParsePolicy maps "omit" and "report" to a policy.
func ParsePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "omit", "":
		return PolicyOmit, nil
	case "report":
		return PolicyReport, nil
	default:
		return PolicyOmit, fmt.Errorf("unknown failure policy %q (want omit or report)", s)
	}
}
