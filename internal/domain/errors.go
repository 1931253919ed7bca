package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidWindow     = errors.New("selected window does not fit inside the track")
	ErrEngineUnavailable = errors.New("engine unavailable")
)

// ErrorKind classifies a render failure.
type ErrorKind int

const (
	KindEngineUnavailable ErrorKind = iota
	KindStaging
	KindExecution
	KindRead
	KindCleanup
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindEngineUnavailable:
		return "engine_unavailable"
	case KindStaging:
		return "staging"
	case KindExecution:
		return "execution"
	case KindRead:
		return "read"
	case KindCleanup:
		return "cleanup"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Fatal reports whether the kind aborts the whole run.
func (k ErrorKind) Fatal() bool {
	return k == KindEngineUnavailable
}

// RenderError carries the failing step and the track it belongs to. Index is
// -1 for run-level failures.
type RenderError struct {
	Kind    ErrorKind
	Index   int
	TrackID string
	Err     error
}

func (e *RenderError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("track %d (%s): %s: %v", e.Index, e.TrackID, e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from err, reporting false when err carries none.
func KindOf(err error) (ErrorKind, bool) {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}
