package domain

import (
	"math"
	"time"
)

// BaseMedia describes the source video shared by every job in a run.
type BaseMedia struct {
	Name     string
	Data     []byte
	Duration float64
	Width    int
	Height   int
}

// Empty reports whether there is nothing to stage.
func (b BaseMedia) Empty() bool {
	return len(b.Data) == 0
}

// AudioCandidate is one audio track under consideration. StartOffset selects
// the window of the track that plays against the base video.
type AudioCandidate struct {
	ID          string
	Name        string
	Data        []byte
	Duration    float64
	StartOffset float64
}

// ValidateWindow checks that a window of length span starting at offset fits
// inside a track of the given duration. A zero duration means the track
// length is unknown and only the lower bound is enforced. Non-finite values
// never fit.
func ValidateWindow(offset, span, duration float64) error {
	if !finite(offset) || !finite(span) || !finite(duration) {
		return ErrInvalidWindow
	}
	if offset < 0 {
		return ErrInvalidWindow
	}
	if duration > 0 && offset+span > duration+windowEpsilon {
		return ErrInvalidWindow
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// windowEpsilon absorbs float noise from slider-driven offsets.
const windowEpsilon = 1e-6

// RenderJob is the unit of work for one candidate. It lives only for the
// duration of a run.
type RenderJob struct {
	Index      int
	Track      *AudioCandidate
	Offset     float64
	Directive  FilterDirective
	BaseName   string
	AudioName  string
	OutputName string
}

// RenderResult is the output of one completed job.
type RenderResult struct {
	ID            string
	Name          string
	Data          []byte
	VideoDuration float64
	Offset        float64
	CreatedAt     time.Time
}

// Release drops the output buffer. Callers own results once a run returns.
func (r *RenderResult) Release() {
	r.Data = nil
}

// Progress is emitted once per attempted track, in index order.
type Progress struct {
	RunID   string
	Index   int
	TrackID string
	Done    int
	Total   int
	Err     error
}
