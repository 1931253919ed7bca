package render

import "github.com/eleven-am/reelsync/internal/domain"

// Outcome is the per-track result of a run. Exactly one of Result and Err is
// set.
type Outcome struct {
	Index   int
	TrackID string
	Result  *domain.RenderResult
	Err     *domain.RenderError
}

// OK reports whether the track produced a result.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Report is everything a run produced. Results holds successful outputs in
// track order; Outcomes holds one entry per attempted track.
type Report struct {
	RunID     string
	State     State
	Total     int
	Attempted int
	Canceled  bool
	Results   []domain.RenderResult
	Outcomes  []Outcome

	// Fatal is set when the run failed before any track was attempted.
	Fatal *domain.RenderError
}

// Failures returns the outcomes that did not produce a result.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Succeeded counts successful tracks.
func (r *Report) Succeeded() int {
	return len(r.Results)
}
