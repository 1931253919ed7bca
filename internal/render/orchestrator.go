// Package render drives the engine through one job per audio track against a
// single staged copy of the base video.
package render

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eleven-am/reelsync/internal/domain"
	"github.com/eleven-am/reelsync/internal/ffmpeg"
	"github.com/eleven-am/reelsync/internal/filter"
	"github.com/eleven-am/reelsync/internal/metrics"
	"github.com/eleven-am/reelsync/internal/staging"
)

var (
	ErrBusy           = errors.New("render: a run is already active")
	ErrNoBase         = errors.New("render: base video is empty")
	ErrNoTracks       = errors.New("render: no audio tracks")
	ErrBadDuration    = errors.New("render: base video duration must be positive and finite")
	ErrInvalidTrack   = errors.New("render: invalid track")
	ErrPartialFailure = errors.New("render: some tracks failed")
	ErrClosed         = errors.New("render: orchestrator is closed")
)

const (
	BaseName         = "base.mp4"
	outputExt        = ".mp4"
	defaultAudioExt  = ".mp3"
	maxAudioExtBytes = 6
)

// Options configures an Orchestrator. Zero values take defaults.
type Options struct {
	// Builder produces engine arguments per job. Default: DefaultProfile.
	Builder *ffmpeg.CommandBuilder

	// Aspect is the crop target for sources wider than it. Default: 9:16.
	Aspect filter.Aspect

	// MaxDim caps the output height. Default: 1280.
	MaxDim int

	// Policy decides whether failed tracks surface as an error from Run.
	Policy FailurePolicy

	// Logger receives run events. The zero Logger discards them.
	Logger zerolog.Logger

	// OnProgress, when set, is called synchronously after each attempted
	// track.
	OnProgress func(domain.Progress)

	// Now stamps results. Default: time.Now.
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.Builder == nil {
		o.Builder = ffmpeg.NewCommandBuilder(ffmpeg.DefaultProfile)
	}
	if o.Aspect.Num == 0 || o.Aspect.Den == 0 {
		o.Aspect = filter.DefaultAspect
	}
	if o.MaxDim == 0 {
		o.MaxDim = filter.DefaultMaxDim
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Orchestrator owns the engine for the length of a run. At most one run is
// active at a time; concurrent requests are rejected with ErrBusy.
type Orchestrator struct {
	engine domain.Engine
	opts   Options

	busy    atomic.Bool
	retired atomic.Bool
	state   atomic.Int32
}

// New builds an Orchestrator over engine. It panics if engine is nil.
func New(engine domain.Engine, opts Options) *Orchestrator {
	if engine == nil {
		panic("render: engine is required")
	}
	opts.setDefaults()
	return &Orchestrator{engine: engine, opts: opts}
}

// Busy reports whether a run is active.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Retire takes the run slot for good so no later Run can start. It fails
// with ErrBusy while a run is active and with ErrClosed when already retired.
func (o *Orchestrator) Retire() error {
	if !o.busy.CompareAndSwap(false, true) {
		if o.retired.Load() {
			return ErrClosed
		}
		return ErrBusy
	}
	o.retired.Store(true)
	return nil
}

// State returns the current state, or the terminal state of the last run.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Run renders every track against base, in order. The returned report is
// non-nil whenever the run started. The error is non-nil when the base could
// not be staged, when ctx was canceled mid-run, or under PolicyReport when
// any track failed.
func (o *Orchestrator) Run(ctx context.Context, base domain.BaseMedia, tracks []domain.AudioCandidate) (*Report, error) {
	if !o.busy.CompareAndSwap(false, true) {
		if o.retired.Load() {
			return nil, ErrClosed
		}
		metrics.RunsRejected.Inc()
		return nil, ErrBusy
	}
	defer o.busy.Store(false)

	if err := validate(base, tracks); err != nil {
		return nil, err
	}

	jobs := make([]domain.AudioCandidate, len(tracks))
	copy(jobs, tracks)

	report := &Report{RunID: uuid.New().String(), Total: len(jobs)}
	log := o.opts.Logger.With().Str("run_id", report.RunID).Logger()

	start := time.Now()
	metrics.RunsInFlight.Set(1)
	defer func() {
		metrics.RunsInFlight.Set(0)
		metrics.RunDuration.Observe(time.Since(start).Seconds())
		metrics.RunsTotal.WithLabelValues(report.State.String()).Inc()
	}()

	log.Info().Int("tracks", len(jobs)).Int("width", base.Width).Int("height", base.Height).
		Float64("duration", base.Duration).Msg("render run started")

	baseScope := staging.NewScope(o.engine)
	o.setState(log, StateStagingBase)
	if err := baseScope.Stage(ctx, BaseName, base.Data); err != nil {
		o.release(ctx, log, baseScope, -1)
		report.Fatal = &domain.RenderError{
			Kind:  domain.KindEngineUnavailable,
			Index: -1,
			Err:   fmt.Errorf("%w: %w", domain.ErrEngineUnavailable, err),
		}
		report.State = StateFailed
		o.setState(log, StateFailed)
		log.Error().Err(err).Msg("render run failed: could not stage base video")
		return report, report.Fatal
	}

	directive := filter.Plan(base.Width, base.Height, o.opts.Aspect, o.opts.MaxDim)
	log.Debug().Str("directive", directive.Kind.String()).Str("filter", directive.VideoFilter()).Msg("planned video filter")

	for i := range jobs {
		if ctx.Err() != nil {
			report.Canceled = true
			log.Warn().Int("remaining", len(jobs)-i).Msg("render run canceled")
			break
		}

		job := o.prepare(i, &jobs[i], directive)
		out := o.runJob(ctx, log, base, job)

		report.Outcomes = append(report.Outcomes, out)
		if out.OK() {
			report.Results = append(report.Results, *out.Result)
		}
		report.Attempted++
		o.emit(report, out)
	}

	o.setState(log, StateFinalizing)
	o.release(ctx, log, baseScope, -1)

	report.State = StateDone
	o.setState(log, StateDone)
	log.Info().Int("succeeded", report.Succeeded()).Int("attempted", report.Attempted).
		Dur("elapsed", time.Since(start)).Msg("render run finished")

	if report.Canceled {
		return report, ctx.Err()
	}
	if o.opts.Policy == PolicyReport {
		if failed := report.Failures(); len(failed) > 0 {
			errs := make([]error, 0, len(failed))
			for _, f := range failed {
				errs = append(errs, f.Err)
			}
			return report, fmt.Errorf("%w: %d of %d: %w", ErrPartialFailure, len(failed), report.Total, errors.Join(errs...))
		}
	}
	return report, nil
}

func validate(base domain.BaseMedia, tracks []domain.AudioCandidate) error {
	if base.Empty() {
		return ErrNoBase
	}
	if !(base.Duration > 0) || math.IsInf(base.Duration, 0) {
		return fmt.Errorf("%w: %v", ErrBadDuration, base.Duration)
	}
	if len(tracks) == 0 {
		return ErrNoTracks
	}
	for i, t := range tracks {
		if len(t.Data) == 0 {
			return fmt.Errorf("%w: track %d (%s) has no data", ErrInvalidTrack, i, t.ID)
		}
		if err := domain.ValidateWindow(t.StartOffset, base.Duration, t.Duration); err != nil {
			return fmt.Errorf("%w: track %d (%s): offset %.3f with %.3fs of video exceeds %.3fs: %w",
				ErrInvalidTrack, i, t.ID, t.StartOffset, base.Duration, t.Duration, err)
		}
	}
	return nil
}

func (o *Orchestrator) prepare(index int, track *domain.AudioCandidate, directive domain.FilterDirective) domain.RenderJob {
	return domain.RenderJob{
		Index:      index,
		Track:      track,
		Offset:     track.StartOffset,
		Directive:  directive,
		BaseName:   BaseName,
		AudioName:  fmt.Sprintf("audio_%d%s", index, audioExt(track.Name)),
		OutputName: fmt.Sprintf("output_%d%s", index, outputExt),
	}
}

// runJob executes one job and releases its staged files before returning.
func (o *Orchestrator) runJob(ctx context.Context, log zerolog.Logger, base domain.BaseMedia, job domain.RenderJob) (out Outcome) {
	log = log.With().Int("index", job.Index).Str("track", job.Track.ID).Logger()
	out = Outcome{Index: job.Index, TrackID: job.Track.ID}

	start := time.Now()
	scope := staging.NewScope(o.engine)
	scope.Claim(job.AudioName)
	scope.Claim(job.OutputName)

	defer func() {
		o.setState(log, StateCleaningUp)
		o.release(ctx, log, scope, job.Index)

		outcome := "success"
		if out.Err != nil {
			outcome = out.Err.Kind.String()
			log.Warn().Err(out.Err.Err).Str("kind", outcome).Msg("track failed")
		}
		metrics.JobsTotal.WithLabelValues(outcome).Inc()
		metrics.JobDuration.WithLabelValues(job.Directive.Kind.String()).Observe(time.Since(start).Seconds())
	}()

	fail := func(kind domain.ErrorKind, err error) Outcome {
		if ctx.Err() != nil {
			kind = domain.KindCanceled
		}
		out.Err = &domain.RenderError{Kind: kind, Index: job.Index, TrackID: job.Track.ID, Err: err}
		return out
	}

	o.setState(log, StateStagingAudio)
	if err := scope.Stage(ctx, job.AudioName, job.Track.Data); err != nil {
		return fail(domain.KindStaging, err)
	}

	o.setState(log, StateExecuting)
	args := o.opts.Builder.Render(ffmpeg.ParamsFor(job, base.Duration))
	log.Debug().Strs("args", args).Msg("executing job")
	if err := o.engine.Execute(ctx, args); err != nil {
		return fail(domain.KindExecution, err)
	}

	o.setState(log, StateReadingOutput)
	data, err := o.engine.ReadStaged(ctx, job.OutputName)
	if err != nil {
		return fail(domain.KindRead, fmt.Errorf("read %s: %w", job.OutputName, err))
	}
	if len(data) == 0 {
		return fail(domain.KindRead, fmt.Errorf("read %s: empty output", job.OutputName))
	}

	out.Result = &domain.RenderResult{
		ID:            job.Track.ID,
		Name:          job.Track.Name,
		Data:          data,
		VideoDuration: base.Duration,
		Offset:        job.Offset,
		CreatedAt:     o.opts.Now(),
	}
	return out
}

// release unstages a scope and swallows the error. Cleanup runs even when ctx
// is already canceled.
func (o *Orchestrator) release(ctx context.Context, log zerolog.Logger, scope *staging.Scope, index int) {
	if err := scope.Release(context.WithoutCancel(ctx)); err != nil {
		cleanupErr := &domain.RenderError{Kind: domain.KindCleanup, Index: index, Err: err}
		log.Debug().Err(cleanupErr).Msg("cleanup failed")
	}
}

func (o *Orchestrator) emit(report *Report, out Outcome) {
	if o.opts.OnProgress == nil {
		return
	}
	var err error
	if out.Err != nil {
		err = out.Err
	}
	o.opts.OnProgress(domain.Progress{
		RunID:   report.RunID,
		Index:   out.Index,
		TrackID: out.TrackID,
		Done:    report.Attempted,
		Total:   report.Total,
		Err:     err,
	})
}

func (o *Orchestrator) setState(log zerolog.Logger, s State) {
	o.state.Store(int32(s))
	log.Debug().Str("state", s.String()).Msg("state")
}

// audioExt keeps the track's extension so the engine can pick a demuxer from
// the name; anything unusual falls back to a default.
func audioExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > maxAudioExtBytes {
		return defaultAudioExt
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultAudioExt
		}
	}
	return ext
}
