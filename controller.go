// Package reelsync renders one short video against many candidate audio
// tracks with ffmpeg.
//
// A Controller stages the base video once, then runs one job per track: the
// track is staged, ffmpeg muxes the selected window of audio under the video,
// and the output is read back and released. Portrait sources are stream
// copied; wider sources are scaled and center cropped to 9:16.
//
// # Basic Usage
//
//	eng, err := reelsync.NewExecEngine(ctx, reelsync.ExecOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	controller := reelsync.NewController(reelsync.Options{Engine: eng})
//	defer controller.Close()
//
//	base, _ := controller.LoadBase(ctx, "clip.mp4")
//	sess := reelsync.NewSession(base)
//	id, _ := sess.Add(track)
//	_ = sess.SetOffset(id, 12.5)
//
//	report, err := controller.Render(ctx, sess)
//
// # Runs
//
// Only one run may be active per Controller. A second call while a run is in
// flight fails with ErrBusy. A track that fails is skipped; under
// PolicyReport the run also returns ErrPartialFailure.
package reelsync

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/eleven-am/reelsync/internal/capability"
	"github.com/eleven-am/reelsync/internal/domain"
	"github.com/eleven-am/reelsync/internal/engine"
	"github.com/eleven-am/reelsync/internal/ffmpeg"
	"github.com/eleven-am/reelsync/internal/filter"
	"github.com/eleven-am/reelsync/internal/probe"
	"github.com/eleven-am/reelsync/internal/render"
	"github.com/eleven-am/reelsync/internal/session"
)

type (
	// Engine stages named byte blobs and runs ffmpeg over them. Implementations
	// need not be re-entrant; the Controller never overlaps calls.
	Engine = domain.Engine

	// BaseMedia is the source video with its probed dimensions and duration.
	BaseMedia = domain.BaseMedia

	// AudioCandidate is one track and the offset of the window that plays
	// against the video.
	AudioCandidate = domain.AudioCandidate

	// RenderResult is one rendered video. Call Release to drop its buffer.
	RenderResult = domain.RenderResult

	// RenderError describes a failed track, or a fatal run failure when
	// Index is negative.
	RenderError = domain.RenderError

	ErrorKind     = domain.ErrorKind
	Progress      = domain.Progress
	Report        = render.Report
	Outcome       = render.Outcome
	State         = render.State
	FailurePolicy = render.FailurePolicy
	Session       = session.Session
	EncodeProfile = ffmpeg.EncodeProfile
	Aspect        = filter.Aspect
	ExecOptions   = engine.ExecOptions
)

const (
	PolicyOmit   = render.PolicyOmit
	PolicyReport = render.PolicyReport

	KindEngineUnavailable = domain.KindEngineUnavailable
	KindStaging           = domain.KindStaging
	KindExecution         = domain.KindExecution
	KindRead              = domain.KindRead
	KindCleanup           = domain.KindCleanup
	KindCanceled          = domain.KindCanceled
)

var (
	ErrBusy              = render.ErrBusy
	ErrNoBase            = render.ErrNoBase
	ErrNoTracks          = render.ErrNoTracks
	ErrBadDuration       = render.ErrBadDuration
	ErrInvalidTrack      = render.ErrInvalidTrack
	ErrPartialFailure    = render.ErrPartialFailure
	ErrClosed            = render.ErrClosed
	ErrEngineUnavailable = domain.ErrEngineUnavailable
	ErrInvalidWindow     = domain.ErrInvalidWindow
	ErrSessionFrozen     = session.ErrSessionFrozen
	ErrTrackNotFound     = session.ErrTrackNotFound
)

// KindOf returns the failure class of err, if it carries one.
func KindOf(err error) (ErrorKind, bool) {
	return domain.KindOf(err)
}

// NewSession starts an empty track list over base.
func NewSession(base BaseMedia) *Session {
	return session.New(base)
}

// NewExecEngine checks that the ffmpeg binary has the encoders the default
// profile needs, then creates an engine with its own staging directory.
func NewExecEngine(ctx context.Context, opts ExecOptions) (Engine, error) {
	binary := opts.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	if err := capability.Check(ctx, binary, ffmpeg.DefaultProfile); err != nil {
		return nil, err
	}
	eng, err := engine.NewExec(opts)
	if err != nil {
		return nil, err
	}
	return eng, nil
}

// Options configures the Controller.
type Options struct {
	// Engine is required. The Controller takes ownership and closes it in
	// Close when it implements io.Closer.
	Engine Engine

	// Logger receives run and engine events. Default: disabled.
	Logger *zerolog.Logger

	// Policy selects whether failed tracks make Render return an error.
	// Default: PolicyOmit.
	Policy FailurePolicy

	// MaxDim is the height cap for scaled output. Default: 1280.
	MaxDim int

	// Aspect is the target display aspect. Default: 9:16.
	Aspect Aspect

	// Profile overrides the re-encode settings. Default: libx264 ultrafast
	// at CRF 28 with AAC audio.
	Profile *EncodeProfile

	// FFprobe is the probe binary used by LoadBase and LoadTrack.
	// Default: "ffprobe".
	FFprobe string

	// OnProgress is called once per attempted track, in order, on the
	// rendering goroutine.
	OnProgress func(Progress)
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	if o.MaxDim == 0 {
		o.MaxDim = filter.DefaultMaxDim
	}
	if o.Aspect.Num == 0 || o.Aspect.Den == 0 {
		o.Aspect = filter.DefaultAspect
	}
	if o.Profile == nil {
		p := ffmpeg.DefaultProfile
		o.Profile = &p
	}
	if o.FFprobe == "" {
		o.FFprobe = "ffprobe"
	}
}

func (o *Options) validate() {
	if o.Engine == nil {
		panic("reelsync: Engine is required")
	}
	if o.MaxDim < 0 {
		panic("reelsync: MaxDim must not be negative")
	}
}

// Controller is the entry point for rendering. It is safe for concurrent
// use, but runs never overlap.
type Controller struct {
	opts   Options
	engine Engine
	orch   *render.Orchestrator
	prober *probe.Prober
}

// NewController wires the rendering pipeline around opts.Engine.
// It panics if Engine is nil.
func NewController(opts Options) *Controller {
	opts.validate()
	opts.setDefaults()

	observed := engine.NewObserved(opts.Engine, *opts.Logger)

	orch := render.New(observed, render.Options{
		Builder:    ffmpeg.NewCommandBuilder(*opts.Profile),
		Aspect:     opts.Aspect,
		MaxDim:     opts.MaxDim,
		Policy:     opts.Policy,
		Logger:     opts.Logger.With().Str("component", "render").Logger(),
		OnProgress: opts.OnProgress,
	})

	return &Controller{
		opts:   opts,
		engine: observed,
		orch:   orch,
		prober: probe.NewProber(opts.FFprobe),
	}
}

// LoadBase probes a video file and reads it into memory.
func (c *Controller) LoadBase(ctx context.Context, path string) (BaseMedia, error) {
	return c.prober.LoadBase(ctx, path)
}

// LoadTrack probes an audio file and reads it into memory. The candidate has
// no ID until it is added to a Session.
func (c *Controller) LoadTrack(ctx context.Context, path string) (AudioCandidate, error) {
	return c.prober.LoadTrack(ctx, path)
}

// Render runs every track in sess. The session rejects edits until the run
// returns.
func (c *Controller) Render(ctx context.Context, sess *Session) (*Report, error) {
	base, tracks, unfreeze, err := sess.Freeze()
	if err != nil {
		return nil, err
	}
	defer unfreeze()

	return c.orch.Run(ctx, base, tracks)
}

// RenderTracks runs tracks against base without a Session.
func (c *Controller) RenderTracks(ctx context.Context, base BaseMedia, tracks []AudioCandidate) (*Report, error) {
	return c.orch.Run(ctx, base, tracks)
}

// Busy reports whether a run is active.
func (c *Controller) Busy() bool {
	return c.orch.Busy()
}

// State is the current run state, or the terminal state of the last run.
func (c *Controller) State() State {
	return c.orch.State()
}

// Close disposes the engine. It fails with ErrBusy while a run is active;
// once it succeeds every later Render fails with ErrClosed. Closing twice is
// a no-op.
func (c *Controller) Close() error {
	if err := c.orch.Retire(); err != nil {
		if errors.Is(err, ErrClosed) {
			return nil
		}
		return err
	}
	if closer, ok := c.engine.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close engine: %w", err)
		}
	}
	return nil
}
