// Command reelsync renders a video once per audio track and writes the
// results to an output directory.
//
//	reelsync [flags] <video> <audio[@offset]>...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/eleven-am/reelsync"
	"github.com/eleven-am/reelsync/internal/capability"
	"github.com/eleven-am/reelsync/internal/config"
	"github.com/eleven-am/reelsync/internal/ffmpeg"
	"github.com/eleven-am/reelsync/internal/logging"
	"github.com/eleven-am/reelsync/internal/metrics"
	"github.com/eleven-am/reelsync/internal/output"
	"github.com/eleven-am/reelsync/internal/render"
)

var version = "0.1.0-dev"

type flags struct {
	outputDir   string
	policy      string
	maxDim      int
	metricsFile string
	checkOnly   bool
	showVersion bool
}

type trackArg struct {
	path   string
	offset float64
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "reelsync: %v\n", err)
		os.Exit(1)
	}

	f, args, err := parseFlags(os.Args[1:], cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reelsync: %v\n", err)
		os.Exit(2)
	}
	if f.showVersion {
		fmt.Println("reelsync v" + version)
		return
	}

	log := logging.New(cfg.LogLevel, cfg.Development())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.checkOnly {
		if err := capability.Check(ctx, cfg.FFmpeg, ffmpeg.DefaultProfile); err != nil {
			log.Error().Err(err).Msg("ffmpeg check failed")
			os.Exit(1)
		}
		log.Info().Str("ffmpeg", cfg.FFmpeg).Msg("ffmpeg has the required encoders")
		return
	}

	metrics.Initialize()
	code := run(ctx, log, cfg, f, args)
	if f.metricsFile != "" {
		if err := prometheus.WriteToTextfile(f.metricsFile, prometheus.DefaultGatherer); err != nil {
			log.Warn().Err(err).Str("path", f.metricsFile).Msg("write metrics")
		}
	}
	if code != 0 {
		stop()
		os.Exit(code)
	}
}

func parseFlags(argv []string, cfg config.Config) (flags, []string, error) {
	f := flags{
		outputDir: cfg.OutputDir,
		policy:    cfg.FailurePolicy,
		maxDim:    cfg.MaxDim,
	}

	fs := flag.NewFlagSet("reelsync", flag.ContinueOnError)
	fs.StringVar(&f.outputDir, "out", f.outputDir, "Directory for rendered videos")
	fs.StringVar(&f.policy, "policy", f.policy, "Failure policy: omit | report")
	fs.IntVar(&f.maxDim, "max-dim", f.maxDim, "Height cap for scaled output")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	fs.BoolVar(&f.checkOnly, "check", false, "Check ffmpeg encoders and exit")
	fs.BoolVar(&f.showVersion, "version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: reelsync [flags] <video> <audio[@offset]>...")
		fs.PrintDefaults()
	}

	if err := fs.Parse(argv); err != nil {
		return flags{}, nil, err
	}
	if f.maxDim <= 0 {
		return flags{}, nil, fmt.Errorf("-max-dim must be positive, got %d", f.maxDim)
	}
	if _, err := render.ParsePolicy(f.policy); err != nil {
		return flags{}, nil, err
	}
	if !f.checkOnly && !f.showVersion && fs.NArg() < 2 {
		fs.Usage()
		return flags{}, nil, errors.New("need a video and at least one audio track")
	}
	return f, fs.Args(), nil
}

// parseTrackArg splits "song.mp3@12.5" into a path and an offset in seconds.
// When the text after the last "@" is not a number the whole argument is a
// path. A numeric suffix that is not finite is an error.
func parseTrackArg(s string) (trackArg, error) {
	i := strings.LastIndex(s, "@")
	if i < 0 {
		return trackArg{path: s}, nil
	}
	offset, err := strconv.ParseFloat(s[i+1:], 64)
	if err != nil {
		return trackArg{path: s}, nil
	}
	if math.IsNaN(offset) || math.IsInf(offset, 0) {
		return trackArg{}, fmt.Errorf("bad offset in %q: not a finite number", s)
	}
	if i == 0 {
		return trackArg{}, fmt.Errorf("missing path in %q", s)
	}
	return trackArg{path: s[:i], offset: offset}, nil
}

func run(ctx context.Context, log zerolog.Logger, cfg config.Config, f flags, args []string) int {
	policy, _ := render.ParsePolicy(f.policy)

	eng, err := reelsync.NewExecEngine(ctx, reelsync.ExecOptions{Binary: cfg.FFmpeg, Dir: cfg.StagingDir})
	if err != nil {
		log.Error().Err(err).Msg("engine unavailable")
		return 1
	}

	c := reelsync.NewController(reelsync.Options{
		Engine:  eng,
		Logger:  &log,
		Policy:  policy,
		MaxDim:  f.maxDim,
		FFprobe: cfg.FFprobe,
		OnProgress: func(p reelsync.Progress) {
			ev := log.Info()
			if p.Err != nil {
				ev = log.Warn().Err(p.Err)
			}
			ev.Int("done", p.Done).Int("total", p.Total).Str("track", p.TrackID).Msg("progress")
		},
	})
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("close engine")
		}
	}()

	base, err := c.LoadBase(ctx, args[0])
	if err != nil {
		log.Error().Err(err).Str("path", args[0]).Msg("load video")
		return 1
	}
	sess := reelsync.NewSession(base)

	for _, a := range args[1:] {
		ta, err := parseTrackArg(a)
		if err != nil {
			log.Error().Err(err).Msg("parse track")
			return 2
		}
		track, err := c.LoadTrack(ctx, ta.path)
		if err != nil {
			log.Error().Err(err).Str("path", ta.path).Msg("load track")
			return 1
		}
		id, err := sess.Add(track)
		if err != nil {
			log.Error().Err(err).Str("path", ta.path).Msg("add track")
			return 1
		}
		if err := sess.SetOffset(id, ta.offset); err != nil {
			log.Error().Err(err).Str("path", ta.path).Msg("set offset")
			return 2
		}
	}

	report, err := c.Render(ctx, sess)
	if report == nil {
		log.Error().Err(err).Msg("render")
		return 1
	}

	w := output.NewWriter(f.outputDir)
	for i := range report.Results {
		r := &report.Results[i]
		path, werr := w.Write(*r)
		r.Release()
		if werr != nil {
			log.Error().Err(werr).Str("track", r.Name).Msg("write result")
			return 1
		}
		log.Info().Str("path", path).Str("track", r.Name).Float64("offset", r.Offset).Msg("wrote")
	}

	log.Info().
		Str("state", report.State.String()).
		Int("succeeded", report.Succeeded()).
		Int("failed", len(report.Failures())).
		Bool("canceled", report.Canceled).
		Msg("render finished")

	switch {
	case report.Fatal != nil:
		log.Error().Err(report.Fatal).Msg("render failed")
		return 1
	case err != nil:
		log.Warn().Err(err).Msg("render incomplete")
		return 3
	}
	return 0
}
