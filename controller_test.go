package reelsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type stubEngine struct {
	mu      sync.Mutex
	staged  map[string][]byte
	args    [][]string
	closed  int
	block   chan struct{}
	entered chan struct{}
}

func newStubEngine() *stubEngine {
	return &stubEngine{staged: map[string][]byte{}}
}

func (s *stubEngine) Stage(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[name] = data
	return nil
}

func (s *stubEngine) Execute(ctx context.Context, args []string) error {
	if s.block != nil {
		s.entered <- struct{}{}
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.args = append(s.args, args)
	s.staged[args[len(args)-1]] = []byte("mp4:" + strings.Join(args, " "))
	return nil
}

func (s *stubEngine) ReadStaged(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.staged[name]
	if !ok {
		return nil, errors.New("not staged")
	}
	return data, nil
}

func (s *stubEngine) Unstage(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.staged, name)
	return nil
}

func (s *stubEngine) Close() error {
	s.closed++
	return nil
}

func portraitBase() BaseMedia {
	return BaseMedia{Name: "clip.mp4", Data: []byte("video"), Duration: 10, Width: 720, Height: 1280}
}

func candidate(name string) AudioCandidate {
	return AudioCandidate{Name: name, Data: []byte("audio"), Duration: 40}
}

func TestNewControllerPanicsWithoutEngine(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for missing engine")
		}
	}()
	NewController(Options{})
}

func TestRenderSessionProducesResultsInOrder(t *testing.T) {
	eng := newStubEngine()
	var progress []Progress
	c := NewController(Options{Engine: eng, OnProgress: func(p Progress) { progress = append(progress, p) }})

	sess := NewSession(portraitBase())
	first, _ := sess.Add(candidate("one.mp3"))
	second, _ := sess.Add(candidate("two.m4a"))
	if err := sess.SetOffset(second, 12.5); err != nil {
		t.Fatalf("set offset: %v", err)
	}

	report, err := c.Render(context.Background(), sess)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if report.Succeeded() != 2 || c.State().String() != "done" {
		t.Fatalf("unexpected report %#v state %v", report, c.State())
	}
	if report.Results[0].ID != first || report.Results[1].ID != second {
		t.Fatalf("results out of order: %#v", report.Results)
	}
	if report.Results[1].Offset != 12.5 {
		t.Fatalf("offset not carried: %v", report.Results[1].Offset)
	}
	if len(progress) != 2 || progress[1].Done != 2 {
		t.Fatalf("unexpected progress %#v", progress)
	}

	got := strings.Join(eng.args[1], " ")
	if !strings.Contains(got, "-ss 12.5 -i audio_1.m4a -t 10") || !strings.Contains(got, "-c:v copy") {
		t.Fatalf("unexpected args %q", got)
	}
	if len(eng.staged) != 0 {
		t.Fatalf("staging not cleaned: %v", eng.staged)
	}

	if err := sess.SetOffset(first, 1); err != nil {
		t.Fatalf("session should unfreeze after the run: %v", err)
	}
}

func TestRenderFreezesSessionDuringRun(t *testing.T) {
	eng := newStubEngine()
	eng.block = make(chan struct{})
	eng.entered = make(chan struct{})
	c := NewController(Options{Engine: eng})

	sess := NewSession(portraitBase())
	id, _ := sess.Add(candidate("one.mp3"))

	done := make(chan error, 1)
	go func() {
		_, err := c.Render(context.Background(), sess)
		done <- err
	}()
	<-eng.entered

	if err := sess.SetOffset(id, 2); !errors.Is(err, ErrSessionFrozen) {
		t.Fatalf("expected frozen session, got %v", err)
	}
	if _, err := c.RenderTracks(context.Background(), portraitBase(), []AudioCandidate{candidate("x.mp3")}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := c.Close(); !errors.Is(err, ErrBusy) {
		t.Fatalf("close during a run should fail, got %v", err)
	}

	close(eng.block)
	if err := <-done; err != nil {
		t.Fatalf("render: %v", err)
	}
}

func TestRenderTracksReportPolicy(t *testing.T) {
	c := NewController(Options{Engine: newStubEngine(), Policy: PolicyReport})

	bad := candidate("bad.mp3")
	bad.StartOffset = 35
	report, err := c.RenderTracks(context.Background(), portraitBase(), []AudioCandidate{candidate("a.mp3"), bad})
	if !errors.Is(err, ErrInvalidTrack) || report != nil {
		t.Fatalf("expected invalid track before the run, got %v", err)
	}

	report, err = c.RenderTracks(context.Background(), portraitBase(), []AudioCandidate{candidate("a.mp3")})
	if err != nil || report.Succeeded() != 1 {
		t.Fatalf("unexpected result %v %#v", err, report)
	}
}

func TestRenderUsesCustomProfileAndLogger(t *testing.T) {
	eng := newStubEngine()
	var buf strings.Builder
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	c := NewController(Options{
		Engine:  eng,
		Logger:  &log,
		Profile: &EncodeProfile{VideoCodec: "libx265", Preset: "fast", CRF: 30, AudioCodec: "libopus"},
	})

	base := BaseMedia{Data: []byte("v"), Duration: 5, Width: 1920, Height: 1080}
	if _, err := c.RenderTracks(context.Background(), base, []AudioCandidate{candidate("a.mp3")}); err != nil {
		t.Fatalf("render: %v", err)
	}

	got := strings.Join(eng.args[0], " ")
	if !strings.Contains(got, "-c:v libx265 -preset fast -crf 30 -c:a libopus") {
		t.Fatalf("profile not applied: %q", got)
	}
	if !strings.Contains(got, "crop=ih*(9/16)") {
		t.Fatalf("landscape base should be cropped: %q", got)
	}
	if !strings.Contains(buf.String(), `"component":"engine"`) || !strings.Contains(buf.String(), `"component":"render"`) {
		t.Fatalf("expected engine and render logs, got %s", buf.String())
	}
}

func TestCloseDisposesEngineOnce(t *testing.T) {
	eng := newStubEngine()
	c := NewController(Options{Engine: eng})
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if eng.closed != 1 {
		t.Fatalf("engine closed %d times", eng.closed)
	}
	if _, err := c.RenderTracks(context.Background(), portraitBase(), []AudioCandidate{candidate("a.mp3")}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}

func TestNewExecEngineReturnsNilOnFailure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ffmpeg")
	content := "#!/bin/sh\ncat <<'OUT'\n ------\n V....D libx264  H.264\n A....D aac  AAC\nOUT\n"
	if err := os.WriteFile(script, []byte(content), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}

	eng, err := NewExecEngine(context.Background(), ExecOptions{
		Binary: script,
		Dir:    filepath.Join(dir, "missing", "parent"),
	})
	if err == nil {
		t.Fatalf("expected staging dir error")
	}
	if eng != nil {
		t.Fatalf("expected a nil engine, got %#v", eng)
	}
}

func TestRenderRejectsBadBaseDuration(t *testing.T) {
	c := NewController(Options{Engine: newStubEngine()})
	base := portraitBase()
	base.Duration = 0
	if _, err := c.RenderTracks(context.Background(), base, []AudioCandidate{candidate("a.mp3")}); !errors.Is(err, ErrBadDuration) {
		t.Fatalf("expected ErrBadDuration, got %v", err)
	}
}

func TestLoadBaseAndTrackUseProbe(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	content := `#!/bin/sh
for last; do :; done
case "$last" in
*.mp4) cat <<'JSON'
{"streams":[{"codec_type":"video","width":1080,"height":1920}],"format":{"duration":"9.5"}}
JSON
;;
*) cat <<'JSON'
{"streams":[{"codec_type":"audio"}],"format":{"duration":"31"}}
JSON
;;
esac
`
	if err := os.WriteFile(script, []byte(content), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	video := filepath.Join(dir, "clip.mp4")
	audio := filepath.Join(dir, "song.mp3")
	_ = os.WriteFile(video, []byte("v"), 0o644)
	_ = os.WriteFile(audio, []byte("a"), 0o644)

	c := NewController(Options{Engine: newStubEngine(), FFprobe: script})

	base, err := c.LoadBase(context.Background(), video)
	if err != nil {
		t.Fatalf("load base: %v", err)
	}
	if base.Width != 1080 || base.Height != 1920 || base.Duration != 9.5 || base.Name != "clip.mp4" {
		t.Fatalf("unexpected base %#v", base)
	}

	track, err := c.LoadTrack(context.Background(), audio)
	if err != nil {
		t.Fatalf("load track: %v", err)
	}
	if track.Duration != 31 || string(track.Data) != "a" {
		t.Fatalf("unexpected track %#v", track)
	}
}

func TestKindOfExposesFailureClass(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &RenderError{Kind: KindExecution, Index: 0, Err: errors.New("boom")})
	kind, ok := KindOf(err)
	if !ok || kind != KindExecution {
		t.Fatalf("unexpected kind %v %v", kind, ok)
	}
}
