// Package probe reads media descriptors with ffprobe.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/eleven-am/reelsync/internal/domain"
)

var (
	ErrNoVideo = errors.New("probe: no video stream")
	ErrNoAudio = errors.New("probe: no audio stream")
)

// Info is the subset of ffprobe output the renderer needs. Width and Height
// are display dimensions, with rotation applied.
type Info struct {
	Duration float64
	Width    int
	Height   int
	HasVideo bool
	HasAudio bool
}

type Prober struct {
	binary string
}

func NewProber(binary string) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary}
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Duration     string            `json:"duration"`
	Tags         map[string]string `json:"tags"`
	SideDataList []ffprobeSideData `json:"side_data_list"`
	Disposition  ffprobeDisp       `json:"disposition"`
}

type ffprobeSideData struct {
	Rotation float64 `json:"rotation"`
}

type ffprobeDisp struct {
	AttachedPic int `json:"attached_pic"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

func (p *Prober) Probe(ctx context.Context, path string) (*Info, error) {
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}

	return parse(output)
}

func parse(output []byte) (*Info, error) {
	var ff ffprobeOutput
	if err := json.Unmarshal(output, &ff); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	info := &Info{}
	if dur, err := strconv.ParseFloat(ff.Format.Duration, 64); err == nil {
		info.Duration = dur
	}

	for _, s := range ff.Streams {
		switch s.CodecType {
		case "video":
			// Cover art in audio files shows up as a one-frame video stream.
			if info.HasVideo || s.Disposition.AttachedPic == 1 {
				continue
			}
			info.HasVideo = true
			info.Width, info.Height = s.Width, s.Height
			if quarterTurn(rotation(s)) {
				info.Width, info.Height = info.Height, info.Width
			}
			if info.Duration == 0 {
				info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		case "audio":
			info.HasAudio = true
			if info.Duration == 0 {
				info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		}
	}

	return info, nil
}

func rotation(s ffprobeStream) float64 {
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			return sd.Rotation
		}
	}
	if r, err := strconv.ParseFloat(s.Tags["rotate"], 64); err == nil {
		return r
	}
	return 0
}

func quarterTurn(deg float64) bool {
	return math.Mod(math.Abs(deg), 180) == 90
}

// LoadBase probes and reads a video file into a BaseMedia.
func (p *Prober) LoadBase(ctx context.Context, path string) (domain.BaseMedia, error) {
	info, err := p.Probe(ctx, path)
	if err != nil {
		return domain.BaseMedia{}, err
	}
	if !info.HasVideo {
		return domain.BaseMedia{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoVideo)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.BaseMedia{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	return domain.BaseMedia{
		Name:     filepath.Base(path),
		Data:     data,
		Duration: info.Duration,
		Width:    info.Width,
		Height:   info.Height,
	}, nil
}

// LoadTrack probes and reads an audio file. The returned candidate has no ID
// and a zero offset.
func (p *Prober) LoadTrack(ctx context.Context, path string) (domain.AudioCandidate, error) {
	info, err := p.Probe(ctx, path)
	if err != nil {
		return domain.AudioCandidate{}, err
	}
	if !info.HasAudio {
		return domain.AudioCandidate{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoAudio)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.AudioCandidate{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	return domain.AudioCandidate{
		Name:     filepath.Base(path),
		Data:     data,
		Duration: info.Duration,
	}, nil
}
