package ffmpeg

import (
	"strconv"

	"github.com/eleven-am/reelsync/internal/domain"
)

// EncodeProfile holds the fixed encoder settings. The defaults trade fidelity
// for speed.
type EncodeProfile struct {
	VideoCodec string
	Preset     string
	CRF        int
	AudioCodec string
}

var DefaultProfile = EncodeProfile{
	VideoCodec: "libx264",
	Preset:     "ultrafast",
	CRF:        28,
	AudioCodec: "aac",
}

type CommandBuilder struct {
	Profile EncodeProfile
}

func NewCommandBuilder(profile EncodeProfile) *CommandBuilder {
	return &CommandBuilder{Profile: profile}
}

type RenderParams struct {
	BaseName   string
	AudioName  string
	Offset     float64
	Duration   float64
	Directive  domain.FilterDirective
	OutputName string
}

// ParamsFor lifts a job into builder parameters.
func ParamsFor(job domain.RenderJob, duration float64) RenderParams {
	return RenderParams{
		BaseName:   job.BaseName,
		AudioName:  job.AudioName,
		Offset:     job.Offset,
		Duration:   duration,
		Directive:  job.Directive,
		OutputName: job.OutputName,
	}
}

// Render assembles the arguments for one job. The seek applies to the audio
// input only; the output is trimmed to the base duration.
func (b *CommandBuilder) Render(p RenderParams) []string {
	args := []string{
		"-i", p.BaseName,
		"-ss", formatSeconds(p.Offset),
		"-i", p.AudioName,
		"-t", formatSeconds(p.Duration),
		"-map", "0:v",
		"-map", "1:a",
	}

	args = append(args, b.videoEncodeArgs(p.Directive)...)
	args = append(args, b.audioEncodeArgs()...)

	return append(args, p.OutputName)
}

func (b *CommandBuilder) videoEncodeArgs(d domain.FilterDirective) []string {
	if d.Copy() {
		return []string{"-c:v", "copy"}
	}

	return []string{
		"-vf", d.VideoFilter(),
		"-c:v", b.Profile.VideoCodec,
		"-preset", b.Profile.Preset,
		"-crf", strconv.Itoa(b.Profile.CRF),
	}
}

// Audio is always re-encoded: copying after an arbitrary seek can leave a
// cut that does not decode or drifts out of sync.
func (b *CommandBuilder) audioEncodeArgs() []string {
	return []string{"-c:a", b.Profile.AudioCodec}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
