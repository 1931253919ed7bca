// Package capability checks that an ffmpeg binary can run the jobs the
// command builder produces.
package capability

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/eleven-am/reelsync/internal/domain"
	"github.com/eleven-am/reelsync/internal/ffmpeg"
)

// Encoders lists the encoders an ffmpeg binary reports.
func Encoders(ctx context.Context, binary string) (map[string]bool, error) {
	cmd := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s -encoders: %w", binary, err)
	}
	return parseEncoders(output), nil
}

// Check fails with domain.ErrEngineUnavailable when the binary is missing or
// lacks an encoder the profile needs.
func Check(ctx context.Context, binary string, profile ffmpeg.EncodeProfile) error {
	encoders, err := Encoders(ctx, binary)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEngineUnavailable, err)
	}

	var missing []string
	for _, name := range []string{profile.VideoCodec, profile.AudioCodec} {
		if name != "" && !encoders[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s lacks encoders: %s", domain.ErrEngineUnavailable, binary, strings.Join(missing, ", "))
	}
	return nil
}

// parseEncoders reads the table printed by `ffmpeg -encoders`. Entries look
// like " V....D libx264   libx264 H.264 ..."; the legend above the "------"
// separator is skipped.
func parseEncoders(output []byte) map[string]bool {
	result := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(output))

	inTable := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inTable {
			if strings.HasPrefix(line, "------") {
				inTable = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		result[fields[1]] = true
	}

	return result
}
