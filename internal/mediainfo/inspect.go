// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package mediainfo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ProbeError is returned when ffprobe exits unsuccessfully. Stderr holds
// the tool's diagnostics.
type ProbeError struct {
	Err    error
	Stderr string
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("ffprobe inspect: %v: %s", e.Err, e.Stderr)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Inspect runs ffprobe against path and parses its output. The raw JSON is
// returned alongside the tracks.
func Inspect(ctx context.Context, binary string, path string) ([]Track, []byte, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil, errors.New("ffprobe inspect: empty path")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, nil, &ProbeError{Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}

	raw := stdout.Bytes()
	tracks, err := Parse(raw)
	if err != nil {
		return nil, raw, err
	}
	return tracks, raw, nil
}
