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

package steps

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/mediainfo"
)

// Profile is one ffmpeg rendition.
type Profile struct {
	Name        string
	Extension   string
	ContentType string
	Args        []string
}

var (
	ProfileAudio = Profile{
		Name:        "audio",
		Extension:   "mp3",
		ContentType: "audio/mpeg",
		Args:        []string{"-vn", "-c:a", "libmp3lame", "-b:a", "320k"},
	}
	ProfileVideo = Profile{
		Name:        "video",
		Extension:   "mp4",
		ContentType: "video/mp4",
		Args: []string{
			"-c:v", "libx264", "-preset", "medium", "-crf", "23", "-pix_fmt", "yuv420p",
			"-c:a", "aac", "-b:a", "192k", "-movflags", "+faststart",
		},
	}
	ProfileImage = Profile{
		Name:        "image",
		Extension:   "jpg",
		ContentType: "image/jpeg",
		Args:        []string{"-frames:v", "1", "-q:v", "2"},
	}
)

// Toolchain runs the external media tools.
type Toolchain interface {
	Probe(ctx context.Context, path string) ([]mediainfo.Track, error)
	Convert(ctx context.Context, profile Profile, src, dst string) error
}

// FFmpeg is the Toolchain backed by the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
}

func (f FFmpeg) Probe(ctx context.Context, path string) ([]mediainfo.Track, error) {
	tracks, _, err := mediainfo.Inspect(ctx, f.FFprobePath, path)
	if err != nil {
		var pe *mediainfo.ProbeError
		if errors.As(err, &pe) {
			return nil, ingest.ExternalTool("ffprobe", pe.Err, pe.Stderr)
		}
		return nil, ingest.ExternalTool("ffprobe", err, "")
	}
	return tracks, nil
}

func (f FFmpeg) Convert(ctx context.Context, profile Profile, src, dst string) error {
	binary := f.FFmpegPath
	if binary == "" {
		binary = "ffmpeg"
	}
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", src}
	args = append(args, profile.Args...)
	args = append(args, dst)

	out, err := exec.CommandContext(ctx, binary, args...).CombinedOutput()
	if err != nil {
		return ingest.ExternalTool("ffmpeg", fmt.Errorf("%s rendition: %w", profile.Name, err), string(out))
	}
	return nil
}
