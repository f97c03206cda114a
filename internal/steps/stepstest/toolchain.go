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

// Package stepstest provides a scripted Toolchain for exercising the
// ingestion steps without ffmpeg.
package stepstest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cardinalhq/mediarunner/internal/mediainfo"
	"github.com/cardinalhq/mediarunner/internal/steps"
)

// FakeToolchain answers probes from a table keyed by file extension and
// writes placeholder renditions.
type FakeToolchain struct {
	Tracks     map[string][]mediainfo.Track
	ConvertErr error

	mu          sync.Mutex
	conversions []string
}

var _ steps.Toolchain = (*FakeToolchain)(nil)

func (f *FakeToolchain) Probe(_ context.Context, path string) ([]mediainfo.Track, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	tracks, ok := f.Tracks[ext]
	if !ok {
		return nil, fmt.Errorf("no probe result for .%s", ext)
	}
	return tracks, nil
}

func (f *FakeToolchain) Convert(_ context.Context, profile steps.Profile, _, dst string) error {
	f.mu.Lock()
	f.conversions = append(f.conversions, profile.Name)
	f.mu.Unlock()
	if f.ConvertErr != nil {
		return f.ConvertErr
	}
	return os.WriteFile(dst, []byte(profile.Name+" rendition"), 0o644)
}

// Conversions lists the profiles converted so far, in call order.
func (f *FakeToolchain) Conversions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.conversions...)
}

// SampleTracks are plausible probe results for the common deposit types.
var SampleTracks = map[string][]mediainfo.Track{
	"wav": {
		mediainfo.GeneralTrack{FormatName: "wav", DurationSeconds: 61.5, StreamCount: 1},
		mediainfo.AudioTrack{Codec: "pcm_s24le", SampleRate: 96000, Channels: 2, BitsPerSample: 24, DurationSeconds: 61.5},
	},
	"mp4": {
		mediainfo.GeneralTrack{FormatName: "mov,mp4,m4a,3gp,3g2,mj2", DurationSeconds: 300, StreamCount: 2},
		mediainfo.VideoTrack{Codec: "h264", Width: 1920, Height: 1080, FrameRate: "25/1", DurationSeconds: 300},
		mediainfo.AudioTrack{Index: 1, Codec: "aac", SampleRate: 48000, Channels: 2, DurationSeconds: 300},
	},
	"mkv": {
		mediainfo.GeneralTrack{FormatName: "matroska,webm", DurationSeconds: 300, StreamCount: 1},
		mediainfo.VideoTrack{Codec: "ffv1", Width: 720, Height: 576, FrameRate: "25/1", DurationSeconds: 300},
	},
	"tif": {
		mediainfo.GeneralTrack{FormatName: "tiff_pipe", StreamCount: 1},
		mediainfo.ImageTrack{Codec: "tiff", Width: 4000, Height: 3000},
	},
}
