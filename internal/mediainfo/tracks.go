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

// Package mediainfo turns ffprobe JSON into typed tracks.
//
// Every stream is decoded in two passes: first only the codec_type
// discriminant, then the kind-specific fields. A stream without a
// discriminant is rejected rather than guessed at.
package mediainfo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TrackKind discriminates the Track variants.
type TrackKind string

const (
	KindGeneral TrackKind = "general"
	KindVideo   TrackKind = "video"
	KindAudio   TrackKind = "audio"
	KindImage   TrackKind = "image"
	KindOther   TrackKind = "other"
)

// Track is one of GeneralTrack, VideoTrack, AudioTrack, ImageTrack, OtherTrack.
type Track interface {
	Kind() TrackKind
}

type GeneralTrack struct {
	FormatName      string
	DurationSeconds float64
	SizeBytes       int64
	BitRate         int64
	StreamCount     int
}

type VideoTrack struct {
	Index           int
	Codec           string
	Width           int
	Height          int
	FrameRate       string
	DurationSeconds float64
	BitRate         int64
}

type AudioTrack struct {
	Index           int
	Codec           string
	SampleRate      int
	Channels        int
	BitsPerSample   int
	DurationSeconds float64
	BitRate         int64
}

type ImageTrack struct {
	Index  int
	Codec  string
	Width  int
	Height int
}

type OtherTrack struct {
	Index     int
	CodecType string
	Codec     string
}

func (GeneralTrack) Kind() TrackKind { return KindGeneral }
func (VideoTrack) Kind() TrackKind   { return KindVideo }
func (AudioTrack) Kind() TrackKind   { return KindAudio }
func (ImageTrack) Kind() TrackKind   { return KindImage }
func (OtherTrack) Kind() TrackKind   { return KindOther }

var ErrNoStreams = errors.New("media has no streams")

type probeOutput struct {
	Streams []json.RawMessage `json:"streams"`
	Format  *probeFormat      `json:"format"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type streamHeader struct {
	Index     *int   `json:"index"`
	CodecType string `json:"codec_type"`
}

type probeStream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`
	CodecType     string `json:"codec_type"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	AvgFrameRate  string `json:"avg_frame_rate"`
	SampleRate    string `json:"sample_rate"`
	Channels      int    `json:"channels"`
	BitsPerSample string `json:"bits_per_raw_sample"`
	Duration      string `json:"duration"`
	BitRate       string `json:"bit_rate"`
	NBFrames      string `json:"nb_frames"`
	Disposition   struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

var imageCodecs = map[string]bool{
	"png": true, "mjpeg": true, "bmp": true, "tiff": true, "webp": true, "gif": true, "jpeg2000": true,
}

var imageFormats = []string{"image2", "png_pipe", "jpeg_pipe", "tiff_pipe", "bmp_pipe", "webp_pipe", "gif"}

// Parse decodes ffprobe "-show_format -show_streams -of json" output.
func Parse(raw []byte) ([]Track, error) {
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, ErrNoStreams
	}

	var tracks []Track
	stillImage := false
	if out.Format != nil {
		tracks = append(tracks, GeneralTrack{
			FormatName:      out.Format.FormatName,
			DurationSeconds: parseFloat(out.Format.Duration),
			SizeBytes:       int64(parseFloat(out.Format.Size)),
			BitRate:         int64(parseFloat(out.Format.BitRate)),
			StreamCount:     out.Format.NBStreams,
		})
		for _, f := range imageFormats {
			if strings.Contains(out.Format.FormatName, f) {
				stillImage = true
				break
			}
		}
	}

	for i, rawStream := range out.Streams {
		var hdr streamHeader
		if err := json.Unmarshal(rawStream, &hdr); err != nil {
			return nil, fmt.Errorf("stream %d: %w", i, err)
		}
		if hdr.CodecType == "" {
			return nil, fmt.Errorf("stream %d: missing codec_type", i)
		}
		var s probeStream
		if err := json.Unmarshal(rawStream, &s); err != nil {
			return nil, fmt.Errorf("stream %d (%s): %w", i, hdr.CodecType, err)
		}
		tracks = append(tracks, streamTrack(s, stillImage))
	}
	return tracks, nil
}

func streamTrack(s probeStream, stillImage bool) Track {
	switch strings.ToLower(s.CodecType) {
	case "video":
		if s.Disposition.AttachedPic == 1 || (stillImage && imageCodecs[s.CodecName]) {
			return ImageTrack{Index: s.Index, Codec: s.CodecName, Width: s.Width, Height: s.Height}
		}
		return VideoTrack{
			Index:           s.Index,
			Codec:           s.CodecName,
			Width:           s.Width,
			Height:          s.Height,
			FrameRate:       s.AvgFrameRate,
			DurationSeconds: parseFloat(s.Duration),
			BitRate:         int64(parseFloat(s.BitRate)),
		}
	case "audio":
		return AudioTrack{
			Index:           s.Index,
			Codec:           s.CodecName,
			SampleRate:      int(parseFloat(s.SampleRate)),
			Channels:        s.Channels,
			BitsPerSample:   int(parseFloat(s.BitsPerSample)),
			DurationSeconds: parseFloat(s.Duration),
			BitRate:         int64(parseFloat(s.BitRate)),
		}
	default:
		return OtherTrack{Index: s.Index, CodecType: s.CodecType, Codec: s.CodecName}
	}
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || strings.EqualFold(cleaned, "n/a") {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
