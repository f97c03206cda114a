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

import "slices"

// Summary is the JSON-friendly digest of a track list carried on the
// ingestion record.
type Summary struct {
	Kind            TrackKind `json:"kind"`
	FormatName      string    `json:"formatName,omitempty"`
	DurationSeconds float64   `json:"durationSeconds,omitempty"`
	BitRate         int64     `json:"bitRate,omitempty"`
	VideoTracks     int       `json:"videoTracks"`
	AudioTracks     int       `json:"audioTracks"`
	ImageTracks     int       `json:"imageTracks"`
	Width           int       `json:"width,omitempty"`
	Height          int       `json:"height,omitempty"`
	SampleRate      int       `json:"sampleRate,omitempty"`
	Channels        int       `json:"channels,omitempty"`
	Codecs          []string  `json:"codecs,omitempty"`
}

// Summarize folds tracks into a Summary. The first video or image track
// provides the dimensions and the first audio track the sample layout.
func Summarize(tracks []Track) Summary {
	var s Summary
	for _, t := range tracks {
		switch v := t.(type) {
		case GeneralTrack:
			s.FormatName = v.FormatName
			s.DurationSeconds = v.DurationSeconds
			s.BitRate = v.BitRate
		case VideoTrack:
			s.VideoTracks++
			if s.Width == 0 {
				s.Width, s.Height = v.Width, v.Height
			}
			s.addCodec(v.Codec)
		case ImageTrack:
			s.ImageTracks++
			if s.Width == 0 {
				s.Width, s.Height = v.Width, v.Height
			}
			s.addCodec(v.Codec)
		case AudioTrack:
			s.AudioTracks++
			if s.SampleRate == 0 {
				s.SampleRate, s.Channels = v.SampleRate, v.Channels
			}
			s.addCodec(v.Codec)
		case OtherTrack:
			s.addCodec(v.Codec)
		}
	}
	s.Kind = Dominant(tracks)
	return s
}

func (s *Summary) addCodec(codec string) {
	if codec != "" && !slices.Contains(s.Codecs, codec) {
		s.Codecs = append(s.Codecs, codec)
	}
}

// Dominant picks the kind that decides how the file is processed.
// Moving pictures win over sound, sound wins over stills. Cover art
// attached to an audio file does not make it an image.
func Dominant(tracks []Track) TrackKind {
	var video, audio, image bool
	for _, t := range tracks {
		switch t.Kind() {
		case KindVideo:
			video = true
		case KindAudio:
			audio = true
		case KindImage:
			image = true
		}
	}
	switch {
	case video:
		return KindVideo
	case audio:
		return KindAudio
	case image:
		return KindImage
	default:
		return KindOther
	}
}
