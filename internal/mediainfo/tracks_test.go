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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const videoProbe = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080, "avg_frame_rate": "25/1", "duration": "12.5", "bit_rate": "800000"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "48000", "channels": 2, "duration": "12.5"},
    {"index": 2, "codec_name": "mov_text", "codec_type": "subtitle"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "nb_streams": 3, "duration": "12.500000", "size": "1250000", "bit_rate": "800000"}
}`

func TestParseVideo(t *testing.T) {
	tracks, err := Parse([]byte(videoProbe))
	require.NoError(t, err)
	require.Len(t, tracks, 4)

	general, ok := tracks[0].(GeneralTrack)
	require.True(t, ok)
	assert.Equal(t, 12.5, general.DurationSeconds)
	assert.Equal(t, int64(1250000), general.SizeBytes)

	video, ok := tracks[1].(VideoTrack)
	require.True(t, ok)
	assert.Equal(t, 1920, video.Width)
	assert.Equal(t, "25/1", video.FrameRate)

	audio, ok := tracks[2].(AudioTrack)
	require.True(t, ok)
	assert.Equal(t, 48000, audio.SampleRate)
	assert.Equal(t, 2, audio.Channels)

	other, ok := tracks[3].(OtherTrack)
	require.True(t, ok)
	assert.Equal(t, "subtitle", other.CodecType)

	s := Summarize(tracks)
	assert.Equal(t, KindVideo, s.Kind)
	assert.Equal(t, 1, s.VideoTracks)
	assert.Equal(t, 1, s.AudioTracks)
	assert.Equal(t, []string{"h264", "aac", "mov_text"}, s.Codecs)
}

func TestParseAudioWithCoverArt(t *testing.T) {
	raw := `{
	  "streams": [
	    {"index": 0, "codec_name": "flac", "codec_type": "audio", "sample_rate": "96000", "channels": 2, "bits_per_raw_sample": "24"},
	    {"index": 1, "codec_name": "mjpeg", "codec_type": "video", "width": 600, "height": 600, "disposition": {"attached_pic": 1}}
	  ],
	  "format": {"format_name": "flac", "duration": "N/A"}
	}`
	tracks, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, tracks, 3)

	audio := tracks[1].(AudioTrack)
	assert.Equal(t, 24, audio.BitsPerSample)
	assert.Equal(t, KindImage, tracks[2].Kind())
	assert.Equal(t, KindAudio, Dominant(tracks))
	assert.Zero(t, Summarize(tracks).DurationSeconds)
}

func TestParseStillImage(t *testing.T) {
	raw := `{"streams": [{"index": 0, "codec_name": "tiff", "codec_type": "video", "width": 4000, "height": 3000}],
	         "format": {"format_name": "tiff_pipe"}}`
	tracks, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, KindImage, Dominant(tracks))
	s := Summarize(tracks)
	assert.Equal(t, 4000, s.Width)
	assert.Equal(t, 1, s.ImageTracks)
}

func TestParseRejectsBadInput(t *testing.T) {
	_, err := Parse([]byte(`{"streams": []}`))
	assert.ErrorIs(t, err, ErrNoStreams)

	_, err = Parse([]byte(`{"streams": [{"index": 0, "codec_name": "h264"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing codec_type")

	_, err = Parse([]byte(`not json`))
	require.Error(t, err)
}

func TestDominantWithoutMediaTracks(t *testing.T) {
	assert.Equal(t, KindOther, Dominant([]Track{GeneralTrack{}, OtherTrack{CodecType: "data"}}))
}
