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
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/mediainfo"
	"github.com/cardinalhq/mediarunner/internal/objstore"
)

var (
	audioOnly    = []ingest.MediaType{ingest.MediaTypeAudio}
	videoOnly    = []ingest.MediaType{ingest.MediaTypeVideo}
	imageOnly    = []ingest.MediaType{ingest.MediaTypeImage}
	avContainers = []ingest.MediaType{ingest.MediaTypeVideo, ingest.MediaTypeAudio}
)

// expectedMediaTypes lists what each known extension may contain.
// Extensions not listed are accepted as whatever is detected.
var expectedMediaTypes = map[string][]ingest.MediaType{
	"wav": audioOnly, "mp3": audioOnly, "flac": audioOnly, "aif": audioOnly, "aiff": audioOnly,
	"m4a": audioOnly, "aac": audioOnly, "ogg": audioOnly, "wma": audioOnly,
	"avi": videoOnly, "mpg": videoOnly, "mpeg": videoOnly, "dv": videoOnly, "mxf": videoOnly,
	"mp4": avContainers, "mov": avContainers, "mkv": avContainers, "webm": avContainers,
	"jpg": imageOnly, "jpeg": imageOnly, "png": imageOnly, "tif": imageOnly, "tiff": imageOnly,
	"bmp": imageOnly, "gif": imageOnly, "webp": imageOnly,
}

// DownloadMedia fetches the object into the execution's scratch directory.
func (s *Steps) DownloadMedia(ctx context.Context, rec ingest.Record) (ingest.Record, error) {
	dir := s.ScratchDirFor(rec.ID)
	if rec.Meta != nil && rec.Meta.IsCompanion {
		dir = filepath.Join(dir, "companion")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rec, fmt.Errorf("create scratch dir: %w", err)
	}
	filename, size, err := s.store.Download(ctx, dir, rec.BucketName, rec.ObjectKey)
	if errors.Is(err, objstore.ErrNotFound) {
		consumed, cerr := s.consumedByCompanion(ctx, rec)
		if cerr != nil {
			return rec, cerr
		}
		if consumed {
			rec.Meta = &ingest.Meta{Outcome: ingest.OutcomeCompanionDone}
			rec.Note("%s was already consumed by its companion", rec.Filename())
			return rec, nil
		}
	}
	if err != nil {
		return rec, fmt.Errorf("download %s: %w", rec.ObjectKey, err)
	}
	rec.ScratchPath = filename
	rec.Note("Downloaded %s (%d bytes)", rec.Filename(), size)
	return rec, nil
}

// consumedByCompanion reports whether a vanished DAMSmart original was
// cataloged by the other half of its pair.
func (s *Steps) consumedByCompanion(ctx context.Context, rec ingest.Record) (bool, error) {
	if !rec.IsDamsmart || rec.Details == nil || (rec.Meta != nil && rec.Meta.IsCompanion) {
		return false, nil
	}
	d := rec.Details
	key := ingest.CatalogKey(d.CollectionIdentifier, d.ItemIdentifier, d.Filename)
	if _, err := s.store.Head(ctx, s.catalogBucket, key); err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("look for cataloged %s: %w", key, err)
	}
	return true, nil
}

// DetectAndValidateMedia sniffs the content type, probes the streams and
// sets the media type. A detected type the extension cannot hold fails.
func (s *Steps) DetectAndValidateMedia(ctx context.Context, rec ingest.Record) (ingest.Record, error) {
	if rec.ScratchPath == "" {
		return rec, errors.New("media detection before download")
	}

	var (
		mime    string
		mt      ingest.MediaType
		summary *mediainfo.Summary
	)
	err := s.heavy(ctx, func(ctx context.Context) error {
		m, err := mimetype.DetectFile(rec.ScratchPath)
		if err != nil {
			return fmt.Errorf("detect content type: %w", err)
		}
		mime = m.String()
		if rec.ObjectSize == 0 {
			mt = ingest.MediaTypeOther
			return nil
		}

		tracks, err := s.tools.Probe(ctx, rec.ScratchPath)
		if err != nil {
			if isMediaMime(mime) {
				return err
			}
			mt = ingest.MediaTypeOther
			return nil
		}
		sum := mediainfo.Summarize(tracks)
		summary = &sum
		mt = mediaTypeOf(sum.Kind)
		return nil
	})
	if err != nil {
		return rec, err
	}

	ext := ""
	if rec.Details != nil {
		ext = rec.Details.Extension
	}
	if allowed, ok := expectedMediaTypes[ext]; ok && !slices.Contains(allowed, mt) {
		return rec, ingest.ValidationWithData(
			map[string]any{"extension": ext, "mimeType": mime, "detectedMediaType": string(mt)},
			"%s content does not match its .%s extension", mt, ext)
	}

	if err := rec.SetMediaType(mt); err != nil {
		return rec, err
	}
	rec.MimeType = mime
	rec.Media = summary
	rec.Note("Detected %s media (%s)", mt, mime)
	return rec, nil
}

func isMediaMime(mime string) bool {
	return strings.HasPrefix(mime, "audio/") || strings.HasPrefix(mime, "video/") || strings.HasPrefix(mime, "image/")
}

func mediaTypeOf(kind mediainfo.TrackKind) ingest.MediaType {
	switch kind {
	case mediainfo.KindVideo:
		return ingest.MediaTypeVideo
	case mediainfo.KindAudio:
		return ingest.MediaTypeAudio
	case mediainfo.KindImage:
		return ingest.MediaTypeImage
	default:
		return ingest.MediaTypeOther
	}
}

func (s *Steps) TranscodeAudio(ctx context.Context, rec ingest.Record) (ingest.Record, error) {
	return s.render(ctx, rec, ProfileAudio)
}

func (s *Steps) TranscodeVideo(ctx context.Context, rec ingest.Record) (ingest.Record, error) {
	return s.render(ctx, rec, ProfileVideo)
}

func (s *Steps) ConvertImage(ctx context.Context, rec ingest.Record) (ingest.Record, error) {
	return s.render(ctx, rec, ProfileImage)
}

// render produces one access rendition and stages it under output/<filename>/.
func (s *Steps) render(ctx context.Context, rec ingest.Record, profile Profile) (ingest.Record, error) {
	if rec.ScratchPath == "" {
		return rec, errors.New(profile.Name + " rendition before download")
	}
	dir := filepath.Join(filepath.Dir(rec.ScratchPath), "renditions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rec, fmt.Errorf("create rendition dir: %w", err)
	}
	name := ingest.RenditionName(rec.Filename(), profile.Extension)
	dst := filepath.Join(dir, name)

	if err := s.heavy(ctx, func(ctx context.Context) error {
		return s.tools.Convert(ctx, profile, rec.ScratchPath, dst)
	}); err != nil {
		return rec, err
	}

	key := ingest.OutputPrefixFor(rec.Filename()) + name
	if err := s.store.Upload(ctx, rec.BucketName, key, dst, profile.ContentType); err != nil {
		return rec, fmt.Errorf("stage %s rendition: %w", profile.Name, err)
	}
	rec.Note("Created %s rendition %s", profile.Name, name)
	return rec, nil
}

func (s *Steps) ExtractAudioMetadata(_ context.Context, rec ingest.Record) (ingest.Record, error) {
	m := rec.Media
	if m == nil || m.AudioTracks == 0 || m.SampleRate == 0 || m.Channels == 0 {
		return rec, ingest.Validation("%s has no usable audio stream", rec.Filename())
	}
	rec.Note("Audio: %d Hz, %d channels, %.1f seconds", m.SampleRate, m.Channels, m.DurationSeconds)
	return rec, nil
}

func (s *Steps) ExtractVideoMetadata(_ context.Context, rec ingest.Record) (ingest.Record, error) {
	m := rec.Media
	if m == nil || m.VideoTracks == 0 || m.Width == 0 || m.Height == 0 {
		return rec, ingest.Validation("%s has no usable video stream", rec.Filename())
	}
	rec.Note("Video: %dx%d, %d audio tracks, %.1f seconds", m.Width, m.Height, m.AudioTracks, m.DurationSeconds)
	return rec, nil
}

func (s *Steps) ExtractImageMetadata(_ context.Context, rec ingest.Record) (ingest.Record, error) {
	m := rec.Media
	if m == nil || m.Width == 0 || m.Height == 0 {
		return rec, ingest.Validation("%s has no readable image", rec.Filename())
	}
	rec.Note("Image: %dx%d", m.Width, m.Height)
	return rec, nil
}

func (s *Steps) ExtractOtherMetadata(_ context.Context, rec ingest.Record) (ingest.Record, error) {
	rec.Note("Stored as a plain file (%s)", rec.MimeType)
	return rec, nil
}
