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

package steps_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/mediarunner/internal/admission"
	"github.com/cardinalhq/mediarunner/internal/catalog"
	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/mediainfo"
	"github.com/cardinalhq/mediarunner/internal/objstore"
	"github.com/cardinalhq/mediarunner/internal/steps"
	"github.com/cardinalhq/mediarunner/internal/steps/stepstest"
)

const bucket = "ingest"

type fixture struct {
	store   *objstore.Memory
	catalog *catalog.Memory
	counter *admission.MemoryStore
	tools   *stepstest.FakeToolchain
	steps   *steps.Steps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   objstore.NewMemory(),
		catalog: catalog.NewMemory(),
		counter: admission.NewMemoryStore(),
		tools:   &stepstest.FakeToolchain{Tracks: stepstest.SampleTracks},
	}
	f.catalog.AddCollection(catalog.Collection{Identifier: "COLL"})
	f.catalog.AddItem(catalog.Item{CollectionIdentifier: "COLL", Identifier: "ITEM", MetadataExportable: true})

	cfg := steps.DefaultConfig()
	cfg.CatalogBucket = "catalog"
	cfg.ScratchDir = t.TempDir()
	sem := admission.NewSemaphore(f.counter,
		admission.WithSleep(func(context.Context, time.Duration) error { return nil }))
	f.steps = steps.New(cfg, f.store, f.catalog, sem, f.tools)
	return f
}

// deposit puts an object in the ingest bucket and returns the record a
// trigger would build for it.
func (f *fixture) deposit(key string, data []byte) ingest.Record {
	f.store.Put(bucket, key, data, nil)
	return ingest.Record{ID: "exec-1", BucketName: bucket, ObjectKey: key, ObjectSize: int64(len(data))}
}

func stepErrorName(t *testing.T, err error) string {
	t.Helper()
	se, ok := ingest.AsStepError(err)
	require.True(t, ok, "expected a step error, got %v", err)
	return se.Name
}

func TestRejectEmptyFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.steps.RejectEmptyFiles(ctx, f.deposit("incoming/COLL-ITEM-a.wav", []byte("x")))
	require.NoError(t, err)
	assert.Len(t, rec.Notes, 1)

	_, err = f.steps.RejectEmptyFiles(ctx, f.deposit("incoming/COLL-ITEM-b.wav", nil))
	assert.Equal(t, ingest.ErrNameValidation, stepErrorName(t, err))

	_, err = f.steps.RejectEmptyFiles(ctx, f.deposit("incoming/COLL-ITEM-c.TXT", nil))
	require.NoError(t, err)
}

func TestMetadataChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.steps.MetadataChecks(ctx, f.deposit("damsmart/COLL-ITEM-tape.mkv", []byte("x")))
	require.NoError(t, err)
	require.NotNil(t, rec.Details)
	assert.Equal(t, "COLL", rec.Details.CollectionIdentifier)
	assert.Equal(t, "mkv", rec.Details.Extension)
	assert.True(t, rec.IsDamsmart)

	rec, err = f.steps.MetadataChecks(ctx, f.deposit("incoming/COLL-ITEM-tape.mkv", []byte("x")))
	require.NoError(t, err)
	assert.False(t, rec.IsDamsmart)

	_, err = f.steps.MetadataChecks(ctx, f.deposit("incoming/tape.mkv", []byte("x")))
	assert.Equal(t, ingest.ErrNameValidation, stepErrorName(t, err))
}

func TestCheckCatalogForItem(t *testing.T) {
	f := newFixture(t)
	f.catalog.AddItem(catalog.Item{CollectionIdentifier: "COLL", Identifier: "DRAFT"})
	ctx := context.Background()

	check := func(key string) error {
		rec, err := f.steps.MetadataChecks(ctx, f.deposit(key, []byte("x")))
		require.NoError(t, err)
		_, err = f.steps.CheckCatalogForItem(ctx, rec)
		return err
	}

	require.NoError(t, check("incoming/COLL-ITEM-a.wav"))
	for _, key := range []string{"incoming/NOPE-ITEM-a.wav", "incoming/COLL-NOPE-a.wav", "incoming/COLL-DRAFT-a.wav"} {
		err := check(key)
		assert.Equal(t, ingest.ErrNameValidation, stepErrorName(t, err), key)
	}
}

func prepared(t *testing.T, f *fixture, key string, data []byte) ingest.Record {
	t.Helper()
	ctx := context.Background()
	rec, err := f.steps.MetadataChecks(ctx, f.deposit(key, data))
	require.NoError(t, err)
	rec, err = f.steps.DownloadMedia(ctx, rec)
	require.NoError(t, err)
	return rec
}

func TestDetectAndValidateMedia(t *testing.T) {
	ctx := context.Background()

	t.Run("video", func(t *testing.T) {
		f := newFixture(t)
		rec, err := f.steps.DetectAndValidateMedia(ctx, prepared(t, f, "incoming/COLL-ITEM-tape.mp4", []byte("movie")))
		require.NoError(t, err)
		assert.Equal(t, ingest.MediaTypeVideo, rec.MediaType)
		require.NotNil(t, rec.Media)
		assert.Equal(t, 1920, rec.Media.Width)
		assert.NotEmpty(t, rec.MimeType)

		count, err := f.counter.Current(ctx, admission.DefaultPartitionKey)
		require.NoError(t, err)
		assert.Zero(t, count, "permit returned")
	})

	t.Run("extension mismatch", func(t *testing.T) {
		f := newFixture(t)
		f.tools.Tracks = map[string][]mediainfo.Track{"wav": stepstest.SampleTracks["mp4"]}
		_, err := f.steps.DetectAndValidateMedia(ctx, prepared(t, f, "incoming/COLL-ITEM-a.wav", []byte("movie")))
		assert.Equal(t, ingest.ErrNameValidation, stepErrorName(t, err))
	})

	t.Run("unprobeable text is other", func(t *testing.T) {
		f := newFixture(t)
		rec, err := f.steps.DetectAndValidateMedia(ctx, prepared(t, f, "incoming/COLL-ITEM-notes.txt", []byte("hello there\n")))
		require.NoError(t, err)
		assert.Equal(t, ingest.MediaTypeOther, rec.MediaType)
		assert.Nil(t, rec.Media)
	})

	t.Run("saturated", func(t *testing.T) {
		f := newFixture(t)
		for range admission.DefaultLimit {
			_, err := f.counter.IncrementIfBelow(ctx, admission.DefaultPartitionKey, admission.DefaultLimit)
			require.NoError(t, err)
		}
		_, err := f.steps.DetectAndValidateMedia(ctx, prepared(t, f, "incoming/COLL-ITEM-tape.mp4", []byte("movie")))
		assert.Equal(t, ingest.ErrNameTooManyRetries, stepErrorName(t, err))
		assert.True(t, errors.Is(err, admission.ErrTooManyRetries))
	})
}

func TestRenderAndCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := prepared(t, f, "incoming/COLL-ITEM-side-a.wav", []byte("audio"))
	rec, err := f.steps.DetectAndValidateMedia(ctx, rec)
	require.NoError(t, err)
	rec, err = f.steps.TranscodeAudio(ctx, rec)
	require.NoError(t, err)
	assert.True(t, f.store.Exists(bucket, "output/COLL-ITEM-side-a.wav/COLL-ITEM-side-a.wav-access.mp3"))
	assert.Equal(t, []string{"audio"}, f.tools.Conversions())

	rec, err = f.steps.ExtractAudioMetadata(ctx, rec)
	require.NoError(t, err)
	rec, err = f.steps.AddToCatalog(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"COLL/ITEM/COLL-ITEM-side-a.wav", "COLL/ITEM/COLL-ITEM-side-a.wav-access.mp3"}, f.store.Keys("catalog"))
	assert.Equal(t, []string{"COLL/ITEM/COLL-ITEM-side-a.wav", "COLL/ITEM/COLL-ITEM-side-a.wav-access.mp3"}, rec.Outputs)
	assert.False(t, f.store.Exists(bucket, "output/COLL-ITEM-side-a.wav/COLL-ITEM-side-a.wav-access.mp3"), "staging consumed")
	assert.True(t, f.store.Exists(bucket, "incoming/COLL-ITEM-side-a.wav"), "original left for the finalizer")

	essences := f.catalog.Essences("COLL", "ITEM")
	require.Len(t, essences, 1)
	assert.Equal(t, "audio", essences[0].MediaType)
	assert.Equal(t, 96000, essences[0].SampleRate)
}

func TestRenderToolFailure(t *testing.T) {
	f := newFixture(t)
	f.tools.ConvertErr = ingest.ExternalTool("ffmpeg", errors.New("exit status 1"), "Invalid data found")
	ctx := context.Background()

	rec := prepared(t, f, "incoming/COLL-ITEM-tape.mp4", []byte("movie"))
	_, err := f.steps.TranscodeVideo(ctx, rec)
	assert.Equal(t, ingest.ErrNameValidation, stepErrorName(t, err))
	assert.Empty(t, f.store.Keys("catalog"))

	count, err := f.counter.Current(ctx, admission.DefaultPartitionKey)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestExtractMetadataRequiresStreams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.steps.ExtractVideoMetadata(ctx, ingest.Record{ObjectKey: "incoming/COLL-ITEM-a.mp4"})
	assert.Equal(t, ingest.ErrNameValidation, stepErrorName(t, err))
	_, err = f.steps.ExtractImageMetadata(ctx, ingest.Record{ObjectKey: "incoming/COLL-ITEM-a.tif"})
	assert.Equal(t, ingest.ErrNameValidation, stepErrorName(t, err))
	_, err = f.steps.ExtractOtherMetadata(ctx, ingest.Record{ObjectKey: "incoming/COLL-ITEM-a.txt"})
	require.NoError(t, err)
}

func TestProcessSpecialFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.steps.IsSpecial(ingest.Record{ObjectKey: "incoming/COLL-deposit.pdf"})
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := f.steps.ProcessSpecialFile(ctx, f.deposit("incoming/COLL-deposit.pdf", []byte("%PDF")))
	require.NoError(t, err)
	assert.True(t, rec.IsSpecial)
	assert.Equal(t, []string{"COLL/pdsc_admin/COLL-deposit.pdf"}, rec.Outputs)
	assert.True(t, f.store.Exists("catalog", "COLL/pdsc_admin/COLL-deposit.pdf"))

	_, err = f.steps.ProcessSpecialFile(ctx, f.deposit("incoming/OTHER-deposit.pdf", []byte("%PDF")))
	assert.Equal(t, ingest.ErrNameValidation, stepErrorName(t, err))
}
