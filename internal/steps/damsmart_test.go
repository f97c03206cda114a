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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/objstore"
	"github.com/cardinalhq/mediarunner/internal/steps"
)

func damsmartRecord(t *testing.T, f *fixture, key string) ingest.Record {
	t.Helper()
	ctx := context.Background()
	rec, err := f.steps.MetadataChecks(ctx, f.deposit(key, []byte("data")))
	require.NoError(t, err)
	rec, err = f.steps.DamsmartInit(ctx, rec)
	require.NoError(t, err)
	return rec
}

func TestCheckDamsmartCompanion(t *testing.T) {
	ctx := context.Background()

	t.Run("absent companion waits", func(t *testing.T) {
		f := newFixture(t)
		rec, err := f.steps.CheckDamsmartCompanion(ctx, damsmartRecord(t, f, "damsmart/COLL-ITEM-tape.mkv"))
		require.NoError(t, err)
		assert.Equal(t, ingest.OutcomeWait, rec.Meta.Outcome)
		assert.Empty(t, rec.Meta.CompanionKey)
	})

	t.Run("primary catalogs the pair", func(t *testing.T) {
		f := newFixture(t)
		rec := damsmartRecord(t, f, "damsmart/COLL-ITEM-tape.mkv")
		f.store.Put(bucket, "damsmart/COLL-ITEM-tape.wav", []byte("sidecar"), nil)
		f.store.Put(bucket, "damsmart/COLL-ITEM-tape.extra.wav", []byte("unrelated"), nil)

		rec, err := f.steps.CheckDamsmartCompanion(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, ingest.OutcomeCatalogPair, rec.Meta.Outcome)
		assert.Equal(t, "damsmart/COLL-ITEM-tape.wav", rec.Meta.CompanionKey)
		assert.Equal(t, int64(7), rec.Meta.CompanionSize)
	})

	t.Run("secondary defers to the primary", func(t *testing.T) {
		f := newFixture(t)
		rec := damsmartRecord(t, f, "damsmart/COLL-ITEM-tape.wav")
		f.store.Put(bucket, "damsmart/COLL-ITEM-tape.mkv", []byte("video"), nil)

		rec, err := f.steps.CheckDamsmartCompanion(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, ingest.OutcomeCompanionDone, rec.Meta.Outcome)
	})

	t.Run("same role ties on key order", func(t *testing.T) {
		f := newFixture(t)
		a := damsmartRecord(t, f, "damsmart/COLL-ITEM-tape.mkv")
		b := damsmartRecord(t, f, "damsmart/COLL-ITEM-tape.mp4")

		a, err := f.steps.CheckDamsmartCompanion(ctx, a)
		require.NoError(t, err)
		b, err = f.steps.CheckDamsmartCompanion(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, ingest.OutcomeCatalogPair, a.Meta.Outcome)
		assert.Equal(t, ingest.OutcomeCompanionDone, b.Meta.Outcome)
	})

	t.Run("consumed object is done", func(t *testing.T) {
		f := newFixture(t)
		rec := damsmartRecord(t, f, "damsmart/COLL-ITEM-tape.wav")
		require.NoError(t, f.store.Delete(ctx, bucket, rec.ObjectKey))

		rec, err := f.steps.CheckDamsmartCompanion(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, ingest.OutcomeCompanionDone, rec.Meta.Outcome)
	})

	t.Run("ambiguous companions fail", func(t *testing.T) {
		f := newFixture(t)
		rec := damsmartRecord(t, f, "damsmart/COLL-ITEM-tape.mkv")
		f.store.Put(bucket, "damsmart/COLL-ITEM-tape.wav", []byte("a"), nil)
		f.store.Put(bucket, "damsmart/COLL-ITEM-tape.flac", []byte("b"), nil)

		_, err := f.steps.CheckDamsmartCompanion(ctx, rec)
		assert.Equal(t, ingest.ErrNameValidation, stepErrorName(t, err))
	})
}

func TestDownloadVanishedOriginal(t *testing.T) {
	ctx := context.Background()

	t.Run("cataloged by its companion", func(t *testing.T) {
		f := newFixture(t)
		rec, err := f.steps.MetadataChecks(ctx, f.deposit("damsmart/COLL-ITEM-tape.wav", []byte("sidecar")))
		require.NoError(t, err)
		require.NoError(t, f.store.Delete(ctx, bucket, rec.ObjectKey))
		f.store.Put("catalog", "COLL/ITEM/COLL-ITEM-tape.wav", []byte("sidecar"), nil)

		rec, err = f.steps.DownloadMedia(ctx, rec)
		require.NoError(t, err)
		require.NotNil(t, rec.Meta)
		assert.Equal(t, ingest.OutcomeCompanionDone, rec.Meta.Outcome)
		assert.Empty(t, rec.ScratchPath)
	})

	t.Run("never cataloged", func(t *testing.T) {
		f := newFixture(t)
		rec, err := f.steps.MetadataChecks(ctx, f.deposit("damsmart/COLL-ITEM-tape.wav", []byte("sidecar")))
		require.NoError(t, err)
		require.NoError(t, f.store.Delete(ctx, bucket, rec.ObjectKey))

		_, err = f.steps.DownloadMedia(ctx, rec)
		assert.ErrorIs(t, err, objstore.ErrNotFound)
	})

	t.Run("incoming originals always fail", func(t *testing.T) {
		f := newFixture(t)
		rec, err := f.steps.MetadataChecks(ctx, f.deposit("incoming/COLL-ITEM-tape.wav", []byte("audio")))
		require.NoError(t, err)
		require.NoError(t, f.store.Delete(ctx, bucket, rec.ObjectKey))
		f.store.Put("catalog", "COLL/ITEM/COLL-ITEM-tape.wav", []byte("audio"), nil)

		_, err = f.steps.DownloadMedia(ctx, rec)
		assert.ErrorIs(t, err, objstore.ErrNotFound)
	})
}

func TestDamsmartIncrementIsBounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := damsmartRecord(t, f, "damsmart/COLL-ITEM-tape.mkv")

	for i := 1; i <= steps.CompanionCheckLimit; i++ {
		var err error
		rec, err = f.steps.DamsmartIncrement(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, i, rec.Meta.RetryCount)
	}
	reached, err := steps.RetryLimitReached(rec)
	require.NoError(t, err)
	assert.True(t, reached)

	_, err = f.steps.DamsmartIncrement(ctx, rec)
	require.Error(t, err)
}

func TestPrepareCompanionAndJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := damsmartRecord(t, f, "damsmart/COLL-ITEM-tape.mkv")
	f.store.Put(bucket, "damsmart/COLL-ITEM-tape.wav", []byte("sidecar"), nil)
	rec, err := f.steps.CheckDamsmartCompanion(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, rec.SetMediaType(ingest.MediaTypeVideo))

	primary := rec.Clone()
	primary.Note("primary cataloged")
	primary.Outputs = append(primary.Outputs, "COLL/ITEM/COLL-ITEM-tape.mkv")

	companion, err := f.steps.PrepareCompanion(ctx, rec.Clone())
	require.NoError(t, err)
	assert.Equal(t, "damsmart/COLL-ITEM-tape.wav", companion.ObjectKey)
	assert.Equal(t, int64(7), companion.ObjectSize)
	assert.Equal(t, "wav", companion.Details.Extension)
	assert.Empty(t, companion.MediaType)
	assert.True(t, companion.Meta.IsCompanion)
	assert.Equal(t, "damsmart/COLL-ITEM-tape.mkv", companion.Meta.CompanionKey)
	companion.Outputs = append(companion.Outputs, "COLL/ITEM/COLL-ITEM-tape.wav")

	joined, err := f.steps.JoinPair(rec, []ingest.Record{primary, companion})
	require.NoError(t, err)
	assert.Equal(t, "damsmart/COLL-ITEM-tape.mkv", joined.ObjectKey)
	assert.Equal(t, []string{"COLL/ITEM/COLL-ITEM-tape.mkv", "COLL/ITEM/COLL-ITEM-tape.wav"}, joined.Outputs)
	assert.True(t, joined.Meta.CompanionCataloged)
	assert.Equal(t, "primary cataloged", joined.Notes[len(rec.Notes)])
	assert.Equal(t, "Processing companion COLL-ITEM-tape.wav", joined.Notes[len(joined.Notes)-1])
}
