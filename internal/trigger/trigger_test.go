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

package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/objstore"
)

func s3Notification(eventName, bucket, key string, size int64, sequencer string) []byte {
	return fmt.Appendf(nil, `{"Records":[{"eventName":%q,"userIdentity":{"principalId":"AWS:AIDAEXAMPLE:archivist@example.org"},
"s3":{"bucket":{"name":%q},"object":{"key":%q,"size":%d,"sequencer":%q}}}]}`,
		eventName, bucket, key, size, sequencer)
}

type fakeStarter struct {
	mu      sync.Mutex
	records []ingest.Record
	err     error
}

func (f *fakeStarter) Start(_ context.Context, rec ingest.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.records = append(f.records, rec)
	return fmt.Sprintf("exec-%d", len(f.records)), nil
}

func (f *fakeStarter) started() []ingest.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ingest.Record(nil), f.records...)
}

func newTrigger(t *testing.T) (*Trigger, *objstore.Memory, *fakeStarter) {
	t.Helper()
	store := objstore.NewMemory()
	starter := &fakeStarter{}
	opts := DefaultOptions()
	opts.DedupTTL = time.Minute
	return New(store, starter, opts), store, starter
}

func TestParseS3Event(t *testing.T) {
	objs, err := ParseS3Event(s3Notification("ObjectCreated:Put", "ingest", "incoming/COLL-ITEM-side+a%281%29.wav", 42, "0A1"))
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, Object{
		Bucket:      "ingest",
		Key:         "incoming/COLL-ITEM-side a(1).wav",
		Size:        42,
		PrincipalID: "AWS:AIDAEXAMPLE:archivist@example.org",
		Sequencer:   "0A1",
	}, objs[0])

	tests := []struct {
		name string
		raw  []byte
	}{
		{"staging output", s3Notification("ObjectCreated:Put", "ingest", "output/COLL-ITEM-a.wav/a.mp3", 1, "1")},
		{"rejected", s3Notification("ObjectCreated:Copy", "ingest", "rejected/COLL-ITEM-a.wav", 1, "1")},
		{"directory marker", s3Notification("ObjectCreated:Put", "ingest", "incoming/", 0, "1")},
		{"removal", s3Notification("ObjectRemoved:Delete", "ingest", "incoming/COLL-ITEM-a.wav", 0, "1")},
		{"test event", []byte(`{"Service":"Amazon S3","Event":"s3:TestEvent","Bucket":"ingest"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objs, err := ParseS3Event(tt.raw)
			require.NoError(t, err)
			assert.Empty(t, objs)
		})
	}

	_, err = ParseS3Event([]byte("not json"))
	require.Error(t, err)
}

func TestHandleStartsExecution(t *testing.T) {
	trig, store, starter := newTrigger(t)
	store.Put("ingest", "damsmart/COLL-ITEM-tape.mkv", []byte("x"), nil)

	ids, err := trig.Handle(context.Background(), s3Notification("ObjectCreated:Put", "ingest", "damsmart/COLL-ITEM-tape.mkv", 1, "1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"exec-1"}, ids)

	recs := starter.started()
	require.Len(t, recs, 1)
	assert.Equal(t, "ingest", recs[0].BucketName)
	assert.Equal(t, "damsmart/COLL-ITEM-tape.mkv", recs[0].ObjectKey)
	assert.Equal(t, int64(1), recs[0].ObjectSize)
	assert.Equal(t, "AWS:AIDAEXAMPLE:archivist@example.org", recs[0].PrincipalID)
	assert.NotNil(t, recs[0].Notes)
	assert.Empty(t, recs[0].ID)
}

func TestManualTagNeverStarts(t *testing.T) {
	trig, store, starter := newTrigger(t)
	for _, v := range []string{"true", "TRUE"} {
		key := "incoming/COLL-ITEM-" + v + ".wav"
		store.Put("ingest", key, []byte("x"), map[string]string{ingest.ManualTagKey: v})

		ids, err := trig.Handle(context.Background(), s3Notification("ObjectCreated:Put", "ingest", key, 1, "1"))
		require.NoError(t, err)
		assert.Empty(t, ids)
	}
	assert.Empty(t, starter.started())

	store.Put("ingest", "incoming/COLL-ITEM-auto.wav", []byte("x"), map[string]string{ingest.ManualTagKey: "false"})
	ids, err := trig.Handle(context.Background(), s3Notification("ObjectCreated:Put", "ingest", "incoming/COLL-ITEM-auto.wav", 1, "1"))
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestDuplicateNotificationStartsOnce(t *testing.T) {
	trig, store, starter := newTrigger(t)
	store.Put("ingest", "incoming/COLL-ITEM-a.wav", []byte("x"), nil)
	raw := s3Notification("ObjectCreated:Put", "ingest", "incoming/COLL-ITEM-a.wav", 1, "0001")

	for range 3 {
		_, err := trig.Handle(context.Background(), raw)
		require.NoError(t, err)
	}
	assert.Len(t, starter.started(), 1)

	// A re-upload carries a new sequencer.
	_, err := trig.Handle(context.Background(), s3Notification("ObjectCreated:Put", "ingest", "incoming/COLL-ITEM-a.wav", 1, "0002"))
	require.NoError(t, err)
	assert.Len(t, starter.started(), 2)
}

func TestMissingObjectIsSkipped(t *testing.T) {
	trig, _, starter := newTrigger(t)
	ids, err := trig.Handle(context.Background(), s3Notification("ObjectCreated:Put", "ingest", "incoming/COLL-ITEM-gone.wav", 1, "1"))
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, starter.started())
}

func TestStartFailureIsRedelivered(t *testing.T) {
	trig, store, starter := newTrigger(t)
	store.Put("ingest", "incoming/COLL-ITEM-a.wav", []byte("x"), nil)
	raw := s3Notification("ObjectCreated:Put", "ingest", "incoming/COLL-ITEM-a.wav", 1, "1")

	starter.err = errors.New("shutting down")
	_, err := trig.Handle(context.Background(), raw)
	require.Error(t, err)

	starter.err = nil
	ids, err := trig.Handle(context.Background(), raw)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}
