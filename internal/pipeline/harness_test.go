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

package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/mediarunner/internal/admission"
	"github.com/cardinalhq/mediarunner/internal/catalog"
	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/notify"
	"github.com/cardinalhq/mediarunner/internal/objstore"
	"github.com/cardinalhq/mediarunner/internal/steps"
	"github.com/cardinalhq/mediarunner/internal/steps/stepstest"
)

const (
	bucket    = "ingest"
	principal = "AWS:AIDAEXAMPLE:jane"
)

type fakeClock struct {
	mu      sync.Mutex
	sleeps  []time.Duration
	onSleep func(ctx context.Context, n int)
}

func (c *fakeClock) Now() time.Time { return time.Now() }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	n := len(c.sleeps)
	c.mu.Unlock()
	if c.onSleep != nil {
		c.onSleep(ctx, n)
	}
	return context.Cause(ctx)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type harness struct {
	store    *objstore.Memory
	catalog  *catalog.Memory
	counter  *admission.MemoryStore
	tools    *stepstest.FakeToolchain
	notifier *notify.Recorder
	history  *MemoryHistory
	clock    *fakeClock
	engine   *Engine
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithGraph(t, DefaultGraphOptions())
}

func newHarnessWithGraph(t *testing.T, graph GraphOptions) *harness {
	t.Helper()
	h := &harness{
		store:    objstore.NewMemory(),
		catalog:  catalog.NewMemory(),
		counter:  admission.NewMemoryStore(),
		tools:    &stepstest.FakeToolchain{Tracks: stepstest.SampleTracks},
		notifier: &notify.Recorder{},
		history:  NewMemoryHistory(),
		clock:    &fakeClock{},
	}
	h.catalog.AddCollection(catalog.Collection{Identifier: "COLL"})
	h.catalog.AddItem(catalog.Item{CollectionIdentifier: "COLL", Identifier: "ITEM", MetadataExportable: true})

	cfg := steps.DefaultConfig()
	cfg.CatalogBucket = "catalog"
	cfg.ScratchDir = t.TempDir()
	sem := admission.NewSemaphore(h.counter,
		admission.WithSleep(func(context.Context, time.Duration) error { return nil }))
	st := steps.New(cfg, h.store, h.catalog, sem, h.tools)

	engine, err := NewEngine(Config{Graph: graph, MaxConcurrentExecutions: 4}, Deps{
		Steps:    st,
		Store:    h.store,
		Notifier: h.notifier,
		History:  h.history,
		Clock:    h.clock,
	})
	require.NoError(t, err)
	h.engine = engine
	return h
}

func (h *harness) deposit(key string, data []byte) ingest.Record {
	h.store.Put(bucket, key, data, nil)
	return ingest.Record{
		BucketName:  bucket,
		ObjectKey:   key,
		ObjectSize:  int64(len(data)),
		PrincipalID: principal,
		Notes:       []string{},
	}
}

func (h *harness) run(t *testing.T, rec ingest.Record) Result {
	t.Helper()
	return h.engine.Run(context.Background(), rec)
}

func count(states []string, name string) int {
	n := 0
	for _, s := range states {
		if s == name {
			n++
		}
	}
	return n
}

func (h *harness) permitsHeld(t *testing.T) int {
	t.Helper()
	n, err := h.counter.Current(context.Background(), admission.DefaultPartitionKey)
	require.NoError(t, err)
	return n
}
