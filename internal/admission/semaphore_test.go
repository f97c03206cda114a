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

package admission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
	hook   func()
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func fixedJitter(time.Duration) time.Duration { return 7 * time.Millisecond }

func current(t *testing.T, store CounterStore) int {
	t.Helper()
	n, err := store.Current(context.Background(), DefaultPartitionKey)
	require.NoError(t, err)
	return n
}

func TestConcurrentAcquiresUpToLimit(t *testing.T) {
	for n := 1; n <= DefaultLimit; n++ {
		store := NewMemoryStore()
		sem := NewSemaphore(store, WithSleep((&sleepRecorder{}).sleep))

		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = sem.Acquire(context.Background())
			}()
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		assert.Equal(t, n, current(t, store))
	}
}

func TestAcquireAtLimitExhaustsRetries(t *testing.T) {
	store := NewMemoryStore()
	rec := &sleepRecorder{}
	sem := NewSemaphore(store, WithSleep(rec.sleep), WithJitter(fixedJitter))
	ctx := context.Background()

	for range DefaultLimit {
		require.NoError(t, sem.Acquire(ctx))
	}

	err := sem.Acquire(ctx)
	require.ErrorIs(t, err, ErrTooManyRetries)
	assert.Equal(t, DefaultLimit, current(t, store))

	jitter := 7 * time.Millisecond
	assert.Equal(t, []time.Duration{
		100*time.Millisecond + jitter,
		200*time.Millisecond + jitter,
		400*time.Millisecond + jitter,
		800*time.Millisecond + jitter,
		1600*time.Millisecond + jitter,
	}, rec.sleeps, "one first attempt plus five retries")
}

func TestAcquireAtLimitSucceedsAfterRelease(t *testing.T) {
	store := NewMemoryStore()
	rec := &sleepRecorder{}
	sem := NewSemaphore(store, WithSleep(rec.sleep), WithJitter(fixedJitter))
	ctx := context.Background()

	for range DefaultLimit {
		require.NoError(t, sem.Acquire(ctx))
	}
	calls := 0
	rec.hook = func() {
		calls++
		if calls == 2 {
			sem.Release(ctx)
		}
	}

	require.NoError(t, sem.Acquire(ctx))
	assert.Len(t, rec.sleeps, 2)
	assert.Equal(t, DefaultLimit, current(t, store))
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	store := NewMemoryStore()
	sem := NewSemaphore(store)
	ctx := context.Background()

	require.NoError(t, sem.Acquire(ctx))
	for range 3 {
		sem.Release(ctx)
	}
	assert.Equal(t, 0, current(t, store))
}

func TestDoReleasesOnEveryExitPath(t *testing.T) {
	store := NewMemoryStore()
	sem := NewSemaphore(store)
	ctx := context.Background()

	require.NoError(t, sem.Acquire(ctx))
	before := current(t, store)

	boom := errors.New("transcode failed")
	err := sem.Do(ctx, func(context.Context) error {
		assert.Equal(t, before+1, current(t, store))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, before, current(t, store))

	assert.Panics(t, func() {
		_ = sem.Do(ctx, func(context.Context) error { panic("codec crashed") })
	})
	assert.Equal(t, before, current(t, store))

	require.NoError(t, sem.Do(ctx, func(context.Context) error { return nil }))
	assert.Equal(t, before, current(t, store))
}

func TestDoDoesNotRunWithoutPermit(t *testing.T) {
	store := NewMemoryStore()
	sem := NewSemaphore(store, WithLimit(1), WithRetries(0))
	ctx := context.Background()
	require.NoError(t, sem.Acquire(ctx))

	ran := false
	err := sem.Do(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, ErrTooManyRetries)
	assert.False(t, ran)
	assert.Equal(t, 1, current(t, store))
}

type brokenStore struct{ MemoryStore }

func (*brokenStore) IncrementIfBelow(context.Context, string, int) (int, error) {
	return 0, errors.New("connection refused")
}

func (*brokenStore) DecrementIfPositive(context.Context, string) (int, error) {
	return 0, errors.New("connection refused")
}

func TestStoreErrorsAreNotRetried(t *testing.T) {
	rec := &sleepRecorder{}
	sem := NewSemaphore(&brokenStore{}, WithSleep(rec.sleep))

	err := sem.Acquire(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTooManyRetries)
	assert.Empty(t, rec.sleeps)

	assert.NotPanics(t, func() { sem.Release(context.Background()) })
}

func TestAcquireStopsWhenContextEnds(t *testing.T) {
	store := NewMemoryStore()
	sem := NewSemaphore(store, WithLimit(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sem.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDrain(t *testing.T) {
	store := NewMemoryStore()
	sem := NewSemaphore(store)
	ctx := context.Background()
	for range 4 {
		require.NoError(t, sem.Acquire(ctx))
	}

	n, err := sem.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	got, err := sem.Current(ctx)
	require.NoError(t, err)
	assert.Zero(t, got)
}
