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

// Package admission bounds the number of heavy steps running at once
// across every worker. The bound lives in a single shared counter that is
// only ever changed through conditional updates.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/mediarunner/internal/logctx"
)

const (
	DefaultPartitionKey = "global"
	DefaultLimit        = 10
	DefaultRetries      = 5
	DefaultBaseBackoff  = 100 * time.Millisecond
	DefaultMaxJitter    = 100 * time.Millisecond
)

var (
	// ErrConditionFailed is returned by a CounterStore when the update's
	// precondition does not hold.
	ErrConditionFailed = errors.New("counter condition failed")

	// ErrTooManyRetries is returned by Acquire once every attempt met a
	// full counter.
	ErrTooManyRetries = errors.New("too many retries acquiring admission")
)

// CounterStore is the shared counter. Implementations must apply each
// update atomically against the stored value.
type CounterStore interface {
	// IncrementIfBelow adds one when the current value is below limit. A
	// missing counter counts as zero.
	IncrementIfBelow(ctx context.Context, key string, limit int) (int, error)
	// DecrementIfPositive subtracts one when the current value is above zero.
	DecrementIfPositive(ctx context.Context, key string) (int, error)
	// Current reads the value without changing it.
	Current(ctx context.Context, key string) (int, error)
}

// Semaphore hands out admission permits backed by a CounterStore.
type Semaphore struct {
	store       CounterStore
	key         string
	limit       int
	retries     int
	baseBackoff time.Duration
	maxJitter   time.Duration
	sleep       func(context.Context, time.Duration) error
	jitter      func(time.Duration) time.Duration
}

type Option func(*Semaphore)

func WithPartitionKey(key string) Option {
	return func(s *Semaphore) { s.key = key }
}

func WithLimit(limit int) Option {
	return func(s *Semaphore) { s.limit = limit }
}

// WithRetries sets how many attempts follow the first one.
func WithRetries(n int) Option {
	return func(s *Semaphore) { s.retries = n }
}

func WithBackoff(base, maxJitter time.Duration) Option {
	return func(s *Semaphore) {
		s.baseBackoff = base
		s.maxJitter = maxJitter
	}
}

// WithSleep replaces the sleep between attempts.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(s *Semaphore) { s.sleep = fn }
}

// WithJitter replaces the jitter source. fn receives the jitter ceiling.
func WithJitter(fn func(time.Duration) time.Duration) Option {
	return func(s *Semaphore) { s.jitter = fn }
}

func NewSemaphore(store CounterStore, opts ...Option) *Semaphore {
	s := &Semaphore{
		store:       store,
		key:         DefaultPartitionKey,
		limit:       DefaultLimit,
		retries:     DefaultRetries,
		baseBackoff: DefaultBaseBackoff,
		maxJitter:   DefaultMaxJitter,
		sleep:       sleepContext,
		jitter:      randomJitter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Semaphore) Limit() int { return s.limit }

func (s *Semaphore) Key() string { return s.key }

// Backoff is the pause before attempt n+1, without jitter.
func (s *Semaphore) Backoff(n int) time.Duration {
	return s.baseBackoff << n
}

// Acquire takes one permit. Contention is retried with exponential
// backoff and jitter; any other store error is returned immediately.
func (s *Semaphore) Acquire(ctx context.Context) error {
	ll := logctx.FromContext(ctx)
	for attempt := 0; ; attempt++ {
		count, err := s.store.IncrementIfBelow(ctx, s.key, s.limit)
		acquireAttempts.Add(ctx, 1, metric.WithAttributes(attribute.Bool("admitted", err == nil)))
		if err == nil {
			ll.Debug("Admission acquired", slog.Int("currentCount", count), slog.Int("attempt", attempt))
			return nil
		}
		if !errors.Is(err, ErrConditionFailed) {
			return fmt.Errorf("acquire admission: %w", err)
		}
		if attempt >= s.retries {
			acquireExhausted.Add(ctx, 1)
			return fmt.Errorf("%w: counter %s at limit %d after %d attempts", ErrTooManyRetries, s.key, s.limit, attempt+1)
		}
		wait := s.Backoff(attempt) + s.jitter(s.maxJitter)
		ll.Debug("Admission contended, backing off", slog.Int("attempt", attempt), slog.Duration("wait", wait))
		if err := s.sleep(ctx, wait); err != nil {
			return fmt.Errorf("acquire admission: %w", err)
		}
	}
}

// Release returns one permit. Failures are logged and never returned, so
// they cannot mask the outcome of the protected work.
func (s *Semaphore) Release(ctx context.Context) {
	// Release must happen even when the caller's context is already done.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	count, err := s.store.DecrementIfPositive(ctx, s.key)
	switch {
	case errors.Is(err, ErrConditionFailed):
		releaseErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "already_zero")))
		logctx.FromContext(ctx).Warn("Admission counter already at zero on release", slog.String("key", s.key))
	case err != nil:
		releaseErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "store")))
		logctx.FromContext(ctx).Error("Failed to release admission", slog.String("key", s.key), slog.Any("error", err))
	default:
		logctx.FromContext(ctx).Debug("Admission released", slog.Int("currentCount", count))
	}
}

// Do runs fn while holding a permit. The permit is returned on every exit
// path of fn, panics included.
func (s *Semaphore) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := s.Acquire(ctx); err != nil {
		return err
	}
	defer s.Release(ctx)
	return fn(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(ceiling time.Duration) time.Duration {
	if ceiling <= 0 {
		return 0
	}
	return rand.N(ceiling)
}

// Drain decrements the counter to zero, one conditional update at a
// time, and reports how many permits it returned. Operators use it to
// recover permits leaked by workers that died mid-step.
func (s *Semaphore) Drain(ctx context.Context) (int, error) {
	drained := 0
	for {
		_, err := s.store.DecrementIfPositive(ctx, s.key)
		if errors.Is(err, ErrConditionFailed) {
			return drained, nil
		}
		if err != nil {
			return drained, fmt.Errorf("drain admission counter: %w", err)
		}
		drained++
	}
}

// Current reads the counter.
func (s *Semaphore) Current(ctx context.Context) (int, error) {
	return s.store.Current(ctx, s.key)
}
