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
	"log/slog"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/logctx"
	"github.com/cardinalhq/mediarunner/internal/objstore"
)

// Starter begins an execution and returns its ID.
type Starter interface {
	Start(ctx context.Context, rec ingest.Record) (string, error)
}

type Options struct {
	// DedupTTL is how long a started object is remembered so redelivered
	// notifications do not start it twice.
	DedupTTL time.Duration
	// LookupTimeout bounds the tag lookup for one object.
	LookupTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{DedupTTL: time.Hour, LookupTimeout: 30 * time.Second}
}

type Trigger struct {
	store   objstore.Store
	starter Starter
	opts    Options
	seen    *ttlcache.Cache[string, string]
}

func New(store objstore.Store, starter Starter, opts Options) *Trigger {
	seen := ttlcache.New(
		ttlcache.WithTTL[string, string](opts.DedupTTL),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	return &Trigger{store: store, starter: starter, opts: opts, seen: seen}
}

// Run evicts expired dedup entries until ctx is done.
func (t *Trigger) Run(ctx context.Context) {
	go t.seen.Start()
	<-ctx.Done()
	t.seen.Stop()
}

// Handle starts an execution for every eligible object in one
// notification. ctx is the lifetime of the started executions. An error
// means the notification should be redelivered; objects already started
// are remembered and will not start again.
func (t *Trigger) Handle(ctx context.Context, raw []byte) ([]string, error) {
	objects, err := ParseS3Event(raw)
	if err != nil {
		return nil, err
	}
	var (
		started []string
		errs    []error
	)
	for _, obj := range objects {
		id, err := t.HandleObject(ctx, obj)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if id != "" {
			started = append(started, id)
		}
	}
	return started, errors.Join(errs...)
}

// HandleObject starts one execution unless the object is a duplicate,
// gone, or tagged manual. It returns "" when nothing was started.
func (t *Trigger) HandleObject(ctx context.Context, obj Object) (string, error) {
	ll := logctx.FromContext(ctx).With(slog.String("bucket", obj.Bucket), slog.String("objectKey", obj.Key))
	objectsReceived.Add(ctx, 1)

	dedupKey := obj.Bucket + "/" + obj.Key + "@" + obj.Sequencer
	if item := t.seen.Get(dedupKey); item != nil {
		ll.Info("Duplicate notification, skipping", slog.String("executionID", item.Value()))
		skipped(ctx, "duplicate")
		return "", nil
	}

	manual, err := t.isManual(ctx, obj)
	if errors.Is(err, objstore.ErrNotFound) {
		ll.Info("Object no longer exists, skipping")
		skipped(ctx, "missing")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read tags for %s: %w", obj.Key, err)
	}
	if manual {
		ll.Info("Object is tagged for manual processing, skipping")
		skipped(ctx, "manual")
		return "", nil
	}

	id, err := t.starter.Start(ctx, RecordFor(obj))
	if err != nil {
		return "", fmt.Errorf("start execution for %s: %w", obj.Key, err)
	}
	t.seen.Set(dedupKey, id, ttlcache.DefaultTTL)
	executionsStarted.Add(ctx, 1)
	ll.Info("Execution started", slog.String("executionID", id))
	return id, nil
}

func (t *Trigger) isManual(ctx context.Context, obj Object) (bool, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, t.opts.LookupTimeout)
	defer cancel()
	tags, err := t.store.Tags(lookupCtx, obj.Bucket, obj.Key)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(tags[ingest.ManualTagKey], "true"), nil
}

// RecordFor builds the initial execution record for obj.
func RecordFor(obj Object) ingest.Record {
	return ingest.Record{
		BucketName:  obj.Bucket,
		ObjectKey:   obj.Key,
		ObjectSize:  obj.Size,
		PrincipalID: obj.PrincipalID,
		Notes:       []string{},
	}
}

func skipped(ctx context.Context, reason string) {
	objectsSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
