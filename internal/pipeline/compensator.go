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
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/logctx"
	"github.com/cardinalhq/mediarunner/internal/notify"
	"github.com/cardinalhq/mediarunner/internal/objstore"
)

const cleanupConcurrency = 16

// Compensator returns a failed deposit to a safe state: the object is
// quarantined, its staged outputs are removed and the uploader is told
// why. Running it again for the same failure is harmless.
type Compensator struct {
	store    objstore.Store
	notifier notify.Notifier
}

func NewCompensator(store objstore.Store, notifier notify.Notifier) *Compensator {
	return &Compensator{store: store, notifier: notifier}
}

// Compensate only fails when the failure envelope cannot identify the
// object. Storage problems are reported to the uploader instead.
func (c *Compensator) Compensate(ctx context.Context, rec ingest.Record) (ingest.Record, error) {
	ll := logctx.FromContext(ctx)
	cause, err := rec.Failure.Cause()
	if err != nil {
		return rec, fmt.Errorf("compensate: %w", err)
	}
	ev := cause.Event
	if ev.ObjectKey == "" {
		return rec, errors.New("compensate: failed event has no objectKey")
	}

	keys := []string{ev.ObjectKey}
	if ev.Meta != nil && ev.Meta.Outcome == ingest.OutcomeCatalogPair && ev.Meta.CompanionKey != "" {
		keys = append(keys, ev.Meta.CompanionKey)
	}

	var problems *multierror.Error
	for _, key := range keys {
		if err := c.quarantine(ctx, &ev, key); err != nil {
			problems = multierror.Append(problems, err)
		}
	}
	for _, key := range keys {
		prefix := ingest.OutputPrefixFor(ingest.BaseName(key))
		n, err := c.cleanup(ctx, ev.BucketName, prefix)
		if err != nil {
			problems = multierror.Append(problems, err)
		}
		if n > 0 {
			ev.Note("Removed %d staged outputs under %s", n, prefix)
		}
	}

	data := cause.Data
	if err := problems.ErrorOrNil(); err != nil {
		ll.Error("Compensation incomplete", slog.Any("error", err))
		compensations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "incomplete")))
		if data == nil {
			data = map[string]any{}
		}
		data["compensationErrors"] = err.Error()
	} else {
		compensations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "complete")))
	}

	send(ctx, c.notifier, notify.Message{
		Outcome:     notify.OutcomeFailure,
		ExecutionID: ev.ID,
		PrincipalID: ev.PrincipalID,
		ObjectKey:   ev.ObjectKey,
		Text:        cause.Message,
		Data:        data,
		Notes:       ev.Notes,
	})

	out := rec
	out.Notes = ev.Notes
	return out, nil
}

// quarantine moves key to its rejected/ counterpart. A missing source is
// not an error: either an earlier run already moved it or it is gone.
func (c *Compensator) quarantine(ctx context.Context, ev *ingest.Record, key string) error {
	dst := ingest.RejectedKey(key)
	err := c.store.Copy(ctx, ev.BucketName, key, ev.BucketName, dst)
	if errors.Is(err, objstore.ErrNotFound) {
		if _, herr := c.store.Head(ctx, ev.BucketName, dst); herr == nil {
			ev.Note("%s was already quarantined", ingest.BaseName(key))
		} else {
			ev.Note("%s no longer exists, nothing to quarantine", ingest.BaseName(key))
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("quarantine %s: %w", key, err)
	}
	if err := c.store.Delete(ctx, ev.BucketName, key); err != nil {
		return fmt.Errorf("remove %s after quarantine: %w", key, err)
	}
	ev.Note("Moved %s to %s", ingest.BaseName(key), dst)
	return nil
}

// cleanup deletes everything under prefix concurrently and waits for all
// deletions. Individual failures are collected, not retried.
func (c *Compensator) cleanup(ctx context.Context, bucket, prefix string) (int, error) {
	objs, err := c.store.List(ctx, bucket, prefix)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", prefix, err)
	}

	var (
		mu     sync.Mutex
		result *multierror.Error
		g      errgroup.Group
	)
	g.SetLimit(cleanupConcurrency)
	for _, obj := range objs {
		g.Go(func() error {
			if err := c.store.Delete(ctx, bucket, obj.Key); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("delete %s: %w", obj.Key, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(objs), result.ErrorOrNil()
}

// send delivers n and only logs a delivery failure.
func send(ctx context.Context, n notify.Notifier, msg notify.Message) {
	if err := n.Notify(ctx, msg); err != nil {
		notifyErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(msg.Outcome))))
		logctx.FromContext(ctx).Error("Failed to notify uploader",
			slog.String("principalId", msg.PrincipalID),
			slog.Any("error", err))
	}
}
