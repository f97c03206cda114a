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
	"fmt"

	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/notify"
	"github.com/cardinalhq/mediarunner/internal/objstore"
)

// Finalizer removes consumed originals and tells the uploader the
// deposit was cataloged.
type Finalizer struct {
	store    objstore.Store
	notifier notify.Notifier
}

func NewFinalizer(store objstore.Store, notifier notify.Notifier) *Finalizer {
	return &Finalizer{store: store, notifier: notifier}
}

func (f *Finalizer) Finalize(ctx context.Context, rec ingest.Record) (ingest.Record, error) {
	// The primary half of a DAMSmart pair owns both originals.
	if rec.Meta == nil || rec.Meta.Outcome != ingest.OutcomeCompanionDone {
		if err := f.store.Delete(ctx, rec.BucketName, rec.ObjectKey); err != nil {
			return rec, fmt.Errorf("remove original %s: %w", rec.ObjectKey, err)
		}
		rec.Note("Removed original %s", rec.ObjectKey)
	}
	if rec.Meta != nil && rec.Meta.CompanionCataloged && rec.Meta.CompanionKey != "" {
		if err := f.store.Delete(ctx, rec.BucketName, rec.Meta.CompanionKey); err != nil {
			return rec, fmt.Errorf("remove companion %s: %w", rec.Meta.CompanionKey, err)
		}
		rec.Note("Removed companion %s", rec.Meta.CompanionKey)
	}

	send(ctx, f.notifier, notify.Message{
		Outcome:     notify.OutcomeSuccess,
		ExecutionID: rec.ID,
		PrincipalID: rec.PrincipalID,
		ObjectKey:   rec.ObjectKey,
		Notes:       rec.Notes,
		CatalogKeys: rec.Outputs,
	})
	return rec, nil
}
