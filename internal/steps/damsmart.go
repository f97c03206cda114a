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
	"path"

	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/objstore"
)

// DamsmartInit opens the companion wait loop.
func (s *Steps) DamsmartInit(_ context.Context, rec ingest.Record) (ingest.Record, error) {
	rec.Meta = &ingest.Meta{RetryCount: 0}
	rec.Note("Waiting for the DAMSmart companion of %s", rec.Filename())
	return rec, nil
}

// DamsmartIncrement advances the loop counter by one.
func (s *Steps) DamsmartIncrement(_ context.Context, rec ingest.Record) (ingest.Record, error) {
	if rec.Meta == nil {
		return rec, errors.New("companion counter used outside the DAMSmart flow")
	}
	if rec.Meta.RetryCount >= CompanionCheckLimit {
		return rec, fmt.Errorf("companion counter already at %d", rec.Meta.RetryCount)
	}
	meta := *rec.Meta
	meta.RetryCount++
	rec.Meta = &meta
	rec.Note("Companion not found yet, wait %d of %d", meta.RetryCount, CompanionCheckLimit)
	return rec, nil
}

// CheckDamsmartCompanion looks for the other half of the pair next to
// the current object. The file whose role is primary catalogs both.
func (s *Steps) CheckDamsmartCompanion(ctx context.Context, rec ingest.Record) (ingest.Record, error) {
	if rec.Meta == nil {
		return rec, errors.New("companion check outside the DAMSmart flow")
	}
	stem := ingest.Stem(rec.Filename())
	objs, err := s.store.List(ctx, rec.BucketName, path.Dir(rec.ObjectKey)+"/"+stem+".")
	if err != nil {
		return rec, fmt.Errorf("look for companion of %s: %w", rec.ObjectKey, err)
	}

	present := false
	var companions []objstore.ObjectInfo
	for _, obj := range objs {
		switch {
		case obj.Key == rec.ObjectKey:
			present = true
		case ingest.Stem(ingest.BaseName(obj.Key)) == stem:
			companions = append(companions, obj)
		}
	}
	if len(companions) > 1 {
		keys := make([]string, len(companions))
		for i, c := range companions {
			keys[i] = c.Key
		}
		return rec, ingest.ValidationWithData(map[string]any{"candidates": keys},
			"%s has %d possible companions", rec.Filename(), len(companions))
	}

	meta := *rec.Meta
	switch {
	case !present:
		meta.Outcome = ingest.OutcomeCompanionDone
		rec.Note("%s was already consumed by its companion", rec.Filename())
	case len(companions) == 0:
		meta.Outcome = ingest.OutcomeWait
		companionWait.Add(ctx, 1)
	default:
		c := companions[0]
		meta.CompanionKey = c.Key
		meta.CompanionSize = c.Size
		if s.isPrimary(rec.ObjectKey, c.Key) {
			meta.Outcome = ingest.OutcomeCatalogPair
			rec.Note("Companion %s found, cataloging the pair", ingest.BaseName(c.Key))
		} else {
			meta.Outcome = ingest.OutcomeCompanionDone
			rec.Note("Companion %s found, it catalogs the pair", ingest.BaseName(c.Key))
		}
	}
	rec.Meta = &meta
	return rec, nil
}

// isPrimary reports whether current rather than other drives cataloging.
// Ties on role go to the key that sorts first, so both executions agree.
func (s *Steps) isPrimary(current, other string) bool {
	cur := s.primary.Contains(extensionOf(current))
	oth := s.primary.Contains(extensionOf(other))
	if cur != oth {
		return cur
	}
	return current < other
}

func extensionOf(key string) string {
	d, err := ingest.ParseKey(key)
	if err != nil {
		return ""
	}
	return d.Extension
}

// PrepareCompanion turns the pair record into the companion's own event.
func (s *Steps) PrepareCompanion(_ context.Context, rec ingest.Record) (ingest.Record, error) {
	if rec.Meta == nil || rec.Meta.CompanionKey == "" {
		return rec, errors.New("no companion to prepare")
	}
	details, err := ingest.ParseKey(rec.Meta.CompanionKey)
	if err != nil {
		return rec, err
	}
	if rec.Details != nil && (details.CollectionIdentifier != rec.Details.CollectionIdentifier ||
		details.ItemIdentifier != rec.Details.ItemIdentifier) {
		return rec, ingest.ValidationWithData(map[string]any{"companionKey": rec.Meta.CompanionKey},
			"companion %s belongs to a different item", details.Filename)
	}

	// The companion's companion is the primary, so a failure in either
	// branch can still find both halves.
	meta := *rec.Meta
	meta.IsCompanion = true
	meta.CompanionKey, meta.CompanionSize = rec.ObjectKey, rec.ObjectSize
	rec.ObjectKey, rec.ObjectSize = rec.Meta.CompanionKey, rec.Meta.CompanionSize
	rec.Meta = &meta
	rec.Details = &details
	rec.MediaType = ""
	rec.MimeType = ""
	rec.Media = nil
	rec.ScratchPath = ""
	rec.Note("Processing companion %s", details.Filename)
	return rec, nil
}

// JoinPair merges the fan-out branches: the primary record, followed by
// what the companion branch added.
func (s *Steps) JoinPair(in ingest.Record, outs []ingest.Record) (ingest.Record, error) {
	if len(outs) != 2 {
		return in, fmt.Errorf("pair join expects 2 branches, got %d", len(outs))
	}
	primary, companion := outs[0], outs[1]
	out := primary.Clone()
	out.Notes = append(out.Notes, tail(companion.Notes, len(in.Notes))...)
	out.Outputs = append(out.Outputs, tail(companion.Outputs, len(in.Outputs))...)

	meta := ingest.Meta{}
	if out.Meta != nil {
		meta = *out.Meta
	}
	meta.CompanionCataloged = true
	out.Meta = &meta
	return out, nil
}

func tail(s []string, from int) []string {
	if from >= len(s) {
		return nil
	}
	return s[from:]
}
