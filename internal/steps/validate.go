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
	"strings"

	"github.com/cardinalhq/mediarunner/internal/catalog"
	"github.com/cardinalhq/mediarunner/internal/ingest"
)

// RejectEmptyFiles fails zero-byte deposits unless their extension is
// allowed to be empty.
func (s *Steps) RejectEmptyFiles(_ context.Context, rec ingest.Record) (ingest.Record, error) {
	if rec.ObjectSize > 0 {
		rec.Note("Received %s (%d bytes)", ingest.BaseName(rec.ObjectKey), rec.ObjectSize)
		return rec, nil
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(rec.ObjectKey), "."))
	if s.allowedEmpty.Contains(ext) {
		rec.Note("Accepted empty %s file", ext)
		return rec, nil
	}
	return rec, ingest.ValidationWithData(map[string]any{"objectKey": rec.ObjectKey, "extension": ext},
		"%s is empty", ingest.BaseName(rec.ObjectKey))
}

// IsSpecial guards the deposit-form path. Near-miss names fail closed.
func (s *Steps) IsSpecial(rec ingest.Record) (bool, error) {
	_, ok, err := ingest.MatchSpecial(rec.ObjectKey)
	return ok, err
}

// MetadataChecks parses the object key into Details.
func (s *Steps) MetadataChecks(_ context.Context, rec ingest.Record) (ingest.Record, error) {
	details, err := ingest.ParseKey(rec.ObjectKey)
	if err != nil {
		return rec, err
	}
	if rec.Details != nil && *rec.Details != details {
		return rec, fmt.Errorf("details already set for %s", rec.ObjectKey)
	}
	rec.Details = &details
	rec.IsDamsmart = strings.HasPrefix(rec.ObjectKey, ingest.DamsmartPrefix)
	rec.Note("Parsed collection %s, item %s", details.CollectionIdentifier, details.ItemIdentifier)
	if rec.IsDamsmart {
		rec.Note("File arrived through the DAMSmart drop")
	}
	return rec, nil
}

// CheckCatalogForItem requires the collection and item to exist and the
// item's metadata to be exportable.
func (s *Steps) CheckCatalogForItem(ctx context.Context, rec ingest.Record) (ingest.Record, error) {
	d := rec.Details
	if d == nil {
		return rec, errors.New("catalog check before metadata checks")
	}
	if _, err := s.catalog.GetCollection(ctx, d.CollectionIdentifier); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return rec, ingest.ValidationWithData(map[string]any{"collectionIdentifier": d.CollectionIdentifier},
				"collection %s is not in the catalog", d.CollectionIdentifier)
		}
		return rec, err
	}
	item, err := s.catalog.GetItem(ctx, d.CollectionIdentifier, d.ItemIdentifier)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return rec, ingest.ValidationWithData(
				map[string]any{"collectionIdentifier": d.CollectionIdentifier, "itemIdentifier": d.ItemIdentifier},
				"item %s-%s is not in the catalog", d.CollectionIdentifier, d.ItemIdentifier)
		}
		return rec, err
	}
	if !item.MetadataExportable {
		return rec, ingest.ValidationWithData(
			map[string]any{"collectionIdentifier": d.CollectionIdentifier, "itemIdentifier": d.ItemIdentifier},
			"item %s-%s metadata is not marked exportable", d.CollectionIdentifier, d.ItemIdentifier)
	}
	rec.Note("Found item %s-%s in the catalog", d.CollectionIdentifier, d.ItemIdentifier)
	return rec, nil
}

// CheckMetadataReady asserts that everything cataloging needs has been
// gathered.
func (s *Steps) CheckMetadataReady(_ context.Context, rec ingest.Record) (ingest.Record, error) {
	switch {
	case rec.Details == nil:
		return rec, errors.New("record has no details")
	case rec.MediaType == "":
		return rec, errors.New("record has no media type")
	case rec.ScratchPath == "":
		return rec, errors.New("record has no local copy")
	}
	rec.Note("Metadata ready for %s", rec.Details.Filename)
	return rec, nil
}
