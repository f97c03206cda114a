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
	"strings"

	"github.com/cardinalhq/mediarunner/internal/catalog"
	"github.com/cardinalhq/mediarunner/internal/ingest"
)

// AddToCatalog copies the original and its staged renditions into the
// catalog bucket, registers the essence and consumes the staging area.
func (s *Steps) AddToCatalog(ctx context.Context, rec ingest.Record) (ingest.Record, error) {
	d := rec.Details
	if d == nil {
		return rec, errors.New("cataloging before metadata checks")
	}

	dst := ingest.CatalogKey(d.CollectionIdentifier, d.ItemIdentifier, d.Filename)
	if err := s.store.Copy(ctx, rec.BucketName, rec.ObjectKey, s.catalogBucket, dst); err != nil {
		return rec, fmt.Errorf("catalog %s: %w", rec.ObjectKey, err)
	}
	cataloged.Add(ctx, 1)
	written := []string{dst}

	prefix := ingest.OutputPrefixFor(d.Filename)
	staged, err := s.store.List(ctx, rec.BucketName, prefix)
	if err != nil {
		return rec, fmt.Errorf("list renditions of %s: %w", d.Filename, err)
	}
	for _, obj := range staged {
		key := ingest.CatalogKey(d.CollectionIdentifier, d.ItemIdentifier, strings.TrimPrefix(obj.Key, prefix))
		if err := s.store.Copy(ctx, rec.BucketName, obj.Key, s.catalogBucket, key); err != nil {
			return rec, fmt.Errorf("catalog rendition %s: %w", obj.Key, err)
		}
		cataloged.Add(ctx, 1)
		if err := s.store.Delete(ctx, rec.BucketName, obj.Key); err != nil {
			return rec, fmt.Errorf("remove staged %s: %w", obj.Key, err)
		}
		written = append(written, key)
	}

	if err := s.catalog.PutEssence(ctx, d.CollectionIdentifier, d.ItemIdentifier, essenceFor(rec, dst)); err != nil {
		return rec, fmt.Errorf("register essence %s: %w", d.Filename, err)
	}

	rec.Outputs = append(rec.Outputs, written...)
	rec.Note("Cataloged %s as %s with %d renditions", d.Filename, dst, len(written)-1)
	return rec, nil
}

func essenceFor(rec ingest.Record, storageKey string) catalog.Essence {
	e := catalog.Essence{
		Filename:   rec.Details.Filename,
		MimeType:   rec.MimeType,
		Size:       rec.ObjectSize,
		MediaType:  string(rec.MediaType),
		StorageKey: storageKey,
	}
	if m := rec.Media; m != nil {
		e.DurationSeconds = m.DurationSeconds
		e.Channels = m.Channels
		e.SampleRate = m.SampleRate
		e.BitRate = m.BitRate
		e.Width = m.Width
		e.Height = m.Height
		e.Codecs = m.Codecs
	}
	return e
}

// ProcessSpecialFile files a collection deposit form under the
// collection's admin folder.
func (s *Steps) ProcessSpecialFile(ctx context.Context, rec ingest.Record) (ingest.Record, error) {
	collection, ok, err := ingest.MatchSpecial(rec.ObjectKey)
	if err != nil {
		return rec, err
	}
	if !ok {
		return rec, fmt.Errorf("%s is not a deposit form", rec.ObjectKey)
	}

	if _, err := s.catalog.GetCollection(ctx, collection); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return rec, ingest.ValidationWithData(map[string]any{"collectionIdentifier": collection},
				"collection %s is not in the catalog", collection)
		}
		return rec, err
	}

	filename := ingest.BaseName(rec.ObjectKey)
	dst := ingest.SpecialCatalogKey(collection, filename)
	if err := s.store.Copy(ctx, rec.BucketName, rec.ObjectKey, s.catalogBucket, dst); err != nil {
		return rec, fmt.Errorf("file deposit form %s: %w", rec.ObjectKey, err)
	}
	cataloged.Add(ctx, 1)

	rec.IsSpecial = true
	rec.Outputs = append(rec.Outputs, dst)
	rec.Note("Filed deposit form for collection %s as %s", collection, dst)
	return rec, nil
}
