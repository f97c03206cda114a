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

// Package catalog talks to the archive catalog that owns collections,
// items and their essences.
package catalog

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found in catalog")

type Collection struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
}

type Item struct {
	CollectionIdentifier string `json:"collectionIdentifier"`
	Identifier           string `json:"identifier"`
	Title                string `json:"title"`
	// MetadataExportable is set by cataloguers once an item's metadata is
	// complete enough to accept essences.
	MetadataExportable bool `json:"metadataExportable"`
}

// Essence describes one cataloged file.
type Essence struct {
	Filename        string   `json:"filename"`
	MimeType        string   `json:"mimetype"`
	Size            int64    `json:"size"`
	MediaType       string   `json:"mediaType"`
	DurationSeconds float64  `json:"duration,omitempty"`
	Channels        int      `json:"channels,omitempty"`
	SampleRate      int      `json:"sampleRate,omitempty"`
	BitRate         int64    `json:"bitrate,omitempty"`
	Width           int      `json:"width,omitempty"`
	Height          int      `json:"height,omitempty"`
	Codecs          []string `json:"codecs,omitempty"`
	StorageKey      string   `json:"storageKey"`
}

type Client interface {
	GetCollection(ctx context.Context, collection string) (Collection, error)
	GetItem(ctx context.Context, collection, item string) (Item, error)
	PutEssence(ctx context.Context, collection, item string, essence Essence) error
}
