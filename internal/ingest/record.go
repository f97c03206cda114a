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

package ingest

import (
	"fmt"
	"slices"

	"github.com/cardinalhq/mediarunner/internal/mediainfo"
)

// MediaType drives the media-type dispatch. It is set once per execution.
type MediaType string

const (
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
	MediaTypeImage MediaType = "image"
	MediaTypeOther MediaType = "other"
)

func (m MediaType) Valid() bool {
	switch m {
	case MediaTypeAudio, MediaTypeVideo, MediaTypeImage, MediaTypeOther:
		return true
	default:
		return false
	}
}

// Details is derived from the object key and validated against the catalog.
type Details struct {
	CollectionIdentifier string `json:"collectionIdentifier"`
	ItemIdentifier       string `json:"itemIdentifier"`
	Filename             string `json:"filename"`
	Extension            string `json:"extension"`
}

// CompanionOutcome is the result of one DAMSmart companion check.
type CompanionOutcome string

const (
	// OutcomeWait means the companion object has not landed yet.
	OutcomeWait CompanionOutcome = "wait"
	// OutcomeCompanionDone means the other half of the pair drives cataloging.
	OutcomeCompanionDone CompanionOutcome = "companion-done"
	// OutcomeCatalogPair means this execution catalogs both halves.
	OutcomeCatalogPair CompanionOutcome = "catalog-pair"
)

// Meta only exists while a record is inside the DAMSmart flow.
type Meta struct {
	RetryCount         int              `json:"retryCount"`
	Outcome            CompanionOutcome `json:"outcome,omitempty"`
	CompanionKey       string           `json:"companionKey,omitempty"`
	CompanionSize      int64            `json:"companionSize,omitempty"`
	CompanionCataloged bool             `json:"companionCataloged,omitempty"`
	IsCompanion        bool             `json:"isCompanion,omitempty"`
}

// Record is the single payload threaded through a pipeline execution.
// Steps receive it by value and return it with their additions.
type Record struct {
	ID          string `json:"id"`
	BucketName  string `json:"bucketName"`
	ObjectKey   string `json:"objectKey"`
	ObjectSize  int64  `json:"objectSize"`
	PrincipalID string `json:"principalId"`

	Notes      []string  `json:"notes"`
	Details    *Details  `json:"details,omitempty"`
	MediaType  MediaType `json:"mediaType,omitempty"`
	IsDamsmart bool      `json:"isDamsmart"`
	Meta       *Meta     `json:"meta,omitempty"`

	IsSpecial   bool               `json:"isSpecial,omitempty"`
	ScratchPath string             `json:"scratchPath,omitempty"`
	MimeType    string             `json:"mimeType,omitempty"`
	Media       *mediainfo.Summary `json:"media,omitempty"`
	Outputs     []string           `json:"outputs,omitempty"`
	Failure     *FailureEnvelope   `json:"failure,omitempty"`
}

// Note appends a progress annotation. Notes are never removed.
func (r *Record) Note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// SetMediaType records the detected media type. A second call with a
// different value is an error.
func (r *Record) SetMediaType(mt MediaType) error {
	if !mt.Valid() {
		return Validation("unsupported media type %q", mt)
	}
	if r.MediaType != "" && r.MediaType != mt {
		return fmt.Errorf("media type already set to %q, refusing to change it to %q", r.MediaType, mt)
	}
	r.MediaType = mt
	return nil
}

// Filename returns the parsed filename, falling back to the key's base name.
func (r Record) Filename() string {
	if r.Details != nil && r.Details.Filename != "" {
		return r.Details.Filename
	}
	return BaseName(r.ObjectKey)
}

// Clone returns a copy that shares no mutable state with r, so parallel
// branches can append to it independently.
func (r Record) Clone() Record {
	out := r
	out.Notes = slices.Clone(r.Notes)
	out.Outputs = slices.Clone(r.Outputs)
	if r.Details != nil {
		d := *r.Details
		out.Details = &d
	}
	if r.Meta != nil {
		m := *r.Meta
		out.Meta = &m
	}
	if r.Failure != nil {
		f := *r.Failure
		out.Failure = &f
	}
	return out
}
