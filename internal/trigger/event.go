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

// Package trigger turns object-created notifications into executions.
package trigger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/cardinalhq/mediarunner/internal/ingest"
)

// Object is one created object that may start an execution.
type Object struct {
	Bucket      string
	Key         string
	Size        int64
	PrincipalID string
	// Sequencer orders events for the same key; it is part of the dedup key.
	Sequencer string
}

type s3Event struct {
	Event   string `json:"Event"`
	Records []struct {
		EventName    string `json:"eventName"`
		UserIdentity struct {
			PrincipalID string `json:"principalId"`
		} `json:"userIdentity"`
		S3 struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key       string `json:"key"`
				Size      int64  `json:"size"`
				Sequencer string `json:"sequencer"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// ParseS3Event decodes an S3 notification. Records outside the trigger
// prefixes, directory markers and non-create events are dropped. A record
// whose key cannot be unescaped is logged and skipped.
func ParseS3Event(raw []byte) ([]Object, error) {
	var evt s3Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, fmt.Errorf("failed to parse S3 event: %w", err)
	}
	if evt.Event == "s3:TestEvent" {
		return nil, nil
	}

	out := make([]Object, 0, len(evt.Records))
	for _, rec := range evt.Records {
		if rec.EventName != "" && !strings.HasPrefix(rec.EventName, "ObjectCreated:") {
			continue
		}
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			slog.Error("Failed to unescape S3 object key",
				slog.String("key", rec.S3.Object.Key), slog.Any("error", err))
			continue
		}
		if strings.HasSuffix(key, "/") || !ingest.IsTriggerKey(key) {
			continue
		}
		out = append(out, Object{
			Bucket:      rec.S3.Bucket.Name,
			Key:         key,
			Size:        rec.S3.Object.Size,
			PrincipalID: rec.UserIdentity.PrincipalID,
			Sequencer:   rec.S3.Object.Sequencer,
		})
	}
	return out, nil
}
