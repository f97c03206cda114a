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

// Package objstore is the object storage boundary of the pipeline.
package objstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Store is the set of object operations the pipeline relies on. Missing
// objects are reported as ErrNotFound, except by Delete which treats them
// as already deleted.
type Store interface {
	Head(ctx context.Context, bucket, key string) (ObjectInfo, error)
	// Download writes the object to a new file in dir and returns its name.
	Download(ctx context.Context, dir, bucket, key string) (filename string, size int64, err error)
	Upload(ctx context.Context, bucket, key, sourceFilename, contentType string) error
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	Delete(ctx context.Context, bucket, key string) error
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	Tags(ctx context.Context, bucket, key string) (map[string]string, error)
}
