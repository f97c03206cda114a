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

package objstore

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

type memObject struct {
	data        []byte
	contentType string
	tags        map[string]string
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]map[string]memObject
}

func NewMemory() *Memory {
	return &Memory{buckets: map[string]map[string]memObject{}}
}

// Put stores data under bucket/key with optional tags.
func (m *Memory) Put(bucket, key string, data []byte, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(bucket, key, memObject{data: slices.Clone(data), tags: maps.Clone(tags)})
}

func (m *Memory) put(bucket, key string, obj memObject) {
	b, ok := m.buckets[bucket]
	if !ok {
		b = map[string]memObject{}
		m.buckets[bucket] = b
	}
	b[key] = obj
}

func (m *Memory) get(bucket, key string) (memObject, bool) {
	obj, ok := m.buckets[bucket][key]
	return obj, ok
}

// Exists reports whether bucket/key is present.
func (m *Memory) Exists(bucket, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.get(bucket, key)
	return ok
}

// Keys lists every key in bucket, sorted.
func (m *Memory) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.buckets[bucket]))
}

func (m *Memory) Head(_ context.Context, bucket, key string) (ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.get(bucket, key)
	if !ok {
		return ObjectInfo{}, fmt.Errorf("head %s/%s: %w", bucket, key, ErrNotFound)
	}
	return ObjectInfo{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType}, nil
}

func (m *Memory) Download(_ context.Context, dir, bucket, key string) (string, int64, error) {
	m.mu.Lock()
	obj, ok := m.get(bucket, key)
	m.mu.Unlock()
	if !ok {
		return "", 0, fmt.Errorf("download %s/%s: %w", bucket, key, ErrNotFound)
	}
	f, err := os.CreateTemp(dir, "*-"+filepath.Base(key))
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(obj.data); err != nil {
		return "", 0, fmt.Errorf("write %s: %w", f.Name(), err)
	}
	return f.Name(), int64(len(obj.data)), nil
}

func (m *Memory) Upload(_ context.Context, bucket, key, sourceFilename, contentType string) error {
	data, err := os.ReadFile(sourceFilename)
	if err != nil {
		return fmt.Errorf("open %s: %w", sourceFilename, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(bucket, key, memObject{data: data, contentType: contentType})
	return nil
}

func (m *Memory) Copy(_ context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.get(srcBucket, srcKey)
	if !ok {
		return fmt.Errorf("copy %s/%s: %w", srcBucket, srcKey, ErrNotFound)
	}
	m.put(dstBucket, dstKey, memObject{data: slices.Clone(obj.data), contentType: obj.contentType})
	return nil
}

func (m *Memory) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets[bucket], key)
	return nil
}

func (m *Memory) List(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for _, key := range slices.Sorted(maps.Keys(m.buckets[bucket])) {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, Size: int64(len(m.buckets[bucket][key].data))})
		}
	}
	return out, nil
}

func (m *Memory) Tags(_ context.Context, bucket, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.get(bucket, key)
	if !ok {
		return nil, fmt.Errorf("tags %s/%s: %w", bucket, key, ErrNotFound)
	}
	return maps.Clone(obj.tags), nil
}
