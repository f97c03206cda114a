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

package admission

import (
	"context"
	"sync"
)

// MemoryStore is a process-local CounterStore.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: map[string]int{}}
}

func (m *MemoryStore) IncrementIfBelow(_ context.Context, key string, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[key] >= limit {
		return m.counts[key], ErrConditionFailed
	}
	m.counts[key]++
	return m.counts[key], nil
}

func (m *MemoryStore) DecrementIfPositive(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[key] <= 0 {
		return m.counts[key], ErrConditionFailed
	}
	m.counts[key]--
	return m.counts[key], nil
}

func (m *MemoryStore) Current(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}
