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

package catalog

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Client.
type Memory struct {
	mu          sync.Mutex
	collections map[string]Collection
	items       map[itemKey]Item
	essences    map[itemKey][]Essence
}

func NewMemory() *Memory {
	return &Memory{
		collections: map[string]Collection{},
		items:       map[itemKey]Item{},
		essences:    map[itemKey][]Essence{},
	}
}

func (m *Memory) AddCollection(c Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[c.Identifier] = c
}

func (m *Memory) AddItem(it Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[itemKey{Collection: it.CollectionIdentifier, Item: it.Identifier}] = it
}

// Essences returns what PutEssence recorded for an item, in call order.
func (m *Memory) Essences(collection, item string) []Essence {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Essence(nil), m.essences[itemKey{Collection: collection, Item: item}]...)
}

func (m *Memory) GetCollection(_ context.Context, collection string) (Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return Collection{}, fmt.Errorf("collection %s: %w", collection, ErrNotFound)
	}
	return c, nil
}

func (m *Memory) GetItem(_ context.Context, collection, item string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemKey{Collection: collection, Item: item}]
	if !ok {
		return Item{}, fmt.Errorf("item %s/%s: %w", collection, item, ErrNotFound)
	}
	return it, nil
}

func (m *Memory) PutEssence(_ context.Context, collection, item string, essence Essence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := itemKey{Collection: collection, Item: item}
	if _, ok := m.items[key]; !ok {
		return fmt.Errorf("item %s/%s: %w", collection, item, ErrNotFound)
	}
	m.essences[key] = append(m.essences[key], essence)
	return nil
}
