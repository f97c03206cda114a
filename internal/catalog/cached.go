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
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type itemKey struct {
	Collection string
	Item       string
}

type collectionCacheValue struct {
	Collection
	error
}

type itemCacheValue struct {
	Item
	error
}

// CachedClient memoizes collection and item lookups. Successful lookups
// and ErrNotFound answers are cached; other errors are not.
type CachedClient struct {
	Client
	collections *ttlcache.Cache[string, collectionCacheValue]
	items       *ttlcache.Cache[itemKey, itemCacheValue]
}

func NewCachedClient(c Client, ttl time.Duration) *CachedClient {
	cc := &CachedClient{
		Client: c,
		collections: ttlcache.New(
			ttlcache.WithTTL[string, collectionCacheValue](ttl),
		),
		items: ttlcache.New(
			ttlcache.WithTTL[itemKey, itemCacheValue](ttl),
		),
	}
	go cc.collections.Start()
	go cc.items.Start()
	return cc
}

// Stop ends the cache expiry loops.
func (c *CachedClient) Stop() {
	c.collections.Stop()
	c.items.Stop()
}

func cacheable(err error) bool {
	return err == nil || errors.Is(err, ErrNotFound)
}

func (c *CachedClient) GetCollection(ctx context.Context, collection string) (Collection, error) {
	var (
		row Collection
		err error
	)
	loader := ttlcache.LoaderFunc[string, collectionCacheValue](
		func(cache *ttlcache.Cache[string, collectionCacheValue], key string) *ttlcache.Item[string, collectionCacheValue] {
			row, err = c.Client.GetCollection(ctx, key)
			if !cacheable(err) {
				return nil
			}
			return cache.Set(key, collectionCacheValue{Collection: row, error: err}, ttlcache.DefaultTTL)
		},
	)
	if v := c.collections.Get(collection, ttlcache.WithLoader(loader)); v != nil {
		return v.Value().Collection, v.Value().error
	}
	return row, err
}

func (c *CachedClient) GetItem(ctx context.Context, collection, item string) (Item, error) {
	var (
		row Item
		err error
	)
	loader := ttlcache.LoaderFunc[itemKey, itemCacheValue](
		func(cache *ttlcache.Cache[itemKey, itemCacheValue], key itemKey) *ttlcache.Item[itemKey, itemCacheValue] {
			row, err = c.Client.GetItem(ctx, key.Collection, key.Item)
			if !cacheable(err) {
				return nil
			}
			return cache.Set(key, itemCacheValue{Item: row, error: err}, ttlcache.DefaultTTL)
		},
	)
	if v := c.items.Get(itemKey{Collection: collection, Item: item}, ttlcache.WithLoader(loader)); v != nil {
		return v.Value().Item, v.Value().error
	}
	return row, err
}

// PutEssence writes through and drops the cached item.
func (c *CachedClient) PutEssence(ctx context.Context, collection, item string, essence Essence) error {
	c.items.Delete(itemKey{Collection: collection, Item: item})
	return c.Client.PutEssence(ctx, collection, item, essence)
}
