package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/deliverytech/api/internal/database"
	"github.com/redis/go-redis/v9"
)

// ProductGetter loads a product from the primary store.
// Satisfied by *database.Queries.
type ProductGetter interface {
	GetProductByID(ctx context.Context, id int64) (database.Product, error)
}

// ProductCache is a read-through cache of single-product lookups. A nil
// Client turns every call into a pass-through to the store.
type ProductCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{Client: client, TTL: ttl}
}

func (c *ProductCache) ProductKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

// Get returns the cached product or loads it from store and caches it.
// Redis failures are logged and fall back to the store; store errors
// (including pgx.ErrNoRows) are returned unchanged and never cached.
func (c *ProductCache) Get(ctx context.Context, store ProductGetter, id int64) (database.Product, error) {
	if c == nil || c.Client == nil {
		return store.GetProductByID(ctx, id)
	}

	key := c.ProductKey(id)
	raw, err := c.Client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p database.Product
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return p, nil
		}
		log.Printf("WARN: corrupt cache entry %s, reloading", key)
	case !errors.Is(err, redis.Nil):
		log.Printf("WARN: cache get %s: %v", key, err)
	}

	p, err := store.GetProductByID(ctx, id)
	if err != nil {
		return p, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.Client.Set(ctx, key, data, c.TTL).Err(); err != nil {
			log.Printf("WARN: cache set %s: %v", key, err)
		}
	}
	return p, nil
}

// Invalidate drops the cached entry for id.
func (c *ProductCache) Invalidate(ctx context.Context, id int64) {
	if c == nil || c.Client == nil {
		return
	}
	if err := c.Client.Del(ctx, c.ProductKey(id)).Err(); err != nil {
		log.Printf("WARN: cache invalidate product %d: %v", id, err)
	}
}
