package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/japaniel/cncbits/pkg/db"
	"github.com/patrickmn/go-cache"
)

// CachedStore serves coordinate lookups from memory for up to ttl. A put drops
// the cached entry both before and after the wrapped write, so a lookup that
// races the write cannot leave the old value cached once the put returns.
type CachedStore struct {
	Store
	coords *cache.Cache
}

// NewCachedStore wraps s. Expired entries are dropped lazily on lookup.
func NewCachedStore(s Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Store:  s,
		coords: cache.New(ttl, 0),
	}
}

func (c *CachedStore) GetCoordinate(ctx context.Context, bitID uuid.UUID) (db.BitCoordinate, error) {
	if v, ok := c.coords.Get(bitID.String()); ok {
		return v.(db.BitCoordinate), nil
	}
	coord, err := c.Store.GetCoordinate(ctx, bitID)
	if err != nil {
		return db.BitCoordinate{}, err
	}
	c.coords.SetDefault(bitID.String(), coord)
	return coord, nil
}

func (c *CachedStore) PutCoordinate(ctx context.Context, bitID uuid.UUID, x, y, z float64) error {
	key := bitID.String()
	c.coords.Delete(key)
	err := c.Store.PutCoordinate(ctx, bitID, x, y, z)
	// a concurrent GetCoordinate may have refilled key with the old record
	c.coords.Delete(key)
	return err
}

func (c *CachedStore) Import(ctx context.Context, bits []db.RouterBit, coords []db.BitCoordinate) error {
	defer c.coords.Flush()
	return c.Store.Import(ctx, bits, coords)
}

// Len reports the number of cached coordinate entries, expired ones included.
func (c *CachedStore) Len() int {
	return c.coords.ItemCount()
}
