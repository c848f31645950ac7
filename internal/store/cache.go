package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"seating-backend/internal/model"
)

// CachedReservations fronts a ReservationStore with an in-process cache.
// Reservations are write-once, so a cached hit can never be stale. Misses are
// not cached because a token may be issued after a failed lookup.
type CachedReservations struct {
	ReservationStore
	cache *cache.Cache
}

// NewCachedReservations wraps inner with a cache whose entries live for ttl.
func NewCachedReservations(inner ReservationStore, ttl time.Duration) *CachedReservations {
	return &CachedReservations{
		ReservationStore: inner,
		cache:            cache.New(ttl, 2*ttl),
	}
}

// GetReservation returns the cached reservation or loads it from the store.
func (c *CachedReservations) GetReservation(ctx context.Context, eventID, token string) (model.Reservation, error) {
	key := eventID + "\x00" + token
	if v, found := c.cache.Get(key); found {
		return v.(model.Reservation), nil
	}

	r, err := c.ReservationStore.GetReservation(ctx, eventID, token)
	if err != nil {
		return model.Reservation{}, err
	}
	c.cache.SetDefault(key, r)
	return r, nil
}
