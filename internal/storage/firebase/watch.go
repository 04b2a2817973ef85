package firebase

import (
	"context"
	"reflect"
	"time"

	"github.com/nsridhar/carvault/internal/domain"
)

// The REST surface has no streaming watch, so subscriptions poll on an
// interval and deliver a snapshot whenever the collection changes. Callers
// cancel by stopping the context.

const defaultWatchInterval = 15 * time.Second

// WatchCars invokes fn with the full car collection after every observed
// change until ctx is cancelled. Poll errors are logged and the next tick
// retries.
func (c *Client) WatchCars(ctx context.Context, interval time.Duration, fn func([]domain.Car)) {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last []domain.Car
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cars, err := c.LoadCars(ctx)
				if err != nil {
					c.logger.Warn("car watch poll failed", "error", err)
					continue
				}
				if !reflect.DeepEqual(cars, last) {
					last = cars
					fn(cars)
				}
			}
		}
	}()
}

// WatchWishlist is the wishlist counterpart of WatchCars.
func (c *Client) WatchWishlist(ctx context.Context, interval time.Duration, fn func([]domain.WishlistItem)) {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last []domain.WishlistItem
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				items, err := c.LoadWishlist(ctx)
				if err != nil {
					c.logger.Warn("wishlist watch poll failed", "error", err)
					continue
				}
				if !reflect.DeepEqual(items, last) {
					last = items
					fn(items)
				}
			}
		}
	}()
}
