package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-pkgz/lcw/v2"
)

// Cached wraps a store Interface with a loading cache for single-contact
// reads and satisfies the Interface itself. Cache is populated on Get,
// invalidated on writes.
type Cached struct {
	store Interface
	cache lcw.LoadingCache[Contact]
}

// NewCached creates a new cached store wrapper.
// maxKeys sets the maximum number of entries in the cache.
func NewCached(store Interface, maxKeys int) (*Cached, error) {
	cache, err := lcw.NewLruCache(lcw.NewOpts[Contact]().MaxKeys(maxKeys))
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &Cached{store: store, cache: cache}, nil
}

// Get retrieves a contact by id, using cache with load-through.
func (c *Cached) Get(ctx context.Context, id int64) (Contact, error) {
	contact, err := c.cache.Get(cacheKey(id), func() (Contact, error) {
		loaded, loadErr := c.store.Get(ctx, id)
		if loadErr != nil {
			// don't wrap - callers check for ErrNotFound
			return Contact{}, loadErr //nolint:wrapcheck // intentionally pass through
		}
		return loaded, nil
	})
	if err != nil {
		return Contact{}, err //nolint:wrapcheck // pass through for error type checks
	}
	return contact, nil
}

// List returns all contacts from the underlying store (not cached).
func (c *Cached) List(ctx context.Context) ([]Contact, error) {
	contacts, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("store list: %w", err)
	}
	return contacts, nil
}

// Add inserts a contact through the underlying store.
func (c *Cached) Add(ctx context.Context, contact Contact) (int64, error) {
	id, err := c.store.Add(ctx, contact)
	if err != nil {
		return 0, fmt.Errorf("store add: %w", err)
	}
	return id, nil
}

// Update replaces a contact and invalidates its cache entry.
func (c *Cached) Update(ctx context.Context, contact Contact) error {
	if err := c.store.Update(ctx, contact); err != nil {
		return err //nolint:wrapcheck // pass through for ErrNotFound checks
	}
	key := cacheKey(contact.ID)
	c.cache.Invalidate(func(k string) bool { return k == key })
	return nil
}

// Delete removes a contact and invalidates its cache entry.
func (c *Cached) Delete(ctx context.Context, id int64) error {
	// invalidate regardless of error - contact might have been cached
	key := cacheKey(id)
	c.cache.Invalidate(func(k string) bool { return k == key })
	if err := c.store.Delete(ctx, id); err != nil {
		return err //nolint:wrapcheck // pass through for ErrNotFound checks
	}
	return nil
}

// Close closes the cache and underlying store.
func (c *Cached) Close() error {
	_ = c.cache.Close()
	if err := c.store.Close(); err != nil {
		return fmt.Errorf("store close: %w", err)
	}
	return nil
}

// Stats returns cache statistics.
func (c *Cached) Stats() lcw.CacheStat {
	return c.cache.Stat()
}

func cacheKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
