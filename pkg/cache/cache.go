package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"xrecap/pkg/config"
	"xrecap/pkg/logger"
	"xrecap/pkg/socialdata"
)

// Cache is the caching facade for profiles, fetched post collections and
// computed statistics. It never fails a request: every store error is logged
// and reported as a miss (reads) or silently dropped (writes), so a broken
// cache degrades to slower fetches rather than errors.
type Cache struct {
	store   Store
	ttl     time.Duration
	largeAt int
	logger  logger.Logger
}

// New creates a cache facade over a store.
func New(store Store, cfg *config.CacheConfig, log logger.Logger) *Cache {
	return &Cache{
		store:   store,
		ttl:     cfg.TTL,
		largeAt: cfg.LargeCollectionThreshold,
		logger:  log,
	}
}

// ProfileKey returns the cache key for a handle's profile.
func ProfileKey(handle string) string {
	return "profile:" + strings.ToLower(handle)
}

// RecordsKey returns the cache key for a handle's post collection.
func RecordsKey(handle string) string {
	return "records:" + strings.ToLower(handle)
}

// StatsKey returns the cache key for a handle's computed yearly statistics.
func StatsKey(handle string, year int) string {
	return fmt.Sprintf("stats:%s:%d", strings.ToLower(handle), year)
}

// GetJSON reads a key and unmarshals it into out. Returns false on miss,
// store failure or corrupt payload.
func (c *Cache) GetJSON(ctx context.Context, key string, out interface{}) bool {
	if c == nil || c.store == nil {
		return false
	}

	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logMiss(key, "cache read failed", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logMiss(key, "cache payload corrupt", err)
		_ = c.store.Delete(ctx, key)
		return false
	}
	return true
}

// SetJSON marshals a value and writes it with the given TTL. Failures are
// logged, never returned.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c == nil || c.store == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logMiss(key, "cache marshal failed", err)
		return
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		c.logMiss(key, "cache write failed", err)
	}
}

// GetProfile returns a cached profile, or nil on miss.
func (c *Cache) GetProfile(ctx context.Context, handle string) *socialdata.Profile {
	var profile socialdata.Profile
	if !c.GetJSON(ctx, ProfileKey(handle), &profile) {
		return nil
	}
	return &profile
}

// SetProfile caches a profile for the standard TTL.
func (c *Cache) SetProfile(ctx context.Context, handle string, profile *socialdata.Profile) {
	if c == nil {
		return
	}
	c.SetJSON(ctx, ProfileKey(handle), profile, c.ttl)
}

// GetRecords returns a cached post collection, or nil on miss.
func (c *Cache) GetRecords(ctx context.Context, handle string) socialdata.Collection {
	var records socialdata.Collection
	if !c.GetJSON(ctx, RecordsKey(handle), &records) {
		return nil
	}
	return records
}

// SetRecords caches a post collection. Collections past the large-collection
// threshold get double the TTL: they cost many pages to rebuild and churn
// little at the old end.
func (c *Cache) SetRecords(ctx context.Context, handle string, records socialdata.Collection) {
	if c == nil {
		return
	}
	ttl := c.ttl
	if records.Len() > c.largeAt {
		ttl *= 2
	}
	c.SetJSON(ctx, RecordsKey(handle), records, ttl)
}

// DeleteRecords drops the cached collection for a handle.
func (c *Cache) DeleteRecords(ctx context.Context, handle string) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, RecordsKey(handle)); err != nil {
		c.logMiss(RecordsKey(handle), "cache delete failed", err)
	}
}

// TTL returns the configured base TTL.
func (c *Cache) TTL() time.Duration { return c.ttl }

func (c *Cache) logMiss(key, msg string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.WarnWithFields(msg, map[string]interface{}{
		"key":   key,
		"error": err.Error(),
	})
}
