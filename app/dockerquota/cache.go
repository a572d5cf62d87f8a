// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"encoding/json"
	"time"

	"github.com/sk-pkg/redis"
)

const (
	cacheKeyContainers      = "docker:containers:list"
	cacheKeyImages          = "docker:images:list"
	cacheKeyLastInvalidation = "docker:cache:last_invalidation"

	defaultCacheTTLSeconds = 600
)

// Cache fronts the inspector's container/image listings with Redis, per
// spec §4.D. Any Redis failure degrades to a cache miss rather than an
// error -- the caller always falls back to a live Docker call.
type Cache struct {
	redis      *redis.Manager
	ttlSeconds int
}

// NewCache creates a Cache.
//
// Parameters:
//   - redis: shared redis manager.
//   - ttlSeconds: entry lifetime; zero or negative falls back to 600s.
//
// Returns:
//   - *Cache: initialized cache.
func NewCache(redis *redis.Manager, ttlSeconds int) *Cache {
	if ttlSeconds <= 0 {
		ttlSeconds = defaultCacheTTLSeconds
	}
	return &Cache{redis: redis, ttlSeconds: ttlSeconds}
}

// GetContainers returns the cached container listing.
//
// Returns:
//   - []ContainerInfo: cached listing, nil when absent or on any Redis error.
//   - bool: true only on a genuine cache hit.
func (c *Cache) GetContainers() ([]ContainerInfo, bool) {
	var out []ContainerInfo
	if !c.getJSON(cacheKeyContainers, &out) {
		return nil, false
	}
	return out, true
}

// SetContainers stores the container listing.
//
// Parameters:
//   - containers: listing to cache.
func (c *Cache) SetContainers(containers []ContainerInfo) {
	c.setJSON(cacheKeyContainers, containers)
}

// GetImages returns the cached image listing.
//
// Returns:
//   - []ImageInfo: cached listing, nil when absent or on any Redis error.
//   - bool: true only on a genuine cache hit.
func (c *Cache) GetImages() ([]ImageInfo, bool) {
	var out []ImageInfo
	if !c.getJSON(cacheKeyImages, &out) {
		return nil, false
	}
	return out, true
}

// SetImages stores the image listing.
//
// Parameters:
//   - images: listing to cache.
func (c *Cache) SetImages(images []ImageInfo) {
	c.setJSON(cacheKeyImages, images)
}

// InvalidateContainers drops the cached container listing, called whenever
// the synchroniser observes a container lifecycle event, and stamps the
// last-invalidation marker for observability, per spec §4.D.
func (c *Cache) InvalidateContainers() {
	c.invalidate(cacheKeyContainers)
}

// InvalidateImages drops the cached image listing, see InvalidateContainers.
func (c *Cache) InvalidateImages() {
	c.invalidate(cacheKeyImages)
}

func (c *Cache) invalidate(key string) {
	if _, err := c.redis.Del(key); err != nil {
		return
	}
	_ = c.redis.SetString(cacheKeyLastInvalidation, key, time.Duration(c.ttlSeconds)*time.Second)
}

func (c *Cache) getJSON(key string, out interface{}) bool {
	raw, err := c.redis.GetString(key)
	if err != nil || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false
	}
	return true
}

func (c *Cache) setJSON(key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.SetString(key, string(raw), time.Duration(c.ttlSeconds)*time.Second)
}
