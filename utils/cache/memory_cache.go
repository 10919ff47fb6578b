/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cache provides the in-memory TTL cache backing the result cache interceptor.
//
// Package cache 提供结果缓存拦截器使用的内存缓存，支持过期时间。
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/rulego/aop/api/types"
)

// DefaultCache is the process-wide cache used when an interceptor is not given one.
var DefaultCache = NewMemoryCache(time.Minute * 5)

// MemoryCache is a concurrency-safe map with per-key expiration.
// Expired keys are invisible immediately and removed by a background sweep
// that only runs while expirable keys exist.
type MemoryCache struct {
	items      map[string]item
	mu         sync.RWMutex
	stopGc     chan struct{}
	ticker     *time.Ticker
	gcInterval time.Duration
}

type item struct {
	value      interface{}
	expiration int64
}

func (it item) expired(now int64) bool {
	return it.expiration > 0 && now > it.expiration
}

// NewMemoryCache creates a cache. gcInterval <= 0 means every 5 minutes.
func NewMemoryCache(gcInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		items:      make(map[string]item),
		gcInterval: time.Minute * 5,
	}
	if gcInterval > 0 {
		c.gcInterval = gcInterval
	}
	return c
}

// Set 设置缓存，ttl 为空表示永不过期
func (c *MemoryCache) Set(key string, value interface{}, ttl string) error {
	var expiration int64
	if ttl != "" {
		dur, err := time.ParseDuration(ttl)
		if err != nil {
			return err
		}
		if dur > 0 {
			expiration = time.Now().Add(dur).UnixNano()
		}
	}

	c.mu.Lock()
	c.items[key] = item{value: value, expiration: expiration}
	startGC := expiration > 0 && c.ticker == nil
	c.mu.Unlock()

	if startGC {
		c.StartGC()
	}
	return nil
}

// Get 获取缓存
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, found := c.items[key]
	if !found || it.expired(time.Now().UnixNano()) {
		return nil, false
	}
	return it.value, true
}

// Has 判断缓存是否存在且未过期
func (c *MemoryCache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete 删除缓存
func (c *MemoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// DeleteByPrefix 删除指定前缀的缓存
func (c *MemoryCache) DeleteByPrefix(prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	return nil
}

// Len returns the number of stored keys, expired ones included until the next sweep.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// StartGC starts the background sweep if it is not running and expirable keys exist.
func (c *MemoryCache) StartGC() {
	c.mu.Lock()
	if c.ticker != nil || !c.hasExpirableLocked() {
		c.mu.Unlock()
		return
	}
	ticker := time.NewTicker(c.gcInterval)
	stop := make(chan struct{})
	c.ticker = ticker
	c.stopGc = stop
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				c.deleteExpired()
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()
}

// StopGC stops the background sweep.
func (c *MemoryCache) StopGC() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticker != nil {
		close(c.stopGc)
		c.ticker = nil
		c.stopGc = nil
	}
}

func (c *MemoryCache) hasExpirableLocked() bool {
	for _, it := range c.items {
		if it.expiration > 0 {
			return true
		}
	}
	return false
}

func (c *MemoryCache) deleteExpired() {
	now := time.Now().UnixNano()
	c.mu.Lock()
	for k, it := range c.items {
		if it.expired(now) {
			delete(c.items, k)
		}
	}
	remaining := c.hasExpirableLocked()
	c.mu.Unlock()

	if !remaining {
		c.StopGC()
	}
}

// NamespaceCache prefixes every key with a namespace, so one cache can serve many interceptors.
// NamespaceCache 命名空间缓存
type NamespaceCache struct {
	Cache     types.Cache
	Namespace string
}

// NewNamespaceCache returns nil when cache is nil.
func NewNamespaceCache(cache types.Cache, namespace string) *NamespaceCache {
	if cache == nil {
		return nil
	}
	return &NamespaceCache{Cache: cache, Namespace: namespace}
}

func (c *NamespaceCache) Set(key string, value interface{}, ttl string) error {
	if c == nil || c.Cache == nil {
		return types.ErrCacheNotInitialized
	}
	return c.Cache.Set(c.Namespace+key, value, ttl)
}

func (c *NamespaceCache) Get(key string) (interface{}, bool) {
	if c == nil || c.Cache == nil {
		return nil, false
	}
	return c.Cache.Get(c.Namespace + key)
}

func (c *NamespaceCache) Has(key string) bool {
	if c == nil || c.Cache == nil {
		return false
	}
	return c.Cache.Has(c.Namespace + key)
}

func (c *NamespaceCache) Delete(key string) error {
	if c == nil || c.Cache == nil {
		return types.ErrCacheNotInitialized
	}
	return c.Cache.Delete(c.Namespace + key)
}

func (c *NamespaceCache) DeleteByPrefix(prefix string) error {
	if c == nil || c.Cache == nil {
		return types.ErrCacheNotInitialized
	}
	return c.Cache.DeleteByPrefix(c.Namespace + prefix)
}

var _ types.Cache = (*NamespaceCache)(nil)

var _ types.Cache = (*MemoryCache)(nil)
