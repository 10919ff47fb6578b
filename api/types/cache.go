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

package types

import "errors"

// ErrCacheNotInitialized is returned when a namespace cache has no backing cache.
var ErrCacheNotInitialized = errors.New("cache not initialized")

// Cache is the key-value store used by the result cache interceptor.
// Cache 结果缓存拦截器使用的键值存储
type Cache interface {
	// Set stores a value. ttl is a Go duration string such as "10m", empty means no expiration.
	Set(key string, value interface{}, ttl string) error
	// Get returns the value and whether it was found and not expired.
	// A cached nil result is distinguishable from a miss.
	Get(key string) (interface{}, bool)
	// Has reports whether the key exists and is not expired.
	Has(key string) bool
	// Delete removes a key.
	Delete(key string) error
	// DeleteByPrefix removes every key with the prefix.
	DeleteByPrefix(prefix string) error
}
