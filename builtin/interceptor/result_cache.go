/*
 * Copyright 2023 The RuleGo Authors.
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

package interceptor

import (
	"context"
	"fmt"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/utils/cache"
	"github.com/rulego/aop/utils/maps"
	"github.com/rulego/aop/utils/str"
)

var _ types.InterceptorComponent = (*ResultCache)(nil)

func init() {
	Registry.Add(&ResultCache{})
}

// ResultCache answers a call from the cache when the same method of the same receiver was called
// with the same arguments, skipping the rest of the pipeline. Only successful calls of methods with results are cached;
// asynchronous methods and calls whose arguments can not be encoded are passed through.
//
// ResultCache 结果缓存拦截器，按方法和参数缓存返回值
type ResultCache struct {
	// Ttl is the time to live such as "5m", empty means never expire  过期时间
	Ttl string `json:"ttl"`
	// Namespace prefixes every key, defaulting to "aop:result:"  缓存 key 前缀
	Namespace string `json:"namespace"`
	// Cache defaults to cache.DefaultCache  缓存实现
	Cache types.Cache `json:"-"`
}

// NewResultCache creates a result cache over c, nil means cache.DefaultCache.
func NewResultCache(c types.Cache, ttl string) *ResultCache {
	return &ResultCache{Cache: c, Ttl: ttl}
}

func (x *ResultCache) Type() string {
	return "cache"
}

func (x *ResultCache) New() types.InterceptorComponent {
	return &ResultCache{Ttl: x.Ttl, Namespace: x.Namespace, Cache: x.Cache}
}

// Init reads {"ttl": "5m", "namespace": "demo"}.
func (x *ResultCache) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, x)
}

func (x *ResultCache) Invoke(ctx context.Context, invocation *types.Invocation, next types.Next) error {
	method := invocation.ProxyMethod
	if method.IsVoid() || method.Async {
		return next(ctx)
	}
	key, ok := x.key(invocation)
	if !ok {
		return next(ctx)
	}
	c := x.cache()
	if v, ok := c.Get(key); ok {
		if values, ok := v.([]interface{}); ok {
			invocation.SetReturnValue(append([]interface{}(nil), values...)...)
			return nil
		}
	}
	if err := next(ctx); err != nil {
		return err
	}
	if invocation.HasReturnValue() {
		return c.Set(key, invocation.ReturnValues(), x.Ttl)
	}
	return nil
}

// Invalidate drops every cached result of the method `Type.Method`.
func (x *ResultCache) Invalidate(method string) error {
	return x.cache().DeleteByPrefix(method + "(")
}

func (x *ResultCache) cache() types.Cache {
	namespace := x.Namespace
	if namespace == "" {
		namespace = "aop:result:"
	}
	c := x.Cache
	if c == nil {
		c = cache.DefaultCache
	}
	return cache.NewNamespaceCache(c, namespace)
}

func (x *ResultCache) key(invocation *types.Invocation) (string, bool) {
	args := invocation.Arguments
	if invocation.ProxyMethod.HasContext && len(args) > 0 {
		args = args[1:]
	}
	encoded, err := str.ToStringMaybeErr(args)
	if err != nil {
		return "", false
	}
	return methodKey(invocation) + "(" + encoded + ")" + receiverKey(invocation), true
}

// receiverKey separates the results of different targets of the same type.
func receiverKey(invocation *types.Invocation) string {
	receiver := invocation.Target
	if receiver == nil {
		receiver = invocation.Proxy
	}
	if receiver == nil {
		return ""
	}
	return fmt.Sprintf("@%p", receiver)
}
