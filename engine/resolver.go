/*
 * Copyright 2024 The RuleGo Authors.
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

package engine

import (
	"reflect"

	"github.com/rulego/aop/api/types"
)

// Suppressor is implemented by resolvers that can tell an invocation is suppressed.
// The composite resolver returns an empty list as soon as one of its resolvers suppresses the call.
type Suppressor interface {
	Suppressed(invocation *types.Invocation) bool
}

// interceptorCollector keeps the first interceptor of each concrete type, in discovery order.
// A fallback instance gives way to a later non-fallback instance of the same type.
type interceptorCollector struct {
	seen map[reflect.Type]int
	list []types.Interceptor
}

func newInterceptorCollector() *interceptorCollector {
	return &interceptorCollector{seen: make(map[reflect.Type]int)}
}

func (c *interceptorCollector) add(interceptors ...types.Interceptor) {
	for _, interceptor := range interceptors {
		if interceptor == nil {
			continue
		}
		t := reflect.TypeOf(interceptor)
		if i, ok := c.seen[t]; ok {
			if isFallback(c.list[i]) && !isFallback(interceptor) {
				c.list[i] = interceptor
			}
			continue
		}
		c.seen[t] = len(c.list)
		c.list = append(c.list, interceptor)
	}
}

func (c *interceptorCollector) interceptors() []types.Interceptor {
	return c.list
}

// CompositeResolver chains resolvers into one type-deduplicated list, in resolver order.
// Suppression by any resolver implementing Suppressor empties the list.
type CompositeResolver struct {
	resolvers []types.InterceptorResolver
}

// NewCompositeResolver creates a resolver that chains resolvers.
func NewCompositeResolver(resolvers ...types.InterceptorResolver) *CompositeResolver {
	return &CompositeResolver{resolvers: resolvers}
}

// Suppressed reports whether any chained resolver suppresses the invocation.
func (r *CompositeResolver) Suppressed(invocation *types.Invocation) bool {
	for _, resolver := range r.resolvers {
		if s, ok := resolver.(Suppressor); ok && s.Suppressed(invocation) {
			return true
		}
	}
	return false
}

// ResolveInterceptors implements types.InterceptorResolver.
func (r *CompositeResolver) ResolveInterceptors(invocation *types.Invocation) []types.Interceptor {
	if r.Suppressed(invocation) {
		return nil
	}
	collector := newInterceptorCollector()
	for _, resolver := range r.resolvers {
		collector.add(resolver.ResolveInterceptors(invocation)...)
	}
	return collector.interceptors()
}

// effectiveMethod is the concrete method when there is one, the contract method otherwise.
func effectiveMethod(invocation *types.Invocation) *types.MethodInfo {
	if invocation.Method != nil {
		return invocation.Method
	}
	return invocation.ProxyMethod
}
