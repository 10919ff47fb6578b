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
	"github.com/rulego/aop/api/types"
)

// FluentResolver resolves interceptors from the declarative configuration of AspectOptions.
//  1. If any suppression predicate matches, the list is empty.
//  2. Otherwise the interceptors of every matching configuration are merged in registration order,
//     keeping the first interceptor of each concrete type.
type FluentResolver struct {
	options *AspectOptions
}

// NewFluentResolver creates a resolver over options.
func NewFluentResolver(options *AspectOptions) *FluentResolver {
	return &FluentResolver{options: options}
}

// Suppressed reports whether a suppression predicate matches.
func (r *FluentResolver) Suppressed(invocation *types.Invocation) bool {
	for _, predicate := range r.options.noInterceptions() {
		if predicate(invocation) {
			return true
		}
	}
	return false
}

// ResolveInterceptors implements types.InterceptorResolver.
func (r *FluentResolver) ResolveInterceptors(invocation *types.Invocation) []types.Interceptor {
	if r.Suppressed(invocation) {
		return nil
	}
	collector := newInterceptorCollector()
	for _, configuration := range r.options.interceptions() {
		if configuration.predicate(invocation) {
			collector.add(configuration.Interceptors()...)
		}
	}
	return collector.interceptors()
}
