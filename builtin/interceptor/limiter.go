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
	"sync/atomic"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/utils/maps"
)

var _ types.InterceptorComponent = (*ConcurrencyLimiter)(nil)

func init() {
	Registry.Add(&ConcurrencyLimiter{})
}

// ConcurrencyLimiter rejects calls with types.ErrConcurrencyLimitReached while Max calls are in flight.
//
// ConcurrencyLimiter 并发限制拦截器，超过最大并发数时返回 types.ErrConcurrencyLimitReached
type ConcurrencyLimiter struct {
	// Max is the maximum number of calls in flight  最大并发数
	Max          int64 `json:"max"`
	currentCount int64
}

// NewConcurrencyLimiter creates a limiter allowing max calls in flight.
func NewConcurrencyLimiter(max int) *ConcurrencyLimiter {
	return &ConcurrencyLimiter{Max: int64(max)}
}

func (x *ConcurrencyLimiter) Type() string {
	return "limiter"
}

func (x *ConcurrencyLimiter) New() types.InterceptorComponent {
	return &ConcurrencyLimiter{Max: x.Max}
}

// Init reads {"max": 10}.
func (x *ConcurrencyLimiter) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, x)
}

func (x *ConcurrencyLimiter) Invoke(ctx context.Context, invocation *types.Invocation, next types.Next) error {
	for {
		current := atomic.LoadInt64(&x.currentCount)
		if current >= x.Max {
			return types.ErrConcurrencyLimitReached
		}
		if atomic.CompareAndSwapInt64(&x.currentCount, current, current+1) {
			break
		}
	}
	defer atomic.AddInt64(&x.currentCount, -1)
	return next(ctx)
}

// Current returns the number of calls in flight.
func (x *ConcurrencyLimiter) Current() int64 {
	return atomic.LoadInt64(&x.currentCount)
}
