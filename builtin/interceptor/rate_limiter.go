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
	"sync"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/utils/maps"
	"golang.org/x/time/rate"
)

var _ types.InterceptorComponent = (*RateLimiter)(nil)

func init() {
	Registry.Add(&RateLimiter{})
}

// RateLimiter limits the call rate with a token bucket, shared by every method or kept per method.
// A call over the limit fails with types.ErrRateLimited, or waits for a token when Wait is set.
//
// RateLimiter 令牌桶限流拦截器
type RateLimiter struct {
	// Rate is the number of calls per second  每秒调用数
	Rate float64 `json:"rate"`
	// Burst is the bucket size, defaulting to 1  桶大小
	Burst int `json:"burst"`
	// PerMethod keeps one bucket per method  是否每个方法一个令牌桶
	PerMethod bool `json:"perMethod"`
	// Wait blocks until a token is available or the context is done  是否等待令牌
	Wait bool `json:"wait"`

	once     sync.Once
	limiter  *rate.Limiter
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter creates a limiter allowing ratePerSecond calls with the given burst.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{Rate: ratePerSecond, Burst: burst}
}

func (x *RateLimiter) Type() string {
	return "rateLimiter"
}

func (x *RateLimiter) New() types.InterceptorComponent {
	return &RateLimiter{Rate: x.Rate, Burst: x.Burst, PerMethod: x.PerMethod, Wait: x.Wait}
}

// Init reads {"rate": 10, "burst": 5, "perMethod": true, "wait": false}.
func (x *RateLimiter) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, x)
}

func (x *RateLimiter) Invoke(ctx context.Context, invocation *types.Invocation, next types.Next) error {
	limiter := x.limiterOf(invocation)
	if x.Wait {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	} else if !limiter.Allow() {
		return types.ErrRateLimited
	}
	return next(ctx)
}

func (x *RateLimiter) newLimiter() *rate.Limiter {
	burst := x.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(x.Rate), burst)
}

func (x *RateLimiter) limiterOf(invocation *types.Invocation) *rate.Limiter {
	if !x.PerMethod {
		x.once.Do(func() {
			x.limiter = x.newLimiter()
		})
		return x.limiter
	}
	key := methodKey(invocation)
	x.mu.RLock()
	limiter, ok := x.limiters[key]
	x.mu.RUnlock()
	if ok {
		return limiter
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if limiter, ok = x.limiters[key]; !ok {
		if x.limiters == nil {
			x.limiters = make(map[string]*rate.Limiter)
		}
		limiter = x.newLimiter()
		x.limiters[key] = limiter
	}
	return limiter
}
