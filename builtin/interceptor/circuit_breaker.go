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
	"time"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/utils/maps"
	"github.com/sony/gobreaker"
)

var _ types.InterceptorComponent = (*CircuitBreaker)(nil)

func init() {
	Registry.Add(&CircuitBreaker{})
}

// CircuitBreaker keeps one gobreaker circuit per method. The circuit opens after Threshold
// consecutive failures and rejects calls with gobreaker.ErrOpenState until Timeout has passed.
//
// CircuitBreaker 按方法熔断的拦截器
type CircuitBreaker struct {
	// Threshold is the number of consecutive failures that opens the circuit, default 5  连续失败阈值
	Threshold uint32 `json:"threshold"`
	// Timeout is how long the circuit stays open, default 60s  熔断持续时间
	Timeout time.Duration `json:"timeout"`
	// MaxRequests are the calls allowed while half-open, default 1  半开状态允许的调用数
	MaxRequests uint32 `json:"maxRequests"`
	// IsSuccessful classifies errors, nil means only a nil error is a success.
	IsSuccessful func(err error) bool `json:"-"`

	logger   types.Logger
	breakers sync.Map
}

func (x *CircuitBreaker) Type() string {
	return "circuitBreaker"
}

func (x *CircuitBreaker) New() types.InterceptorComponent {
	return &CircuitBreaker{Threshold: x.Threshold, Timeout: x.Timeout, MaxRequests: x.MaxRequests, IsSuccessful: x.IsSuccessful}
}

// Init reads {"threshold": 5, "timeout": "1m", "maxRequests": 1}.
func (x *CircuitBreaker) Init(config types.Config, configuration types.Configuration) error {
	x.logger = config.Logger
	return maps.Map2Struct(configuration, x)
}

func (x *CircuitBreaker) Invoke(ctx context.Context, invocation *types.Invocation, next types.Next) error {
	cb := x.breakerOf(methodKey(invocation))
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, next(ctx)
	})
	return err
}

// State returns the circuit state of a method, identified as `Type.Method`.
func (x *CircuitBreaker) State(method string) gobreaker.State {
	if v, ok := x.breakers.Load(method); ok {
		return v.(*gobreaker.CircuitBreaker).State()
	}
	return gobreaker.StateClosed
}

func (x *CircuitBreaker) breakerOf(method string) *gobreaker.CircuitBreaker {
	if v, ok := x.breakers.Load(method); ok {
		return v.(*gobreaker.CircuitBreaker)
	}
	threshold := x.Threshold
	if threshold == 0 {
		threshold = 5
	}
	maxRequests := x.MaxRequests
	if maxRequests == 0 {
		maxRequests = 1
	}
	timeout := x.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	settings := gobreaker.Settings{
		Name:        method,
		MaxRequests: maxRequests,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if x.logger != nil {
				x.logger.Printf("circuit breaker %s state change from %s to %s", name, from, to)
			}
		},
		IsSuccessful: x.IsSuccessful,
	}
	v, _ := x.breakers.LoadOrStore(method, gobreaker.NewCircuitBreaker(settings))
	return v.(*gobreaker.CircuitBreaker)
}
