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
	"sync/atomic"
	"time"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/utils/maps"
)

var _ types.InterceptorComponent = (*SkipFallback)(nil)

func init() {
	Registry.Add(&SkipFallback{})
}

// SkipFallback skips a method with types.ErrFallback once it failed ErrorCountLimit times,
// until LimitDuration has passed since its last failure.
//
// SkipFallback 方法出错次数达到阈值后，在限制时间内跳过执行，返回 types.ErrFallback
type SkipFallback struct {
	// ErrorCountLimit defaults to 3  错误次数阈值
	ErrorCountLimit int64 `json:"errorCountLimit"`
	// LimitDuration defaults to 10 seconds  降级持续时间
	LimitDuration time.Duration `json:"limitDuration"`

	//key: method
	methodErrors sync.Map
	lock         sync.Mutex
}

type methodError struct {
	errorCount    int64
	lastErrorTime int64
}

func (x *SkipFallback) Type() string {
	return "fallback"
}

func (x *SkipFallback) New() types.InterceptorComponent {
	var errorCountLimit = x.ErrorCountLimit
	var limitDuration = x.LimitDuration
	if errorCountLimit == 0 {
		errorCountLimit = 3
	}
	if limitDuration == 0 {
		limitDuration = time.Second * 10
	}
	return &SkipFallback{ErrorCountLimit: errorCountLimit, LimitDuration: limitDuration}
}

// Init reads {"errorCountLimit": 3, "limitDuration": "10s"}.
func (x *SkipFallback) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, x)
}

func (x *SkipFallback) Invoke(ctx context.Context, invocation *types.Invocation, next types.Next) error {
	key := methodKey(invocation)
	if v, ok := x.methodErrors.Load(key); ok {
		e := v.(*methodError)
		if atomic.LoadInt64(&e.errorCount) >= x.limit() {
			if atomic.LoadInt64(&e.lastErrorTime)+x.duration().Milliseconds() < time.Now().UnixMilli() {
				//超过时间，清除错误记录
				x.methodErrors.Delete(key)
			} else {
				return types.ErrFallback
			}
		}
	}
	err := next(ctx)
	if err != nil {
		x.onError(key)
	}
	return err
}

func (x *SkipFallback) onError(key string) {
	x.lock.Lock()
	defer x.lock.Unlock()
	if v, ok := x.methodErrors.Load(key); ok {
		e := v.(*methodError)
		atomic.AddInt64(&e.errorCount, 1)
		atomic.StoreInt64(&e.lastErrorTime, time.Now().UnixMilli())
		return
	}
	x.methodErrors.Store(key, &methodError{errorCount: 1, lastErrorTime: time.Now().UnixMilli()})
}

// Reset clears the failure record of every method.
func (x *SkipFallback) Reset() {
	x.methodErrors.Range(func(key, value interface{}) bool {
		x.methodErrors.Delete(key)
		return true
	})
}

func (x *SkipFallback) limit() int64 {
	if x.ErrorCountLimit <= 0 {
		return 3
	}
	return x.ErrorCountLimit
}

func (x *SkipFallback) duration() time.Duration {
	if x.LimitDuration <= 0 {
		return time.Second * 10
	}
	return x.LimitDuration
}
