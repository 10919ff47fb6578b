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
	"bytes"
	"context"
	"errors"
	"log"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/utils/cache"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type calculator struct {
	id int
}

var sharedCalculator = &calculator{}

func (c *calculator) Add(a, b int) (int, error) { return a + b, nil }
func (c *calculator) Reset()                    {}

func newInvocation(t *testing.T, name string, args ...interface{}) *types.Invocation {
	return newInvocationOn(t, sharedCalculator, name, args...)
}

func newInvocationOn(t *testing.T, target *calculator, name string, args ...interface{}) *types.Invocation {
	declaring := reflect.TypeOf(&calculator{})
	m, ok := declaring.MethodByName(name)
	require.True(t, ok)
	fnType := reflect.FuncOf([]reflect.Type{reflect.TypeOf(0), reflect.TypeOf(0)}, []reflect.Type{reflect.TypeOf(0), reflect.TypeOf((*error)(nil)).Elem()}, false)
	info := &types.MethodInfo{Name: name, DeclaringType: declaring, Type: fnType, Index: m.Index, ReturnsError: true}
	if name == "Reset" {
		info.Type = reflect.TypeOf(func() {})
		info.ReturnsError = false
	}
	return types.NewInvocation(info, info, nil, target, args)
}

func sum(invocation *types.Invocation) types.Next {
	return func(ctx context.Context) error {
		invocation.SetReturnValue(invocation.Arguments[0].(int) + invocation.Arguments[1].(int))
		return nil
	}
}

func TestRegistry(t *testing.T) {
	byType := make(map[string]types.InterceptorComponent)
	for _, c := range Registry.Components() {
		byType[c.Type()] = c
	}
	for _, name := range []string{"tryInvoke", "debug", "metrics", "limiter", "rateLimiter", "fallback", "circuitBreaker", "cache"} {
		c, ok := byType[name]
		require.True(t, ok, name)
		fresh := c.New()
		assert.Equal(t, name, fresh.Type())
		assert.NotSame(t, c, fresh)
	}
}

func TestTryInvoke(t *testing.T) {
	assert.True(t, DefaultFallback.IsFallback())
	x := (&TryInvoke{}).New().(*TryInvoke)
	assert.False(t, x.IsFallback())
	require.NoError(t, x.Init(types.NewConfig(), nil))

	inv := newInvocation(t, "Add", 1, 2)
	require.NoError(t, x.Invoke(context.Background(), inv, sum(inv)))
	assert.Equal(t, 3, inv.ReturnValue())

	boom := errors.New("boom")
	err := x.Invoke(context.Background(), inv, func(ctx context.Context) error { return boom })
	var invokeErr *types.InvokeError
	require.True(t, errors.As(err, &invokeErr))
	assert.Equal(t, boom, invokeErr.Err)
	assert.Equal(t, inv.Target, invokeErr.Target)
	assert.Equal(t, "Add", invokeErr.Method.Name)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, boom, types.UnwrapInner(err))

	//不重复包装
	again := x.Invoke(context.Background(), inv, func(ctx context.Context) error { return err })
	assert.Same(t, invokeErr, again)
}

func TestDebug(t *testing.T) {
	var buf bytes.Buffer
	x := &Debug{}
	require.NoError(t, x.Init(types.NewConfig(types.WithLogger(log.New(&buf, "", 0))), nil))

	inv := newInvocation(t, "Add", 1, 2)
	require.NoError(t, x.Invoke(context.Background(), inv, sum(inv)))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "before *interceptor.calculator.Add args=[1,2]"))
	assert.True(t, strings.HasPrefix(lines[1], "after *interceptor.calculator.Add result=[3]"))

	buf.Reset()
	err := x.Invoke(context.Background(), inv, func(ctx context.Context) error { return errors.New("boom") })
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "err=boom")
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector, err := NewMetricsCollector("test", registry)
	require.NoError(t, err)
	x := NewMetrics(nil, collector)

	inv := newInvocation(t, "Add", 1, 2)
	require.NoError(t, x.Invoke(context.Background(), inv, sum(inv)))
	assert.Error(t, x.Invoke(context.Background(), inv, func(ctx context.Context) error { return errors.New("boom") }))
	assert.Error(t, x.Invoke(context.Background(), inv, func(ctx context.Context) error { return types.ErrRateLimited }))

	m := x.GetMetrics().Get()
	assert.Equal(t, int64(0), m.Current)
	assert.Equal(t, int64(3), m.Total)
	assert.Equal(t, int64(1), m.Success)
	assert.Equal(t, int64(1), m.Failed)
	assert.Equal(t, int64(1), m.Rejected)

	method := "*interceptor.calculator.Add"
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.invocations.WithLabelValues(method, "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.invocations.WithLabelValues(method, "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.invocations.WithLabelValues(method, "rejected")))
	assert.Equal(t, float64(0), testutil.ToFloat64(collector.inFlight.WithLabelValues(method)))

	//重复注册
	_, err = NewMetricsCollector("test", registry)
	assert.Error(t, err)
}

func TestConcurrencyLimiter(t *testing.T) {
	x := (&ConcurrencyLimiter{}).New().(*ConcurrencyLimiter)
	require.NoError(t, x.Init(types.NewConfig(), types.Configuration{"max": 2}))
	assert.Equal(t, int64(2), x.Max)

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv := newInvocation(t, "Add", 1, 2)
			_ = x.Invoke(context.Background(), inv, func(ctx context.Context) error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()
	}
	<-started
	<-started
	assert.Equal(t, int64(2), x.Current())

	inv := newInvocation(t, "Add", 1, 2)
	err := x.Invoke(context.Background(), inv, sum(inv))
	assert.Equal(t, types.ErrConcurrencyLimitReached, err)

	close(release)
	wg.Wait()
	assert.Equal(t, int64(0), x.Current())
	assert.NoError(t, x.Invoke(context.Background(), inv, sum(inv)))
}

func TestRateLimiter(t *testing.T) {
	x := (&RateLimiter{}).New().(*RateLimiter)
	require.NoError(t, x.Init(types.NewConfig(), types.Configuration{"rate": 0.001, "burst": 1, "perMethod": true}))

	add := newInvocation(t, "Add", 1, 2)
	assert.NoError(t, x.Invoke(context.Background(), add, sum(add)))
	assert.Equal(t, types.ErrRateLimited, x.Invoke(context.Background(), add, sum(add)))

	//每个方法独立的令牌桶
	reset := newInvocation(t, "Reset")
	noop := func(ctx context.Context) error { return nil }
	assert.NoError(t, x.Invoke(context.Background(), reset, noop))

	waiting := NewRateLimiter(0.001, 1)
	waiting.Wait = true
	assert.NoError(t, waiting.Invoke(context.Background(), add, noop))
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*20)
	defer cancel()
	assert.Error(t, waiting.Invoke(ctx, add, noop))
}

func TestSkipFallback(t *testing.T) {
	x := (&SkipFallback{ErrorCountLimit: 2, LimitDuration: time.Millisecond * 100}).New().(*SkipFallback)
	inv := newInvocation(t, "Add", 1, 2)
	boom := errors.New("boom")
	var calls int
	failing := func(ctx context.Context) error {
		calls++
		return boom
	}
	assert.Equal(t, boom, x.Invoke(context.Background(), inv, failing))
	assert.Equal(t, boom, x.Invoke(context.Background(), inv, failing))
	assert.Equal(t, types.ErrFallback, x.Invoke(context.Background(), inv, failing))
	assert.Equal(t, 2, calls)

	//其他方法不受影响
	reset := newInvocation(t, "Reset")
	assert.NoError(t, x.Invoke(context.Background(), reset, func(ctx context.Context) error { return nil }))

	time.Sleep(time.Millisecond * 150)
	assert.NoError(t, x.Invoke(context.Background(), inv, sum(inv)))

	assert.Equal(t, boom, x.Invoke(context.Background(), inv, failing))
	assert.Equal(t, boom, x.Invoke(context.Background(), inv, failing))
	x.Reset()
	assert.NoError(t, x.Invoke(context.Background(), inv, sum(inv)))

	defaults := (&SkipFallback{}).New().(*SkipFallback)
	assert.Equal(t, int64(3), defaults.ErrorCountLimit)
	assert.Equal(t, time.Second*10, defaults.LimitDuration)
	require.NoError(t, defaults.Init(types.NewConfig(), types.Configuration{"limitDuration": "1m"}))
	assert.Equal(t, time.Minute, defaults.LimitDuration)
}

func TestCircuitBreaker(t *testing.T) {
	x := (&CircuitBreaker{}).New().(*CircuitBreaker)
	require.NoError(t, x.Init(types.NewConfig(types.WithLogger(types.DiscardLogger())), types.Configuration{"threshold": 2, "timeout": "50ms"}))

	inv := newInvocation(t, "Add", 1, 2)
	method := "*interceptor.calculator.Add"
	boom := errors.New("boom")
	failing := func(ctx context.Context) error { return boom }
	assert.Equal(t, boom, x.Invoke(context.Background(), inv, failing))
	assert.Equal(t, gobreaker.StateClosed, x.State(method))
	assert.Equal(t, boom, x.Invoke(context.Background(), inv, failing))
	assert.Equal(t, gobreaker.StateOpen, x.State(method))
	assert.Equal(t, gobreaker.ErrOpenState, x.Invoke(context.Background(), inv, sum(inv)))

	time.Sleep(time.Millisecond * 80)
	assert.NoError(t, x.Invoke(context.Background(), inv, sum(inv)))
	assert.Equal(t, gobreaker.StateClosed, x.State(method))
	assert.Equal(t, gobreaker.StateClosed, x.State("unknown"))
}

func TestResultCache(t *testing.T) {
	c := cache.NewMemoryCache(0)
	x := NewResultCache(c, "1m")
	var calls int
	counted := func(invocation *types.Invocation) types.Next {
		next := sum(invocation)
		return func(ctx context.Context) error {
			calls++
			return next(ctx)
		}
	}

	first := newInvocation(t, "Add", 1, 2)
	require.NoError(t, x.Invoke(context.Background(), first, counted(first)))
	second := newInvocation(t, "Add", 1, 2)
	require.NoError(t, x.Invoke(context.Background(), second, counted(second)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, second.ReturnValue())

	other := newInvocation(t, "Add", 2, 2)
	require.NoError(t, x.Invoke(context.Background(), other, counted(other)))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 4, other.ReturnValue())

	require.NoError(t, x.Invalidate("*interceptor.calculator.Add"))
	third := newInvocation(t, "Add", 1, 2)
	require.NoError(t, x.Invoke(context.Background(), third, counted(third)))
	assert.Equal(t, 3, calls)

	//失败不缓存
	boom := errors.New("boom")
	failed := newInvocation(t, "Add", 5, 5)
	assert.Equal(t, boom, x.Invoke(context.Background(), failed, func(ctx context.Context) error { return boom }))
	key, ok := x.key(failed)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(key, "*interceptor.calculator.Add([5,5])@"))
	assert.False(t, c.Has("aop:result:"+key))

	//无返回值的方法直接执行
	reset := newInvocation(t, "Reset")
	var resetCalls int
	for i := 0; i < 2; i++ {
		require.NoError(t, x.Invoke(context.Background(), reset, func(ctx context.Context) error {
			resetCalls++
			return nil
		}))
	}
	assert.Equal(t, 2, resetCalls)
}

func TestResultCacheSeparatesTargets(t *testing.T) {
	x := NewResultCache(cache.NewMemoryCache(0), "")
	left, right := &calculator{id: 1}, &calculator{id: 2}
	offset := func(invocation *types.Invocation, delta int) types.Next {
		return func(ctx context.Context) error {
			invocation.SetReturnValue(invocation.Arguments[0].(int) + invocation.Arguments[1].(int) + delta)
			return nil
		}
	}

	a := newInvocationOn(t, left, "Add", 1, 2)
	require.NoError(t, x.Invoke(context.Background(), a, offset(a, 0)))
	b := newInvocationOn(t, right, "Add", 1, 2)
	require.NoError(t, x.Invoke(context.Background(), b, offset(b, 100)))
	assert.Equal(t, 3, a.ReturnValue())
	assert.Equal(t, 103, b.ReturnValue())

	//同一个目标命中缓存
	again := newInvocationOn(t, right, "Add", 1, 2)
	require.NoError(t, x.Invoke(context.Background(), again, func(ctx context.Context) error {
		return errors.New("cached result expected")
	}))
	assert.Equal(t, 103, again.ReturnValue())
}
