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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/builtin/interceptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortCircuit never calls the terminal operation.
var shortCircuit = types.InterceptorFunc(func(ctx context.Context, invocation *types.Invocation, next types.Next) error {
	return nil
})

type afterError struct{}

func (e *afterError) Error() string {
	return "after"
}

func TestDispatchForwardsToTarget(t *testing.T) {
	rec := &recorder{}
	options := NewAspectOptions()
	options.InterceptTypeOf(iflyType).With(newTraceA(rec, "log"))
	factory := newTestFactory(testConfig(), options, nil)

	monkey := &MonkeyKing{name: "wukong"}
	p, err := factory.CreateProxyWithTarget(iflyType, monkey)
	require.NoError(t, err)

	out, err := p.Invoke(context.Background(), "Fly")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"wukong flying"}, out)
	assert.Equal(t, 1, monkey.flights)
	assert.Equal(t, []string{"log before", "log after"}, rec.list())

	out, err = p.Invoke(context.Background(), "SetName", "bajie")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "bajie", monkey.name)
}

func TestDispatchDefaultReturns(t *testing.T) {
	options := NewAspectOptions()
	options.InterceptAll().With(shortCircuit)
	factory := newTestFactory(testConfig(), options, nil)

	monkey := &MonkeyKing{name: "wukong"}
	p, err := factory.CreateProxyWithTarget(iflyType, monkey)
	require.NoError(t, err)
	out, err := p.Invoke(context.Background(), "Fly")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{""}, out)
	assert.Equal(t, 0, monkey.flights)

	out, err = p.Invoke(context.Background(), "SetName", "bajie")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "wukong", monkey.name)

	//异步结果的默认值是已经完成的通道
	l := &loader{}
	p, err = factory.CreateProxyWithTarget(iloadType, l)
	require.NoError(t, err)
	out, err = p.Invoke(nil, "Load", context.Background(), "k")
	require.NoError(t, err)
	require.Len(t, out, 1)
	ch, ok := out[0].(<-chan string)
	require.True(t, ok)
	select {
	case v := <-ch:
		assert.Equal(t, "", v)
	default:
		t.Fatal("default asynchronous result is pending")
	}
	assert.Nil(t, l.seen)
}

func TestDispatchInterceptorSetsReturnValue(t *testing.T) {
	options := NewAspectOptions()
	options.InterceptAll().With(types.InterceptorFunc(func(ctx context.Context, invocation *types.Invocation, next types.Next) error {
		if err := next(ctx); err != nil {
			return err
		}
		invocation.SetReturnValue(invocation.ReturnValue().(string) + "!")
		return nil
	}))
	factory := newTestFactory(testConfig(), options, nil)
	p, err := factory.CreateProxyWithTarget(iflyType, &MonkeyKing{name: "wukong"})
	require.NoError(t, err)
	out, err := p.Invoke(context.Background(), "Fly")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"wukong flying!"}, out)
}

func TestDispatchAwaitsAsyncResult(t *testing.T) {
	factory := newTestFactory(testConfig(), nil, nil)
	p, err := factory.CreateProxyWithTarget(iloadType, &loader{})
	require.NoError(t, err)
	out, err := p.Invoke(nil, "Load", context.Background(), "k")
	require.NoError(t, err)
	ch := out[0].(<-chan string)
	assert.Equal(t, "value:k", <-ch)
	//已完成的通道会被关闭
	_, open := <-ch
	assert.False(t, open)
}

func TestDispatchReplacesContext(t *testing.T) {
	options := NewAspectOptions()
	options.InterceptTypeOf(iloadType).With(types.InterceptorFunc(func(ctx context.Context, invocation *types.Invocation, next types.Next) error {
		return next(context.WithValue(ctx, ctxKey{}, "tenant"))
	}))
	factory := newTestFactory(testConfig(), options, nil)
	l := &loader{}
	p, err := factory.CreateProxyWithTarget(iloadType, l)
	require.NoError(t, err)
	_, err = p.Invoke(nil, "Load", context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "tenant", l.seen)
}

func TestDispatchExceptionTransparency(t *testing.T) {
	factory := newTestFactory(testConfig(), nil, nil)
	p, err := factory.CreateProxyWithTarget(idiveType, &MonkeyKing{})
	require.NoError(t, err)
	_, err = p.Invoke(context.Background(), "Dive", -1)
	assert.IsType(t, &diveError{}, err)

	//TryInvoke 包装的异常被还原
	options := NewAspectOptions()
	options.InterceptAll().With(&interceptor.TryInvoke{})
	factory = newTestFactory(testConfig(), options, nil)
	p, err = factory.CreateProxyWithTarget(idiveType, &MonkeyKing{})
	require.NoError(t, err)
	_, err = p.Invoke(context.Background(), "Dive", -1)
	assert.IsType(t, &diveError{}, err)

	factory = newTestFactory(testConfig(types.WithKeepInvokeError()), options, nil)
	p, err = factory.CreateProxyWithTarget(idiveType, &MonkeyKing{})
	require.NoError(t, err)
	_, err = p.Invoke(context.Background(), "Dive", -1)
	var invokeErr *types.InvokeError
	require.True(t, errors.As(err, &invokeErr))
	assert.Equal(t, "Dive", invokeErr.Method.Name)
	assert.IsType(t, &diveError{}, invokeErr.Err)
	assert.Same(t, p, invokeErr.Proxy)
}

func TestDispatchErrorAfterContinuation(t *testing.T) {
	options := NewAspectOptions()
	options.InterceptAll().With(types.InterceptorFunc(func(ctx context.Context, invocation *types.Invocation, next types.Next) error {
		if err := next(ctx); err != nil {
			return err
		}
		return &afterError{}
	}))
	factory := newTestFactory(testConfig(), options, nil)
	monkey := &MonkeyKing{}
	p, err := factory.CreateProxyWithTarget(idiveType, monkey)
	require.NoError(t, err)

	out, err := p.Invoke(context.Background(), "Dive", 2)
	assert.IsType(t, &afterError{}, err)
	//终端操作已经执行
	assert.Equal(t, []interface{}{4}, out)

	f := p.InvokeAsync(context.Background(), "Dive", 2)
	_, err = f.Get(context.Background())
	assert.IsType(t, &afterError{}, err)
}

func TestDispatchEnricherFailures(t *testing.T) {
	var lock sync.Mutex
	var reported []error
	var hooked int
	old := types.OnInvokeException
	types.OnInvokeException = func(err error) {
		lock.Lock()
		defer lock.Unlock()
		hooked++
	}
	defer func() { types.OnInvokeException = old }()

	options := NewAspectOptions()
	options.WithEnricher(
		types.InvocationEnricherFunc(func(invocation *types.Invocation) error {
			return errors.New("enrich failed")
		}),
		types.InvocationEnricherFunc(func(invocation *types.Invocation) error {
			panic("enrich panic")
		}),
		types.InvocationEnricherFunc(func(invocation *types.Invocation) error {
			invocation.PutProperty("user", "wukong")
			return nil
		}),
	)
	var seen interface{}
	options.InterceptAll().With(types.InterceptorFunc(func(ctx context.Context, invocation *types.Invocation, next types.Next) error {
		seen, _ = invocation.GetProperty("user")
		return next(ctx)
	}))
	config := testConfig(types.WithOnError(func(err error) {
		lock.Lock()
		defer lock.Unlock()
		reported = append(reported, err)
	}))
	factory := newTestFactory(config, options, nil)
	p, err := factory.CreateProxyWithTarget(iflyType, &MonkeyKing{name: "wukong"})
	require.NoError(t, err)

	out, err := p.Invoke(context.Background(), "Fly")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"wukong flying"}, out)
	assert.Equal(t, "wukong", seen)

	lock.Lock()
	defer lock.Unlock()
	require.Len(t, reported, 2)
	assert.Contains(t, reported[0].Error(), "enrich failed")
	var panicErr *types.PanicError
	assert.True(t, errors.As(reported[1], &panicErr))
	assert.Equal(t, "enrich panic", panicErr.Value)
	assert.Equal(t, 2, hooked)
}

func TestDispatchInvokeAsync(t *testing.T) {
	config := testConfig(types.WithDefaultPool())
	factory := newTestFactory(config, nil, nil)
	p, err := factory.CreateProxyWithTarget(idiveType, &MonkeyKing{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	f := p.InvokeAsync(ctx, "Dive", 3)
	out, err := f.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{6}, out)
	assert.Equal(t, "Dive", f.Invocation().ProxyMethod.Name)

	_, err = p.InvokeAsync(ctx, "Dive", -1).Get(ctx)
	assert.IsType(t, &diveError{}, err)

	//未知方法
	f = p.InvokeAsync(ctx, "Swim")
	assert.Nil(t, f.Invocation())
	_, err = f.Get(ctx)
	assert.ErrorIs(t, err, types.ErrMethodNotFound)
}

func TestDispatchInvokeAsyncPanic(t *testing.T) {
	boom := errors.New("boom")
	options := NewAspectOptions()
	options.InterceptMethodFunc(func(method *types.MethodInfo) bool {
		return method.Name == "Dive"
	}).With(types.InterceptorFunc(func(ctx context.Context, invocation *types.Invocation, next types.Next) error {
		if invocation.Arguments[0].(int) == 0 {
			panic("no depth")
		}
		panic(boom)
	}))
	factory := newTestFactory(testConfig(), options, nil)
	p, err := factory.CreateProxyWithTarget(idiveType, &MonkeyKing{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	_, err = p.InvokeAsync(ctx, "Dive", 1).Get(ctx)
	assert.Equal(t, boom, err)

	_, err = p.InvokeAsync(ctx, "Dive", 0).Get(ctx)
	var panicErr *types.PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "no depth", panicErr.Value)
}

func TestDispatcherInvokeOptions(t *testing.T) {
	rec := &recorder{}
	options := NewAspectOptions()
	options.InterceptAll().With(newTraceA(rec, "resolved"))
	dispatcher := NewDispatcher(testConfig(), options)
	typeFactory := NewProxyTypeFactory(testConfig(), nil)
	pt, err := typeFactory.CreateProxyType(iflyType, monkeyType)
	require.NoError(t, err)

	monkey := &MonkeyKing{name: "wukong"}
	inv := invocationOf(pt, "Fly", monkey)
	err = dispatcher.Invoke(context.Background(), inv, WithInterceptors(newTraceB(rec, "given")))
	require.NoError(t, err)
	assert.Equal(t, "wukong flying", inv.ReturnValue())
	assert.Equal(t, []string{"given before", "given after"}, rec.list())

	inv = invocationOf(pt, "Fly", monkey)
	err = dispatcher.Invoke(context.Background(), inv, WithInterceptors(), WithTerminal(func(ctx context.Context) error {
		rec.add("terminal")
		return nil
	}))
	require.NoError(t, err)
	//终端没有设置返回值时写入默认值
	assert.Equal(t, "", inv.ReturnValue())
	assert.Equal(t, 1, monkey.flights)
}

func TestDispatchFallbackFastPath(t *testing.T) {
	options := NewAspectOptions()
	options.InterceptAll().With(interceptor.DefaultFallback)
	factory := newTestFactory(testConfig(), options, nil)
	p, err := factory.CreateProxyWithTarget(idiveType, &MonkeyKing{})
	require.NoError(t, err)
	out, err := p.Invoke(context.Background(), "Dive", 5)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{10}, out)
	_, err = p.Invoke(context.Background(), "Dive", -5)
	assert.IsType(t, &diveError{}, err)
}
