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
	"testing"

	"github.com/rulego/aop/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyInvoke(t *testing.T) {
	factory := newTestFactory(testConfig(), nil, nil)
	monkey := &MonkeyKing{name: "wukong"}
	p, err := factory.CreateProxyWithTarget(iflyType, monkey)
	require.NoError(t, err)

	assert.Same(t, monkey, p.Target())
	assert.Equal(t, "aop.dynamic.IFly.MonkeyKing", p.String())
	assert.Equal(t, InterfaceImplProxy, p.ProxyType().Kind)

	out, err := p.Invoke(context.Background(), "Fly")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"wukong flying"}, out)

	_, err = p.Invoke(context.Background(), "Fly", "fast")
	assert.ErrorIs(t, err, types.ErrArgumentCount)
	_, err = p.Invoke(context.Background(), "Swim")
	assert.ErrorIs(t, err, types.ErrMethodNotFound)
	//接口代理不包含 Dive
	_, err = p.Invoke(context.Background(), "Dive", 1)
	assert.ErrorIs(t, err, types.ErrMethodNotFound)
}

func TestProxyInterfaceOnlyProperties(t *testing.T) {
	rec := &recorder{}
	options := NewAspectOptions()
	options.InterceptAll().With(newTraceA(rec, "a"))
	factory := newTestFactory(testConfig(), options, nil)
	p, err := factory.CreateProxy(iflyType)
	require.NoError(t, err)
	assert.Nil(t, p.Target())
	assert.Equal(t, InterfaceProxy, p.ProxyType().Kind)

	out, err := p.Invoke(context.Background(), "GetName")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{""}, out)

	_, err = p.Invoke(context.Background(), "SetName", "wukong")
	require.NoError(t, err)
	out, err = p.Invoke(context.Background(), "GetName")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"wukong"}, out)

	out, err = p.Invoke(context.Background(), "Fly")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{""}, out)
	assert.Len(t, rec.list(), 8)

	//每个代理实例有自己的属性存储
	other, err := factory.CreateProxy(iflyType)
	require.NoError(t, err)
	out, err = other.Invoke(context.Background(), "GetName")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{""}, out)
}

func TestProxyIgnoredMethod(t *testing.T) {
	rec := &recorder{}
	options := NewAspectOptions()
	options.InterceptAll().With(newTraceA(rec, "a"))
	factory := newTestFactory(testConfig(), options, nil)
	p, err := factory.CreateProxyWithTarget(monkeyType, &MonkeyKing{name: "wukong"})
	require.NoError(t, err)

	out, err := p.Invoke(context.Background(), "String")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"MonkeyKing(wukong)"}, out)
	assert.Equal(t, []interface{}{"MonkeyKing(wukong)"}, p.Call("String"))
	assert.Empty(t, rec.list())
}

func TestProxyVariadic(t *testing.T) {
	var arguments []interface{}
	options := NewAspectOptions()
	options.InterceptAll().With(types.InterceptorFunc(func(ctx context.Context, invocation *types.Invocation, next types.Next) error {
		arguments = invocation.Arguments
		return next(ctx)
	}))
	factory := newTestFactory(testConfig(), options, nil)
	p, err := factory.CreateProxyWithTarget(ijoinType, &joiner{})
	require.NoError(t, err)

	out, err := p.Invoke(context.Background(), "Join", "-", "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a-b-c"}, out)
	//可变参数作为一个切片
	assert.Equal(t, []interface{}{"-", []string{"a", "b", "c"}}, arguments)

	out, err = p.Invoke(context.Background(), "Join", "+", []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"x+y"}, out)

	out, err = p.Invoke(context.Background(), "Join", ",")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{""}, out)

	_, err = p.Invoke(context.Background(), "Join")
	assert.ErrorIs(t, err, types.ErrArgumentCount)

	join, err := p.Func("Join")
	require.NoError(t, err)
	assert.Equal(t, "1.2", join.(func(string, ...string) string)(".", "1", "2"))
}

func TestProxyReturnValueMismatch(t *testing.T) {
	options := NewAspectOptions()
	options.InterceptMethodFunc(func(m *types.MethodInfo) bool { return m.Name == "Fly" }).
		With(types.InterceptorFunc(func(ctx context.Context, invocation *types.Invocation, next types.Next) error {
			invocation.SetReturnValue(42)
			return nil
		}))
	options.InterceptMethodFunc(func(m *types.MethodInfo) bool { return m.Name == "GetName" }).
		With(&tooManyResults{})
	factory := newTestFactory(testConfig(), options, nil)
	p, err := factory.CreateProxyWithTarget(iflyType, &MonkeyKing{})
	require.NoError(t, err)

	_, err = p.Invoke(context.Background(), "Fly")
	assert.ErrorIs(t, err, types.ErrReturnValue)
	_, err = p.Invoke(context.Background(), "GetName")
	assert.ErrorIs(t, err, types.ErrReturnValue)
}

func TestProxyFuncReturnValueMismatch(t *testing.T) {
	options := NewAspectOptions()
	options.InterceptMethodFunc(func(m *types.MethodInfo) bool { return m.Name == "Dive" }).
		With(types.InterceptorFunc(func(ctx context.Context, invocation *types.Invocation, next types.Next) error {
			invocation.SetReturnValue("deep")
			return nil
		}))
	factory := newTestFactory(testConfig(), options, nil)
	p, err := factory.CreateProxyWithTarget(idiveType, &MonkeyKing{})
	require.NoError(t, err)

	out := p.Call("Dive", 1)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0])

	fn, err := p.Func("Dive")
	require.NoError(t, err)
	var depth int
	require.NotPanics(t, func() {
		depth, err = fn.(func(int) (int, error))(1)
	})
	assert.Equal(t, 0, depth)
	assert.ErrorIs(t, err, types.ErrReturnValue)
}

type tooManyResults struct{}

func (x *tooManyResults) Invoke(ctx context.Context, invocation *types.Invocation, next types.Next) error {
	invocation.SetReturnValue("a", "b")
	return nil
}

func TestProxyCall(t *testing.T) {
	denied := errors.New("denied")
	options := NewAspectOptions()
	options.InterceptMethodFunc(func(m *types.MethodInfo) bool { return m.Name == "Fly" }).
		With(types.InterceptorFunc(func(ctx context.Context, invocation *types.Invocation, next types.Next) error {
			return denied
		}))
	factory := newTestFactory(testConfig(), options, nil)
	p, err := factory.CreateProxyWithTarget(monkeyType, &MonkeyKing{name: "wukong"})
	require.NoError(t, err)

	assert.Equal(t, []interface{}{4, nil}, p.Call("Dive", 2))
	out := p.Call("Dive", -1)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0])
	assert.IsType(t, &diveError{}, out[1])

	//没有 error 返回值的方法通过 panic 抛出异常
	assert.PanicsWithValue(t, denied, func() { p.Call("Fly") })
	assert.Panics(t, func() { p.Call("Swim") })
	assert.Equal(t, []interface{}{"wukong"}, p.Call("GetName"))

	out, err = p.Invoke(context.Background(), "Fly")
	assert.Equal(t, denied, err)
	assert.Equal(t, []interface{}{""}, out)
}

func TestProxyFunc(t *testing.T) {
	factory := newTestFactory(testConfig(), nil, nil)
	p, err := factory.CreateProxyWithTarget(monkeyType, &MonkeyKing{name: "wukong"})
	require.NoError(t, err)

	fly, err := p.Func("Fly")
	require.NoError(t, err)
	assert.Equal(t, "wukong flying", fly.(func() string)())

	dive, err := p.Func("Dive")
	require.NoError(t, err)
	depth, err := dive.(func(int) (int, error))(3)
	require.NoError(t, err)
	assert.Equal(t, 6, depth)
	_, err = dive.(func(int) (int, error))(-3)
	assert.IsType(t, &diveError{}, err)

	_, err = p.Func("Swim")
	assert.ErrorIs(t, err, types.ErrMethodNotFound)
}

func TestProxyBind(t *testing.T) {
	factory := newTestFactory(testConfig(), nil, nil)
	monkey := &MonkeyKing{name: "wukong"}
	p, err := factory.CreateProxyWithTarget(iflyType, monkey)
	require.NoError(t, err)

	var fly struct {
		Fly     func() string
		Name    func() string `aop:"GetName"`
		SetName func(string)
		Skip    func() `aop:"-"`
		Count   int
		private func()
	}
	require.NoError(t, p.Bind(&fly))
	assert.Nil(t, fly.Skip)
	assert.Nil(t, fly.private)
	fly.SetName("bajie")
	assert.Equal(t, "bajie", fly.Name())
	assert.Equal(t, "bajie flying", fly.Fly())
	assert.Equal(t, 1, monkey.flights)

	var mismatch struct {
		Fly func() int
	}
	assert.Error(t, p.Bind(&mismatch))

	var unknown struct {
		Swim func()
	}
	assert.ErrorIs(t, p.Bind(&unknown), types.ErrMethodNotFound)
	assert.ErrorIs(t, p.Bind(fly), types.ErrNotStruct)
}

func TestIsProxy(t *testing.T) {
	factory := newTestFactory(testConfig(), nil, nil)
	p, err := factory.CreateProxy(iflyType)
	require.NoError(t, err)

	assert.True(t, IsProxy(p))
	assert.True(t, IsProxy(&iflyStub{proxy: p}))
	assert.False(t, IsProxy(&iflyStub{}))
	assert.False(t, IsProxy((*Proxy)(nil)))
	assert.False(t, IsProxy(&MonkeyKing{}))
	assert.False(t, IsProxy(nil))

	assert.True(t, IsProxyTypeName(p.ProxyType().Name))
	assert.False(t, IsProxyTypeName("engine.IFly"))
	assert.False(t, IsProxyTypeName("aop.dynamicIFly"))
}
