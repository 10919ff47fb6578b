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

package types

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func methodInfo(fn interface{}, name string) *MethodInfo {
	t := reflect.TypeOf(fn)
	m := &MethodInfo{Name: name, Type: t}
	if t.NumIn() > 0 && t.In(0) == reflect.TypeOf((*context.Context)(nil)).Elem() {
		m.HasContext = true
	}
	if t.NumOut() > 0 && t.Out(t.NumOut()-1) == reflect.TypeOf((*error)(nil)).Elem() {
		m.ReturnsError = true
	}
	return m
}

func TestMethodInfo(t *testing.T) {
	m := methodInfo(func(ctx context.Context, n int) (string, int, error) { return "", 0, nil }, "Fly")
	assert.Equal(t, []reflect.Type{reflect.TypeOf(""), reflect.TypeOf(0)}, m.ResultTypes())
	assert.False(t, m.IsVoid())
	assert.Equal(t, "Fly", m.String())

	void := methodInfo(func() error { return nil }, "Close")
	assert.True(t, void.IsVoid())
	assert.Empty(t, void.ResultTypes())
}

func TestInvocationReturnSlot(t *testing.T) {
	inv := NewInvocation(methodInfo(func() int { return 0 }, "Get"), nil, nil, nil, nil)
	assert.NotNil(t, inv.Arguments)
	assert.False(t, inv.HasReturnValue())
	assert.Nil(t, inv.ReturnValue())

	inv.SetReturnValue(3)
	assert.True(t, inv.HasReturnValue())
	assert.Equal(t, 3, inv.ReturnValue())

	values := inv.ReturnValues()
	values[0] = 4
	assert.Equal(t, 3, inv.ReturnValue())
}

func TestInvocationContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	m := methodInfo(func(ctx context.Context) {}, "Run")
	inv := NewInvocation(m, nil, nil, nil, []interface{}{ctx})
	assert.Equal(t, ctx, inv.Context())

	noCtx := NewInvocation(methodInfo(func(int) {}, "Run"), nil, nil, nil, []interface{}{1})
	assert.Nil(t, noCtx.Context())
}

func TestInvocationProperties(t *testing.T) {
	inv := NewInvocation(methodInfo(func() {}, "Run"), nil, nil, nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv.PutProperty(fmt.Sprintf("k%d", i), i)
		}(i)
	}
	wg.Wait()
	v, ok := inv.GetProperty("k7")
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	_, ok = inv.GetProperty("missing")
	assert.False(t, ok)
}

func TestUnwrapInner(t *testing.T) {
	cause := errors.New("cause")
	assert.Equal(t, cause, UnwrapInner(cause))
	assert.Nil(t, UnwrapInner(nil))
	assert.Equal(t, cause, UnwrapInner(&AggregateError{Errs: []error{cause}}))
	assert.Equal(t, cause, UnwrapInner(NewPanicError(cause)))
	assert.Equal(t, cause, UnwrapInner(&InvokeError{Err: &AggregateError{Errs: []error{cause}}}))

	many := &AggregateError{Errs: []error{cause, cause}}
	assert.Equal(t, many, UnwrapInner(many))

	p := NewPanicError("boom")
	assert.Equal(t, p, UnwrapInner(p))
	assert.NotEmpty(t, p.Stack)
	assert.Equal(t, "panic: boom", p.Error())

	invokeErr := &InvokeError{Method: &MethodInfo{Name: "Fly"}, Err: cause}
	assert.Equal(t, invokeErr, UnwrapSubstrate(NewPanicError(invokeErr)))
	assert.Equal(t, "invoke Fly exception: cause", invokeErr.Error())
	assert.ErrorIs(t, invokeErr, cause)

	wrapped := fmt.Errorf("user: %w", cause)
	assert.Equal(t, wrapped, UnwrapInner(wrapped))
}

func TestConfig(t *testing.T) {
	var reported []error
	prev := OnInvokeException
	OnInvokeException = func(err error) { reported = append(reported, err) }
	defer func() { OnInvokeException = prev }()

	var local error
	config := NewConfig(
		WithOnError(func(err error) { local = err }),
		WithIgnoredMethods("Close"),
		WithProperties(map[string]interface{}{"app": "demo"}),
		WithKeepInvokeError(),
		WithLogger(DiscardLogger()),
	)
	require.NotNil(t, config.Logger)
	assert.True(t, config.IsIgnored("String"))
	assert.True(t, config.IsIgnored("Close"))
	assert.False(t, config.IsIgnored("Fly"))
	assert.Equal(t, "demo", config.Properties["app"])
	assert.True(t, config.KeepInvokeError)

	cause := errors.New("enrich")
	config.ReportError(cause)
	config.ReportError(nil)
	assert.Equal(t, cause, local)
	assert.Equal(t, []error{cause}, reported)
}

func TestFuncAdapters(t *testing.T) {
	called := false
	var interceptor Interceptor = InterceptorFunc(func(ctx context.Context, invocation *Invocation, next Next) error {
		called = true
		return next(ctx)
	})
	err := interceptor.Invoke(context.Background(), nil, func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
	assert.True(t, called)

	var resolver InterceptorResolver = InterceptorResolverFunc(func(invocation *Invocation) []Interceptor {
		return []Interceptor{interceptor}
	})
	assert.Len(t, resolver.ResolveInterceptors(nil), 1)

	var enricher InvocationEnricher = InvocationEnricherFunc(func(invocation *Invocation) error {
		invocation.PutProperty("a", 1)
		return nil
	})
	inv := NewInvocation(&MethodInfo{Name: "Run", Type: reflect.TypeOf(func() {})}, nil, nil, nil, nil)
	require.NoError(t, enricher.Enrich(inv))
	v, ok := inv.GetProperty("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestInvocationPropertiesConcurrent(t *testing.T) {
	inv := &Invocation{ProxyMethod: &MethodInfo{Name: "Run", Type: reflect.TypeOf(func() {})}}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			for j := 0; j < 100; j++ {
				inv.PutProperty(key, j)
				inv.GetProperty(key)
				inv.CopyProperties()
			}
		}(i)
	}
	wg.Wait()
	props := inv.CopyProperties()
	assert.Len(t, props, 8)
	assert.Equal(t, 99, props["k0"])
	//副本与原始数据互不影响
	props["k0"] = -1
	v, _ := inv.GetProperty("k0")
	assert.Equal(t, 99, v)
}
