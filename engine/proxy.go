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
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/rulego/aop/api/types"
)

// Proxy is an instance of a proxy type. Every call made through it builds an Invocation
// and hands it to the dispatch engine.
//
// Go can not create types at runtime, so a proxy is used through one of:
//   - Invoke / InvokeAsync / Call with the method name;
//   - Func, a typed func built with reflect.MakeFunc;
//   - Bind, which fills a struct of funcs;
//   - a typed stub registered with RegisterStub (see cmd/aopgen), returned by ProxyFactory.Instance.
//
// Proxy 代理实例，每次调用都会创建 Invocation 并交给调度引擎。
type Proxy struct {
	proxyType  *ProxyType
	target     interface{}
	dispatcher *Dispatcher

	//接口代理的属性存储
	propertiesLock sync.RWMutex
	properties     map[string]interface{}
}

func newProxy(proxyType *ProxyType, target interface{}, dispatcher *Dispatcher) *Proxy {
	return &Proxy{
		proxyType:  proxyType,
		target:     target,
		dispatcher: dispatcher,
		properties: make(map[string]interface{}),
	}
}

// ProxyType returns the synthesized type of the proxy.
func (p *Proxy) ProxyType() *ProxyType {
	return p.proxyType
}

// Target returns the wrapped or constructed instance, nil for interface-only proxies.
func (p *Proxy) Target() interface{} {
	return p.target
}

func (p *Proxy) String() string {
	return p.proxyType.Name
}

// Invoke calls a member through the interceptor pipeline and returns its non-error results.
// ctx is handed to the pipeline, a nil ctx means the context.Context argument of the method.
// When the method takes a context.Context, the context reaching the terminal operation is passed as that argument.
func (p *Proxy) Invoke(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	inv, err := p.newInvocation(method, args)
	if err != nil {
		if ignored, ok := p.callIgnored(method, args); ok {
			return ignored, nil
		}
		return nil, err
	}
	if ctx == nil {
		ctx = contextOf(inv)
	}
	err = p.dispatcher.Invoke(ctx, inv)
	return p.results(inv, err)
}

// InvokeAsync calls a member on the configured pool. The returned Future yields the same results as Invoke.
func (p *Proxy) InvokeAsync(ctx context.Context, method string, args ...interface{}) *Future {
	inv, err := p.newInvocation(method, args)
	if err != nil {
		return completedFuture(nil, err)
	}
	if ctx == nil {
		ctx = contextOf(inv)
	}
	f := p.dispatcher.InvokeAsync(ctx, inv)
	f.finish = p.results
	return f
}

// Call is the synchronous surface used by typed stubs. It returns every result of the method,
// the error included. The context.Context argument of the method, if any, is handed to the pipeline.
// A failure of a method that does not return an error is raised again as a panic.
func (p *Proxy) Call(method string, args ...interface{}) []interface{} {
	inv, err := p.newInvocation(method, args)
	if err != nil {
		if ignored, ok := p.callIgnored(method, args); ok {
			return ignored
		}
		panic(err)
	}
	err = p.dispatcher.Invoke(contextOf(inv), inv)
	out, err := p.results(inv, err)
	if inv.ProxyMethod.ReturnsError {
		if resultTypes := inv.ProxyMethod.ResultTypes(); len(out) != len(resultTypes) {
			out = zeroResults(resultTypes)
		}
		return append(out, err)
	}
	if err != nil {
		panic(err)
	}
	return out
}

// Func returns a typed func for the member, for example `p.Func("Fly").(func() string)`.
func (p *Proxy) Func(method string) (interface{}, error) {
	member, ok := p.proxyType.Method(method)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrMethodNotFound, p.proxyType.Contract, method)
	}
	return p.makeFunc(member.Contract).Interface(), nil
}

// Bind fills the func fields of the struct pointed by table with typed members.
// A field binds the member of the same name, or the name in its `aop` tag.
//
//	var fly struct {
//		Fly  func() string
//		Name func() string `aop:"GetName"`
//	}
//	err := proxy.Bind(&fly)
func (p *Proxy) Bind(table interface{}) error {
	v := reflect.ValueOf(table)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: bind table must be a pointer to struct", types.ErrNotStruct)
	}
	v = v.Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type.Kind() != reflect.Func || !v.Field(i).CanSet() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("aop"); ok {
			if tag == "-" {
				continue
			}
			name = tag
		}
		member, ok := p.proxyType.Method(name)
		if !ok {
			return fmt.Errorf("%w: %s.%s", types.ErrMethodNotFound, p.proxyType.Contract, name)
		}
		if member.Contract.Type != field.Type {
			return fmt.Errorf("bind %s: field type %s does not match %s", name, field.Type, member.Contract.Type)
		}
		v.Field(i).Set(p.makeFunc(member.Contract))
	}
	return nil
}

func (p *Proxy) makeFunc(method *types.MethodInfo) reflect.Value {
	fnType := method.Type
	return reflect.MakeFunc(fnType, func(in []reflect.Value) []reflect.Value {
		args := make([]interface{}, len(in))
		for i, v := range in {
			args[i] = v.Interface()
		}
		out := p.Call(method.Name, args...)
		values := make([]reflect.Value, fnType.NumOut())
		for i := range values {
			values[i] = toValue(out[i], fnType.Out(i))
		}
		return values
	})
}

func (p *Proxy) newInvocation(method string, args []interface{}) (*types.Invocation, error) {
	member, ok := p.proxyType.Method(method)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrMethodNotFound, p.proxyType.Contract, method)
	}
	args, err := normalizeArguments(member.Contract, args)
	if err != nil {
		return nil, err
	}
	inv := types.NewInvocation(member.Contract, member.Implementation, p, p.target, args)
	inv.GenericArguments = p.proxyType.GenericArguments
	return inv, nil
}

// callIgnored calls an ignored method directly on the target.
func (p *Proxy) callIgnored(method string, args []interface{}) ([]interface{}, bool) {
	if !p.proxyType.IsIgnored(method) || p.target == nil {
		return nil, false
	}
	fn := reflect.ValueOf(p.target).MethodByName(method)
	if !fn.IsValid() || fn.Type().NumIn() != len(args) || fn.Type().IsVariadic() {
		return nil, false
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = toValue(a, fn.Type().In(i))
	}
	var out []interface{}
	for _, v := range fn.Call(in) {
		out = append(out, v.Interface())
	}
	return out, true
}

// results converts the return slot to the exact result types of the method.
func (p *Proxy) results(inv *types.Invocation, err error) ([]interface{}, error) {
	resultTypes := inv.ProxyMethod.ResultTypes()
	values := inv.ReturnValues()
	if len(values) > len(resultTypes) {
		return nil, fmt.Errorf("%w: %s returns %d values, got %d", types.ErrReturnValue, inv.ProxyMethod, len(resultTypes), len(values))
	}
	out := make([]interface{}, len(resultTypes))
	for i, t := range resultTypes {
		var v interface{}
		if i < len(values) {
			v = values[i]
		}
		rv, ok := convertValue(v, t)
		if !ok {
			return nil, fmt.Errorf("%w: %s result %d is %T, want %s", types.ErrReturnValue, inv.ProxyMethod, i, v, t)
		}
		out[i] = rv.Interface()
	}
	return out, err
}

func zeroResults(resultTypes []reflect.Type) []interface{} {
	out := make([]interface{}, len(resultTypes))
	for i, t := range resultTypes {
		out[i] = reflect.Zero(t).Interface()
	}
	return out
}

// getProperty reads the backing store of an interface-only proxy.
func (p *Proxy) getProperty(name string) (interface{}, bool) {
	p.propertiesLock.RLock()
	defer p.propertiesLock.RUnlock()
	v, ok := p.properties[name]
	return v, ok
}

// setProperty writes the backing store of an interface-only proxy.
func (p *Proxy) setProperty(name string, value interface{}) {
	p.propertiesLock.Lock()
	defer p.propertiesLock.Unlock()
	p.properties[name] = value
}

// IsProxy reports whether v is a proxy, or a typed stub over one.
func IsProxy(v interface{}) bool {
	switch x := v.(type) {
	case *Proxy:
		return x != nil
	case interface{ AopProxy() *Proxy }:
		return x.AopProxy() != nil
	default:
		return false
	}
}

// IsProxyTypeName reports whether name is the name of a synthesized proxy type.
func IsProxyTypeName(name string) bool {
	return strings.HasPrefix(name, types.ProxyTypeNamePrefix+".")
}

func contextOf(inv *types.Invocation) context.Context {
	if ctx := inv.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// normalizeArguments checks the arity. The variadic tail of a variadic method is kept as one slice.
func normalizeArguments(method *types.MethodInfo, args []interface{}) ([]interface{}, error) {
	fnType := method.Type
	n := fnType.NumIn()
	if !fnType.IsVariadic() {
		if len(args) != n {
			return nil, fmt.Errorf("%w: %s wants %d arguments, got %d", types.ErrArgumentCount, method, n, len(args))
		}
		return args, nil
	}
	sliceType := fnType.In(n - 1)
	if len(args) == n {
		last := args[n-1]
		if last == nil || reflect.TypeOf(last).AssignableTo(sliceType) {
			return args, nil
		}
	}
	if len(args) < n-1 {
		return nil, fmt.Errorf("%w: %s wants at least %d arguments, got %d", types.ErrArgumentCount, method, n-1, len(args))
	}
	tail := reflect.MakeSlice(sliceType, 0, len(args)-n+1)
	for _, a := range args[n-1:] {
		tail = reflect.Append(tail, toValue(a, sliceType.Elem()))
	}
	out := make([]interface{}, n)
	copy(out, args[:n-1])
	out[n-1] = tail.Interface()
	return out, nil
}

// convertValue converts v to t. nil becomes the zero value of t.
func convertValue(v interface{}, t reflect.Type) (reflect.Value, bool) {
	if v == nil {
		return reflect.Zero(t), true
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		if rv.Type() == t {
			return rv, true
		}
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, true
	}
	if rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind() {
		return rv.Convert(t), true
	}
	return reflect.Value{}, false
}

// toValue is convertValue that panics on a type mismatch, like a direct call with a wrong argument would.
func toValue(v interface{}, t reflect.Type) reflect.Value {
	rv, ok := convertValue(v, t)
	if !ok {
		panic(fmt.Sprintf("aop: %T is not assignable to %s", v, t))
	}
	return rv
}
