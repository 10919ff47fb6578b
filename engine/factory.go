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
	"fmt"
	"reflect"
	"sync"

	"github.com/rulego/aop/api/types"
)

// ProxyFactory instantiates proxies from synthesized proxy types.
//
// ProxyFactory 代理工厂，根据代理类型创建代理实例
type ProxyFactory struct {
	typeFactory *ProxyTypeFactory
	dispatcher  *Dispatcher
	//key: *T，value: 构造函数
	constructors sync.Map
}

// NewProxyFactory creates a factory over typeFactory, dispatching calls to dispatcher.
func NewProxyFactory(typeFactory *ProxyTypeFactory, dispatcher *Dispatcher) *ProxyFactory {
	return &ProxyFactory{typeFactory: typeFactory, dispatcher: dispatcher}
}

// ProxyTypes returns the proxy type factory.
func (f *ProxyFactory) ProxyTypes() *ProxyTypeFactory {
	return f.typeFactory
}

// RegisterConstructor registers the constructor of a struct type, `func(...) *T` or
// `func(...) (*T, error)`. Proxies created with constructor arguments call it.
func (f *ProxyFactory) RegisterConstructor(constructor interface{}) error {
	fn := reflect.ValueOf(constructor)
	if fn.Kind() != reflect.Func || fn.IsNil() {
		return fmt.Errorf("constructor must be a func, got %T", constructor)
	}
	fnType := fn.Type()
	out := fnType.NumOut()
	if out == 0 || out > 2 || (out == 2 && fnType.Out(1) != errorType) {
		return fmt.Errorf("constructor must return *T or (*T, error), got %s", fnType)
	}
	t := fnType.Out(0)
	if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: constructor returns %s", types.ErrNotStruct, t)
	}
	f.constructors.Store(t, fn)
	return nil
}

// CreateProxy creates a proxy for contract. An interface contract gets an interface-only proxy.
// A struct contract gets a class proxy over a new instance, built by its registered constructor
// with args, or as a zero value when there are no args.
func (f *ProxyFactory) CreateProxy(contract reflect.Type, args ...interface{}) (*Proxy, error) {
	pt, err := f.typeFactory.CreateProxyType(contract, nil)
	if err != nil {
		return nil, err
	}
	var target interface{}
	if pt.Kind == ClassProxy {
		if target, err = f.construct(pt.Implementation, args); err != nil {
			return nil, err
		}
	} else if len(args) > 0 {
		return nil, fmt.Errorf("%w: interface %s", types.ErrNoConstructor, pt.Contract)
	}
	return newProxy(pt, target, f.dispatcher), nil
}

// CreateProxyWithImpl creates a proxy for contract over a new instance of implementation.
func (f *ProxyFactory) CreateProxyWithImpl(contract, implementation reflect.Type, args ...interface{}) (*Proxy, error) {
	if implementation == nil {
		return f.CreateProxy(contract, args...)
	}
	pt, err := f.typeFactory.CreateProxyType(contract, implementation)
	if err != nil {
		return nil, err
	}
	target, err := f.construct(pt.Implementation, args)
	if err != nil {
		return nil, err
	}
	return newProxy(pt, target, f.dispatcher), nil
}

// CreateProxyWithTarget creates a proxy for contract that forwards to an existing instance.
// target must be a pointer to struct.
func (f *ProxyFactory) CreateProxyWithTarget(contract reflect.Type, target interface{}) (*Proxy, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: target", types.ErrNilType)
	}
	implementation := reflect.TypeOf(target)
	if implementation.Kind() != reflect.Ptr || implementation.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: target is %s", types.ErrNotStruct, implementation)
	}
	if reflect.ValueOf(target).IsNil() {
		return nil, fmt.Errorf("%w: target", types.ErrNilType)
	}
	pt, err := f.typeFactory.CreateProxyType(contract, implementation)
	if err != nil {
		return nil, err
	}
	return newProxy(pt, target, f.dispatcher), nil
}

// Instance returns the typed stub of the proxy when one is registered for its contract, the proxy otherwise.
func (f *ProxyFactory) Instance(p *Proxy) interface{} {
	if stub, ok := StubOf(p.proxyType.Contract); ok {
		return stub(p)
	}
	return p
}

func (f *ProxyFactory) construct(t reflect.Type, args []interface{}) (interface{}, error) {
	v, ok := f.constructors.Load(t)
	if !ok {
		if len(args) > 0 {
			return nil, fmt.Errorf("%w: %s", types.ErrNoConstructor, t)
		}
		return reflect.New(t.Elem()).Interface(), nil
	}
	fn := v.(reflect.Value)
	fnType := fn.Type()
	if fnType.IsVariadic() {
		if len(args) < fnType.NumIn()-1 {
			return nil, fmt.Errorf("%w: constructor of %s wants at least %d arguments, got %d", types.ErrArgumentCount, t, fnType.NumIn()-1, len(args))
		}
	} else if len(args) != fnType.NumIn() {
		return nil, fmt.Errorf("%w: constructor of %s wants %d arguments, got %d", types.ErrArgumentCount, t, fnType.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var paramType reflect.Type
		if fnType.IsVariadic() && i >= fnType.NumIn()-1 {
			paramType = fnType.In(fnType.NumIn() - 1).Elem()
		} else {
			paramType = fnType.In(i)
		}
		rv, ok := convertValue(arg, paramType)
		if !ok {
			return nil, fmt.Errorf("%w: constructor argument %d of %s is %T, want %s", types.ErrArgumentCount, i, t, arg, paramType)
		}
		in[i] = rv
	}
	out := fn.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	if out[0].IsNil() {
		return nil, fmt.Errorf("%w: constructor of %s returned nil", types.ErrNilType, t)
	}
	return out[0].Interface(), nil
}
