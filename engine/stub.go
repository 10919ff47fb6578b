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

// StubFactory builds the typed view of a proxy for an interface contract.
type StubFactory func(p *Proxy) interface{}

// key: interface type
var stubs sync.Map

// RegisterStub registers the typed stub of interface T, usually from generated code:
//
//	func init() {
//		engine.RegisterStub[IFly](func(p *engine.Proxy) IFly { return &iFlyStub{proxy: p} })
//	}
//
// A stub implements T by forwarding each method to Proxy.Call and exposes the proxy with `AopProxy() *engine.Proxy`.
// It panics when T is not an interface.
func RegisterStub[T any](factory func(p *Proxy) T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Interface {
		panic(fmt.Sprintf("aop: %s: %s", types.ErrNotInterface, t))
	}
	stubs.Store(t, StubFactory(func(p *Proxy) interface{} {
		return factory(p)
	}))
}

// StubOf returns the stub factory registered for contract.
func StubOf(contract reflect.Type) (StubFactory, bool) {
	if contract == nil {
		return nil, false
	}
	v, ok := stubs.Load(contract)
	if !ok {
		return nil, false
	}
	return v.(StubFactory), true
}

// As returns the proxy as T, through the stub registered for T.
func As[T any](p *Proxy) (T, error) {
	var zero T
	t := reflect.TypeOf((*T)(nil)).Elem()
	stub, ok := StubOf(t)
	if !ok {
		return zero, fmt.Errorf("%w: %s", types.ErrNoStub, t)
	}
	v, ok := stub(p).(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s", types.ErrNoStub, t)
	}
	return v, nil
}

// Result returns values[i] as T, the zero value when it is nil or missing. Used by generated stubs.
func Result[T any](values []interface{}, i int) T {
	var zero T
	if i >= len(values) || values[i] == nil {
		return zero
	}
	v, ok := values[i].(T)
	if !ok {
		return zero
	}
	return v
}
