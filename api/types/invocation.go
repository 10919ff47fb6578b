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
	"reflect"
	"sync"
)

// PropertyKind distinguishes the two accessors of a property.
type PropertyKind int

const (
	// Getter reads a property, `X()` or `GetX()`.
	Getter PropertyKind = iota + 1
	// Setter writes a property, `SetX(v)`.
	Setter
)

// PropertyInfo describes the property an accessor method belongs to.
type PropertyInfo struct {
	// Name is the property name without the Get/Set prefix.
	Name string
	// Kind is Getter or Setter.
	Kind PropertyKind
	// Type is the property value type.
	Type reflect.Type
}

// MethodInfo describes one member of a contract or implementation type.
// MethodInfo 描述契约或者实现类型的一个方法
type MethodInfo struct {
	// Name is the method name.
	Name string
	// DeclaringType is the contract or implementation type that declares the method.
	// For struct types it is the pointer type.
	DeclaringType reflect.Type
	// Type is the func type of the method without its receiver.
	Type reflect.Type
	// Index is the method index in DeclaringType.
	Index int
	// Abstract is true for interface methods, which have no body to call.
	Abstract bool
	// HasContext is true when the first parameter is a context.Context.
	HasContext bool
	// ReturnsError is true when the last result is an error.
	ReturnsError bool
	// Async is true when the only non-error result is a receive channel.
	Async bool
	// Property is set when the method is a property accessor.
	Property *PropertyInfo
	// Interceptors are the interceptor markers copied from annotations.
	Interceptors []Interceptor
	// NoIntercept is the suppression marker copied from annotations.
	NoIntercept bool
}

// ResultTypes returns the non-error result types of the method.
func (m *MethodInfo) ResultTypes() []reflect.Type {
	n := m.Type.NumOut()
	if m.ReturnsError {
		n--
	}
	out := make([]reflect.Type, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, m.Type.Out(i))
	}
	return out
}

// IsVoid reports whether the method has no result other than an optional error.
func (m *MethodInfo) IsVoid() bool {
	return len(m.ResultTypes()) == 0
}

// String returns `Type.Method`.
func (m *MethodInfo) String() string {
	if m.DeclaringType == nil {
		return m.Name
	}
	return m.DeclaringType.String() + "." + m.Name
}

// Invocation is the per-call context passed through the interceptor pipeline.
// It is created by the proxy member for every call and dropped after the call completes.
//
// Invocation 是每次调用的上下文，它在拦截器管道中传递。
type Invocation struct {
	// ProxyMethod is the contract method that was called. Always present.
	ProxyMethod *MethodInfo
	// Method is the concrete method on the implementation. Nil for pure interface stubs.
	Method *MethodInfo
	// Proxy is the proxy receiver.
	Proxy interface{}
	// Target is the wrapped target, nil when the proxy has none.
	Target interface{}
	// Arguments are the call arguments. A variadic tail is kept as one slice.
	Arguments []interface{}
	// GenericArguments are the type arguments of an instantiated generic contract.
	GenericArguments []string
	// properties is the metadata bag populated by enrichers and interceptors,
	// reached through GetProperty, PutProperty and CopyProperties.
	properties map[string]interface{}

	returnValues []interface{}
	returnSet    bool
	lock         sync.RWMutex
}

// NewInvocation creates an invocation for the given proxy method.
func NewInvocation(proxyMethod *MethodInfo, method *MethodInfo, proxy interface{}, target interface{}, arguments []interface{}) *Invocation {
	if arguments == nil {
		arguments = []interface{}{}
	}
	return &Invocation{
		ProxyMethod: proxyMethod,
		Method:      method,
		Proxy:       proxy,
		Target:      target,
		Arguments:   arguments,
		properties:  make(map[string]interface{}),
	}
}

// SetReturnValue writes the return slot. One value per non-error result.
func (inv *Invocation) SetReturnValue(values ...interface{}) {
	inv.lock.Lock()
	defer inv.lock.Unlock()
	inv.returnValues = values
	inv.returnSet = true
}

// ReturnValue returns the first value of the return slot, or nil.
func (inv *Invocation) ReturnValue() interface{} {
	inv.lock.RLock()
	defer inv.lock.RUnlock()
	if len(inv.returnValues) == 0 {
		return nil
	}
	return inv.returnValues[0]
}

// ReturnValues returns a copy of the return slot.
func (inv *Invocation) ReturnValues() []interface{} {
	inv.lock.RLock()
	defer inv.lock.RUnlock()
	out := make([]interface{}, len(inv.returnValues))
	copy(out, inv.returnValues)
	return out
}

// HasReturnValue reports whether anything was written to the return slot.
func (inv *Invocation) HasReturnValue() bool {
	inv.lock.RLock()
	defer inv.lock.RUnlock()
	return inv.returnSet
}

// Context returns the context.Context argument of the call, if the method declares one.
func (inv *Invocation) Context() context.Context {
	if inv.ProxyMethod != nil && inv.ProxyMethod.HasContext && len(inv.Arguments) > 0 {
		if ctx, ok := inv.Arguments[0].(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return nil
}

// GetProperty returns a metadata value.
func (inv *Invocation) GetProperty(key string) (interface{}, bool) {
	inv.lock.RLock()
	defer inv.lock.RUnlock()
	v, ok := inv.properties[key]
	return v, ok
}

// PutProperty stores a metadata value.
func (inv *Invocation) PutProperty(key string, value interface{}) {
	inv.lock.Lock()
	defer inv.lock.Unlock()
	if inv.properties == nil {
		inv.properties = make(map[string]interface{})
	}
	inv.properties[key] = value
}

// CopyProperties returns a copy of the metadata bag.
func (inv *Invocation) CopyProperties() map[string]interface{} {
	inv.lock.RLock()
	defer inv.lock.RUnlock()
	out := make(map[string]interface{}, len(inv.properties))
	for k, v := range inv.properties {
		out[k] = v
	}
	return out
}
