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
	"github.com/rulego/aop/builtin/enricher"
	"github.com/rulego/aop/builtin/interceptor"
	utilsReflect "github.com/rulego/aop/utils/reflect"
)

// Predicate selects invocations.
type Predicate func(invocation *types.Invocation) bool

// MethodPredicate selects methods. It receives the concrete method when there is one,
// the contract method otherwise.
type MethodPredicate func(method *types.MethodInfo) bool

// InterceptionConfiguration associates a predicate with an ordered set of interceptors.
type InterceptionConfiguration struct {
	predicate    Predicate
	lock         sync.RWMutex
	interceptors []types.Interceptor
}

// With appends interceptors to the configuration.
func (c *InterceptionConfiguration) With(interceptors ...types.Interceptor) *InterceptionConfiguration {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, item := range interceptors {
		if item != nil {
			c.interceptors = append(c.interceptors, item)
		}
	}
	return c
}

// Interceptors returns a copy of the configured interceptors.
func (c *InterceptionConfiguration) Interceptors() []types.Interceptor {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return append([]types.Interceptor(nil), c.interceptors...)
}

// AspectOptions is the declarative configuration surface: interception predicates, suppression
// predicates, enrichers and the interceptor resolver. Register everything before proxies are used;
// registration stays safe for concurrent use but calls in flight may not see it.
//
// AspectOptions 声明式拦截配置：拦截规则、禁止拦截规则、调用增强器和拦截器解析器。
type AspectOptions struct {
	lock           sync.RWMutex
	configurations []*InterceptionConfiguration
	suppressions   []Predicate
	enrichers      []types.InvocationEnricher
	resolver       types.InterceptorResolver
	//resolver 是否由用户指定
	customResolver bool
}

// NewAspectOptions creates empty options resolved by a FluentResolver.
func NewAspectOptions() *AspectOptions {
	o := &AspectOptions{}
	o.resolver = NewFluentResolver(o)
	return o
}

// DefaultAspectOptions creates options with the built-in registrations: types of the engine's own
// packages are never intercepted, and every other method gets the pass-through TryInvoke fallback.
func DefaultAspectOptions() *AspectOptions {
	o := NewAspectOptions()
	o.NoInterceptType(IsEngineType)
	o.InterceptAll().With(interceptor.DefaultFallback)
	return o
}

var enginePackages = map[string]struct{}{
	reflect.TypeOf((*Proxy)(nil)).Elem().PkgPath():                     {},
	reflect.TypeOf((*types.Invocation)(nil)).Elem().PkgPath():          {},
	reflect.TypeOf((*interceptor.TryInvoke)(nil)).Elem().PkgPath():     {},
	reflect.TypeOf((*enricher.PropertyEnricher)(nil)).Elem().PkgPath(): {},
}

// IsEngineType reports whether t belongs to one of the engine packages. Such types are never intercepted.
func IsEngineType(t reflect.Type) bool {
	t = utilsReflect.Indirect(t)
	if t == nil {
		return false
	}
	_, ok := enginePackages[t.PkgPath()]
	return ok
}

// Intercept registers interceptors for the invocations matching predicate.
func (o *AspectOptions) Intercept(predicate Predicate) *InterceptionConfiguration {
	c := &InterceptionConfiguration{predicate: predicate}
	o.lock.Lock()
	defer o.lock.Unlock()
	o.configurations = append(o.configurations, c)
	return c
}

// InterceptAll registers interceptors for every invocation.
func (o *AspectOptions) InterceptAll() *InterceptionConfiguration {
	return o.Intercept(func(*types.Invocation) bool { return true })
}

// InterceptMethodFunc registers interceptors for the methods matching predicate.
func (o *AspectOptions) InterceptMethodFunc(predicate MethodPredicate) *InterceptionConfiguration {
	return o.Intercept(func(invocation *types.Invocation) bool {
		return predicate(effectiveMethod(invocation))
	})
}

// InterceptType registers interceptors for the methods whose declaring type matches filter.
func (o *AspectOptions) InterceptType(filter func(t reflect.Type) bool) *InterceptionConfiguration {
	return o.InterceptMethodFunc(func(m *types.MethodInfo) bool {
		return filter(m.DeclaringType)
	})
}

// InterceptTypeOf registers interceptors for the methods of t: its implementations when t is an
// interface, t itself and the structs embedding it otherwise.
func (o *AspectOptions) InterceptTypeOf(t reflect.Type) *InterceptionConfiguration {
	return o.InterceptMethodFunc(func(m *types.MethodInfo) bool {
		return assignableTo(m.DeclaringType, t)
	})
}

// InterceptMethodOf registers interceptors for the methods of t matching predicate.
func (o *AspectOptions) InterceptMethodOf(t reflect.Type, predicate MethodPredicate) *InterceptionConfiguration {
	return o.InterceptMethodFunc(func(m *types.MethodInfo) bool {
		return assignableTo(m.DeclaringType, t) && predicate(m)
	})
}

// InterceptMethod registers interceptors for the method name of t.
func (o *AspectOptions) InterceptMethod(t reflect.Type, name string) (*InterceptionConfiguration, error) {
	predicate, err := methodPredicate(t, name)
	if err != nil {
		return nil, err
	}
	return o.InterceptMethodOf(t, predicate), nil
}

// InterceptMethodExpr registers interceptors for a method expression such as `IFly.Fly` or `(*MonkeyKing).Fly`.
func (o *AspectOptions) InterceptMethodExpr(methodExpr interface{}) (*InterceptionConfiguration, error) {
	t, name, err := methodOfExpr(methodExpr)
	if err != nil {
		return nil, err
	}
	return o.InterceptMethod(t, name)
}

// InterceptPropertyGetter registers interceptors for the getter of property prop of t.
func (o *AspectOptions) InterceptPropertyGetter(t reflect.Type, prop string) (*InterceptionConfiguration, error) {
	p, err := propertyOf(t, prop)
	if err != nil {
		return nil, err
	}
	if !p.CanRead() {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrPropertyNotReadable, t, prop)
	}
	return o.InterceptMethod(t, p.Getter)
}

// InterceptPropertySetter registers interceptors for the setter of property prop of t.
func (o *AspectOptions) InterceptPropertySetter(t reflect.Type, prop string) (*InterceptionConfiguration, error) {
	p, err := propertyOf(t, prop)
	if err != nil {
		return nil, err
	}
	if !p.CanWrite() {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrPropertyNotWritable, t, prop)
	}
	return o.InterceptMethod(t, p.Setter)
}

// NoIntercept suppresses every interceptor for the invocations matching predicate,
// whatever else matches them.
func (o *AspectOptions) NoIntercept(predicate Predicate) *AspectOptions {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.suppressions = append(o.suppressions, predicate)
	return o
}

// NoInterceptMethodFunc suppresses the methods matching predicate.
func (o *AspectOptions) NoInterceptMethodFunc(predicate MethodPredicate) *AspectOptions {
	return o.NoIntercept(func(invocation *types.Invocation) bool {
		return predicate(effectiveMethod(invocation))
	})
}

// NoInterceptType suppresses the methods whose declaring type matches filter.
func (o *AspectOptions) NoInterceptType(filter func(t reflect.Type) bool) *AspectOptions {
	return o.NoInterceptMethodFunc(func(m *types.MethodInfo) bool {
		return filter(m.DeclaringType)
	})
}

// NoInterceptTypeOf suppresses the methods of t.
func (o *AspectOptions) NoInterceptTypeOf(t reflect.Type) *AspectOptions {
	return o.NoInterceptMethodFunc(func(m *types.MethodInfo) bool {
		return assignableTo(m.DeclaringType, t)
	})
}

// NoInterceptMethodOf suppresses the methods of t matching predicate.
func (o *AspectOptions) NoInterceptMethodOf(t reflect.Type, predicate MethodPredicate) *AspectOptions {
	return o.NoInterceptMethodFunc(func(m *types.MethodInfo) bool {
		return assignableTo(m.DeclaringType, t) && predicate(m)
	})
}

// NoInterceptMethod suppresses the method name of t.
func (o *AspectOptions) NoInterceptMethod(t reflect.Type, name string) error {
	predicate, err := methodPredicate(t, name)
	if err != nil {
		return err
	}
	o.NoInterceptMethodOf(t, predicate)
	return nil
}

// NoInterceptMethodExpr suppresses a method expression such as `IFly.Fly`.
func (o *AspectOptions) NoInterceptMethodExpr(methodExpr interface{}) error {
	t, name, err := methodOfExpr(methodExpr)
	if err != nil {
		return err
	}
	return o.NoInterceptMethod(t, name)
}

// NoInterceptProperty suppresses both accessors of property prop of t.
func (o *AspectOptions) NoInterceptProperty(t reflect.Type, prop string) error {
	p, err := propertyOf(t, prop)
	if err != nil {
		return err
	}
	if p.CanRead() {
		if err := o.NoInterceptMethod(t, p.Getter); err != nil {
			return err
		}
	}
	if p.CanWrite() {
		return o.NoInterceptMethod(t, p.Setter)
	}
	return nil
}

// NoInterceptPropertyGetter suppresses the getter of property prop of t.
func (o *AspectOptions) NoInterceptPropertyGetter(t reflect.Type, prop string) error {
	p, err := propertyOf(t, prop)
	if err != nil {
		return err
	}
	if !p.CanRead() {
		return fmt.Errorf("%w: %s.%s", types.ErrPropertyNotReadable, t, prop)
	}
	return o.NoInterceptMethod(t, p.Getter)
}

// NoInterceptPropertySetter suppresses the setter of property prop of t.
func (o *AspectOptions) NoInterceptPropertySetter(t reflect.Type, prop string) error {
	p, err := propertyOf(t, prop)
	if err != nil {
		return err
	}
	if !p.CanWrite() {
		return fmt.Errorf("%w: %s.%s", types.ErrPropertyNotWritable, t, prop)
	}
	return o.NoInterceptMethod(t, p.Setter)
}

// WithProperty writes a metadata value into every invocation.
// An existing value is kept unless overwrite is set.
func (o *AspectOptions) WithProperty(name string, value interface{}, overwrite bool) *AspectOptions {
	return o.WithEnricher(enricher.NewPropertyEnricher(name, value, overwrite))
}

// WithPropertyFunc writes a metadata value computed per invocation.
func (o *AspectOptions) WithPropertyFunc(name string, valueFactory func(invocation *types.Invocation) interface{}, overwrite bool) *AspectOptions {
	return o.WithEnricher(enricher.NewPropertyEnricherFunc(name, valueFactory, nil, overwrite))
}

// WithEnricher adds enrichers, run in registration order before every call.
func (o *AspectOptions) WithEnricher(enrichers ...types.InvocationEnricher) *AspectOptions {
	o.lock.Lock()
	defer o.lock.Unlock()
	for _, item := range enrichers {
		if item != nil {
			o.enrichers = append(o.enrichers, item)
		}
	}
	return o
}

// UseInterceptorResolver replaces the resolver. A nil resolver is ignored.
func (o *AspectOptions) UseInterceptorResolver(resolver types.InterceptorResolver) *AspectOptions {
	if resolver == nil {
		return o
	}
	o.lock.Lock()
	defer o.lock.Unlock()
	o.resolver = resolver
	o.customResolver = true
	return o
}

// InterceptorResolver returns the resolver in use.
func (o *AspectOptions) InterceptorResolver() types.InterceptorResolver {
	o.lock.RLock()
	defer o.lock.RUnlock()
	return o.resolver
}

// Enrichers returns a copy of the registered enrichers.
func (o *AspectOptions) Enrichers() []types.InvocationEnricher {
	o.lock.RLock()
	defer o.lock.RUnlock()
	return append([]types.InvocationEnricher(nil), o.enrichers...)
}

func (o *AspectOptions) interceptions() []*InterceptionConfiguration {
	o.lock.RLock()
	defer o.lock.RUnlock()
	return append([]*InterceptionConfiguration(nil), o.configurations...)
}

func (o *AspectOptions) noInterceptions() []Predicate {
	o.lock.RLock()
	defer o.lock.RUnlock()
	return append([]Predicate(nil), o.suppressions...)
}

// methodPredicate matches the signature of the method name of t.
func methodPredicate(t reflect.Type, name string) (MethodPredicate, error) {
	if t == nil {
		return nil, types.ErrNilType
	}
	declaring := normalizeType(t)
	m, ok := declaring.MethodByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrMethodNotFound, t, name)
	}
	signature := SignatureOf(newMethodInfo(declaring, m))
	return func(method *types.MethodInfo) bool {
		return SignatureOf(method).Equals(signature)
	}, nil
}

func methodOfExpr(methodExpr interface{}) (reflect.Type, string, error) {
	t, name, err := utilsReflect.MethodOf(methodExpr)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %T", types.ErrNotMethodExpr, methodExpr)
	}
	return t, name, nil
}

func propertyOf(t reflect.Type, prop string) (*PropertyDef, error) {
	if t == nil {
		return nil, types.ErrNilType
	}
	p, ok := propertiesOf(normalizeType(t))[prop]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrPropertyNotFound, t, prop)
	}
	return p, nil
}

// useDefaultResolver replaces the resolver unless one was set by UseInterceptorResolver.
func (o *AspectOptions) useDefaultResolver(resolver types.InterceptorResolver) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if !o.customResolver {
		o.resolver = resolver
	}
}
