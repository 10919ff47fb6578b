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

// Package container is a minimal dependency injection container with Singleton, Scoped and Transient
// lifetimes. BuildProxyProvider turns its registrations into proxies created by an aop engine.
//
// Package container 依赖注入容器，支持单例、作用域和瞬时三种生命周期。
package container

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/rulego/aop/api/types"
)

var (
	// ErrServiceNotFound is returned when no definition is registered for a service type.
	ErrServiceNotFound = errors.New("service not registered")
	// ErrCircularDependency is returned when a service depends on itself.
	ErrCircularDependency = errors.New("circular dependency")
	// ErrInvalidDefinition is returned when a definition has no way to create its service.
	ErrInvalidDefinition = errors.New("invalid service definition")
	// ErrScopeClosed is returned when resolving from a closed scope.
	ErrScopeClosed = errors.New("scope closed")
)

// Lifetime is how long a resolved service is kept.
type Lifetime int

const (
	// Singleton services are created once per root container.
	Singleton Lifetime = iota + 1
	// Scoped services are created once per scope.
	Scoped
	// Transient services are created on every resolution.
	Transient
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// Provider resolves services.
type Provider interface {
	Resolve(serviceType reflect.Type) (interface{}, error)
}

// ServiceDefinition describes how to create one service. Exactly one of Instance, Factory,
// Constructor or ImplementType is used, in that order.
type ServiceDefinition struct {
	// ServiceType is the type services are resolved by, an interface or a pointer to struct.
	ServiceType reflect.Type
	// ImplementType is the pointer to struct created for the service.
	ImplementType reflect.Type
	// Instance is a ready instance, always a singleton.
	Instance interface{}
	// Factory creates the instance.
	Factory func(provider Provider) (interface{}, error)
	// Constructor is `func(deps...) *T` or `func(deps...) (*T, error)`, its parameters are resolved from the container.
	Constructor interface{}
	// Lifetime defaults to Transient.
	Lifetime Lifetime
	// proxied marks definitions that already create proxies.
	proxied bool
}

// Builder collects service definitions. A later definition of the same service type replaces the earlier one.
//
// Builder 服务定义集合，同一个服务类型后注册的覆盖先注册的
type Builder struct {
	lock        sync.RWMutex
	definitions []*ServiceDefinition
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add adds a definition.
func (b *Builder) Add(definition ServiceDefinition) *Builder {
	if definition.Instance != nil {
		definition.Lifetime = Singleton
	} else if definition.Lifetime == 0 {
		definition.Lifetime = Transient
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	b.definitions = append(b.definitions, &definition)
	return b
}

// AddType registers implementType for serviceType. implementType may be the struct or its pointer.
func (b *Builder) AddType(serviceType, implementType reflect.Type, lifetime Lifetime) *Builder {
	return b.Add(ServiceDefinition{ServiceType: serviceType, ImplementType: pointerTo(implementType), Lifetime: lifetime})
}

// AddInstance registers a ready instance.
func (b *Builder) AddInstance(serviceType reflect.Type, instance interface{}) *Builder {
	return b.Add(ServiceDefinition{ServiceType: serviceType, Instance: instance})
}

// AddFactory registers a factory.
func (b *Builder) AddFactory(serviceType reflect.Type, factory func(provider Provider) (interface{}, error), lifetime Lifetime) *Builder {
	return b.Add(ServiceDefinition{ServiceType: serviceType, Factory: factory, Lifetime: lifetime})
}

// AddConstructor registers a constructor whose parameters are resolved from the container.
func (b *Builder) AddConstructor(serviceType reflect.Type, constructor interface{}, lifetime Lifetime) *Builder {
	return b.Add(ServiceDefinition{ServiceType: serviceType, Constructor: constructor, Lifetime: lifetime})
}

// Definitions returns a copy of the definitions in registration order.
func (b *Builder) Definitions() []ServiceDefinition {
	b.lock.RLock()
	defer b.lock.RUnlock()
	out := make([]ServiceDefinition, len(b.definitions))
	for i, d := range b.definitions {
		out[i] = *d
	}
	return out
}

// Build validates the definitions and creates the root container.
func (b *Builder) Build() (*Container, error) {
	definitions := make(map[reflect.Type]*ServiceDefinition)
	for _, d := range b.Definitions() {
		d := d
		if err := validate(&d); err != nil {
			return nil, err
		}
		definitions[d.ServiceType] = &d
	}
	c := &Container{definitions: definitions}
	c.root = c
	return c, nil
}

func validate(d *ServiceDefinition) error {
	if d.ServiceType == nil {
		return fmt.Errorf("%w: nil service type", ErrInvalidDefinition)
	}
	switch {
	case d.Instance != nil:
		if !reflect.TypeOf(d.Instance).AssignableTo(d.ServiceType) {
			return fmt.Errorf("%w: %T is not assignable to %s", ErrInvalidDefinition, d.Instance, d.ServiceType)
		}
	case d.Factory != nil:
	case d.Constructor != nil:
		fnType := reflect.TypeOf(d.Constructor)
		if fnType.Kind() != reflect.Func || fnType.NumOut() == 0 || fnType.NumOut() > 2 ||
			(fnType.NumOut() == 2 && fnType.Out(1) != errorType) || fnType.IsVariadic() {
			return fmt.Errorf("%w: constructor of %s must be func(deps...) T or (T, error), got %s", ErrInvalidDefinition, d.ServiceType, fnType)
		}
		if d.ImplementType == nil {
			d.ImplementType = fnType.Out(0)
		}
	case d.ImplementType != nil:
		if d.ImplementType.Kind() != reflect.Ptr || d.ImplementType.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("%w: %s is not a pointer to struct", ErrInvalidDefinition, d.ImplementType)
		}
		if !d.ImplementType.AssignableTo(d.ServiceType) {
			return fmt.Errorf("%w: %s is not assignable to %s", ErrInvalidDefinition, d.ImplementType, d.ServiceType)
		}
	default:
		return fmt.Errorf("%w: %s has no instance, factory, constructor or implementation", ErrInvalidDefinition, d.ServiceType)
	}
	return nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func pointerTo(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Struct {
		return reflect.PtrTo(t)
	}
	return t
}

// Container resolves services. The root container holds singletons and is itself a scope,
// CreateScope returns a child scope for Scoped services.
//
// Container 服务容器
type Container struct {
	root        *Container
	definitions map[reflect.Type]*ServiceDefinition
	// key: service type，value: *entry
	entries sync.Map

	lock   sync.Mutex
	closed bool
	// 按创建顺序保存的实例，关闭作用域时释放
	created []interface{}
}

// entry is a cached instance, created once.
type entry struct {
	once  sync.Once
	value interface{}
	err   error
}

var _ Provider = (*Container)(nil)

// CreateScope creates a child scope sharing the singletons of the root container.
func (c *Container) CreateScope() *Container {
	return &Container{root: c.root, definitions: c.root.definitions}
}

// IsRegistered reports whether serviceType has a definition.
func (c *Container) IsRegistered(serviceType reflect.Type) bool {
	_, ok := c.definitions[serviceType]
	return ok
}

// Definition returns the definition of serviceType.
func (c *Container) Definition(serviceType reflect.Type) (ServiceDefinition, bool) {
	d, ok := c.definitions[serviceType]
	if !ok {
		return ServiceDefinition{}, false
	}
	return *d, true
}

// Resolve returns the service of serviceType.
func (c *Container) Resolve(serviceType reflect.Type) (interface{}, error) {
	return c.resolve(serviceType, nil)
}

// Close closes the scope. Instances it created that implement `Close() error` are closed in reverse order.
func (c *Container) Close() error {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return nil
	}
	c.closed = true
	created := c.created
	c.created = nil
	c.lock.Unlock()

	var errs []error
	for i := len(created) - 1; i >= 0; i-- {
		if closer, ok := created[i].(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return &types.AggregateError{Errs: errs}
	}
	return nil
}

func (c *Container) isClosed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closed
}

func (c *Container) track(v interface{}) {
	if _, ok := v.(interface{ Close() error }); !ok {
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.created = append(c.created, v)
}

func (c *Container) resolve(serviceType reflect.Type, path []reflect.Type) (interface{}, error) {
	if c.isClosed() {
		return nil, ErrScopeClosed
	}
	for _, t := range path {
		if t == serviceType {
			return nil, fmt.Errorf("%w: %s", ErrCircularDependency, pathString(append(path, serviceType)))
		}
	}
	d, ok := c.definitions[serviceType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceType)
	}
	path = append(path[:len(path):len(path)], serviceType)

	var owner *Container
	switch {
	case d.Instance != nil:
		return d.Instance, nil
	case d.Lifetime == Singleton:
		owner = c.root
	case d.Lifetime == Scoped:
		owner = c
	default:
		v, err := c.create(d, path)
		if err == nil {
			c.track(v)
		}
		return v, err
	}
	v, _ := owner.entries.LoadOrStore(serviceType, &entry{})
	e := v.(*entry)
	e.once.Do(func() {
		e.value, e.err = owner.create(d, path)
		if e.err == nil {
			owner.track(e.value)
		}
	})
	return e.value, e.err
}

func pathString(path []reflect.Type) string {
	s := ""
	for i, t := range path {
		if i > 0 {
			s += " -> "
		}
		s += t.String()
	}
	return s
}

// scopedProvider resolves dependencies of one creation, keeping the path for cycle detection.
type scopedProvider struct {
	container *Container
	path      []reflect.Type
}

func (p *scopedProvider) Resolve(serviceType reflect.Type) (interface{}, error) {
	return p.container.resolve(serviceType, p.path)
}

func (c *Container) create(d *ServiceDefinition, path []reflect.Type) (interface{}, error) {
	provider := &scopedProvider{container: c, path: path}
	switch {
	case d.Factory != nil:
		return d.Factory(provider)
	case d.Constructor != nil:
		return invoke(provider, d.Constructor)
	default:
		return reflect.New(d.ImplementType.Elem()).Interface(), nil
	}
}

// invoke calls constructor with its parameters resolved from provider.
func invoke(provider Provider, constructor interface{}) (interface{}, error) {
	fn := reflect.ValueOf(constructor)
	fnType := fn.Type()
	in := make([]reflect.Value, fnType.NumIn())
	for i := range in {
		dep, err := provider.Resolve(fnType.In(i))
		if err != nil {
			return nil, err
		}
		if dep == nil {
			in[i] = reflect.Zero(fnType.In(i))
		} else {
			in[i] = reflect.ValueOf(dep)
		}
	}
	out := fn.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// Resolve returns the service registered for T.
func Resolve[T any](provider Provider) (T, error) {
	var zero T
	v, err := provider.Resolve(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T is not %s", ErrInvalidDefinition, v, reflect.TypeOf((*T)(nil)).Elem())
	}
	return t, nil
}
