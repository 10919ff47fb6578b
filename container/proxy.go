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

package container

import (
	"fmt"
	"reflect"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/engine"
)

var sealedType = reflect.TypeOf((*types.Sealed)(nil)).Elem()

// AddProxyService registers serviceType as a proxy created by e. implementType is the struct
// behind an interface service, nil for an interface-only proxy or a class proxy of serviceType itself.
// The resolved value is the typed stub of serviceType when one is registered, the *engine.Proxy otherwise.
func AddProxyService(b *Builder, e *engine.Engine, serviceType, implementType reflect.Type, lifetime Lifetime) *Builder {
	serviceType, implementType = pointerTo(serviceType), pointerTo(implementType)
	return b.Add(ServiceDefinition{
		ServiceType:   serviceType,
		ImplementType: implementType,
		Lifetime:      lifetime,
		proxied:       true,
		Factory: func(Provider) (interface{}, error) {
			p, err := e.CreateProxyWithImpl(serviceType, implementType)
			if err != nil {
				return nil, err
			}
			return e.Factory().Instance(p), nil
		},
	})
}

// AddSingletonProxy registers T as a singleton proxy.
func AddSingletonProxy[T any](b *Builder, e *engine.Engine) *Builder {
	return AddProxyService(b, e, typeOf[T](), nil, Singleton)
}

// AddSingletonProxyImpl registers T, implemented by TImpl, as a singleton proxy.
func AddSingletonProxyImpl[T, TImpl any](b *Builder, e *engine.Engine) *Builder {
	return AddProxyService(b, e, typeOf[T](), typeOf[TImpl](), Singleton)
}

// AddScopedProxy registers T as a scoped proxy.
func AddScopedProxy[T any](b *Builder, e *engine.Engine) *Builder {
	return AddProxyService(b, e, typeOf[T](), nil, Scoped)
}

// AddScopedProxyImpl registers T, implemented by TImpl, as a scoped proxy.
func AddScopedProxyImpl[T, TImpl any](b *Builder, e *engine.Engine) *Builder {
	return AddProxyService(b, e, typeOf[T](), typeOf[TImpl](), Scoped)
}

// AddTransientProxy registers T as a transient proxy.
func AddTransientProxy[T any](b *Builder, e *engine.Engine) *Builder {
	return AddProxyService(b, e, typeOf[T](), nil, Transient)
}

// AddTransientProxyImpl registers T, implemented by TImpl, as a transient proxy.
func AddTransientProxyImpl[T, TImpl any](b *Builder, e *engine.Engine) *Builder {
	return AddProxyService(b, e, typeOf[T](), typeOf[TImpl](), Transient)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// BuildProxyProvider builds a container whose interface services are wrapped in proxies created by e.
// The instance behind each service is still created the way it was registered, then proxied with
// CreateProxyWithTarget. A service is kept as registered when:
//   - it is not an interface, or no stub is registered for it
//   - it is sealed, or belongs to the engine packages
//   - ignore returns true for it
//   - it already creates proxies, or its instance is a proxy or not a pointer to struct
//
// BuildProxyProvider 把容器中的接口服务替换为代理
func BuildProxyProvider(b *Builder, e *engine.Engine, ignore func(serviceType reflect.Type) bool) (*Container, error) {
	logger := e.Config().Logger
	rewritten := NewBuilder()
	for _, d := range b.Definitions() {
		if reason := skipReason(d, ignore); reason != "" {
			if reason != "ignored" && logger != nil {
				logger.Printf("container: %s is not proxied, %s", d.ServiceType, reason)
			}
			rewritten.Add(d)
			continue
		}
		if d.Instance != nil {
			p, err := e.CreateProxyWithTarget(d.ServiceType, d.Instance)
			if err != nil {
				return nil, fmt.Errorf("proxy %s: %w", d.ServiceType, err)
			}
			d.Instance = e.Factory().Instance(p)
			d.proxied = true
			rewritten.Add(d)
			continue
		}
		rewritten.Add(proxyDefinition(e, d))
	}
	return rewritten.Build()
}

func skipReason(d ServiceDefinition, ignore func(serviceType reflect.Type) bool) string {
	t := d.ServiceType
	switch {
	case t == nil:
		return "no service type"
	case d.proxied:
		return "already proxied"
	case ignore != nil && ignore(t):
		return "ignored"
	case t.Kind() != reflect.Interface:
		return "not an interface"
	case t.Implements(sealedType):
		return "sealed"
	case engine.IsEngineType(t):
		return "engine type"
	}
	if _, ok := engine.StubOf(t); !ok {
		return "no stub registered"
	}
	if d.Instance != nil {
		if engine.IsProxy(d.Instance) {
			return "already proxied"
		}
		if !isStructPointer(reflect.TypeOf(d.Instance)) {
			return "instance is not a pointer to struct"
		}
	}
	return ""
}

// proxyDefinition wraps the creation of d. Targets that can not be proxied are returned as created.
func proxyDefinition(e *engine.Engine, d ServiceDefinition) ServiceDefinition {
	create := d
	d.Factory = func(provider Provider) (interface{}, error) {
		var target interface{}
		var err error
		switch {
		case create.Factory != nil:
			target, err = create.Factory(provider)
		case create.Constructor != nil:
			target, err = invoke(provider, create.Constructor)
		case create.ImplementType != nil:
			target = reflect.New(create.ImplementType.Elem()).Interface()
		}
		if err != nil || target == nil || engine.IsProxy(target) || !isStructPointer(reflect.TypeOf(target)) {
			return target, err
		}
		p, err := e.CreateProxyWithTarget(create.ServiceType, target)
		if err != nil {
			return nil, err
		}
		return e.Factory().Instance(p), nil
	}
	d.Constructor = nil
	d.proxied = true
	return d
}

func isStructPointer(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct
}
