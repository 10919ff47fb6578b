/*
 * Copyright 2023 The RuleGo Authors.
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
	"reflect"

	"github.com/rulego/aop/api/types"
)

// Option is a function type that modifies the Engine.
type Option func(*Engine) error

// WithConfig sets the engine configuration.
func WithConfig(config types.Config) Option {
	return func(e *Engine) error {
		e.config = config
		e.configured = true
		return nil
	}
}

// WithAspectOptions sets the declarative configuration.
func WithAspectOptions(options *AspectOptions) Option {
	return func(e *Engine) error {
		e.options = options
		return nil
	}
}

// WithAnnotations sets the annotation registry.
func WithAnnotations(annotations *Annotations) Option {
	return func(e *Engine) error {
		e.annotations = annotations
		return nil
	}
}

// WithRegistry sets the interceptor component registry used by aspect DSL definitions.
func WithRegistry(registry types.ComponentRegistry) Option {
	return func(e *Engine) error {
		e.registry = registry
		return nil
	}
}

// WithAspect loads an aspect DSL definition.
func WithAspect(dsl []byte) Option {
	return func(e *Engine) error {
		e.aspects = append(e.aspects, dsl)
		return nil
	}
}

// Engine wires the proxy type factory, the proxy factory, the dispatcher and its configuration.
// Unless a resolver was set with AspectOptions.UseInterceptorResolver, interceptors are resolved
// from the declarative configuration first and from annotations second.
//
// Engine 代理引擎，组合代理类型工厂、代理工厂、调度引擎以及拦截配置
type Engine struct {
	config      types.Config
	configured  bool
	options     *AspectOptions
	annotations *Annotations
	registry    types.ComponentRegistry
	aspects     [][]byte

	parser      JsonParser
	typeFactory *ProxyTypeFactory
	dispatcher  *Dispatcher
	factory     *ProxyFactory
}

// New creates an engine. Defaults: types.NewConfig(), DefaultAspectOptions(), an empty annotation
// registry and the default component Registry.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if !e.configured {
		e.config = types.NewConfig()
	} else if e.config.Logger == nil {
		e.config.Logger = types.DefaultLogger()
	}
	if e.options == nil {
		e.options = DefaultAspectOptions()
	}
	if e.annotations == nil {
		e.annotations = NewAnnotations()
	}
	if e.registry == nil {
		e.registry = Registry
	}
	e.options.useDefaultResolver(NewCompositeResolver(NewFluentResolver(e.options), NewAttributeResolver(e.annotations)))

	e.typeFactory = NewProxyTypeFactory(e.config, e.annotations)
	e.dispatcher = NewDispatcher(e.config, e.options)
	e.factory = NewProxyFactory(e.typeFactory, e.dispatcher)

	for _, dsl := range e.aspects {
		if err := e.LoadAspect(dsl); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() types.Config {
	return e.config
}

// Options returns the declarative configuration.
func (e *Engine) Options() *AspectOptions {
	return e.options
}

// Annotations returns the annotation registry.
func (e *Engine) Annotations() *Annotations {
	return e.annotations
}

// Dispatcher returns the dispatch engine.
func (e *Engine) Dispatcher() *Dispatcher {
	return e.dispatcher
}

// Factory returns the proxy factory.
func (e *Engine) Factory() *ProxyFactory {
	return e.factory
}

// ProxyTypes returns the proxy type factory.
func (e *Engine) ProxyTypes() *ProxyTypeFactory {
	return e.typeFactory
}

// Annotate returns the annotation of t. Annotate contracts before their first proxy is created.
func (e *Engine) Annotate(t reflect.Type) *TypeAnnotation {
	return e.annotations.Annotate(t)
}

// LoadAspect decodes and registers an aspect DSL definition.
func (e *Engine) LoadAspect(dsl []byte) error {
	def, err := e.parser.DecodeAspect(dsl)
	if err != nil {
		return err
	}
	return LoadAspect(e.config, e.registry, e.options, def)
}

// RegisterConstructor registers the constructor of a struct type, see ProxyFactory.RegisterConstructor.
func (e *Engine) RegisterConstructor(constructor interface{}) error {
	return e.factory.RegisterConstructor(constructor)
}

// CreateProxy creates a proxy for contract, see ProxyFactory.CreateProxy.
func (e *Engine) CreateProxy(contract reflect.Type, args ...interface{}) (*Proxy, error) {
	return e.factory.CreateProxy(contract, args...)
}

// CreateProxyWithImpl creates a proxy for contract over a new instance of implementation.
func (e *Engine) CreateProxyWithImpl(contract, implementation reflect.Type, args ...interface{}) (*Proxy, error) {
	return e.factory.CreateProxyWithImpl(contract, implementation, args...)
}

// CreateProxyWithTarget creates a proxy for contract that forwards to target.
func (e *Engine) CreateProxyWithTarget(contract reflect.Type, target interface{}) (*Proxy, error) {
	return e.factory.CreateProxyWithTarget(contract, target)
}
