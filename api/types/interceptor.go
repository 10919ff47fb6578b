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

package types

import "context"

// The interfaces below provide the AOP (Aspect Oriented Programming) mechanism of the proxy engine.
//
//   - A proxy routes every call through an ordered chain of interceptors before and after the real implementation.
//   - Common behaviors (logging, metrics, limiting, fallback, caching) are kept out of the business logic.
//
// 以下接口提供代理引擎的 AOP(面向切面编程，Aspect Oriented Programming)机制。
//
//   - 代理把每一次调用都路由到有序的拦截器链，在真实实现之前和之后执行。
//   - 公共行为（日志、指标、限流、降级、缓存）与业务逻辑分离。

// Next is the continuation of an interceptor: everything inside the current layer of the pipeline.
// Call it at most once to proceed, do not call it to short-circuit.
//
// Next 拦截器的后续调用，代表当前层内部的所有逻辑。最多调用一次，不调用则短路。
type Next func(ctx context.Context) error

// Interceptor is the "around" unit of the pipeline.
// Instances registered once are shared by every matching call and must be safe for concurrent use.
//
// Interceptor 环绕拦截器，注册后被所有匹配的调用共享，必须并发安全。
type Interceptor interface {
	// Invoke runs code before and after next.
	// Invoke 在 next 之前和之后执行增强逻辑
	Invoke(ctx context.Context, invocation *Invocation, next Next) error
}

// InterceptorFunc adapts a plain function to an Interceptor.
type InterceptorFunc func(ctx context.Context, invocation *Invocation, next Next) error

// Invoke calls f.
func (f InterceptorFunc) Invoke(ctx context.Context, invocation *Invocation, next Next) error {
	return f(ctx, invocation, next)
}

// InterceptorComponent is an interceptor that can be created by type name from a DSL definition.
// InterceptorComponent 可以通过 DSL 类型名称创建的拦截器组件
type InterceptorComponent interface {
	Interceptor
	// Type returns the component type name used in DSL definitions.
	Type() string
	// New creates a fresh instance.
	New() InterceptorComponent
	// Init initializes the instance with its DSL configuration.
	Init(config Config, configuration Configuration) error
}

// Fallback marks the built-in pass-through interceptor the engine may skip when it is the only one resolved.
type Fallback interface {
	Interceptor
	IsFallback() bool
}

// InterceptorResolver decides, per invocation, the ordered and type-deduplicated interceptor list.
// InterceptorResolver 拦截器解析器，根据调用决定有序且按类型去重的拦截器列表
type InterceptorResolver interface {
	ResolveInterceptors(invocation *Invocation) []Interceptor
}

// InterceptorResolverFunc adapts a function to an InterceptorResolver.
type InterceptorResolverFunc func(invocation *Invocation) []Interceptor

// ResolveInterceptors calls f.
func (f InterceptorResolverFunc) ResolveInterceptors(invocation *Invocation) []Interceptor {
	return f(invocation)
}

// InvocationEnricher is a best-effort pre-call hook that populates the invocation metadata.
// It cannot short-circuit the call: a returned error or a panic is reported and ignored.
//
// InvocationEnricher 调用前的增强钩子，用于填充调用元数据，失败不会中断调用。
type InvocationEnricher interface {
	Enrich(invocation *Invocation) error
}

// InvocationEnricherFunc adapts a function to an InvocationEnricher.
type InvocationEnricherFunc func(invocation *Invocation) error

// Enrich calls f.
func (f InvocationEnricherFunc) Enrich(invocation *Invocation) error {
	return f(invocation)
}

// Sealed marks a type that must not be proxied.
type Sealed interface {
	Sealed()
}

// OnInvokeException is the process-wide hook called when a best-effort step fails.
// OnInvokeException 全局异常钩子，尽力而为的步骤失败时调用
var OnInvokeException func(err error)
