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
	"reflect"

	"github.com/rulego/aop/api/types"
)

const maxBaseDepth = 16

// AttributeResolver resolves interceptors from annotations. Sources are checked in a fixed order:
//  1. the NoIntercept marker on the method, the contract method or their declaring types empties the list;
//  2. interceptor markers on the method;
//  3. the base chain: the declaring type, then each embedded struct that promotes the method;
//  4. every annotated interface implemented by the receiver that declares the method,
//     its type markers then its method markers.
//
// AttributeResolver 基于注解解析拦截器
type AttributeResolver struct {
	annotations *Annotations
}

// NewAttributeResolver creates a resolver over annotations.
func NewAttributeResolver(annotations *Annotations) *AttributeResolver {
	return &AttributeResolver{annotations: annotations}
}

// Suppressed reports whether the concrete method, the contract method or one of their declaring types
// carries NoIntercept.
func (r *AttributeResolver) Suppressed(invocation *types.Invocation) bool {
	for _, method := range []*types.MethodInfo{invocation.Method, invocation.ProxyMethod} {
		if method == nil {
			continue
		}
		if method.NoIntercept || r.annotations.IsMethodSuppressed(method.DeclaringType, method.Name) {
			return true
		}
		if r.annotations.IsTypeSuppressed(method.DeclaringType) {
			return true
		}
	}
	return false
}

// ResolveInterceptors implements types.InterceptorResolver.
func (r *AttributeResolver) ResolveInterceptors(invocation *types.Invocation) []types.Interceptor {
	if r.Suppressed(invocation) {
		return nil
	}
	method := effectiveMethod(invocation)
	collector := newInterceptorCollector()

	//方法注解
	collector.add(method.Interceptors...)
	collector.add(r.annotations.MethodInterceptors(method.DeclaringType, method.Name)...)

	//基类链
	signature := SignatureOf(invocation.ProxyMethod)
	base := method.DeclaringType
	for depth := 0; base != nil && depth < maxBaseDepth; depth++ {
		if _, ok := hasMethod(base, signature); !ok {
			break
		}
		collector.add(r.annotations.TypeInterceptors(base)...)
		next, ok := embeddedBase(base, signature.Name)
		if !ok {
			break
		}
		base = next
	}

	//接口以及接口方法注解
	receiver := receiverType(invocation)
	for _, iface := range r.annotations.Interfaces() {
		if receiver == nil || !assignableTo(receiver, iface) {
			continue
		}
		if _, ok := hasMethod(iface, signature); !ok {
			continue
		}
		collector.add(r.annotations.TypeInterceptors(iface)...)
		collector.add(r.annotations.MethodInterceptors(iface, signature.Name)...)
	}
	return collector.interceptors()
}

// receiverType is the runtime type of the target, or the type the proxy stands for.
func receiverType(invocation *types.Invocation) reflect.Type {
	if invocation.Target != nil {
		return reflect.TypeOf(invocation.Target)
	}
	if proxy, ok := invocation.Proxy.(*Proxy); ok {
		if proxy.proxyType.Implementation != nil {
			return proxy.proxyType.Implementation
		}
		return proxy.proxyType.Contract
	}
	return invocation.ProxyMethod.DeclaringType
}
