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

import "sync"

// SafeComponentSlice 安全的拦截器组件列表切片
type SafeComponentSlice struct {
	//组件列表
	components []InterceptorComponent
	sync.Mutex
}

// Add 线程安全地添加元素
func (p *SafeComponentSlice) Add(components ...InterceptorComponent) {
	p.Lock()
	defer p.Unlock()
	p.components = append(p.components, components...)
}

// Components 获取组件列表
func (p *SafeComponentSlice) Components() []InterceptorComponent {
	p.Lock()
	defer p.Unlock()
	out := make([]InterceptorComponent, len(p.components))
	copy(out, p.components)
	return out
}

// ComponentRegistry creates interceptor components by DSL type name.
// ComponentRegistry 拦截器组件注册器
type ComponentRegistry interface {
	// Register adds a component. Registering an existing type is an error.
	Register(component InterceptorComponent) error
	// Unregister removes a component by type.
	Unregister(componentType string) error
	// NewInterceptor creates a fresh, uninitialized instance of the component type.
	NewInterceptor(componentType string) (InterceptorComponent, error)
	// GetComponents returns every registered component by type.
	GetComponents() map[string]InterceptorComponent
}
