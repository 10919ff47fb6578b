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
	"errors"
	"fmt"
	"sync"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/builtin/interceptor"
)

var _ types.ComponentRegistry = (*InterceptorComponentRegistry)(nil)

// Registry is the default registry of interceptor components referenced by aspect DSL definitions.
var Registry = new(InterceptorComponentRegistry)

// init registers the built-in interceptors to the default registry.
func init() {
	for _, component := range interceptor.Registry.Components() {
		_ = Registry.Register(component)
	}
}

// InterceptorComponentRegistry is a registry for interceptor components.
type InterceptorComponentRegistry struct {
	// components is a map of interceptor components by type.
	components map[string]types.InterceptorComponent
	// RWMutex is a read/write mutex lock.
	sync.RWMutex
}

// Register adds an interceptor component to the registry.
func (r *InterceptorComponentRegistry) Register(component types.InterceptorComponent) error {
	r.Lock()
	defer r.Unlock()
	if r.components == nil {
		r.components = make(map[string]types.InterceptorComponent)
	}
	if _, ok := r.components[component.Type()]; ok {
		return errors.New("the component already exists. componentType=" + component.Type())
	}
	r.components[component.Type()] = component
	return nil
}

// Unregister removes a component from the registry by its type.
func (r *InterceptorComponentRegistry) Unregister(componentType string) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.components[componentType]; !ok {
		return fmt.Errorf("%w. componentType=%s", types.ErrComponentNotFound, componentType)
	}
	delete(r.components, componentType)
	return nil
}

// NewInterceptor creates a new instance of an interceptor component by its type.
func (r *InterceptorComponentRegistry) NewInterceptor(componentType string) (types.InterceptorComponent, error) {
	r.RLock()
	defer r.RUnlock()
	if component, ok := r.components[componentType]; !ok {
		return nil, fmt.Errorf("%w. componentType=%s", types.ErrComponentNotFound, componentType)
	} else {
		return component.New(), nil
	}
}

// GetComponents returns a map of all registered components.
func (r *InterceptorComponentRegistry) GetComponents() map[string]types.InterceptorComponent {
	r.RLock()
	defer r.RUnlock()
	var components = map[string]types.InterceptorComponent{}
	for k, v := range r.components {
		components[k] = v
	}
	return components
}
