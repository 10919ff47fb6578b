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
	"sync"

	"github.com/rulego/aop/api/types"
	utilsReflect "github.com/rulego/aop/utils/reflect"
)

// Annotations is the registry of declarative markers on types and methods: interceptor markers and
// the NoIntercept suppression marker. Markers on a contract are copied onto the members of every
// proxy type synthesized after they are registered; the attribute resolver reads them.
//
// Annotations 类型和方法的注解注册表，包括拦截器注解和禁止拦截注解。
//
//	annotations.Annotate(reflect.TypeOf((*IFly)(nil)).Elem()).
//		With(&LoggingInterceptor{}).
//		Method("Name").NoIntercept()
type Annotations struct {
	lock  sync.RWMutex
	types map[reflect.Type]*TypeAnnotation
	//按注册顺序保存接口类型
	interfaces []reflect.Type
}

// TypeAnnotation are the markers of one type.
type TypeAnnotation struct {
	owner        *Annotations
	Type         reflect.Type
	interceptors []types.Interceptor
	noIntercept  bool
	methods      map[string]*MethodAnnotation
}

// MethodAnnotation are the markers of one method.
type MethodAnnotation struct {
	owner        *TypeAnnotation
	Name         string
	interceptors []types.Interceptor
	noIntercept  bool
}

// NewAnnotations creates an empty registry.
func NewAnnotations() *Annotations {
	return &Annotations{types: make(map[reflect.Type]*TypeAnnotation)}
}

// annotationKey 结构体指针和结构体使用同一个注解
func annotationKey(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		return t.Elem()
	}
	return t
}

// Annotate returns the annotation of t, creating it on first use.
func (a *Annotations) Annotate(t reflect.Type) *TypeAnnotation {
	key := annotationKey(t)
	a.lock.Lock()
	defer a.lock.Unlock()
	if ta, ok := a.types[key]; ok {
		return ta
	}
	ta := &TypeAnnotation{owner: a, Type: key, methods: make(map[string]*MethodAnnotation)}
	a.types[key] = ta
	if key.Kind() == reflect.Interface {
		a.interfaces = append(a.interfaces, key)
	}
	return ta
}

// With adds interceptor markers to the type.
func (ta *TypeAnnotation) With(interceptors ...types.Interceptor) *TypeAnnotation {
	ta.owner.lock.Lock()
	defer ta.owner.lock.Unlock()
	ta.interceptors = append(ta.interceptors, interceptors...)
	return ta
}

// NoIntercept marks every method declared by the type as suppressed.
func (ta *TypeAnnotation) NoIntercept() *TypeAnnotation {
	ta.owner.lock.Lock()
	defer ta.owner.lock.Unlock()
	ta.noIntercept = true
	return ta
}

// Method returns the annotation of a method of the type, creating it on first use.
func (ta *TypeAnnotation) Method(name string) *MethodAnnotation {
	ta.owner.lock.Lock()
	defer ta.owner.lock.Unlock()
	if ma, ok := ta.methods[name]; ok {
		return ma
	}
	ma := &MethodAnnotation{owner: ta, Name: name}
	ta.methods[name] = ma
	return ma
}

// With adds interceptor markers to the method.
func (ma *MethodAnnotation) With(interceptors ...types.Interceptor) *MethodAnnotation {
	ma.owner.owner.lock.Lock()
	defer ma.owner.owner.lock.Unlock()
	ma.interceptors = append(ma.interceptors, interceptors...)
	return ma
}

// NoIntercept marks the method as suppressed.
func (ma *MethodAnnotation) NoIntercept() *MethodAnnotation {
	ma.owner.owner.lock.Lock()
	defer ma.owner.owner.lock.Unlock()
	ma.noIntercept = true
	return ma
}

// Type returns the type annotation the method belongs to.
func (ma *MethodAnnotation) Type() *TypeAnnotation {
	return ma.owner
}

// TypeInterceptors returns a copy of the interceptor markers of t.
func (a *Annotations) TypeInterceptors(t reflect.Type) []types.Interceptor {
	a.lock.RLock()
	defer a.lock.RUnlock()
	ta, ok := a.types[annotationKey(t)]
	if !ok {
		return nil
	}
	return append([]types.Interceptor(nil), ta.interceptors...)
}

// IsTypeSuppressed reports whether t carries the NoIntercept marker.
func (a *Annotations) IsTypeSuppressed(t reflect.Type) bool {
	a.lock.RLock()
	defer a.lock.RUnlock()
	ta, ok := a.types[annotationKey(t)]
	return ok && ta.noIntercept
}

// MethodInterceptors returns a copy of the interceptor markers of the method t.name.
func (a *Annotations) MethodInterceptors(t reflect.Type, name string) []types.Interceptor {
	a.lock.RLock()
	defer a.lock.RUnlock()
	if ta, ok := a.types[annotationKey(t)]; ok {
		if ma, ok := ta.methods[name]; ok {
			return append([]types.Interceptor(nil), ma.interceptors...)
		}
	}
	return nil
}

// IsMethodSuppressed reports whether the method t.name carries the NoIntercept marker.
func (a *Annotations) IsMethodSuppressed(t reflect.Type, name string) bool {
	a.lock.RLock()
	defer a.lock.RUnlock()
	if ta, ok := a.types[annotationKey(t)]; ok {
		if ma, ok := ta.methods[name]; ok {
			return ma.noIntercept
		}
	}
	return false
}

// Interfaces returns the annotated interface types in registration order.
func (a *Annotations) Interfaces() []reflect.Type {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return append([]reflect.Type(nil), a.interfaces...)
}

// copyTo copies the method markers onto a synthesized member.
func (a *Annotations) copyTo(info *types.MethodInfo) {
	if a == nil || info == nil {
		return
	}
	info.Interceptors = a.MethodInterceptors(info.DeclaringType, info.Name)
	info.NoIntercept = a.IsMethodSuppressed(info.DeclaringType, info.Name)
}

// embeddedBase returns the embedded struct field of t that promotes the method name.
func embeddedBase(t reflect.Type, name string) (reflect.Type, bool) {
	t = utilsReflect.Indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := utilsReflect.Indirect(f.Type)
		if ft.Kind() != reflect.Struct {
			continue
		}
		if _, ok := reflect.PtrTo(ft).MethodByName(name); ok {
			return ft, true
		}
	}
	return nil, false
}
