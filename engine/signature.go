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
	"context"
	"reflect"
	"strings"

	"github.com/rulego/aop/api/types"
	utilsReflect "github.com/rulego/aop/utils/reflect"
	"github.com/rulego/aop/utils/str"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// MethodSignature identifies a method by name and parameter types, independent of its receiver.
type MethodSignature struct {
	Name     string
	In       []reflect.Type
	Variadic bool
}

// SignatureOf returns the signature of a method.
func SignatureOf(m *types.MethodInfo) MethodSignature {
	return signatureOf(m.Name, m.Type)
}

func signatureOf(name string, fnType reflect.Type) MethodSignature {
	sig := MethodSignature{Name: name, Variadic: fnType.IsVariadic()}
	for i := 0; i < fnType.NumIn(); i++ {
		sig.In = append(sig.In, fnType.In(i))
	}
	return sig
}

// Equals compares name and parameter types.
func (s MethodSignature) Equals(other MethodSignature) bool {
	if s.Name != other.Name || s.Variadic != other.Variadic || len(s.In) != len(other.In) {
		return false
	}
	for i := range s.In {
		if s.In[i] != other.In[i] {
			return false
		}
	}
	return true
}

func (s MethodSignature) String() string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	sb.WriteByte('(')
	for i, t := range s.In {
		if i > 0 {
			sb.WriteString(", ")
		}
		if s.Variadic && i == len(s.In)-1 {
			sb.WriteString("...")
			sb.WriteString(t.Elem().String())
		} else {
			sb.WriteString(t.String())
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// hasMethod reports whether t declares or promotes a method with the signature.
func hasMethod(t reflect.Type, sig MethodSignature) (reflect.Method, bool) {
	if t == nil {
		return reflect.Method{}, false
	}
	if t.Kind() == reflect.Struct {
		t = reflect.PtrTo(t)
	}
	m, ok := t.MethodByName(sig.Name)
	if !ok {
		return m, false
	}
	fnType := m.Type
	if t.Kind() != reflect.Interface {
		fnType = utilsReflect.WithoutReceiver(fnType)
	}
	return m, signatureOf(sig.Name, fnType).Equals(sig)
}

// newMethodInfo describes method m of declaring, which is an interface or a pointer to struct.
func newMethodInfo(declaring reflect.Type, m reflect.Method) *types.MethodInfo {
	abstract := declaring.Kind() == reflect.Interface
	fnType := m.Type
	if !abstract {
		fnType = utilsReflect.WithoutReceiver(fnType)
	}
	info := &types.MethodInfo{
		Name:          m.Name,
		DeclaringType: declaring,
		Type:          fnType,
		Index:         m.Index,
		Abstract:      abstract,
	}
	if fnType.NumIn() > 0 && fnType.In(0) == contextType {
		info.HasContext = true
	}
	if n := fnType.NumOut(); n > 0 && fnType.Out(n-1) == errorType {
		info.ReturnsError = true
	}
	if results := info.ResultTypes(); len(results) == 1 {
		t := results[0]
		info.Async = t.Kind() == reflect.Chan && t.ChanDir() == reflect.RecvDir
	}
	return info
}

// PropertyDef is a property recognised from accessor names:
// getter `X()` or `GetX()` returning one value, setter `SetX(v)` returning nothing.
// A getter named `X()` only counts when the setter `SetX` exists.
type PropertyDef struct {
	Name   string
	Type   reflect.Type
	Getter string
	Setter string
}

// CanRead reports whether the property has a getter.
func (p *PropertyDef) CanRead() bool {
	return p.Getter != ""
}

// CanWrite reports whether the property has a setter.
func (p *PropertyDef) CanWrite() bool {
	return p.Setter != ""
}

// propertiesOf recognises the properties of an interface or pointer to struct.
func propertiesOf(t reflect.Type) map[string]*PropertyDef {
	props := make(map[string]*PropertyDef)
	fnTypes := make(map[string]reflect.Type, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		fnType := m.Type
		if t.Kind() != reflect.Interface {
			fnType = utilsReflect.WithoutReceiver(fnType)
		}
		fnTypes[m.Name] = fnType
		if name, isSetter := str.TrimAccessor(m.Name); isSetter && fnType.NumIn() == 1 && fnType.NumOut() == 0 && !fnType.IsVariadic() {
			props[name] = &PropertyDef{Name: name, Type: fnType.In(0), Setter: m.Name}
		}
	}
	isGetter := func(fnType reflect.Type) bool {
		return fnType.NumIn() == 0 && fnType.NumOut() == 1 && fnType.Out(0) != errorType
	}
	for name, fnType := range fnTypes {
		if !isGetter(fnType) {
			continue
		}
		prop, isSetter := str.TrimAccessor(name)
		if isSetter {
			continue
		}
		out := fnType.Out(0)
		if prop != name {
			//GetX 优先于 X
			if p, ok := props[prop]; ok {
				if p.Type == out && (p.Getter == "" || p.Getter == prop) {
					p.Getter = name
				}
			} else {
				props[prop] = &PropertyDef{Name: prop, Type: out, Getter: name}
			}
			continue
		}
		//X 只有存在 SetX 时才是属性
		if p, ok := props[name]; ok && p.Type == out && p.Getter == "" {
			p.Getter = name
		}
	}
	return props
}

// assignableTo reports whether methods declared by declaring count as methods of target:
// declaring implements the interface target, is target, or embeds target.
func assignableTo(declaring, target reflect.Type) bool {
	if declaring == nil || target == nil {
		return false
	}
	if declaring == target {
		return true
	}
	if target.Kind() == reflect.Interface {
		return declaring.Implements(target)
	}
	return embeds(utilsReflect.Indirect(declaring), utilsReflect.Indirect(target), 0)
}

func embeds(t, base reflect.Type, depth int) bool {
	if t == base {
		return true
	}
	if t.Kind() != reflect.Struct || depth > 8 {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && embeds(utilsReflect.Indirect(f.Type), base, depth+1) {
			return true
		}
	}
	return false
}
