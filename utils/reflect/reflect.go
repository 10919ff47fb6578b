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

// Package reflect provides utility functions for reflection-based operations
// used by the proxy engine.
//
// Key features:
// - MethodOf: Resolves a method expression such as `IFly.Fly` to its receiver type and method name
// - Zero: Returns the zero value of a type as an interface value
// - Indirect: Dereferences pointer types
// - FriendlyTypeName: Builds a readable, stable name for a type
// - TypeArguments: Extracts the type arguments of an instantiated generic type
// - SameSignature: Compares two func types
package reflect

import (
	"errors"
	"reflect"
	"strings"

	"github.com/rulego/aop/utils/runtime"
)

// ErrNotMethodExpr is returned when a value is not a method expression.
var ErrNotMethodExpr = errors.New("not a method expression")

// MethodOf 解析方法表达式，例如 IFly.Fly 或者 (*MonkeyKing).Fly，返回接收者类型和方法名称
func MethodOf(methodExpr interface{}) (reflect.Type, string, error) {
	if methodExpr == nil {
		return nil, "", ErrNotMethodExpr
	}
	v := reflect.ValueOf(methodExpr)
	t := v.Type()
	if t.Kind() != reflect.Func || t.NumIn() == 0 || v.IsNil() {
		return nil, "", ErrNotMethodExpr
	}
	fullName := runtime.FuncName(methodExpr)
	//方法值（绑定了接收者）不是方法表达式
	if fullName == "" || runtime.IsMethodValue(fullName) {
		return nil, "", ErrNotMethodExpr
	}
	name := fullName[strings.LastIndex(fullName, ".")+1:]
	receiver := t.In(0)
	m, ok := receiver.MethodByName(name)
	if !ok {
		return nil, "", ErrNotMethodExpr
	}
	var expected reflect.Type
	if receiver.Kind() == reflect.Interface {
		expected = m.Type
	} else {
		expected = WithoutReceiver(m.Type)
	}
	if !SameSignature(expected, WithoutReceiver(t)) {
		return nil, "", ErrNotMethodExpr
	}
	return receiver, name, nil
}

// WithoutReceiver 去掉函数类型的第一个参数
func WithoutReceiver(fnType reflect.Type) reflect.Type {
	in := make([]reflect.Type, 0, fnType.NumIn())
	for i := 1; i < fnType.NumIn(); i++ {
		in = append(in, fnType.In(i))
	}
	out := make([]reflect.Type, 0, fnType.NumOut())
	for i := 0; i < fnType.NumOut(); i++ {
		out = append(out, fnType.Out(i))
	}
	return reflect.FuncOf(in, out, fnType.IsVariadic())
}

// SameSignature 比较两个函数类型的参数和返回值
func SameSignature(a, b reflect.Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.NumIn() != b.NumIn() || a.NumOut() != b.NumOut() || a.IsVariadic() != b.IsVariadic() {
		return false
	}
	for i := 0; i < a.NumIn(); i++ {
		if a.In(i) != b.In(i) {
			return false
		}
	}
	for i := 0; i < a.NumOut(); i++ {
		if a.Out(i) != b.Out(i) {
			return false
		}
	}
	return true
}

// Zero 获取类型的零值
func Zero(t reflect.Type) interface{} {
	if t == nil {
		return nil
	}
	return reflect.Zero(t).Interface()
}

// Indirect 解引用指针类型
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// FriendlyTypeName 类型的可读名称，包含包路径和类型参数
func FriendlyTypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Ptr {
		return "*" + FriendlyTypeName(t.Elem())
	}
	if t.Name() == "" {
		return t.String()
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}

// TypeArguments 获取泛型实例化类型的类型参数，例如 Repo[int,string] 返回 [int string]
func TypeArguments(t reflect.Type) []string {
	t = Indirect(t)
	if t == nil {
		return nil
	}
	name := t.Name()
	start := strings.IndexByte(name, '[')
	if start < 0 || !strings.HasSuffix(name, "]") {
		return nil
	}
	inner := name[start+1 : len(name)-1]
	var args []string
	depth := 0
	last := 0
	for i, c := range inner {
		switch c {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(inner[last:i]))
				last = i + 1
			}
		}
	}
	args = append(args, strings.TrimSpace(inner[last:]))
	return args
}
