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

// Package runtime provides utilities for runtime-related operations.
// It is used to capture the stack of a recovered panic and to resolve
// the symbol name of a func value, which is how method expressions such as
// `IFly.Fly` are mapped back to a method name.
//
// Usage example:
//
//	stackTrace := runtime.Stack()
//	name := runtime.FuncName(IFly.Fly) // "github.com/x/y.IFly.Fly"
package runtime

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Stack 获取堆栈信息
func Stack() string {
	var pc = make([]uintptr, 20)
	n := runtime.Callers(3, pc)

	var build strings.Builder
	for i := 0; i < n; i++ {
		f := runtime.FuncForPC(pc[i] - 1)
		if f == nil {
			continue
		}
		file, line := f.FileLine(pc[i] - 1)
		build.WriteString(fmt.Sprintf(" %s:%d \n", file, line))
	}
	return build.String()
}

// FuncName 获取函数的符号名称，如果不是函数返回空字符串
func FuncName(fn interface{}) string {
	if fn == nil {
		return ""
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	return f.Name()
}

// IsMethodValue 判断符号名称是否是绑定了接收者的方法值，例如 m.Fly
func IsMethodValue(funcName string) bool {
	return strings.HasSuffix(funcName, "-fm")
}
