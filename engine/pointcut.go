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
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/utils/js"
	"github.com/rulego/aop/utils/maps"
	utilsReflect "github.com/rulego/aop/utils/reflect"
)

// pointCutFunction is the name of the function wrapping a JavaScript pointcut body.
const pointCutFunction = "PointCut"

// ErrEmptyPointCut is returned when a pointcut definition has neither expr nor js.
var ErrEmptyPointCut = errors.New("pointcut requires expr or js")

// CompilePointCut compiles a DSL pointcut into a predicate. Variables available to both languages:
//
//	method     method name
//	typeName   contract type, such as "fly.IFly" or "*fly.Bird"
//	impl       implementation type, empty for interface-only proxies
//	pkg        package path of the contract
//	args       arguments
//	properties invocation metadata
//	property   property name when the method is an accessor, otherwise empty
//	global     Config.Properties
//
// Expr pointcuts also see target. A JavaScript pointcut is a function body that returns a bool.
// A failed evaluation is reported and does not match.
func CompilePointCut(config types.Config, def types.PointCutDef) (Predicate, error) {
	if config.Logger == nil {
		config.Logger = types.DefaultLogger()
	}
	switch {
	case strings.TrimSpace(def.Expr) != "":
		return compileExpr(config, def.Expr)
	case strings.TrimSpace(def.Js) != "":
		return compileJs(config, def.Js)
	default:
		return nil, ErrEmptyPointCut
	}
}

func compileExpr(config types.Config, src string) (Predicate, error) {
	program, err := expr.Compile(src, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile pointcut %q: %w", src, err)
	}
	return func(invocation *types.Invocation) bool {
		return runExpr(config, program, src, invocation)
	}, nil
}

func runExpr(config types.Config, program *vm.Program, src string, invocation *types.Invocation) bool {
	env := pointCutEnv(config, invocation)
	env["target"] = invocation.Target
	out, err := expr.Run(program, env)
	if err != nil {
		reportPointCutError(config, src, invocation, err)
		return false
	}
	matched, _ := out.(bool)
	return matched
}

func compileJs(config types.Config, body string) (Predicate, error) {
	script := fmt.Sprintf("function %s(method, typeName, impl, pkg, args, properties, property) { %s \n}", pointCutFunction, body)
	engine, err := js.NewGojaJsEngine(config, script)
	if err != nil {
		return nil, fmt.Errorf("compile js pointcut: %w", err)
	}
	return func(invocation *types.Invocation) bool {
		env := pointCutEnv(config, invocation)
		out, err := engine.Execute(pointCutFunction, env["method"], env["typeName"], env["impl"], env["pkg"],
			env["args"], env["properties"], env["property"])
		if err != nil {
			reportPointCutError(config, body, invocation, err)
			return false
		}
		matched, ok := out.(bool)
		if !ok {
			reportPointCutError(config, body, invocation, fmt.Errorf("pointcut returned %T, want bool", out))
		}
		return matched
	}, nil
}

func pointCutEnv(config types.Config, invocation *types.Invocation) map[string]interface{} {
	contract := invocation.ProxyMethod.DeclaringType
	impl := ""
	if invocation.Method != nil && invocation.Method.DeclaringType != nil {
		impl = invocation.Method.DeclaringType.String()
	}
	property := ""
	if invocation.ProxyMethod.Property != nil {
		property = invocation.ProxyMethod.Property.Name
	}
	properties := invocation.CopyProperties()
	return map[string]interface{}{
		"method":     invocation.ProxyMethod.Name,
		"typeName":   typeString(contract),
		"impl":       impl,
		"pkg":        pkgPath(contract),
		"args":       invocation.Arguments,
		"properties": properties,
		"property":   property,
		js.GlobalKey: maps.Copy(config.Properties),
	}
}

func typeString(t reflect.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}

func pkgPath(t reflect.Type) string {
	t = utilsReflect.Indirect(t)
	if t == nil {
		return ""
	}
	return t.PkgPath()
}

func reportPointCutError(config types.Config, src string, invocation *types.Invocation, err error) {
	config.Logger.Printf("evaluate pointcut %q for %s error: %v", src, invocation.ProxyMethod, err)
	config.ReportError(fmt.Errorf("evaluate pointcut for %s: %w", invocation.ProxyMethod, err))
}
