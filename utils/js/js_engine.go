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

// Package js evaluates JavaScript pointcuts with the goja engine.
//
// A pointcut script is compiled once and executed on pooled VMs. Global properties are
// exposed as `global`, and Config.Udf functions are installed on every VM.
//
// Package js 使用 goja 执行 JavaScript 切点表达式。
package js

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/rulego/aop/api/types"
)

const (
	//GlobalKey  global properties key,call them through the global.xx method
	GlobalKey = "global"
)

// GojaJsEngine goja js engine
type GojaJsEngine struct {
	vmPool            sync.Pool
	config            types.Config
	jsScript          *goja.Program
	jsUdfProgramCache map[string]*goja.Program
}

// NewGojaJsEngine compiles jsScript and prepares the VM pool.
func NewGojaJsEngine(config types.Config, jsScript string) (*GojaJsEngine, error) {
	program, err := goja.Compile("", jsScript, true)
	if err != nil {
		return nil, err
	}
	jsEngine := &GojaJsEngine{
		config:   config,
		jsScript: program,
	}
	if err = jsEngine.PreCompileJs(); err != nil {
		return nil, err
	}
	jsEngine.vmPool = sync.Pool{
		New: func() interface{} {
			return jsEngine.NewVm()
		},
	}
	return jsEngine, nil
}

// PreCompileJs Precompiled UDF JavaScript file
func (g *GojaJsEngine) PreCompileJs() error {
	cache := make(map[string]*goja.Program)
	for k, v := range g.config.Udf {
		if src, ok := v.(string); ok {
			p, err := goja.Compile(k, src, true)
			if err != nil {
				return err
			}
			cache[k] = p
		}
	}
	g.jsUdfProgramCache = cache
	return nil
}

// NewVm new a js VM
func (g *GojaJsEngine) NewVm() *goja.Runtime {
	vm := goja.New()
	if len(g.config.Properties) != 0 {
		if err := vm.Set(GlobalKey, g.config.Properties); err != nil {
			g.config.Logger.Printf("set global properties error: %s", err.Error())
		}
	}
	for k, v := range g.config.Udf {
		var err error
		if p, ok := g.jsUdfProgramCache[k]; ok {
			_, err = vm.RunProgram(p)
		} else {
			err = vm.Set(k, v)
		}
		if err != nil {
			g.config.Logger.Printf("parse js script=%s error: %s", k, err.Error())
		}
	}

	timer := g.startTimeout(vm)
	_, err := vm.RunProgram(g.jsScript)
	g.stopTimeout(timer)
	if err != nil {
		g.config.Logger.Printf("js vm error: %s", err.Error())
	}
	return vm
}

// Execute calls functionName defined by the script.
func (g *GojaJsEngine) Execute(functionName string, argumentList ...interface{}) (out interface{}, err error) {
	defer func() {
		if caught := recover(); caught != nil {
			err = fmt.Errorf("%s", caught)
		}
	}()

	vm := g.vmPool.Get().(*goja.Runtime)
	defer g.vmPool.Put(vm)
	defer vm.ClearInterrupt()

	timer := g.startTimeout(vm)
	defer g.stopTimeout(timer)

	f, ok := goja.AssertFunction(vm.Get(functionName))
	if !ok {
		return nil, errors.New(functionName + " is not a function")
	}
	params := make([]goja.Value, len(argumentList))
	for i, v := range argumentList {
		params[i] = vm.ToValue(v)
	}
	res, err := f(goja.Undefined(), params...)
	if err != nil {
		return nil, err
	}
	return res.Export(), nil
}

// Stop is a no-op, pooled VMs are released by the garbage collector.
func (g *GojaJsEngine) Stop() {
}

func (g *GojaJsEngine) startTimeout(vm *goja.Runtime) *time.Timer {
	if g.config.ScriptMaxExecutionTime <= 0 {
		return nil
	}
	return time.AfterFunc(g.config.ScriptMaxExecutionTime, func() {
		vm.Interrupt("execution timeout")
	})
}

func (g *GojaJsEngine) stopTimeout(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}
