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

// Package aop intercepts method calls of Go values through dynamically synthesized proxies.
//
// # Usage
//
// Register the interceptors, either in code:
//
//	aop.Intercept[IFly]().With(&interceptor.Debug{})
//
// or with an aspect definition:
//
//	{
//	  "noIntercept": [{"expr": "method == 'Name'"}],
//	  "interceptors": [
//	    {"expr": "typeName endsWith 'IFly'", "with": [{"type": "debug"}, {"type": "metrics"}]}
//	  ],
//	  "properties": {"app": "demo"}
//	}
//
//	e, err := aop.New("fly", engine.WithAspect([]byte(aspectFile)))
//
// Create a proxy over a target. Typed interface views need a stub, generated by cmd/aopgen:
//
//	fly, err := aop.CreateProxyWithTarget[IFly](&MonkeyKing{})
//	fly.Fly()
//
// Or call the proxy reflectively:
//
//	p, err := aop.Default().CreateProxyWithTarget(aop.TypeOf[IFly](), &MonkeyKing{})
//	out, err := p.Invoke(ctx, "Fly")
//
// Load all aspect definitions of a folder, one engine per file:
//
//	err := aop.Load("./aspects")
//	e, ok := aop.Get("fly")
package aop

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/engine"
	"github.com/rulego/aop/utils/fs"
)

// DefaultEngineId is the id of the default engine in DefaultAop.
const DefaultEngineId = "default"

var DefaultAop = &Aop{}

// Aop 代理引擎实例池
type Aop struct {
	engines sync.Map
	lock    sync.Mutex
}

// Load 加载指定文件夹及其子文件夹所有切面配置（.json结尾文件），每个文件创建一个引擎
// 引擎ID为文件名（不含扩展名）
func (a *Aop) Load(folderPath string, opts ...engine.Option) error {
	paths, err := fs.GetFilePaths(fs.JsonPattern(folderPath))
	if err != nil {
		return err
	}
	for _, path := range paths {
		b := fs.LoadFile(path)
		if b == nil {
			continue
		}
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if _, err = a.New(id, append(opts, engine.WithAspect(b))...); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// New creates an engine and stores it under id. The existing engine is returned when id is already used.
func (a *Aop) New(id string, opts ...engine.Option) (*engine.Engine, error) {
	if v, ok := a.engines.Load(id); ok {
		return v.(*engine.Engine), nil
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	if v, ok := a.engines.Load(id); ok {
		return v.(*engine.Engine), nil
	}
	e, err := engine.New(opts...)
	if err != nil {
		return nil, err
	}
	a.engines.Store(id, e)
	return e, nil
}

// Get returns the engine stored under id.
func (a *Aop) Get(id string) (*engine.Engine, bool) {
	v, ok := a.engines.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*engine.Engine), true
}

// Set stores e under id, replacing the existing engine.
func (a *Aop) Set(id string, e *engine.Engine) {
	a.engines.Store(id, e)
}

// Del removes the engine stored under id.
func (a *Aop) Del(id string) {
	a.engines.Delete(id)
}

// Default returns the engine stored under DefaultEngineId, created with default options on first use.
func (a *Aop) Default() *engine.Engine {
	e, err := a.New(DefaultEngineId)
	if err != nil {
		// engine.New without options does not fail
		panic(err)
	}
	return e
}

// Load 加载指定文件夹的切面配置到默认实例池
func Load(folderPath string, opts ...engine.Option) error {
	return DefaultAop.Load(folderPath, opts...)
}

// New creates an engine in the default pool.
func New(id string, opts ...engine.Option) (*engine.Engine, error) {
	return DefaultAop.New(id, opts...)
}

// Get returns an engine of the default pool.
func Get(id string) (*engine.Engine, bool) {
	return DefaultAop.Get(id)
}

// Del removes an engine from the default pool.
func Del(id string) {
	DefaultAop.Del(id)
}

// Default returns the process default engine.
func Default() *engine.Engine {
	return DefaultAop.Default()
}

// SetDefault replaces the process default engine.
func SetDefault(e *engine.Engine) {
	DefaultAop.Set(DefaultEngineId, e)
}

// TypeOf returns the reflect.Type of T. An interface type stays an interface.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Annotate returns the annotations of T in the default engine.
func Annotate[T any]() *engine.TypeAnnotation {
	return Default().Annotate(TypeOf[T]())
}

// Intercept registers interceptors for every method of T in the default engine.
func Intercept[T any]() *engine.InterceptionConfiguration {
	return Default().Options().InterceptTypeOf(TypeOf[T]())
}

// InterceptMethod registers interceptors for the method name of T in the default engine.
func InterceptMethod[T any](name string) (*engine.InterceptionConfiguration, error) {
	return Default().Options().InterceptMethod(TypeOf[T](), name)
}

// NoIntercept suppresses interception of T in the default engine.
func NoIntercept[T any]() {
	Default().Options().NoInterceptTypeOf(TypeOf[T]())
}

// RegisterConstructor registers the constructor of a struct type in the default engine.
func RegisterConstructor(constructor interface{}) error {
	return Default().RegisterConstructor(constructor)
}

// CreateProxy creates a proxy for T with the default engine. args are passed to the constructor of a struct T.
func CreateProxy[T any](args ...interface{}) (*engine.Proxy, error) {
	return Default().CreateProxy(TypeOf[T](), args...)
}

// CreateInterfaceProxy creates an interface-only proxy for the interface T and returns its stub.
func CreateInterfaceProxy[T any]() (T, error) {
	var zero T
	t := TypeOf[T]()
	if t.Kind() != reflect.Interface {
		return zero, fmt.Errorf("%w: %s", types.ErrNotInterface, t)
	}
	p, err := Default().CreateProxy(t)
	if err != nil {
		return zero, err
	}
	return engine.As[T](p)
}

// CreateProxyWithTarget creates a proxy of the interface T over target and returns its stub.
func CreateProxyWithTarget[T any](target interface{}) (T, error) {
	var zero T
	t := TypeOf[T]()
	if t.Kind() != reflect.Interface {
		return zero, fmt.Errorf("%w: %s", types.ErrNotInterface, t)
	}
	p, err := Default().CreateProxyWithTarget(t, target)
	if err != nil {
		return zero, err
	}
	return engine.As[T](p)
}
