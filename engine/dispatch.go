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
	"fmt"
	"reflect"

	"github.com/rulego/aop/api/types"
)

// InvokeOption customizes one dispatch.
type InvokeOption func(*invokeOptions)

type invokeOptions struct {
	interceptors    []types.Interceptor
	hasInterceptors bool
	terminal        types.Next
}

// WithInterceptors uses the given interceptors instead of asking the resolver.
func WithInterceptors(interceptors ...types.Interceptor) InvokeOption {
	return func(o *invokeOptions) {
		o.interceptors = interceptors
		o.hasInterceptors = true
	}
}

// WithTerminal replaces the default terminal operation, which calls the concrete method.
func WithTerminal(terminal types.Next) InvokeOption {
	return func(o *invokeOptions) {
		o.terminal = terminal
	}
}

// Dispatcher orchestrates one call: enrich, resolve, compose, execute and finalize.
// It keeps no per-call state, the Invocation carries everything.
//
// Dispatcher 调度引擎，负责一次调用的增强、解析拦截器、组合管道、执行以及默认返回值。
type Dispatcher struct {
	config  types.Config
	options *AspectOptions
}

// NewDispatcher creates a dispatcher reading enrichers and the resolver from options.
func NewDispatcher(config types.Config, options *AspectOptions) *Dispatcher {
	if config.Logger == nil {
		config.Logger = types.DefaultLogger()
	}
	if options == nil {
		options = NewAspectOptions()
	}
	return &Dispatcher{config: config, options: options}
}

// Options returns the declarative configuration the dispatcher reads.
func (d *Dispatcher) Options() *AspectOptions {
	return d.options
}

// Invoke runs the invocation through its pipeline and returns the innermost failure.
// The return slot holds a default value for every result the pipeline left unset.
func (d *Dispatcher) Invoke(ctx context.Context, invocation *types.Invocation, opts ...InvokeOption) error {
	var o invokeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for _, enricher := range d.options.Enrichers() {
		d.enrich(enricher, invocation)
	}

	interceptors := o.interceptors
	if !o.hasInterceptors {
		if resolver := d.options.InterceptorResolver(); resolver != nil {
			interceptors = resolver.ResolveInterceptors(invocation)
		}
	}

	terminal := o.terminal
	if terminal == nil {
		terminal = d.terminal(invocation)
	}
	pipeline := terminal
	//保留 InvokeError 时需要 fallback 包装异常
	if d.config.KeepInvokeError || !isFallbackOnly(interceptors) {
		pipeline = Compose(invocation, interceptors, terminal)
	}

	err := d.unwrap(pipeline(ctx))
	finalize(invocation)
	return err
}

// InvokeAsync runs Invoke on the configured pool, or on a new goroutine when there is none.
// A panic is captured and surfaces from the Future as its innermost error.
func (d *Dispatcher) InvokeAsync(ctx context.Context, invocation *types.Invocation, opts ...InvokeOption) *Future {
	f := newFuture(invocation)
	task := func() {
		var err error
		defer func() {
			if v := recover(); v != nil {
				err = d.unwrap(types.NewPanicError(v))
			}
			f.complete(err)
		}()
		err = d.Invoke(ctx, invocation, opts...)
	}
	if d.config.Pool != nil {
		if err := d.config.Pool.Submit(task); err != nil {
			f.complete(err)
		}
	} else {
		go task()
	}
	return f
}

func (d *Dispatcher) unwrap(err error) error {
	if d.config.KeepInvokeError {
		return types.UnwrapSubstrate(err)
	}
	return types.UnwrapInner(err)
}

func (d *Dispatcher) enrich(enricher types.InvocationEnricher, invocation *types.Invocation) {
	defer func() {
		if v := recover(); v != nil {
			d.reportEnrichError(invocation, types.NewPanicError(v))
		}
	}()
	if err := enricher.Enrich(invocation); err != nil {
		d.reportEnrichError(invocation, err)
	}
}

func (d *Dispatcher) reportEnrichError(invocation *types.Invocation, err error) {
	d.config.Logger.Printf("enrich invocation %s error: %v", invocation.ProxyMethod, err)
	d.config.ReportError(fmt.Errorf("enrich invocation %s: %w", invocation.ProxyMethod, err))
}

// terminal calls the concrete method on the target. The context reaching it replaces the
// context.Context argument of the method.
func (d *Dispatcher) terminal(invocation *types.Invocation) types.Next {
	return func(ctx context.Context) error {
		method := invocation.Method
		if method == nil || method.Abstract {
			return interfaceOnly(invocation)
		}
		if invocation.Target == nil {
			return nil
		}
		receiver := reflect.ValueOf(invocation.Target)
		var fn reflect.Value
		if receiver.Type() == method.DeclaringType {
			fn = receiver.Method(method.Index)
		} else {
			fn = receiver.MethodByName(method.Name)
		}
		if !fn.IsValid() {
			return fmt.Errorf("%w: %T.%s", types.ErrMethodNotFound, invocation.Target, method.Name)
		}

		fnType := fn.Type()
		if len(invocation.Arguments) != fnType.NumIn() {
			return fmt.Errorf("%w: %s wants %d arguments, got %d", types.ErrArgumentCount, method, fnType.NumIn(), len(invocation.Arguments))
		}
		in := make([]reflect.Value, fnType.NumIn())
		for i, arg := range invocation.Arguments {
			if i == 0 && method.HasContext {
				in[0] = reflect.ValueOf(&ctx).Elem()
				continue
			}
			v, ok := convertValue(arg, fnType.In(i))
			if !ok {
				return fmt.Errorf("%w: argument %d of %s is %T, want %s", types.ErrArgumentCount, i, method, arg, fnType.In(i))
			}
			in[i] = v
		}

		var out []reflect.Value
		if fnType.IsVariadic() {
			out = fn.CallSlice(in)
		} else {
			out = fn.Call(in)
		}

		var err error
		if method.ReturnsError {
			if e := out[len(out)-1].Interface(); e != nil {
				err = e.(error)
			}
			out = out[:len(out)-1]
		}
		if len(out) == 0 {
			return err
		}
		if method.Async && err == nil {
			awaited, awaitErr := awaitChannel(ctx, out[0])
			if awaitErr != nil {
				return awaitErr
			}
			out[0] = awaited
		}
		values := make([]interface{}, len(out))
		for i, v := range out {
			values[i] = v.Interface()
		}
		invocation.SetReturnValue(values...)
		return err
	}
}

// interfaceOnly gives the accessors of an interface-only proxy a backing store.
// Other members of an interface-only proxy do nothing.
func interfaceOnly(invocation *types.Invocation) error {
	prop := invocation.ProxyMethod.Property
	proxy, ok := invocation.Proxy.(*Proxy)
	if prop == nil || !ok {
		return nil
	}
	switch prop.Kind {
	case types.Getter:
		if v, ok := proxy.getProperty(prop.Name); ok {
			invocation.SetReturnValue(v)
		}
	case types.Setter:
		if len(invocation.Arguments) == 1 {
			proxy.setProperty(prop.Name, invocation.Arguments[0])
		}
	}
	return nil
}

// awaitChannel waits for the first value of an asynchronous result and returns a completed
// channel of the same type holding it.
func awaitChannel(ctx context.Context, ch reflect.Value) (reflect.Value, error) {
	chanType := ch.Type()
	if ch.IsNil() {
		return completedChannel(chanType, reflect.Zero(chanType.Elem())), nil
	}
	chosen, recv, ok := reflect.Select([]reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: ch},
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
	})
	if chosen == 1 {
		return reflect.Value{}, ctx.Err()
	}
	if !ok {
		recv = reflect.Zero(chanType.Elem())
	}
	return completedChannel(chanType, recv), nil
}

// completedChannel returns a closed channel of chanType buffering value.
func completedChannel(chanType reflect.Type, value reflect.Value) reflect.Value {
	ch := reflect.MakeChan(reflect.ChanOf(reflect.BothDir, chanType.Elem()), 1)
	ch.Send(value)
	ch.Close()
	return ch.Convert(chanType)
}

// finalize writes a default value for every result the pipeline left unset.
// Void methods never get a return value.
func finalize(invocation *types.Invocation) {
	method := invocation.ProxyMethod
	resultTypes := method.ResultTypes()
	if len(resultTypes) == 0 {
		return
	}
	values := invocation.ReturnValues()
	changed := !invocation.HasReturnValue()
	for i, t := range resultTypes {
		if i < len(values) && (values[i] != nil || !method.Async) {
			continue
		}
		changed = true
		if i >= len(values) {
			values = append(values, defaultValue(method, t))
		} else {
			values[i] = defaultValue(method, t)
		}
	}
	if changed {
		invocation.SetReturnValue(values...)
	}
}

// defaultValue is the zero value of t, or a completed channel holding the zero value for asynchronous results.
func defaultValue(method *types.MethodInfo, t reflect.Type) interface{} {
	if method.Async {
		return completedChannel(t, reflect.Zero(t.Elem())).Interface()
	}
	return reflect.Zero(t).Interface()
}

// Future is the result of an asynchronous dispatch.
type Future struct {
	invocation *types.Invocation
	done       chan struct{}
	err        error
	finish     func(*types.Invocation, error) ([]interface{}, error)
}

func newFuture(invocation *types.Invocation) *Future {
	return &Future{invocation: invocation, done: make(chan struct{})}
}

func completedFuture(invocation *types.Invocation, err error) *Future {
	f := newFuture(invocation)
	f.complete(err)
	return f
}

func (f *Future) complete(err error) {
	f.err = err
	close(f.done)
}

// Done is closed when the dispatch has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Invocation returns the dispatched invocation, nil when it could not be created.
func (f *Future) Invocation() *types.Invocation {
	return f.invocation
}

// Wait blocks until the dispatch completes or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get waits and returns the non-error results.
func (f *Future) Get(ctx context.Context) ([]interface{}, error) {
	if err := f.Wait(ctx); err != nil {
		select {
		case <-f.done:
		default:
			return nil, err
		}
	}
	if f.invocation == nil {
		return nil, f.err
	}
	if f.finish != nil {
		return f.finish(f.invocation, f.err)
	}
	return f.invocation.ReturnValues(), f.err
}
