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

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rulego/aop/utils/runtime"
)

// Property keys written by the built-in enrichers.
const (
	PropertyInvocationId = "invocationId"
	PropertyStartTime    = "startTime"
)

// ProxyTypeNamePrefix prefixes the name of every synthesized proxy type.
const ProxyTypeNamePrefix = "aop.dynamic"

var (
	// ErrSealedType is returned when a sealed type is used as a proxy contract or implementation.
	ErrSealedType = errors.New("the type is sealed and can not be proxied")
	// ErrNotInterface is returned when an interface type is required.
	ErrNotInterface = errors.New("the type is not an interface")
	// ErrNotStruct is returned when a struct type is required.
	ErrNotStruct = errors.New("the type is not a struct")
	// ErrNotImplemented is returned when an implementation does not satisfy its contract.
	ErrNotImplemented = errors.New("the implementation does not implement the contract")
	// ErrMethodNotFound is returned when a method does not exist on the contract.
	ErrMethodNotFound = errors.New("method not found")
	// ErrNotMethodExpr is returned when a value is not a method expression such as IFly.Fly.
	ErrNotMethodExpr = errors.New("not a method expression")
	// ErrPropertyNotFound is returned when no accessor exists for a property.
	ErrPropertyNotFound = errors.New("property not found")
	// ErrPropertyNotReadable is returned when intercepting the getter of a property without one.
	ErrPropertyNotReadable = errors.New("the property can not read")
	// ErrPropertyNotWritable is returned when intercepting the setter of a property without one.
	ErrPropertyNotWritable = errors.New("the property can not write")
	// ErrNoStub is returned when no typed stub is registered for an interface contract.
	ErrNoStub = errors.New("no stub registered for the contract")
	// ErrNoConstructor is returned when constructor arguments are given but no constructor is registered.
	ErrNoConstructor = errors.New("no constructor registered for the type")
	// ErrArgumentCount is returned when a call does not match the method arity.
	ErrArgumentCount = errors.New("argument count mismatch")
	// ErrConcurrencyLimitReached is returned when the concurrency limit has been reached
	ErrConcurrencyLimitReached = errors.New("concurrency limit reached")
	// ErrRateLimited is returned when the rate limit has been reached
	ErrRateLimited = errors.New("rate limit reached")
	// ErrFallback is returned when a method is skipped because it failed too often.
	ErrFallback = errors.New("skip fallback error")
	// ErrComponentNotFound is returned when a DSL references an unknown interceptor type.
	ErrComponentNotFound = errors.New("interceptor component not found")
	// ErrNilType is returned when a nil type is used as a proxy contract.
	ErrNilType = errors.New("the type is nil")
	// ErrReturnValue is returned when the return slot does not match the method results.
	ErrReturnValue = errors.New("return value does not match the method results")
)

// InvokeError carries the identity of a failed invocation. It is produced by the TryInvoke interceptor.
// InvokeError 调用异常，携带代理、目标和方法信息，便于诊断
type InvokeError struct {
	// Proxy is the proxy receiver.
	Proxy interface{}
	// Target is the wrapped target.
	Target interface{}
	// Method is the concrete method, or the contract method when there is none.
	Method *MethodInfo
	// Err is the original failure.
	Err error
}

func (e *InvokeError) Error() string {
	name := ""
	if e.Method != nil {
		name = e.Method.Name
	}
	return fmt.Sprintf("invoke %s exception: %v", name, e.Err)
}

func (e *InvokeError) Unwrap() error {
	return e.Err
}

// PanicError is a panic captured by the asynchronous execution substrate.
type PanicError struct {
	Value interface{}
	Stack string
}

// NewPanicError captures the current stack.
func NewPanicError(value interface{}) *PanicError {
	return &PanicError{Value: value, Stack: runtime.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// AggregateError groups several failures.
type AggregateError struct {
	Errs []error
}

func (e *AggregateError) Error() string {
	var sb strings.Builder
	sb.WriteString("one or more errors occurred")
	for _, err := range e.Errs {
		sb.WriteString(": ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

func (e *AggregateError) Unwrap() []error {
	return e.Errs
}

// UnwrapInner strips the wrappers introduced by the engine and returns the innermost cause:
// an AggregateError with a single cause, a PanicError carrying an error and an InvokeError.
// Errors wrapped by user code are returned as is.
func UnwrapInner(err error) error {
	return unwrap(err, false)
}

// UnwrapSubstrate is UnwrapInner except that an InvokeError is kept.
func UnwrapSubstrate(err error) error {
	return unwrap(err, true)
}

func unwrap(err error, keepInvokeError bool) error {
	for err != nil {
		switch e := err.(type) {
		case *AggregateError:
			if len(e.Errs) != 1 {
				return err
			}
			err = e.Errs[0]
		case *PanicError:
			inner, ok := e.Value.(error)
			if !ok {
				return err
			}
			err = inner
		case *InvokeError:
			if keepInvokeError || e.Err == nil {
				return err
			}
			err = e.Err
		default:
			return err
		}
	}
	return err
}
