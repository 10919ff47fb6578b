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

package interceptor

import (
	"context"
	"errors"

	"github.com/rulego/aop/api/types"
)

var (
	_ types.InterceptorComponent = (*TryInvoke)(nil)
	_ types.Fallback             = (*TryInvoke)(nil)
)

func init() {
	Registry.Add(&TryInvoke{})
}

// DefaultFallback is the pass-through instance registered for every method by default options.
// When it is the only interceptor resolved for a call the engine skips the pipeline,
// unless the config keeps InvokeError. A TryInvoke registered by the user takes its place.
var DefaultFallback = &TryInvoke{fallback: true}

// TryInvoke converts a failure of the rest of the pipeline into *types.InvokeError,
// carrying the proxy, the target and the method for diagnostics.
//
// TryInvoke 把调用异常转换成 *types.InvokeError，便于定位是哪个代理、目标和方法出错
type TryInvoke struct {
	fallback bool
}

// IsFallback reports whether x is the engine default instance.
func (x *TryInvoke) IsFallback() bool {
	return x.fallback
}

func (x *TryInvoke) Type() string {
	return "tryInvoke"
}

func (x *TryInvoke) New() types.InterceptorComponent {
	return &TryInvoke{}
}

func (x *TryInvoke) Init(config types.Config, configuration types.Configuration) error {
	return nil
}

func (x *TryInvoke) Invoke(ctx context.Context, invocation *types.Invocation, next types.Next) error {
	err := next(ctx)
	if err == nil {
		return nil
	}
	var invokeErr *types.InvokeError
	if errors.As(err, &invokeErr) {
		return err
	}
	method := invocation.Method
	if method == nil {
		method = invocation.ProxyMethod
	}
	return &types.InvokeError{
		Proxy:  invocation.Proxy,
		Target: invocation.Target,
		Method: method,
		Err:    err,
	}
}
