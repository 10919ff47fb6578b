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

	"github.com/rulego/aop/api/types"
)

// Compose folds interceptors around terminal. The first interceptor is the outermost layer:
// [A, B, C] runs A before, B before, C before, terminal, C after, B after, A after.
// An interceptor that does not call its continuation short-circuits everything inside it.
//
// Compose 把拦截器列表和终端操作组合成一个调用（洋葱模型），第一个拦截器在最外层。
func Compose(invocation *types.Invocation, interceptors []types.Interceptor, terminal types.Next) types.Next {
	next := terminal
	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor := interceptors[i]
		inner := next
		next = func(ctx context.Context) error {
			return interceptor.Invoke(ctx, invocation, inner)
		}
	}
	return next
}

// isFallbackOnly reports whether the list is a single pass-through fallback interceptor,
// in which case the engine calls the terminal operation directly.
func isFallbackOnly(interceptors []types.Interceptor) bool {
	if len(interceptors) != 1 {
		return false
	}
	return isFallback(interceptors[0])
}

func isFallback(interceptor types.Interceptor) bool {
	fallback, ok := interceptor.(types.Fallback)
	return ok && fallback.IsFallback()
}
