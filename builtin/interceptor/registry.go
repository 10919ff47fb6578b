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
	"github.com/rulego/aop/api/types"
)

// Registry holds the built-in interceptor components, filled by init functions.
// Registry 内置拦截器组件列表
var Registry = &types.SafeComponentSlice{}

// methodKey identifies the method an interceptor keeps per-method state for.
func methodKey(invocation *types.Invocation) string {
	if invocation.Method != nil {
		return invocation.Method.String()
	}
	return invocation.ProxyMethod.String()
}
