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
	"time"

	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/utils/str"
)

var _ types.InterceptorComponent = (*Debug)(nil)

func init() {
	Registry.Add(&Debug{})
}

// Debug logs the method and its arguments before the call, and the results, the error and
// the elapsed time after it.
//
// Debug 调试日志拦截器，记录调用前的参数以及调用后的返回值、错误和耗时
type Debug struct {
	// Logger defaults to the engine logger given to Init, or types.DefaultLogger().
	Logger types.Logger
}

func (x *Debug) Type() string {
	return "debug"
}

func (x *Debug) New() types.InterceptorComponent {
	return &Debug{}
}

func (x *Debug) Init(config types.Config, configuration types.Configuration) error {
	x.Logger = config.Logger
	return nil
}

func (x *Debug) Invoke(ctx context.Context, invocation *types.Invocation, next types.Next) error {
	logger := types.NewLogger(x.Logger)
	method := invocation.ProxyMethod
	logger.Printf("before %s args=%s", method, str.ToString(invocation.Arguments))
	start := time.Now()
	err := next(ctx)
	if err != nil {
		logger.Printf("after %s err=%v elapsed=%s", method, err, time.Since(start))
	} else {
		logger.Printf("after %s result=%s elapsed=%s", method, str.ToString(invocation.ReturnValues()), time.Since(start))
	}
	return err
}
