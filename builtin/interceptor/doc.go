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

// Package interceptor provides the built-in interceptors of the proxy engine.
// Every interceptor here is also an InterceptorComponent registered in Registry,
// so aspect DSL definitions can reference it by type name.
//
// Package interceptor 提供代理引擎的内置拦截器，它们同时是拦截器组件，可以在 DSL 中通过类型引用。
//
// Available Built-in Interceptors:
// 可用的内置拦截器：
//
//   - TryInvoke: Converts call failures into *types.InvokeError carrying the invocation identity
//     TryInvoke：把调用异常转换成携带调用信息的 *types.InvokeError
//
//   - Debug: Logs method, arguments and results before and after the call
//     Debug：在调用前后记录方法、参数和返回值
//
//   - Metrics: Counts calls, optionally exported to Prometheus
//     Metrics：统计调用次数，可以导出到 Prometheus
//
//   - ConcurrencyLimiter: Limits concurrent calls
//     ConcurrencyLimiter：限制并发调用
//
//   - RateLimiter: Limits the call rate with a token bucket
//     RateLimiter：令牌桶限流
//
//   - SkipFallback: Skips a method for a while after repeated failures
//     SkipFallback：方法连续失败后，一段时间内跳过执行
//
//   - CircuitBreaker: Per-method circuit breaker
//     CircuitBreaker：按方法熔断
//
//   - ResultCache: Caches results by method and arguments
//     ResultCache：按方法和参数缓存返回值
//
// Usage:
// 使用方法：
//
//	options.InterceptTypeOf(reflect.TypeOf((*IFly)(nil)).Elem()).
//		With(&interceptor.Debug{}, interceptor.NewConcurrencyLimiter(100))
package interceptor
