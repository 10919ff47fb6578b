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
	"math"
	"time"

	"github.com/rulego/aop/utils/pool"
)

// DefaultIgnoredMethods are never turned into proxy members.
var DefaultIgnoredMethods = []string{"String", "GoString"}

// Config defines the configuration for the proxy engine.
type Config struct {
	// Logger is the logging interface, defaulting to `DefaultLogger()`.
	Logger Logger
	// Pool is the interface for a coroutine pool used by asynchronous dispatch.
	// If not configured, the go func method is used by default.
	// The default implementation is `pool.WorkerPool`.
	Pool Pool
	// OnError is called when a best-effort step, such as an enricher, fails.
	// The process-wide OnInvokeException hook is called as well.
	OnError func(err error)
	// IgnoredMethods are method names that synthesized proxy types never expose.
	IgnoredMethods []string
	// Properties are global properties exposed to DSL pointcuts as `global`.
	Properties map[string]interface{}
	// Udf are user defined functions available to JavaScript pointcuts.
	// A string value is JavaScript source, any other value is a Go function.
	Udf map[string]interface{}
	// KeepInvokeError keeps the *InvokeError produced by the TryInvoke interceptor instead of
	// unwrapping it to the original failure.
	KeepInvokeError bool
	// ScriptMaxExecutionTime bounds one JavaScript pointcut evaluation, 0 means no limit.
	ScriptMaxExecutionTime time.Duration
}

// ReportError hands err to the configured hooks.
func (c Config) ReportError(err error) {
	if err == nil {
		return
	}
	if c.OnError != nil {
		c.OnError(err)
	}
	if OnInvokeException != nil {
		OnInvokeException(err)
	}
}

// IsIgnored reports whether the method name is ignored.
func (c Config) IsIgnored(name string) bool {
	for _, item := range c.IgnoredMethods {
		if item == name {
			return true
		}
	}
	return false
}

// NewConfig creates a new Config with default values and applies the provided options.
func NewConfig(opts ...Option) Config {
	c := &Config{
		Logger:                 DefaultLogger(),
		IgnoredMethods:         append([]string(nil), DefaultIgnoredMethods...),
		Properties:             make(map[string]interface{}),
		Udf:                    make(map[string]interface{}),
		ScriptMaxExecutionTime: time.Millisecond * 2000,
	}

	for _, opt := range opts {
		_ = opt(c)
	}
	return *c
}

// DefaultPool provides a default coroutine pool.
func DefaultPool() Pool {
	wp := &pool.WorkerPool{MaxWorkersCount: math.MaxInt32}
	wp.Start()
	return wp
}
