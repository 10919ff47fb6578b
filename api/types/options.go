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

package types

import "time"

// Option is a function type that modifies the Config.
type Option func(*Config) error

// WithLogger is an option that sets the logger of the Config.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// WithPool is an option that sets the pool of the Config.
func WithPool(pool Pool) Option {
	return func(c *Config) error {
		c.Pool = pool
		return nil
	}
}

// WithDefaultPool is an option that starts and sets the default worker pool.
func WithDefaultPool() Option {
	return func(c *Config) error {
		c.Pool = DefaultPool()
		return nil
	}
}

// WithOnError is an option that sets the callback for best-effort failures.
func WithOnError(onError func(err error)) Option {
	return func(c *Config) error {
		c.OnError = onError
		return nil
	}
}

// WithIgnoredMethods is an option that adds method names proxies never expose.
func WithIgnoredMethods(names ...string) Option {
	return func(c *Config) error {
		c.IgnoredMethods = append(c.IgnoredMethods, names...)
		return nil
	}
}

// WithProperties is an option that sets global properties.
func WithProperties(properties map[string]interface{}) Option {
	return func(c *Config) error {
		for k, v := range properties {
			c.Properties[k] = v
		}
		return nil
	}
}

// WithUdf is an option that registers a user defined function for JavaScript pointcuts.
func WithUdf(name string, fn interface{}) Option {
	return func(c *Config) error {
		if c.Udf == nil {
			c.Udf = make(map[string]interface{})
		}
		c.Udf[name] = fn
		return nil
	}
}

// WithScriptMaxExecutionTime is an option that bounds JavaScript pointcut evaluation.
func WithScriptMaxExecutionTime(d time.Duration) Option {
	return func(c *Config) error {
		c.ScriptMaxExecutionTime = d
		return nil
	}
}

// WithKeepInvokeError is an option that makes callers observe *InvokeError from TryInvoke.
func WithKeepInvokeError() Option {
	return func(c *Config) error {
		c.KeepInvokeError = true
		return nil
	}
}
