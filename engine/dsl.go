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
	"fmt"

	"github.com/rulego/aop/api/types"
)

// LoadAspect registers an aspect DSL definition into options: suppression pointcuts, interceptions
// with interceptor components created from registry, and property enrichers. Nothing is registered
// when the definition is invalid.
//
// LoadAspect 加载拦截配置 DSL
func LoadAspect(config types.Config, registry types.ComponentRegistry, options *AspectOptions, def types.AspectDef) error {
	if registry == nil {
		registry = Registry
	}
	var suppressions []Predicate
	for i, item := range def.NoIntercept {
		predicate, err := CompilePointCut(config, item)
		if err != nil {
			return fmt.Errorf("noIntercept[%d]: %w", i, err)
		}
		suppressions = append(suppressions, predicate)
	}

	type interception struct {
		predicate    Predicate
		interceptors []types.Interceptor
	}
	var interceptions []interception
	for i, item := range def.Interceptors {
		predicate, err := CompilePointCut(config, item.PointCutDef)
		if err != nil {
			return fmt.Errorf("interceptors[%d]: %w", i, err)
		}
		var interceptors []types.Interceptor
		for j, with := range item.With {
			component, err := registry.NewInterceptor(with.Type)
			if err != nil {
				return fmt.Errorf("interceptors[%d].with[%d]: %w", i, j, err)
			}
			if err := component.Init(config, with.Configuration); err != nil {
				return fmt.Errorf("interceptors[%d].with[%d] init %s: %w", i, j, with.Type, err)
			}
			interceptors = append(interceptors, component)
		}
		interceptions = append(interceptions, interception{predicate: predicate, interceptors: interceptors})
	}

	for _, predicate := range suppressions {
		options.NoIntercept(predicate)
	}
	for _, item := range interceptions {
		options.Intercept(item.predicate).With(item.interceptors...)
	}
	for k, v := range def.Properties {
		options.WithProperty(k, v, false)
	}
	return nil
}
