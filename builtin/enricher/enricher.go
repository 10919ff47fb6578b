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

// Package enricher provides the built-in invocation enrichers, which write metadata into
// every invocation before its interceptors run.
//
// Package enricher 内置调用增强器，在拦截器执行之前写入调用元数据
package enricher

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rulego/aop/api/types"
)

var (
	_ types.InvocationEnricher = (*PropertyEnricher)(nil)
	_ types.InvocationEnricher = (*InvocationIdEnricher)(nil)
	_ types.InvocationEnricher = (*StartTimeEnricher)(nil)
)

// PropertyEnricher writes one metadata value. An existing value is kept unless Overwrite is set,
// and Predicate, when present, selects the invocations to enrich.
type PropertyEnricher struct {
	Name         string
	ValueFactory func(invocation *types.Invocation) interface{}
	Predicate    func(invocation *types.Invocation) bool
	Overwrite    bool
}

// NewPropertyEnricher writes a constant value.
func NewPropertyEnricher(name string, value interface{}, overwrite bool) *PropertyEnricher {
	return NewPropertyEnricherFunc(name, func(*types.Invocation) interface{} {
		return value
	}, nil, overwrite)
}

// NewPropertyEnricherFunc writes a value computed per invocation.
func NewPropertyEnricherFunc(name string, valueFactory func(invocation *types.Invocation) interface{},
	predicate func(invocation *types.Invocation) bool, overwrite bool) *PropertyEnricher {
	return &PropertyEnricher{Name: name, ValueFactory: valueFactory, Predicate: predicate, Overwrite: overwrite}
}

func (e *PropertyEnricher) Enrich(invocation *types.Invocation) error {
	if e.ValueFactory == nil {
		return nil
	}
	if e.Predicate != nil && !e.Predicate(invocation) {
		return nil
	}
	if _, ok := invocation.GetProperty(e.Name); ok && !e.Overwrite {
		return nil
	}
	invocation.PutProperty(e.Name, e.ValueFactory(invocation))
	return nil
}

// InvocationIdEnricher writes a random UUID under types.PropertyInvocationId.
type InvocationIdEnricher struct{}

func (e *InvocationIdEnricher) Enrich(invocation *types.Invocation) error {
	if _, ok := invocation.GetProperty(types.PropertyInvocationId); ok {
		return nil
	}
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	invocation.PutProperty(types.PropertyInvocationId, id.String())
	return nil
}

// StartTimeEnricher writes the time the call started under types.PropertyStartTime.
type StartTimeEnricher struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

func (e *StartTimeEnricher) Enrich(invocation *types.Invocation) error {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	invocation.PutProperty(types.PropertyStartTime, now())
	return nil
}
