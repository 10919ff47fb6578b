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

// Package metrics holds the in-process counters of proxied calls.
package metrics

import (
	"errors"
	"sync/atomic"

	"github.com/rulego/aop/api/types"
)

// Result labels.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
)

// rejections are the errors of calls refused by a guard before reaching the target.
var rejections = []error{types.ErrFallback, types.ErrRateLimited, types.ErrConcurrencyLimitReached}

// Result classifies the error of a call.
func Result(err error) string {
	if err == nil {
		return ResultSuccess
	}
	for _, rejected := range rejections {
		if errors.Is(err, rejected) {
			return ResultRejected
		}
	}
	return ResultFailure
}

// InvocationMetrics counts proxied calls. Safe for concurrent use.
type InvocationMetrics struct {
	current  int64
	total    int64
	success  int64
	failed   int64
	rejected int64
}

// Snapshot is a copy of the counters.
type Snapshot struct {
	Current  int64 // calls in flight
	Total    int64 // calls started
	Success  int64 // calls completed without error
	Failed   int64 // calls that returned an error or panicked
	Rejected int64 // calls refused by a guard, see Result
}

// SuccessRate returns Success/(Success+Failed), 1 before any call completed. Rejected calls are not counted.
func (s Snapshot) SuccessRate() float64 {
	done := s.Success + s.Failed
	if done == 0 {
		return 1
	}
	return float64(s.Success) / float64(done)
}

func NewInvocationMetrics() *InvocationMetrics {
	return &InvocationMetrics{}
}

// Start records a call entering the pipeline.
func (m *InvocationMetrics) Start() {
	atomic.AddInt64(&m.current, 1)
	atomic.AddInt64(&m.total, 1)
}

// Done records the outcome of a started call and returns its result label.
func (m *InvocationMetrics) Done(err error) string {
	atomic.AddInt64(&m.current, -1)
	result := Result(err)
	switch result {
	case ResultSuccess:
		atomic.AddInt64(&m.success, 1)
	case ResultRejected:
		atomic.AddInt64(&m.rejected, 1)
	default:
		atomic.AddInt64(&m.failed, 1)
	}
	return result
}

// Get returns a snapshot. Counters are read one by one, a snapshot taken during calls may be off by the calls in flight.
func (m *InvocationMetrics) Get() Snapshot {
	return Snapshot{
		Current:  atomic.LoadInt64(&m.current),
		Total:    atomic.LoadInt64(&m.total),
		Success:  atomic.LoadInt64(&m.success),
		Failed:   atomic.LoadInt64(&m.failed),
		Rejected: atomic.LoadInt64(&m.rejected),
	}
}

func (m *InvocationMetrics) Reset() {
	atomic.StoreInt64(&m.current, 0)
	atomic.StoreInt64(&m.total, 0)
	atomic.StoreInt64(&m.success, 0)
	atomic.StoreInt64(&m.failed, 0)
	atomic.StoreInt64(&m.rejected, 0)
}
