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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rulego/aop/api/types"
	"github.com/rulego/aop/api/types/metrics"
)

var _ types.InterceptorComponent = (*Metrics)(nil)

func init() {
	Registry.Add(&Metrics{})
}

// Metrics counts calls: in flight, total, succeeded, failed and rejected by a guard.
// With a collector it also exports per-method Prometheus series.
//
// Metrics 调用指标拦截器
type Metrics struct {
	metrics   *metrics.InvocationMetrics
	collector *MetricsCollector
}

// NewMetrics creates the interceptor. Both arguments may be nil.
func NewMetrics(m *metrics.InvocationMetrics, collector *MetricsCollector) *Metrics {
	if m == nil {
		m = metrics.NewInvocationMetrics()
	}
	return &Metrics{metrics: m, collector: collector}
}

func (x *Metrics) Type() string {
	return "metrics"
}

func (x *Metrics) New() types.InterceptorComponent {
	return NewMetrics(nil, nil)
}

func (x *Metrics) Init(config types.Config, configuration types.Configuration) error {
	if x.metrics == nil {
		x.metrics = metrics.NewInvocationMetrics()
	}
	return nil
}

func (x *Metrics) Invoke(ctx context.Context, invocation *types.Invocation, next types.Next) error {
	x.metrics.Start()
	method := methodKey(invocation)
	if x.collector != nil {
		x.collector.inFlight.WithLabelValues(method).Inc()
		defer x.collector.inFlight.WithLabelValues(method).Dec()
	}
	start := time.Now()
	err := next(ctx)
	result := x.metrics.Done(err)
	if x.collector != nil {
		x.collector.invocations.WithLabelValues(method, result).Inc()
		x.collector.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
	return err
}

// GetMetrics returns the counters.
func (x *Metrics) GetMetrics() *metrics.InvocationMetrics {
	return x.metrics
}

// MetricsCollector holds the Prometheus series of proxied calls.
type MetricsCollector struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inFlight    *prometheus.GaugeVec
}

// NewMetricsCollector creates the series and registers them with registerer,
// prometheus.DefaultRegisterer when nil.
func NewMetricsCollector(namespace string, registerer prometheus.Registerer) (*MetricsCollector, error) {
	if namespace == "" {
		namespace = "aop"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	c := &MetricsCollector{
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "invocations_total",
				Help:      "Total number of proxied calls",
			},
			[]string{"method", "result"}, // result: success, failure or rejected
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "invocation_duration_seconds",
				Help:      "Proxied call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "invocations_in_flight",
				Help:      "Number of proxied calls in flight",
			},
			[]string{"method"},
		),
	}
	for _, collector := range []prometheus.Collector{c.invocations, c.duration, c.inFlight} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}
