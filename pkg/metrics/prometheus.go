// Copyright 2024 ARL-Infra Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/sessionpod/orchestrator/pkg/interfaces"
)

// PrometheusCollector implements interfaces.MetricsCollector using Prometheus.
type PrometheusCollector struct {
	proxyRequests      *prometheus.HistogramVec
	longPollOutcomes   *prometheus.HistogramVec
	sandboxCreation     *prometheus.HistogramVec
	queuePublishTotal    *prometheus.CounterVec
	reaperEvictionsTotal prometheus.Counter
	reaperTickDuration   prometheus.Histogram
	reaperTickScanned    prometheus.Gauge
	auditWriteErrors     *prometheus.CounterVec
}

// NewPrometheusCollector creates a new Prometheus metrics collector and
// registers it with the shared controller-runtime registry. It does not
// start an HTTP endpoint for that registry.
func NewPrometheusCollector() interfaces.MetricsCollector {
	c := &PrometheusCollector{
		proxyRequests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionpod_proxy_request_duration_seconds",
				Help:    "Duration of proxied requests to ready sandboxes",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"status"},
		),
		longPollOutcomes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionpod_gateway_long_poll_seconds",
				Help:    "Duration the gateway spent long-polling for a session to become ready",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 90},
			},
			[]string{"outcome"},
		),
		sandboxCreation: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionpod_worker_sandbox_creation_seconds",
				Help:    "Duration of the worker's create-and-wait-until-addressable path",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60},
			},
			[]string{"outcome"},
		),
		queuePublishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionpod_gateway_queue_publish_total",
				Help: "Total number of pod creation requests published, by result",
			},
			[]string{"result"},
		),
		reaperEvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sessionpod_reaper_evictions_total",
				Help: "Total number of idle sessions evicted by the reaper",
			},
		),
		reaperTickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sessionpod_reaper_tick_duration_seconds",
				Help:    "Duration of one reaper scan pass",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15},
			},
		),
		reaperTickScanned: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessionpod_reaper_sessions_scanned",
				Help: "Number of session records scanned during the last reaper tick",
			},
		),
		auditWriteErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionpod_audit_write_errors_total",
				Help: "Total number of audit write errors",
			},
			[]string{"resource_type"},
		),
	}

	ctrlmetrics.Registry.MustRegister(
		c.proxyRequests,
		c.longPollOutcomes,
		c.sandboxCreation,
		c.queuePublishTotal,
		c.reaperEvictionsTotal,
		c.reaperTickDuration,
		c.reaperTickScanned,
		c.auditWriteErrors,
	)

	return c
}

func (c *PrometheusCollector) RecordProxyRequest(status string, duration time.Duration) {
	c.proxyRequests.WithLabelValues(status).Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordLongPoll(outcome string, waited time.Duration) {
	c.longPollOutcomes.WithLabelValues(outcome).Observe(waited.Seconds())
}

func (c *PrometheusCollector) RecordSandboxCreation(outcome string, duration time.Duration) {
	c.sandboxCreation.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordQueuePublish(result string) {
	c.queuePublishTotal.WithLabelValues(result).Inc()
}

func (c *PrometheusCollector) RecordReaperEviction() {
	c.reaperEvictionsTotal.Inc()
}

func (c *PrometheusCollector) RecordReaperTick(sessionsScanned int, duration time.Duration) {
	c.reaperTickDuration.Observe(duration.Seconds())
	c.reaperTickScanned.Set(float64(sessionsScanned))
}

func (c *PrometheusCollector) RecordAuditWriteError(resourceType string) {
	c.auditWriteErrors.WithLabelValues(resourceType).Inc()
}
