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

// Package metrics provides metrics collection for the gateway, worker, and
// reaper binaries.
//
// PrometheusCollector implements interfaces.MetricsCollector and registers
// every metric with the shared controller-runtime registry. None of the
// binaries in this module serve that registry over HTTP; the MetricsAddr
// config field is not read by them.
//
// Available metrics:
//
// - sessionpod_proxy_request_duration_seconds: proxied request latency
// - sessionpod_gateway_long_poll_seconds: gateway long-poll wait time, by outcome
// - sessionpod_worker_sandbox_creation_seconds: worker create+wait latency, by outcome
// - sessionpod_gateway_queue_publish_total: creation requests published, by result
// - sessionpod_reaper_evictions_total: sessions evicted
// - sessionpod_reaper_tick_duration_seconds: reaper scan pass duration
//
// Usage in main.go:
//
//   var collector interfaces.MetricsCollector
//   if cfg.EnableMetrics {
//       collector = metrics.NewPrometheusCollector()
//   } else {
//       collector = &interfaces.NoOpMetricsCollector{}
//   }
