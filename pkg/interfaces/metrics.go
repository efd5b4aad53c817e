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

package interfaces

import (
	"time"
)

// MetricsCollector defines the interface for collecting metrics across the
// Gateway, Worker, and Reaper.
type MetricsCollector interface {
	// RecordProxyRequest records one proxied request to a ready sandbox.
	RecordProxyRequest(status string, duration time.Duration)

	// RecordLongPoll records one Gateway long-poll wait outcome
	// (ready|failed|timeout) and how long it waited.
	RecordLongPoll(outcome string, waited time.Duration)

	// RecordSandboxCreation records how long the Worker's create+wait path
	// took and its outcome (ready|failed|pending|error).
	RecordSandboxCreation(outcome string, duration time.Duration)

	// RecordQueuePublish records an attempted publish to the creation
	// queue and whether it succeeded.
	RecordQueuePublish(result string)

	// RecordReaperEviction records one session evicted by the reaper.
	RecordReaperEviction()

	// RecordReaperTick records one reaper scan pass and how long it took.
	RecordReaperTick(sessionsScanned int, duration time.Duration)

	// RecordAuditWriteError records audit write errors.
	RecordAuditWriteError(resourceType string)
}

// NoOpMetricsCollector is a no-op implementation for when metrics are disabled.
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordProxyRequest(status string, duration time.Duration)      {}
func (n *NoOpMetricsCollector) RecordLongPoll(outcome string, waited time.Duration)            {}
func (n *NoOpMetricsCollector) RecordSandboxCreation(outcome string, duration time.Duration)   {}
func (n *NoOpMetricsCollector) RecordQueuePublish(result string)                                {}
func (n *NoOpMetricsCollector) RecordReaperEviction()                                           {}
func (n *NoOpMetricsCollector) RecordReaperTick(sessionsScanned int, duration time.Duration)    {}
func (n *NoOpMetricsCollector) RecordAuditWriteError(resourceType string)                       {}
