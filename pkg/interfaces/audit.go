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
	"context"
	"time"
)

// AuditWriter defines the interface for writing session lifecycle audit
// records. It is ambient observability: its absence or failure never
// changes Gateway/Worker/Reaper behavior.
type AuditWriter interface {
	// WriteSessionEvent writes one lifecycle transition.
	WriteSessionEvent(ctx context.Context, record SessionAuditRecord) error

	// Flush flushes any buffered audit records.
	Flush(ctx context.Context) error

	// Close closes the audit writer.
	Close() error
}

// SessionAuditRecord represents one session lifecycle audit log entry.
type SessionAuditRecord struct {
	TraceID   string
	UserID    string
	PodName   string
	Event     string // created | ready | failed | touched | reaped
	Status    string
	Timestamp time.Time
}

// NoOpAuditWriter is a no-op implementation for when auditing is disabled.
type NoOpAuditWriter struct{}

func (n *NoOpAuditWriter) WriteSessionEvent(_ context.Context, _ SessionAuditRecord) error {
	return nil
}

func (n *NoOpAuditWriter) Flush(_ context.Context) error {
	return nil
}

func (n *NoOpAuditWriter) Close() error {
	return nil
}
