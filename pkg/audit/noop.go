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

package audit

import (
	"context"

	"github.com/sessionpod/orchestrator/pkg/interfaces"
)

// NoOpWriter is a no-op implementation for when auditing is disabled.
type NoOpWriter struct{}

// NewNoOpWriter creates a new no-op audit writer.
func NewNoOpWriter() *NoOpWriter {
	return &NoOpWriter{}
}

func (n *NoOpWriter) WriteSessionEvent(_ context.Context, _ interfaces.SessionAuditRecord) error {
	return nil
}

func (n *NoOpWriter) Flush(_ context.Context) error {
	return nil
}

func (n *NoOpWriter) Close() error {
	return nil
}
