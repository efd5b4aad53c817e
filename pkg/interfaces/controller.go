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

// Hook defines lifecycle hooks around one unit of work (a Gateway request,
// a Worker delivery, a Reaper tick). Unlike a controller-runtime
// reconciler, the unit isn't a typed Kubernetes request, so Before/After
// take the loosely-typed event value each caller already has in hand.
type Hook interface {
	// Before is called before the unit of work starts. Returning an error
	// aborts it.
	Before(ctx interface{}, event interface{}) error

	// After is called once the unit of work completes. An error from After
	// never overrides the unit's own result.
	After(ctx interface{}, event interface{}, err error)
}
