/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package probe

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single probe when caller passes none
const DefaultTimeout = 5 * time.Second

// Result is a measurement of one server
type Result struct {
	Target Target
	// OffsetMs is how far the server clock is ahead of ours
	OffsetMs float64
	RTTMs    float64
	Stratum  uint8
	RefID    string
	// UTC is the corrected time at the moment the response was received
	UTC time.Time
	// Local is UTC in the local time zone
	Local time.Time
	// Timestamp is UTC in unix seconds
	Timestamp     int64
	Authenticated bool
}

// Correction is the step to apply to the local clock
func (r *Result) Correction() time.Duration {
	return time.Duration(r.OffsetMs * float64(time.Millisecond))
}

//go:generate mockgen -source result.go -destination prober_mock.go -package probe

// Prober performs one time exchange with a resolved target.
// Implementations must honour both ctx and timeout and return *Error on failure.
type Prober interface {
	Probe(ctx context.Context, target Target, timeout time.Duration) (*Result, error)
}

// ProberFunc adapts a function to Prober
type ProberFunc func(ctx context.Context, target Target, timeout time.Duration) (*Result, error)

// Probe implements Prober
func (f ProberFunc) Probe(ctx context.Context, target Target, timeout time.Duration) (*Result, error) {
	return f(ctx, target, timeout)
}
