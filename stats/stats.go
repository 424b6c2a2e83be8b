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

/*
Package stats aggregates clock offsets of probe results,
both for a single batch and across cycles of continuous monitoring.
*/
package stats

import (
	"errors"
	"math"

	"github.com/aguacero7/rkik/probe"
	"github.com/eclesh/welford"
)

// ErrEmpty is returned when there is nothing to aggregate
var ErrEmpty = errors.New("no values to aggregate")

// Stats summarizes a set of offsets in milliseconds
type Stats struct {
	Count   int     `json:"count"`
	MinMs   float64 `json:"min_ms"`
	MaxMs   float64 `json:"max_ms"`
	AvgMs   float64 `json:"avg_ms"`
	DriftMs float64 `json:"drift_ms"`
}

// Aggregate computes min, max, arithmetic mean and drift (max - min) of signed values
func Aggregate(values []float64) (Stats, error) {
	if len(values) == 0 {
		return Stats{}, ErrEmpty
	}
	s := welford.New()
	st := Stats{Count: len(values), MinMs: values[0], MaxMs: values[0]}
	for _, v := range values {
		s.Add(v)
		st.MinMs = math.Min(st.MinMs, v)
		st.MaxMs = math.Max(st.MaxMs, v)
	}
	st.AvgMs = s.Mean()
	st.DriftMs = st.MaxMs - st.MinMs
	return st, nil
}

// Severity aggregates absolute values, which is what thresholds care about
func Severity(values []float64) (Stats, error) {
	abs := make([]float64, len(values))
	for i, v := range values {
		abs[i] = math.Abs(v)
	}
	return Aggregate(abs)
}

// Offsets extracts offsets of results
func Offsets(results []*probe.Result) []float64 {
	out := make([]float64, 0, len(results))
	for _, r := range results {
		out = append(out, r.OffsetMs)
	}
	return out
}

// RTTs extracts round trip delays of results
func RTTs(results []*probe.Result) []float64 {
	out := make([]float64, 0, len(results))
	for _, r := range results {
		out = append(out, r.RTTMs)
	}
	return out
}

// Successful returns results of outcomes which didn't fail, in order
func Successful(outcomes []probe.Outcome) []*probe.Result {
	out := make([]*probe.Result, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil && o.Result != nil {
			out = append(out, o.Result)
		}
	}
	return out
}
