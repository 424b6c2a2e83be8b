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

package stats

import (
	"math"

	"github.com/aguacero7/rkik/probe"
	"github.com/eclesh/welford"
)

// Series accumulates results of one target over many cycles
type Series struct {
	Name     string
	IP       string
	Count    int
	Failures int
	MinMs    float64
	MaxMs    float64

	offset *welford.Stats
	rtt    *welford.Stats
}

// NewSeries returns empty series for a target
func NewSeries(name string) *Series {
	return &Series{
		Name:   name,
		offset: welford.New(),
		rtt:    welford.New(),
	}
}

// Add records one outcome
func (s *Series) Add(o probe.Outcome) {
	if o.Err != nil || o.Result == nil {
		s.Failures++
		return
	}
	r := o.Result
	if s.Count == 0 {
		s.MinMs, s.MaxMs = r.OffsetMs, r.OffsetMs
	}
	s.Count++
	s.IP = r.Target.IP.String()
	s.MinMs = math.Min(s.MinMs, r.OffsetMs)
	s.MaxMs = math.Max(s.MaxMs, r.OffsetMs)
	s.offset.Add(r.OffsetMs)
	s.rtt.Add(r.RTTMs)
}

// AvgMs is the mean offset
func (s *Series) AvgMs() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.offset.Mean()
}

// JitterMs is the standard deviation of offsets
func (s *Series) JitterMs() float64 {
	if s.Count < 2 {
		return 0
	}
	return s.offset.Stddev()
}

// AvgRTTMs is the mean round trip delay
func (s *Series) AvgRTTMs() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.rtt.Mean()
}

// Stats returns offset summary of the series
func (s *Series) Stats() Stats {
	if s.Count == 0 {
		return Stats{}
	}
	return Stats{
		Count:   s.Count,
		MinMs:   s.MinMs,
		MaxMs:   s.MaxMs,
		AvgMs:   s.AvgMs(),
		DriftMs: s.MaxMs - s.MinMs,
	}
}

// seriesKey tells apart a target given twice in one cycle
type seriesKey struct {
	spec string
	nth  int
}

// Tracker keeps one Series per target, in the order targets were first seen
type Tracker struct {
	order  []seriesKey
	series map[seriesKey]*Series
}

// NewTracker returns empty tracker
func NewTracker() *Tracker {
	return &Tracker{series: map[seriesKey]*Series{}}
}

// Add records outcomes of one cycle
func (t *Tracker) Add(outcomes []probe.Outcome) {
	seen := map[string]int{}
	for _, o := range outcomes {
		key := seriesKey{spec: o.Spec, nth: seen[o.Spec]}
		seen[o.Spec]++
		s, ok := t.series[key]
		if !ok {
			s = NewSeries(o.Spec)
			t.series[key] = s
			t.order = append(t.order, key)
		}
		s.Add(o)
	}
}

// Series returns all series in first seen order
func (t *Tracker) Series() []*Series {
	out := make([]*Series, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.series[key])
	}
	return out
}

// AvgDrift is the spread of per-target average offsets.
// Targets without a single success are ignored.
func (t *Tracker) AvgDrift() (Stats, error) {
	avgs := []float64{}
	for _, s := range t.Series() {
		if s.Count > 0 {
			avgs = append(avgs, s.AvgMs())
		}
	}
	return Aggregate(avgs)
}
