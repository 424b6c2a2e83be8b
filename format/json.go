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

package format

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/aguacero7/rkik/probe"
	"github.com/aguacero7/rkik/stats"
)

// SchemaVersion of the JSON run envelope
const SchemaVersion = 1

// Record is the JSON shape of a probe result
type Record struct {
	Name          string  `json:"name"`
	IP            string  `json:"ip"`
	Port          uint16  `json:"port"`
	OffsetMs      float64 `json:"offset_ms"`
	RTTMs         float64 `json:"rtt_ms"`
	UTC           string  `json:"utc"`
	Local         string  `json:"local"`
	Timestamp     int64   `json:"timestamp"`
	Stratum       *uint8  `json:"stratum,omitempty"`
	RefID         *string `json:"ref_id,omitempty"`
	Authenticated bool    `json:"authenticated"`
}

// ErrorRecord is the JSON shape of a failed probe
type ErrorRecord struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Timeout bool   `json:"timeout,omitempty"`
	Error   string `json:"error"`
}

// Run is the JSON envelope of one cycle
type Run struct {
	SchemaVersion int           `json:"schema_version"`
	RunTS         string        `json:"run_ts"`
	Results       []Record      `json:"results"`
	Errors        []ErrorRecord `json:"errors,omitempty"`
}

// ShortRecord is the compact JSON shape of a probe result
type ShortRecord struct {
	Name     string  `json:"name"`
	UTC      string  `json:"utc"`
	OffsetMs float64 `json:"offset_ms"`
}

// SeriesRecord is the JSON shape of per target statistics
type SeriesRecord struct {
	Name     string `json:"name"`
	IP       string `json:"ip,omitempty"`
	Failures int    `json:"failures"`
	stats.Stats
	JitterMs float64 `json:"jitter_ms"`
	AvgRTTMs float64 `json:"avg_rtt_ms"`
}

// SummaryRecord is the JSON shape of continuous run statistics
type SummaryRecord struct {
	Stats         []SeriesRecord `json:"stats"`
	MaxAvgDriftMs *float64       `json:"max_avg_drift_ms,omitempty"`
}

// NewRecord converts result, stratum and reference id are included when verbose
func NewRecord(r *probe.Result, verbose bool) Record {
	rec := Record{
		Name:          r.Target.Name,
		IP:            r.Target.IP.String(),
		Port:          r.Target.Port,
		OffsetMs:      r.OffsetMs,
		RTTMs:         r.RTTMs,
		UTC:           r.UTC.Format(time.RFC3339Nano),
		Local:         r.Local.Format(LocalLayout),
		Timestamp:     r.Timestamp,
		Authenticated: r.Authenticated,
	}
	if verbose {
		stratum := r.Stratum
		refID := r.RefID
		rec.Stratum = &stratum
		rec.RefID = &refID
	}
	return rec
}

// NewErrorRecord converts failed outcome
func NewErrorRecord(o probe.Outcome) ErrorRecord {
	return ErrorRecord{
		Name:    o.Spec,
		Kind:    probe.KindOf(o.Err).String(),
		Timeout: probe.IsTimeout(o.Err),
		Error:   o.Err.Error(),
	}
}

func (p *Printer) encode(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	if p.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func (p *Printer) renderJSON(buf *bytes.Buffer, outcomes []probe.Outcome) error {
	run := Run{
		SchemaVersion: SchemaVersion,
		RunTS:         p.clock().UTC().Format(time.RFC3339Nano),
		Results:       []Record{},
	}
	for _, o := range outcomes {
		if o.Err != nil {
			run.Errors = append(run.Errors, NewErrorRecord(o))
			continue
		}
		run.Results = append(run.Results, NewRecord(o.Result, p.Verbose))
	}
	return p.encode(buf, run)
}

// renderJSONShort writes one compact object per line
func (p *Printer) renderJSONShort(buf *bytes.Buffer, outcomes []probe.Outcome) error {
	enc := json.NewEncoder(buf)
	for _, o := range outcomes {
		var v any
		if o.Err != nil {
			v = NewErrorRecord(o)
		} else {
			v = ShortRecord{Name: o.Result.Target.Name, UTC: o.Result.UTC.Format(time.RFC3339Nano), OffsetMs: o.Result.OffsetMs}
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) renderSummaryJSON(buf *bytes.Buffer, tracker *stats.Tracker) error {
	summary := SummaryRecord{Stats: []SeriesRecord{}}
	for _, s := range tracker.Series() {
		summary.Stats = append(summary.Stats, SeriesRecord{
			Name:     s.Name,
			IP:       s.IP,
			Failures: s.Failures,
			Stats:    s.Stats(),
			JitterMs: s.JitterMs(),
			AvgRTTMs: s.AvgRTTMs(),
		})
	}
	if len(summary.Stats) > 1 {
		if drift, err := tracker.AvgDrift(); err == nil {
			summary.MaxAvgDriftMs = &drift.DriftMs
		}
	}
	return p.encode(buf, summary)
}
