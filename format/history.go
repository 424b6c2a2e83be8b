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
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/aguacero7/rkik/history"
)

// HistoryRecord is the JSON form of a recorded target summary
type HistoryRecord struct {
	Name        string  `json:"name"`
	Samples     int64   `json:"samples"`
	Failures    int64   `json:"failures"`
	MinOffsetMs float64 `json:"min_offset_ms"`
	MaxOffsetMs float64 `json:"max_offset_ms"`
	AvgOffsetMs float64 `json:"avg_offset_ms"`
	AvgRTTMs    float64 `json:"avg_rtt_ms"`
	LastSeen    string  `json:"last_seen"`
}

// History renders summaries read back from the recorder
func (p *Printer) History(summaries []history.Summary) error {
	var buf bytes.Buffer
	switch p.Format {
	case JSON, JSONShort:
		records := make([]HistoryRecord, 0, len(summaries))
		for _, s := range summaries {
			records = append(records, HistoryRecord{
				Name:        s.Target,
				Samples:     s.Samples,
				Failures:    s.Failures,
				MinOffsetMs: s.MinOffsetMs,
				MaxOffsetMs: s.MaxOffsetMs,
				AvgOffsetMs: s.AvgOffsetMs,
				AvgRTTMs:    s.AvgRTTMs,
				LastSeen:    s.LastSeen.UTC().Format(time.RFC3339Nano),
			})
		}
		if err := p.encode(&buf, records); err != nil {
			return err
		}
	default:
		if len(summaries) == 0 {
			buf.WriteString("no recorded probes\n")
			break
		}
		table := tablewriter.NewWriter(&buf)
		table.Header("target", "samples", "failures", "min(ms)", "max(ms)", "avg(ms)", "avg rtt(ms)", "last seen")
		for _, s := range summaries {
			row := []string{s.Target, fmt.Sprintf("%d", s.Samples), fmt.Sprintf("%d", s.Failures)}
			if s.Samples == s.Failures {
				row = append(row, "", "", "", "")
			} else {
				row = append(row, ms(s.MinOffsetMs), ms(s.MaxOffsetMs), ms(s.AvgOffsetMs), ms(s.AvgRTTMs))
			}
			row = append(row, s.LastSeen.Local().Format(time.DateTime))
			if err := table.Append(row); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	return p.write(buf.Bytes())
}
