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

	"github.com/aguacero7/rkik/stats"
	"github.com/olekukonko/tablewriter"
)

func ms(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

// renderSummaryTable prints per target statistics and the spread of their averages
func renderSummaryTable(buf *bytes.Buffer, tracker *stats.Tracker) error {
	table := tablewriter.NewWriter(buf)
	table.Header("target", "ip", "samples", "failures", "min(ms)", "max(ms)", "avg(ms)", "jitter(ms)", "avg rtt(ms)")
	series := tracker.Series()
	for _, s := range series {
		row := []string{s.Name, s.IP, fmt.Sprintf("%d", s.Count), fmt.Sprintf("%d", s.Failures)}
		if s.Count == 0 {
			row = append(row, "", "", "", "", "")
		} else {
			row = append(row, ms(s.MinMs), ms(s.MaxMs), ms(s.AvgMs()), ms(s.JitterMs()), ms(s.AvgRTTMs()))
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	if len(series) > 1 {
		if drift, err := tracker.AvgDrift(); err == nil {
			fmt.Fprintf(buf, "%s %.3f ms\n", label("Max avg drift:"), drift.DriftMs)
		}
	}
	return nil
}
