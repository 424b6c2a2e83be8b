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
	"strings"

	"github.com/aguacero7/rkik/probe"
	"github.com/aguacero7/rkik/stats"
	"github.com/fatih/color"
)

// LocalLayout is how local time is printed
const LocalLayout = "2006-01-02 15:04:05"

var (
	label   = color.New(color.FgCyan, color.Bold).SprintFunc()
	value   = color.New(color.FgGreen).SprintFunc()
	name    = color.New(color.FgGreen, color.Bold).SprintFunc()
	offset  = color.New(color.FgYellow).SprintfFunc()
	failure = color.New(color.FgRed).SprintfFunc()
)

func ipVersion(r *probe.Result) string {
	if r.Target.IP.To4() != nil {
		return "v4"
	}
	return "v6"
}

func renderError(buf *bytes.Buffer, o probe.Outcome) {
	fmt.Fprintln(buf, failure("Error: %s: %v", o.Spec, o.Err))
}

func renderProbe(buf *bytes.Buffer, o probe.Outcome, verbose bool) {
	if o.Err != nil {
		renderError(buf, o)
		return
	}
	r := o.Result
	fmt.Fprintf(buf, "%s %s\n", label("Server:"), value(r.Target.Name))
	fmt.Fprintf(buf, "%s %s (%s)\n", label("IP:"), value(r.Target.IP.String()), ipVersion(r))
	fmt.Fprintf(buf, "%s %s\n", label("UTC Time:"), value(r.UTC.Format("Mon, 02 Jan 2006 15:04:05 -0700")))
	fmt.Fprintf(buf, "%s %s\n", label("Local Time:"), value(r.Local.Format(LocalLayout)))
	fmt.Fprintf(buf, "%s %.3f ms\n", label("Clock Offset:"), r.OffsetMs)
	fmt.Fprintf(buf, "%s %.3f ms\n", label("Round Trip Delay:"), r.RTTMs)
	if verbose {
		fmt.Fprintf(buf, "%s %d\n", label("Stratum:"), r.Stratum)
		fmt.Fprintf(buf, "%s %s\n", label("Reference ID:"), r.RefID)
		fmt.Fprintf(buf, "%s %t\n", label("Authenticated:"), r.Authenticated)
	}
}

func renderCompare(buf *bytes.Buffer, outcomes []probe.Outcome, verbose bool) {
	if len(outcomes) == 2 {
		fmt.Fprintf(buf, "%s %s and %s\n", color.New(color.Bold).Sprint("Comparing"), value(outcomes[0].Spec), value(outcomes[1].Spec))
	} else {
		fmt.Fprintf(buf, "%s %d servers\n", color.New(color.Bold).Sprint("Comparing (async):"), len(outcomes))
	}
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(buf, "%s: %s\n", name(o.Spec), failure("%v", o.Err))
			continue
		}
		r := o.Result
		fmt.Fprintf(buf, "%s [%s %s]: %s\n", name(r.Target.Name), r.Target.IP, ipVersion(r), offset("%.3f ms", r.OffsetMs))
		if verbose {
			fmt.Fprintf(buf, "  %s %d\n  %s %s\n  %s %.3f ms\n",
				label("Stratum:"), r.Stratum,
				label("Reference ID:"), r.RefID,
				label("Round Trip Delay:"), r.RTTMs,
			)
		}
	}
	st, err := stats.Aggregate(stats.Offsets(stats.Successful(outcomes)))
	if err != nil || st.Count < 2 {
		return
	}
	fmt.Fprintf(buf, "%s %.3f ms (min: %.3f, max: %.3f, avg: %.3f)\n", label("Max drift:"), st.DriftMs, st.MinMs, st.MaxMs, st.AvgMs)
}

// renderShort prints the whole cycle on one line
func renderShort(buf *bytes.Buffer, outcomes []probe.Outcome) {
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			parts = append(parts, fmt.Sprintf("%s: %s", name(o.Spec), failure("%v", o.Err)))
			continue
		}
		r := o.Result
		if len(outcomes) == 1 {
			parts = append(parts, fmt.Sprintf("%s [%s]: %s rtt %.3f ms", name(r.Target.Name), r.Target.IP, offset("%.3f ms", r.OffsetMs), r.RTTMs))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name(r.Target.Name), offset("%.3f ms", r.OffsetMs)))
	}
	fmt.Fprintln(buf, strings.Join(parts, "  "))
}

// renderSimple prints one plain line per target
func renderSimple(buf *bytes.Buffer, outcomes []probe.Outcome) {
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(buf, "%s error %v\n", o.Spec, o.Err)
			continue
		}
		fmt.Fprintf(buf, "%s %s %.3f ms rtt %.3f ms\n", o.Result.Target.Name, o.Result.Target.IP, o.Result.OffsetMs, o.Result.RTTMs)
	}
}
