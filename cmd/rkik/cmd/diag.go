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

package cmd

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aguacero7/rkik/clock"
	"github.com/aguacero7/rkik/format"
	"github.com/aguacero7/rkik/monitor"
	"github.com/aguacero7/rkik/probe"
)

type status int

// possible check results
const (
	OK status = iota
	WARN
	FAIL
)

// diagnoser is function that does checks on probe result
type diagnoser func(r *probe.Result) (status, string)

var okString = color.GreenString("[ OK ]")
var warnString = color.YellowString("[WARN]")
var failString = color.RedString("[FAIL]")

var statusToColor = []string{okString, warnString, failString}

// localClockStatus is replaced in tests
var localClockStatus = clock.System{}.Status

// generic function to check value against some thresholds.
// Boundaries are inclusive, the same way plugin mode classifies offsets.
func checkAgainstThreshold(name string, value, warnThreshold, failThreshold float64, explanation string) (status, string) {
	msgTemplate := "%s is %s, we expect it to be within %s%s"
	thresholdStr := color.BlueString("%.1fms", warnThreshold)
	verdict, err := monitor.ClassifyOffset(math.Abs(value), monitor.NewThresholds(warnThreshold, failThreshold))
	if err != nil {
		return FAIL, fmt.Sprintf("%s can't be checked: %v", name, err)
	}
	if verdict == monitor.Critical {
		return FAIL, fmt.Sprintf(
			msgTemplate,
			name,
			color.RedString("%.3fms", value),
			thresholdStr,
			". "+explanation,
		)
	}
	if verdict == monitor.Warning {
		return WARN, fmt.Sprintf(
			msgTemplate,
			name,
			color.YellowString("%.3fms", value),
			thresholdStr,
			". "+explanation,
		)
	}
	return OK, fmt.Sprintf(
		msgTemplate,
		name,
		color.GreenString("%.3fms", value),
		thresholdStr,
		"",
	)
}

func checkOffset(r *probe.Result) (status, string) {
	// A healthy host is within a few ms of a public server.
	const warnThreshold = 10.0
	// If offset is > 1s something is very very wrong
	const failThreshold = 1000.0
	return checkAgainstThreshold(
		"Clock offset",
		r.OffsetMs,
		warnThreshold,
		failThreshold,
		"Offset is the difference between our clock and remote server (time error).",
	)
}

func checkRTT(r *probe.Result) (status, string) {
	const warnThreshold = 100.0
	const failThreshold = 1000.0
	return checkAgainstThreshold(
		"Round trip delay",
		r.RTTMs,
		warnThreshold,
		failThreshold,
		"Offset error can be as large as half of the round trip delay.",
	)
}

func checkStratum(r *probe.Result) (status, string) {
	refid := color.BlueString("%s", r.RefID)
	switch {
	case r.Stratum == 1:
		return OK, fmt.Sprintf("Server is a primary reference (stratum 1, reference %s)", refid)
	case r.Stratum >= 8:
		return WARN, fmt.Sprintf("Server is at stratum %s, far from a reference clock (reference %s)", color.YellowString("%d", r.Stratum), refid)
	}
	return OK, fmt.Sprintf("Server is at stratum %d, synchronized to %s", r.Stratum, refid)
}

func checkLocalClock(_ *probe.Result) (status, string) {
	st, err := localClockStatus()
	if err != nil {
		return WARN, fmt.Sprintf("Can't read local clock status: %v", err)
	}
	if !st.Synchronized {
		return WARN, "Local clock is not synchronized according to the kernel (TIME_ERROR)"
	}
	return OK, fmt.Sprintf("Local clock is synchronized, estimated max error %s", color.BlueString("%s", st.MaxError))
}

var diagnosers = []diagnoser{
	checkOffset,
	checkRTT,
	checkStratum,
	checkLocalClock,
}

// runDiagnosers prints every check and returns the worst status
func runDiagnosers(out io.Writer, r *probe.Result) status {
	worst := OK
	for _, check := range diagnosers {
		status, msg := check(r)
		fmt.Fprintf(out, "%s %s\n", statusToColor[status], msg)
		worst = max(worst, status)
	}
	return worst
}

var diagOpts options

func init() {
	RootCmd.AddCommand(diagCmd)
	addProbeFlags(diagCmd.Flags(), &diagOpts)
}

const diagDesc = "Perform basic NTP diagnosis of a server, report in human-readable form."

var diagCmd = &cobra.Command{
	Use:   "diag TARGET",
	Short: diagDesc,
	Long:  diagDesc + "\nThe server is probed once, then its answer and the local clock are checked.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		diagOpts.bind(cmd)
		ctx, stop := signalContext(cmd)
		defer stop()
		return runDiag(ctx, &diagOpts, args[0], cmd.OutOrStdout())
	},
}

func runDiag(ctx context.Context, o *options, spec string, out io.Writer) error {
	if err := o.validate(); err != nil {
		return err
	}
	client, err := o.client()
	if err != nil {
		return usageErrorf("%v", err)
	}
	r, err := client.Query(ctx, spec)
	outcome := probe.Outcome{Spec: spec, Result: r, Err: err}
	p := &format.Printer{Out: out, Format: format.Text, Verbose: true}
	if perr := p.Cycle([]probe.Outcome{outcome}); perr != nil {
		return perr
	}
	if err != nil {
		return exitCode(errorExitCode(err))
	}
	fmt.Fprintln(out)
	if runDiagnosers(out, r) == FAIL {
		return exitCode(1)
	}
	return nil
}
