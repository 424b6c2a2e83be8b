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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aguacero7/rkik/clock"
)

// exit codes of sync failures
const (
	syncPermission  = 12
	syncSystemError = 14
	syncUnsupported = 15
)

var (
	syncOpts   options
	syncDryRun bool

	clockStepper clock.Stepper = clock.System{}
	isRoot                     = clock.IsRoot
)

func init() {
	RootCmd.AddCommand(syncCmd)
	fs := syncCmd.Flags()
	addProbeFlags(fs, &syncOpts)
	addOutputFlags(fs, &syncOpts)
	addLoopFlags(fs, &syncOpts)
	fs.BoolVarP(&syncDryRun, "dry-run", "0", false, "probe and compute the step without touching the clock")
}

var syncCmd = &cobra.Command{
	Use:   "sync TARGET",
	Short: "Step the system clock to the time of an NTP server",
	Long: "Probe TARGET (--count times, offsets are averaged) and step the system clock by the offset.\n" +
		"Big jumps are allowed. Requires root or CAP_SYS_TIME.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		syncOpts.bind(cmd)
		ctx, stop := signalContext(cmd)
		defer stop()
		return runSync(ctx, &syncOpts, args[0], syncDryRun, cmd.OutOrStdout())
	},
}

func runSync(ctx context.Context, o *options, spec string, dryRun bool, out io.Writer) error {
	if o.infinite {
		return usageErrorf("sync cannot be used with --infinite")
	}
	if err := o.validate(); err != nil {
		return err
	}
	s, err := newSession(o, out, []string{spec})
	if err != nil {
		return usageErrorf("%v", err)
	}
	release, err := s.attach(ctx, o)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	defer release()
	if _, err := s.run(ctx); err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	series := s.tracker.Series()
	if len(series) == 0 || series[0].Count == 0 {
		if s.firstErr == nil {
			// interrupted before the first probe
			return &ExitError{Code: 1, Err: errors.New("no probe completed, clock left untouched")}
		}
		return exitCode(errorExitCode(s.firstErr))
	}
	return stepClock(out, series[0].AvgMs(), series[0].Count, dryRun)
}

// stepClock applies offsetMs averaged over samples probes
func stepClock(out io.Writer, offsetMs float64, samples int, dryRun bool) error {
	if dryRun {
		fmt.Fprintln(out, color.YellowString("Sync skipped (dry-run), clock would be stepped by %.3f ms", offsetMs))
		return nil
	}
	if !isRoot() {
		return &ExitError{Code: syncPermission, Err: errors.New("need root or CAP_SYS_TIME")}
	}
	err := clockStepper.Step(time.Duration(offsetMs * float64(time.Millisecond)))
	switch {
	case errors.Is(err, clock.ErrPermission):
		return &ExitError{Code: syncPermission, Err: err}
	case errors.Is(err, clock.ErrNotSupported):
		return &ExitError{Code: syncUnsupported, Err: errors.New("sync not supported on this platform")}
	case err != nil:
		return &ExitError{Code: syncSystemError, Err: err}
	}
	if samples <= 1 {
		fmt.Fprintln(out, color.GreenString("Sync applied"))
	} else {
		fmt.Fprintln(out, color.GreenString("Average offset Sync applied : %.3f ms", offsetMs))
	}
	return nil
}
