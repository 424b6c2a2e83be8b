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
	"os"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aguacero7/rkik/config"
)

func init() {
	RootCmd.AddCommand(presetCmd)
	presetCmd.AddCommand(presetListCmd, presetAddCmd, presetRemoveCmd, presetShowCmd, presetRunCmd)
}

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage named command lines",
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(false, func(s *config.Store) error {
			names := s.PresetNames()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no presets)")
				return nil
			}
			for _, name := range names {
				p, _ := s.Preset(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, strings.Join(p.Args, " "))
			}
			return nil
		})
	},
}

var presetAddCmd = &cobra.Command{
	Use:   "add NAME ARGS...",
	Short: "Store a preset, ARGS are passed to rkik as is",
	Example: "  rkik preset add lab compare ntp1.lab ntp2.lab --json\n" +
		"  rkik preset run lab",
	// everything after NAME belongs to the preset, including flags
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 2 {
			return usageErrorf("usage: rkik preset add NAME ARGS...")
		}
		return withStore(true, func(s *config.Store) error {
			if err := s.AddPreset(args[0], args[1:]); err != nil {
				return usageErrorf("%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Preset '%s' stored\n", args[0])
			return nil
		})
	},
}

var presetRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(true, func(s *config.Store) error {
			if !s.RemovePreset(args[0]) {
				return &ExitError{Code: 1, Err: fmt.Errorf("preset '%s' not found", args[0])}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed preset '%s'\n", args[0])
			return nil
		})
	},
}

var presetShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print arguments of a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(false, func(s *config.Store) error {
			p, ok := s.Preset(args[0])
			if !ok {
				return &ExitError{Code: 1, Err: fmt.Errorf("preset '%s' not found", args[0])}
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(p.Args, " "))
			return nil
		})
	},
}

var presetRunCmd = &cobra.Command{
	Use:   "run NAME",
	Short: "Run rkik with the arguments of a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.LoadDefault()
		if err != nil {
			return err
		}
		p, ok := s.Preset(args[0])
		if !ok {
			return &ExitError{Code: 1, Err: fmt.Errorf("preset '%s' not found", args[0])}
		}
		ctx, stop := signalContext(cmd)
		defer stop()
		return runPreset(ctx, p)
	},
}

// runPreset executes the current binary with preset arguments and exits with its code
func runPreset(ctx context.Context, p config.Preset) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	log.Debugf("running %s %s", exe, strings.Join(p.Args, " "))
	c := exec.CommandContext(ctx, exe, p.Args...)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	// the child sees the same signals, let it finish on its own
	c.Cancel = func() error { return nil }
	err = c.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitCode(exitErr.ExitCode())
	}
	return err
}
