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
	"github.com/spf13/cobra"
)

var compareOpts options

func init() {
	RootCmd.AddCommand(compareCmd)
	fs := compareCmd.Flags()
	addProbeFlags(fs, &compareOpts)
	addOutputFlags(fs, &compareOpts)
	addLoopFlags(fs, &compareOpts)
}

var compareCmd = &cobra.Command{
	Use:   "compare TARGET TARGET...",
	Short: "Query several NTP servers concurrently and compare them",
	Long: "Query several NTP servers concurrently and report the drift between them.\n" +
		"A server failing doesn't hide the others, it is reported next to them.",
	Example: "  rkik compare time.google.com time.cloudflare.com\n" +
		"  rkik compare 0.pool.ntp.org 1.pool.ntp.org 2.pool.ntp.org --infinite --record probes.db",
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		compareOpts.bind(cmd)
		ctx, stop := signalContext(cmd)
		defer stop()
		return probeRun(ctx, &compareOpts, args, cmd.OutOrStdout())
	},
}
