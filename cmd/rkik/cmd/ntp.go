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

var ntpOpts options

func init() {
	RootCmd.AddCommand(ntpCmd)
	fs := ntpCmd.Flags()
	addProbeFlags(fs, &ntpOpts)
	addOutputFlags(fs, &ntpOpts)
	addLoopFlags(fs, &ntpOpts)
	addPluginFlags(fs, &ntpOpts)
}

var ntpCmd = &cobra.Command{
	Use:   "ntp TARGET",
	Short: "Query one NTP server",
	Long: "Query one NTP server and print its offset relative to the local clock.\n" +
		"TARGET is a hostname or IP address with an optional port: host, host:port, [v6addr]:port.",
	Example: "  rkik ntp time.cloudflare.com\n" +
		"  rkik ntp pool.ntp.org -c 10 -i 0.5\n" +
		"  rkik ntp time.google.com --plugin --warning 100 --critical 500",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ntpOpts.bind(cmd)
		ctx, stop := signalContext(cmd)
		defer stop()
		return probeRun(ctx, &ntpOpts, args, cmd.OutOrStdout())
	},
}
