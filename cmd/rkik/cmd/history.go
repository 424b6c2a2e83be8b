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
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aguacero7/rkik/config"
	"github.com/aguacero7/rkik/format"
	"github.com/aguacero7/rkik/history"
)

var (
	historyDB     string
	historySince  time.Duration
	historyFormat string
)

func init() {
	RootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyDB, "db", "", "database written by --record, history.db next to the config file by default")
	historyCmd.Flags().DurationVar(&historySince, "since", 24*time.Hour, "summarize probes recorded during this period, 0 for all")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", string(format.Text), "output format: text or json")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Summarize recorded probes per target",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := historyDB
		if path == "" {
			cfg, err := config.DefaultPath()
			if err != nil {
				return err
			}
			path = filepath.Join(filepath.Dir(cfg), "history.db")
		}
		f, err := format.ParseFormat(historyFormat)
		if err != nil {
			return usageErrorf("%v", err)
		}
		return runHistory(cmd.Context(), path, historySince, f, cmd.OutOrStdout())
	},
}

func runHistory(ctx context.Context, path string, since time.Duration, f format.Format, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := history.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	var from time.Time
	if since > 0 {
		from = time.Now().Add(-since)
	}
	summaries, err := db.Summaries(ctx, from)
	if err != nil {
		return err
	}
	p := &format.Printer{Out: out, Format: f}
	return p.History(summaries)
}
