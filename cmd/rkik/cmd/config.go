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
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aguacero7/rkik/config"
)

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd, configListCmd, configGetCmd, configSetCmd, configClearCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage persistent defaults",
	Long: fmt.Sprintf("Manage defaults applied to flags which are not given explicitly.\n"+
		"They are stored in %s, the directory can be changed with %s.", config.FileName, config.EnvDir),
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print path of the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := config.DefaultPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print all defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(false, func(s *config.Store) error {
			return printLines(cmd.OutOrStdout(), s.List())
		})
	},
}

var configGetCmd = &cobra.Command{
	Use:       "get KEY",
	Short:     "Print one default",
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.Keys,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(false, func(s *config.Store) error {
			v, err := s.Get(args[0])
			if err != nil {
				return usageErrorf("%v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set KEY VALUE",
	Short:     "Store one default",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.Keys,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(true, func(s *config.Store) error {
			if err := s.Set(args[0], args[1]); err != nil {
				return usageErrorf("%v", err)
			}
			v, _ := s.Get(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], v)
			return nil
		})
	},
}

var configClearCmd = &cobra.Command{
	Use:       "clear KEY",
	Short:     "Remove one default",
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.Keys,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(true, func(s *config.Store) error {
			if err := s.Clear(args[0]); err != nil {
				return usageErrorf("%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], config.Unset)
			return nil
		})
	},
}

// withStore loads the config store, runs f and saves the store if asked to
func withStore(save bool, f func(s *config.Store) error) error {
	s, err := config.LoadDefault()
	if err != nil {
		return err
	}
	if err := f(s); err != nil {
		return err
	}
	if save {
		return s.Save()
	}
	return nil
}

func printLines(out io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(out, l); err != nil {
			return err
		}
	}
	return nil
}
