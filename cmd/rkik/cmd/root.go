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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RootCmd is a main entry point. It's exported so rkik could be easily extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:           "rkik",
	Short:         "Query and compare NTP servers",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return ConfigureLogging()
	},
}

// flags
var (
	rootLogLevel    string
	rootLogFile     string
	rootLogMaxMB    int
	rootLogMaxFiles int
	rootNoColor     bool
)

func init() {
	RootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "warning", "log level: debug, info, warning, error")
	RootCmd.PersistentFlags().StringVar(&rootLogFile, "log-file", "", "write logs to this file instead of stderr, rotating it")
	RootCmd.PersistentFlags().IntVar(&rootLogMaxMB, "log-max-mb", 10, "rotate log file after this many megabytes")
	RootCmd.PersistentFlags().IntVar(&rootLogMaxFiles, "log-max-files", 3, "number of rotated log files to keep")
	RootCmd.PersistentFlags().BoolVar(&rootNoColor, "no-color", false, "disable colored output")
}

// ConfigureLogging configures logging and colors based on parsed flags. Needs to be called by any subcommand.
func ConfigureLogging() error {
	level, err := log.ParseLevel(rootLogLevel)
	if err != nil {
		return usageErrorf("invalid --log-level: %v", err)
	}
	log.SetLevel(level)
	if rootLogFile != "" {
		log.SetFormatter(&log.JSONFormatter{})
		log.SetOutput(&lumberjack.Logger{
			Filename:   rootLogFile,
			MaxSize:    rootLogMaxMB,
			MaxBackups: rootLogMaxFiles,
		})
	}
	if rootNoColor || os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
	return nil
}

// ExitError carries the process exit code out of a command
type ExitError struct {
	Code int
	// Err is printed to stderr when set
	Err error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCode 0 is a nil error
func exitCode(code int) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}

// usage errors exit with 2, like the flag parser does
func usageErrorf(format string, args ...any) error {
	return &ExitError{Code: 2, Err: fmt.Errorf(format, args...)}
}

// codeFor maps an error returned by a command to the process exit code
func codeFor(stderr io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(stderr, color.RedString("Error: %v", exitErr.Err))
		}
		return exitErr.Code
	}
	// cobra argument and flag errors
	fmt.Fprintln(stderr, color.RedString("Error: %v", err))
	return 2
}

// Execute is the main entry point for CLI interface
func Execute() {
	os.Exit(codeFor(os.Stderr, RootCmd.Execute()))
}
