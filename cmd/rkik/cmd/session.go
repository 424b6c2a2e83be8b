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
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aguacero7/rkik/exporter"
	"github.com/aguacero7/rkik/format"
	"github.com/aguacero7/rkik/history"
	"github.com/aguacero7/rkik/monitor"
	"github.com/aguacero7/rkik/probe"
	"github.com/aguacero7/rkik/runner"
	"github.com/aguacero7/rkik/stats"
)

// session probes specs, once or continuously, and renders what it gets
type session struct {
	client   *probe.Client
	printer  *format.Printer
	runner   *runner.Runner
	specs    []string
	recorder *history.DB
	exporter *exporter.Exporter
	tracker  *stats.Tracker

	// outcomes of the last emitted cycle
	last []probe.Outcome
	// first failure and whether anything ever succeeded
	firstErr  error
	succeeded bool
}

func newSession(o *options, out io.Writer, specs []string) (*session, error) {
	client, err := o.client()
	if err != nil {
		return nil, err
	}
	f, err := o.outputFormat()
	if err != nil {
		return nil, err
	}
	rc := o.runnerConfig()
	return &session{
		client: client,
		printer: &format.Printer{
			Out:        out,
			Format:     f,
			Verbose:    o.verbose,
			Pretty:     o.pretty,
			Continuous: rc.Continuous(),
		},
		runner:  runner.New(rc),
		specs:   specs,
		tracker: stats.NewTracker(),
	}, nil
}

// attach opens the recorder and starts the metrics endpoint, if asked for.
// The returned function releases them.
func (s *session) attach(ctx context.Context, o *options) (func(), error) {
	closer := func() {}
	if o.record != "" {
		db, err := history.Open(o.record)
		if err != nil {
			return closer, err
		}
		s.recorder = db
		closer = func() {
			if err := db.Close(); err != nil {
				log.Warningf("closing %s: %v", o.record, err)
			}
		}
	}
	if o.metricsAddr != "" {
		s.exporter = exporter.New()
		if _, err := s.exporter.Listen(ctx, o.metricsAddr); err != nil {
			closer()
			return func() {}, err
		}
	}
	return closer, nil
}

func (s *session) cycle(ctx context.Context) ([]probe.Outcome, error) {
	if len(s.specs) == 1 {
		r, err := s.client.Query(ctx, s.specs[0])
		return []probe.Outcome{{Spec: s.specs[0], Result: r, Err: err}}, nil
	}
	return s.client.CompareDetailed(ctx, s.specs), nil
}

func (s *session) emit(ctx context.Context) runner.EmitFunc {
	return func(n int, outcomes []probe.Outcome) error {
		s.last = outcomes
		for _, o := range outcomes {
			if o.Err == nil {
				s.succeeded = true
				continue
			}
			log.Debugf("cycle %d: %s: %v", n, o.Spec, o.Err)
			if s.firstErr == nil {
				s.firstErr = o.Err
			}
		}
		s.tracker.Add(outcomes)
		if s.recorder != nil {
			// a broken recorder must not stop the probing
			if err := s.recorder.Save(context.WithoutCancel(ctx), outcomes); err != nil {
				log.Errorf("recording cycle %d: %v", n, err)
			}
		}
		if s.exporter != nil {
			s.exporter.Observe(outcomes)
		}
		return s.printer.Cycle(outcomes)
	}
}

// run drives the runner and prints the summary of a continuous run.
// It returns the exit code.
func (s *session) run(ctx context.Context) (int, error) {
	if err := s.runner.Run(ctx, s.cycle, s.emit(ctx)); err != nil {
		return 1, err
	}
	if s.runner.Cycles() > 1 {
		if err := s.printer.Summary(s.tracker); err != nil {
			return 1, err
		}
	}
	return s.exitCode(), nil
}

// exitCode of a finished run. A one-shot run reports its first failure,
// a continuous run only fails when nothing ever succeeded.
func (s *session) exitCode() int {
	if s.firstErr == nil {
		return 0
	}
	if s.runner.Config.Continuous() && s.succeeded {
		return 0
	}
	return errorExitCode(s.firstErr)
}

// errorExitCode maps probe errors: DNS 2, network timeout 3, anything else 1
func errorExitCode(err error) int {
	switch {
	case probe.KindOf(err) == probe.KindDNS:
		return 2
	case probe.IsTimeout(err):
		return 3
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return 3
	}
	return 1
}

// runPlugin probes spec once and prints the plugin line, returning the verdict exit code
func runPlugin(ctx context.Context, client *probe.Client, spec string, t monitor.Thresholds, out io.Writer) (int, error) {
	r, probeErr := client.Query(ctx, spec)
	if probeErr != nil {
		log.Debugf("%s: %v", spec, probeErr)
	}
	v, code, err := monitor.Classify(r, probeErr, t)
	if err != nil {
		return code, err
	}
	if probeErr != nil {
		r = nil
	}
	p := &format.Printer{Out: out}
	if err := p.Line(format.PluginLine(v, r, t)); err != nil {
		return monitor.Unknown.ExitCode(), err
	}
	return code, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// probeRun is what ntp and compare commands do
func probeRun(ctx context.Context, o *options, specs []string, out io.Writer) error {
	if err := o.validate(); err != nil {
		return err
	}
	if o.plugin {
		client, err := o.client()
		if err != nil {
			return pluginErrorf("%v", err)
		}
		code, err := runPlugin(ctx, client, specs[0], o.thresholds(), out)
		if err != nil {
			return &ExitError{Code: code, Err: err}
		}
		return exitCode(code)
	}
	s, err := newSession(o, out, specs)
	if err != nil {
		return usageErrorf("%v", err)
	}
	release, err := s.attach(ctx, o)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	defer release()
	code, err := s.run(ctx)
	if err != nil {
		return &ExitError{Code: code, Err: err}
	}
	return exitCode(code)
}
