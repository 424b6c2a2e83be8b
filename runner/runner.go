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

/*
Package runner repeats a probe cycle a fixed or infinite number of times.
The same cycle function serves one-shot and continuous runs.
*/
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aguacero7/rkik/probe"
	log "github.com/sirupsen/logrus"
)

// State of the runner
type State int32

// Runner states
const (
	Idle State = iota
	Running
	Stopped
	Cancelled
)

var stateToString = map[State]string{
	Idle:      "IDLE",
	Running:   "RUNNING",
	Stopped:   "STOPPED",
	Cancelled: "CANCELLED",
}

func (s State) String() string {
	return stateToString[s]
}

// ErrStarted is returned when Run is called more than once
var ErrStarted = errors.New("runner was already started")

// Config is a runner config structure
type Config struct {
	Count    int
	Infinite bool
	Interval time.Duration
}

// Validate checks if config is valid
func (c *Config) Validate() error {
	if !c.Infinite && c.Count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", c.Count)
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %v", c.Interval)
	}
	return nil
}

// Continuous tells if more than one cycle will run
func (c *Config) Continuous() bool {
	return c.Infinite || c.Count > 1
}

// CycleFunc performs one probe or compare.
// Per-target failures go into outcomes, returned error means the run can't go on.
type CycleFunc func(ctx context.Context) ([]probe.Outcome, error)

// EmitFunc receives outcomes of cycle n (starting at 1)
type EmitFunc func(n int, outcomes []probe.Outcome) error

// Runner drives cycles
type Runner struct {
	Config Config

	state  atomic.Int32
	cycles atomic.Int64
}

// New returns runner with given config
func New(c Config) *Runner {
	return &Runner{Config: c}
}

// State returns current state
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Cycles returns how many cycles were emitted
func (r *Runner) Cycles() int64 {
	return r.cycles.Load()
}

// Run executes cycles until count is reached or ctx is cancelled.
// A cancelled run is not an error: outcomes that completed before cancellation
// are emitted, the ones interrupted by it are dropped, and State becomes Cancelled.
func (r *Runner) Run(ctx context.Context, cycle CycleFunc, emit EmitFunc) error {
	if err := r.Config.Validate(); err != nil {
		return err
	}
	if !r.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return ErrStarted
	}
	for n := 1; r.Config.Infinite || n <= r.Config.Count; n++ {
		if ctx.Err() != nil {
			return r.stop(Cancelled, nil)
		}
		log.Debugf("starting cycle %d", n)
		outcomes, err := cycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return r.stop(Cancelled, nil)
			}
			return r.stop(Stopped, fmt.Errorf("cycle %d: %w", n, err))
		}
		cancelled := ctx.Err() != nil
		if cancelled {
			outcomes = dropCancelled(outcomes)
		}
		if !cancelled || len(outcomes) > 0 {
			r.cycles.Add(1)
			if err := emit(n, outcomes); err != nil {
				return r.stop(Stopped, err)
			}
		}
		if cancelled {
			return r.stop(Cancelled, nil)
		}
		if !r.Config.Infinite && n == r.Config.Count {
			break
		}
		if !sleep(ctx, r.Config.Interval) {
			return r.stop(Cancelled, nil)
		}
	}
	return r.stop(Stopped, nil)
}

func (r *Runner) stop(s State, err error) error {
	r.state.Store(int32(s))
	log.Debugf("runner %s after %d cycles", s, r.Cycles())
	return err
}

// sleep waits for d, returns false if ctx was cancelled first
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// dropCancelled removes outcomes which failed only because the run was interrupted
func dropCancelled(outcomes []probe.Outcome) []probe.Outcome {
	kept := make([]probe.Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil && errors.Is(o.Err, context.Canceled) {
			continue
		}
		kept = append(kept, o)
	}
	return kept
}
