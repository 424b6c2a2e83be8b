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
Package monitor classifies probe results against warning and critical
offset thresholds, producing monitoring plugin states and exit codes.
*/
package monitor

import (
	"fmt"
	"math"

	"github.com/aguacero7/rkik/probe"
)

// Verdict is a monitoring plugin state
type Verdict int

// Plugin states. Values are process exit codes.
const (
	OK Verdict = iota
	Warning
	Critical
	Unknown
)

var verdictToString = map[Verdict]string{
	OK:       "OK",
	Warning:  "WARNING",
	Critical: "CRITICAL",
	Unknown:  "UNKNOWN",
}

func (v Verdict) String() string {
	return verdictToString[v]
}

// ExitCode returns process exit code for the state
func (v Verdict) ExitCode() int {
	return int(v)
}

// ConfigError means thresholds make no sense, it is not a probe outcome
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "invalid thresholds: " + e.Msg
}

// Thresholds on absolute offset in milliseconds. nil means not set.
type Thresholds struct {
	Warning  *float64
	Critical *float64
}

// NewThresholds builds Thresholds from plain values
func NewThresholds(warning, critical float64) Thresholds {
	return Thresholds{Warning: &warning, Critical: &critical}
}

// Validate checks thresholds are non negative and warning is below critical
func (t Thresholds) Validate() error {
	if err := checkThreshold("warning", t.Warning); err != nil {
		return err
	}
	if err := checkThreshold("critical", t.Critical); err != nil {
		return err
	}
	if t.Warning != nil && t.Critical != nil && *t.Warning >= *t.Critical {
		return &ConfigError{Msg: fmt.Sprintf("warning (%v) must be lower than critical (%v)", *t.Warning, *t.Critical)}
	}
	return nil
}

func checkThreshold(name string, v *float64) error {
	if v != nil && (math.IsNaN(*v) || *v < 0) {
		return &ConfigError{Msg: fmt.Sprintf("%s must be a non-negative number, got %v", name, *v)}
	}
	return nil
}

// ClassifyOffset maps absolute offset to a state. Both boundaries are inclusive.
func ClassifyOffset(absOffsetMs float64, t Thresholds) (Verdict, error) {
	if err := t.Validate(); err != nil {
		return Unknown, err
	}
	switch {
	case t.Critical != nil && absOffsetMs >= *t.Critical:
		return Critical, nil
	case t.Warning != nil && absOffsetMs >= *t.Warning:
		return Warning, nil
	default:
		return OK, nil
	}
}

// Classify turns a probe outcome into state and exit code.
// A failed probe is UNKNOWN whatever the thresholds are;
// otherwise invalid thresholds yield *ConfigError.
func Classify(result *probe.Result, probeErr error, t Thresholds) (Verdict, int, error) {
	if probeErr != nil || result == nil {
		return Unknown, Unknown.ExitCode(), nil
	}
	v, err := ClassifyOffset(math.Abs(result.OffsetMs), t)
	if err != nil {
		return Unknown, Unknown.ExitCode(), err
	}
	return v, v.ExitCode(), nil
}
