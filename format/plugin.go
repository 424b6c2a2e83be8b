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

package format

import (
	"fmt"
	"strconv"

	"github.com/aguacero7/rkik/monitor"
	"github.com/aguacero7/rkik/probe"
)

func threshold(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// PluginLine renders Nagios/Centreon compatible status line with perfdata.
// A nil result renders the UNKNOWN form with empty measurements.
func PluginLine(v monitor.Verdict, r *probe.Result, t monitor.Thresholds) string {
	warn, crit := threshold(t.Warning), threshold(t.Critical)
	if r == nil {
		return fmt.Sprintf("RKIK UNKNOWN - request failed | offset_ms=;%s;%s;0; rtt_ms=;;;0;", warn, crit)
	}
	return fmt.Sprintf("RKIK %s - offset %.3fms rtt %.3fms from %s (%s) | offset_ms=%.3fms;%s;%s;0; rtt_ms=%.3fms;;;0;",
		v, r.OffsetMs, r.RTTMs, r.Target.Name, r.Target.IP, r.OffsetMs, warn, crit, r.RTTMs)
}
