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
Package clock steps and inspects the local realtime clock through the CLOCK_ADJTIME syscall.
*/
package clock

import (
	"errors"
	"os"
	"time"
)

// ErrNotSupported is returned on platforms where the clock can't be stepped
var ErrNotSupported = errors.New("clock adjustment is not supported on this platform")

// ErrPermission is returned when the process lacks the privileges to adjust the clock
var ErrPermission = errors.New("adjusting the clock requires root privileges")

// Status of the local clock as seen by the kernel
type Status struct {
	// Synchronized is false when the kernel reports TIME_ERROR
	Synchronized bool
	FreqPPB      float64
	MaxError     time.Duration
}

// Stepper steps a clock by the given offset
type Stepper interface {
	Step(offset time.Duration) error
}

// System is the realtime system clock
type System struct{}

// Step adds offset to the current time
func (System) Step(offset time.Duration) error {
	return step(offset)
}

// Status reads the current clock status
func (System) Status() (Status, error) {
	return status()
}

// IsRoot tells if we run with effective uid 0
func IsRoot() bool {
	return os.Geteuid() == 0
}
