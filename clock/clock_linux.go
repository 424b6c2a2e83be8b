//go:build linux && (amd64 || arm64 || ppc64le || riscv64 || s390x || loong64)

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

package clock

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// PPBToTimexPPM is what we use to conver PPB to PPM.
// man clock_adjtime(2):
// In struct timex, freq, ppsfreq, and stabil are ppm (parts per million) with a 16-bit fractional part.
const PPBToTimexPPM = 65.536

// clock_adjtime modes from usr/include/linux/timex.h
const (
	// add 'time' to current time
	AdjSetOffset uint32 = 0x0100
	// select nanosecond resolution
	AdjNano uint32 = 0x2000
)

// timexForStep builds the timex for an ADJ_SETOFFSET call.
// The value of a timeval is the sum of its fields, but the
// field tv_usec (nanoseconds with ADJ_NANO) must always be non-negative.
func timexForStep(offset time.Duration) *unix.Timex {
	tx := &unix.Timex{Modes: AdjSetOffset | AdjNano}
	sec := int64(offset / time.Second)
	nsec := int64(offset % time.Second)
	if nsec < 0 {
		sec--
		nsec += int64(time.Second)
	}
	tx.Time.Sec = sec
	tx.Time.Usec = nsec
	return tx
}

func step(offset time.Duration) error {
	if _, err := unix.ClockAdjtime(unix.CLOCK_REALTIME, timexForStep(offset)); err != nil {
		if errors.Is(err, unix.EPERM) {
			return fmt.Errorf("%w: %w", ErrPermission, err)
		}
		return fmt.Errorf("clock_adjtime: %w", err)
	}
	return nil
}

func status() (Status, error) {
	tx := &unix.Timex{}
	state, err := unix.ClockAdjtime(unix.CLOCK_REALTIME, tx)
	if err != nil {
		return Status{}, fmt.Errorf("clock_adjtime: %w", err)
	}
	return Status{
		Synchronized: state != unix.TIME_ERROR,
		// man(2) clock_adjtime
		FreqPPB:  float64(tx.Freq) / PPBToTimexPPM,
		MaxError: time.Duration(tx.Maxerror) * time.Microsecond,
	}, nil
}
