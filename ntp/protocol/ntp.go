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
Package protocol implements the NTP packet and basic functions to work with it.
It provides quick and transparent translation between 48 bytes and
simply accessible struct, plus the clock offset and delay math of RFC 5905.
*/
package protocol

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// NanosecondsToUnix is the difference between NTP and Unix epoch in NS
const NanosecondsToUnix = int64(2208988800000000000)

// Time is converting Unix time to sec and frac NTP format
func Time(t time.Time) (seconds uint32, fractions uint32) {
	nsec := t.UnixNano() + NanosecondsToUnix
	sec := nsec / time.Second.Nanoseconds()
	return uint32(sec), uint32((nsec - sec*time.Second.Nanoseconds()) << 32 / time.Second.Nanoseconds())
}

// Unix is converting NTP seconds and fractions into Unix time
func Unix(seconds, fractions uint32) time.Time {
	secs := int64(seconds) - NanosecondsToUnix/time.Second.Nanoseconds()
	nanos := (int64(fractions) * time.Second.Nanoseconds()) >> 32 // convert fractional to nanos
	return time.Unix(secs, nanos)
}

// Offset returns the clock offset of the server relative to the client:
// ((T2 - T1) + (T3 - T4)) / 2
func Offset(clientTransmitTime, serverReceiveTime, serverTransmitTime, clientReceiveTime time.Time) time.Duration {
	forwardPath := serverReceiveTime.Sub(clientTransmitTime)
	returnPath := serverTransmitTime.Sub(clientReceiveTime)
	return (forwardPath + returnPath) / 2
}

// RoundTripDelay returns the network delay of the exchange:
// (T4 - T1) - (T3 - T2)
func RoundTripDelay(clientTransmitTime, serverReceiveTime, serverTransmitTime, clientReceiveTime time.Time) time.Duration {
	return clientReceiveTime.Sub(clientTransmitTime) - serverTransmitTime.Sub(serverReceiveTime)
}

// OffsetMs is Offset in fractional milliseconds
func OffsetMs(clientTransmitTime, serverReceiveTime, serverTransmitTime, clientReceiveTime time.Time) float64 {
	forwardPath := float64(serverReceiveTime.Sub(clientTransmitTime).Nanoseconds())
	returnPath := float64(serverTransmitTime.Sub(clientReceiveTime).Nanoseconds())
	return (forwardPath + returnPath) / 2 / float64(time.Millisecond)
}

// DelayMs is RoundTripDelay in fractional milliseconds
func DelayMs(clientTransmitTime, serverReceiveTime, serverTransmitTime, clientReceiveTime time.Time) float64 {
	return float64(RoundTripDelay(clientTransmitTime, serverReceiveTime, serverTransmitTime, clientReceiveTime).Nanoseconds()) / float64(time.Millisecond)
}

// CorrectTime returns "true" time at the moment local time was taken
func CorrectTime(localTime time.Time, offset time.Duration) time.Time {
	return localTime.Add(offset)
}

// RefidAsHEX prints ref id as hex
func RefidAsHEX(refID uint32) string {
	return fmt.Sprintf("%08X", refID)
}

// RefIDString renders the reference identifier the way ntpq does.
// Primary servers (and kiss codes) carry ASCII, everybody else the IPv4 address of the upstream.
func RefIDString(stratum uint8, refID uint32) string {
	if stratum > 1 {
		return net.IPv4(byte(refID>>24), byte(refID>>16), byte(refID>>8), byte(refID)).String()
	}
	result := []rune{}
	for i := range 4 {
		c := rune((refID >> (24 - uint(i)*8)) & 0xff)
		if c == 0 {
			continue
		}
		if !strconv.IsPrint(c) {
			return RefidAsHEX(refID)
		}
		result = append(result, c)
	}
	return string(result)
}
