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

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// PacketSizeBytes sets the size of NTP packet
const PacketSizeBytes = 48

// Packet is an NTPv4 packet
/*
http://seriot.ch/ntp.php
https://tools.ietf.org/html/rfc958
   0                   1                   2                   3
   0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
0 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |LI | VN  |Mode |    Stratum     |     Poll      |  Precision   |
4 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                         Root Delay                            |
8 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                         Root Dispersion                       |
12+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                          Reference ID                         |
16+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                     Reference Timestamp (64)                  +
  |                                                               |
24+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Origin Timestamp (64)                    +
  |                                                               |
32+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Receive Timestamp (64)                   +
  |                                                               |
40+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Transmit Timestamp (64)                  +
  |                                                               |
48+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

 0 1 2 3 4 5 6 7
+-+-+-+-+-+-+-+-+
|LI | VN  |Mode |
+-+-+-+-+-+-+-+-+
 0 0 1 0 0 0 1 1

Setting = LI | VN  |Mode. Client request example:
00 100 011 (or 0x23)
|  |   +-- client mode (3)
|  + ----- version (4)
+ -------- leap year indicator, 0 no warning
*/
type Packet struct {
	Settings       uint8  // leap year indicator, version number and mode
	Stratum        uint8  // stratum
	Poll           int8   // poll. Power of 2
	Precision      int8   // precision. Power of 2
	RootDelay      uint32 // total delay to the reference clock
	RootDispersion uint32 // total dispersion to the reference clock
	ReferenceID    uint32 // identifier of server or a reference clock
	RefTimeSec     uint32 // last time local clock was updated sec
	RefTimeFrac    uint32 // last time local clock was updated frac
	OrigTimeSec    uint32 // client time sec
	OrigTimeFrac   uint32 // client time frac
	RxTimeSec      uint32 // receive time sec
	RxTimeFrac     uint32 // receive time frac
	TxTimeSec      uint32 // transmit time sec
	TxTimeFrac     uint32 // transmit time frac
}

const (
	liNoWarning      = 0
	liAlarmCondition = 3
	vnFirst          = 1
	vnLast           = 4
	modeClient       = 3
	modeServer       = 4
	maxStratum       = 15
)

// DefaultVersion is the protocol version we put into requests
const DefaultVersion = 4

// Errors returned by ValidateResponse
var (
	ErrShortPacket    = errors.New("packet is too short")
	ErrBadMode        = errors.New("unexpected mode")
	ErrBadVersion     = errors.New("unsupported version")
	ErrBadStratum     = errors.New("invalid stratum")
	ErrUnsynchronized = errors.New("server clock is not synchronized")
	ErrZeroTransmit   = errors.New("server transmit timestamp is zero")
)

// KissOfDeathError is returned when server replies with stratum 0
type KissOfDeathError struct {
	Code string
}

func (e *KissOfDeathError) Error() string {
	return fmt.Sprintf("kiss of death received: %q", e.Code)
}

// NewRequest creates client request with transmit timestamp set to t
func NewRequest(t time.Time, version uint8) *Packet {
	if version < vnFirst || version > vnLast {
		version = DefaultVersion
	}
	sec, frac := Time(t)
	return &Packet{
		Settings:   liNoWarning<<6 | version<<3 | modeClient,
		TxTimeSec:  sec,
		TxTimeFrac: frac,
	}
}

// Leap returns leap indicator
func (p *Packet) Leap() uint8 {
	return p.Settings >> 6
}

// Version returns version number
func (p *Packet) Version() uint8 {
	return (p.Settings >> 3) & 0x7
}

// Mode returns association mode
func (p *Packet) Mode() uint8 {
	return p.Settings & 0x7
}

// ValidSettingsFormat verifies that LI | VN  |Mode fields are set correctly
// for a client request:
// LN:must be 0 or 3
// VN:must be 1,2,3 or 4
// Mode:must be 3
func (p *Packet) ValidSettingsFormat() bool {
	l := p.Leap()
	v := p.Version()
	if l != liNoWarning && l != liAlarmCondition {
		return false
	}
	return v >= vnFirst && v <= vnLast && p.Mode() == modeClient
}

// ValidateResponse checks that server reply is usable for time measurement
func ValidateResponse(p *Packet) error {
	if p.Mode() != modeServer {
		return fmt.Errorf("%w %d", ErrBadMode, p.Mode())
	}
	if v := p.Version(); v < vnFirst || v > vnLast {
		return fmt.Errorf("%w %d", ErrBadVersion, v)
	}
	if p.Stratum == 0 {
		return &KissOfDeathError{Code: RefIDString(0, p.ReferenceID)}
	}
	if p.Stratum > maxStratum {
		return fmt.Errorf("%w %d", ErrBadStratum, p.Stratum)
	}
	if p.Leap() == liAlarmCondition {
		return ErrUnsynchronized
	}
	if p.TxTimeSec == 0 && p.TxTimeFrac == 0 {
		return ErrZeroTransmit
	}
	return nil
}

// OriginMatches tells if response is a reply to the request
func (p *Packet) OriginMatches(request *Packet) bool {
	return p.OrigTimeSec == request.TxTimeSec && p.OrigTimeFrac == request.TxTimeFrac
}

// Bytes converts Packet to []bytes
func (p *Packet) Bytes() ([]byte, error) {
	var bytes bytes.Buffer
	err := binary.Write(&bytes, binary.BigEndian, p)
	return bytes.Bytes(), err
}

// BytesToPacket converts []bytes to Packet
func BytesToPacket(ntpPacketBytes []byte) (*Packet, error) {
	packet := &Packet{}
	if len(ntpPacketBytes) < PacketSizeBytes {
		return packet, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(ntpPacketBytes))
	}
	reader := bytes.NewReader(ntpPacketBytes)
	err := binary.Read(reader, binary.BigEndian, packet)
	return packet, err
}
