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

package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/aguacero7/rkik/dscp"
	ntp "github.com/aguacero7/rkik/ntp/protocol"
)

// NTPProber does a plain (unauthenticated) SNTP exchange over UDP
type NTPProber struct {
	// LocalAddr is the source address, any if nil
	LocalAddr net.IP
	// DSCP marks requests when non zero
	DSCP int
	// Version is NTP version put into requests, 4 if zero
	Version uint8

	now func() time.Time
}

func (p *NTPProber) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

// Probe implements Prober
func (p *NTPProber) Probe(ctx context.Context, target Target, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &net.Dialer{}
	if p.LocalAddr != nil {
		dialer.LocalAddr = &net.UDPAddr{IP: p.LocalAddr}
	}
	conn, err := dialer.DialContext(ctx, "udp", target.Addr())
	if err != nil {
		if ctx.Err() != nil {
			return nil, exchangeError(ctx, "connecting", err)
		}
		return nil, newError(KindIO, fmt.Sprintf("opening socket to %s", target.Addr()), err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, newError(KindIO, "setting deadline", err)
	}
	// unblock pending read as soon as the caller gives up
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if p.DSCP != 0 {
		if err := dscp.Enable(conn, target.IP, p.DSCP); err != nil {
			return nil, newError(KindIO, "marking socket", err)
		}
	}

	request := ntp.NewRequest(p.clock(), p.Version)
	b, err := request.Bytes()
	if err != nil {
		return nil, newError(KindOther, "encoding request", err)
	}
	// T1 as it is on the wire
	clientTransmitTime := ntp.Unix(request.TxTimeSec, request.TxTimeFrac)
	if _, err := conn.Write(b); err != nil {
		return nil, exchangeError(ctx, fmt.Sprintf("sending request to %s", target.Addr()), err)
	}

	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		clientReceiveTime := p.clock()
		if err != nil {
			return nil, exchangeError(ctx, fmt.Sprintf("reading response from %s", target.Addr()), err)
		}
		response, err := ntp.BytesToPacket(buf[:n])
		if err != nil {
			return nil, newError(KindProtocol, fmt.Sprintf("malformed response from %s", target.Addr()), err)
		}
		// late reply to somebody else's request
		if !response.OriginMatches(request) {
			continue
		}
		if err := ntp.ValidateResponse(response); err != nil {
			return nil, newError(KindProtocol, fmt.Sprintf("bad response from %s", target.Addr()), err)
		}
		serverReceiveTime := ntp.Unix(response.RxTimeSec, response.RxTimeFrac)
		serverTransmitTime := ntp.Unix(response.TxTimeSec, response.TxTimeFrac)
		return newResult(target, response, clientTransmitTime, serverReceiveTime, serverTransmitTime, clientReceiveTime)
	}
}

func newResult(target Target, response *ntp.Packet, t1, t2, t3, t4 time.Time) (*Result, error) {
	rtt := ntp.DelayMs(t1, t2, t3, t4)
	if rtt < 0 {
		return nil, newError(KindProtocol, fmt.Sprintf("negative round trip delay %.3fms from %s", rtt, target.Addr()), nil)
	}
	offset := ntp.Offset(t1, t2, t3, t4)
	utc := ntp.CorrectTime(t4, offset).UTC()
	return &Result{
		Target:    target,
		OffsetMs:  ntp.OffsetMs(t1, t2, t3, t4),
		RTTMs:     rtt,
		Stratum:   response.Stratum,
		RefID:     ntp.RefIDString(response.Stratum, response.ReferenceID),
		UTC:       utc,
		Local:     utc.Local(),
		Timestamp: utc.Unix(),
	}, nil
}

// exchangeError classifies a failed read or write
func exchangeError(ctx context.Context, msg string, err error) *Error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return newError(KindNetwork, msg+": probe cancelled", context.Canceled)
	}
	return networkError(msg, err)
}
