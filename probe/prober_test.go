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
	"net"
	"testing"
	"time"

	ntp "github.com/aguacero7/rkik/ntp/protocol"
	"github.com/aguacero7/rkik/ntp/responder"
	"github.com/stretchr/testify/require"
)

var responderConfigInSync = responder.Config{Stratum: 1, RefID: "LOCL"}

// startResponder runs an NTP server on loopback until the test ends
func startResponder(t *testing.T, c responder.Config) Target {
	ctx, cancel := context.WithCancel(context.Background())
	s := responder.New(c)
	require.NoError(t, s.Listen("127.0.0.1:0"))
	s.Start(ctx)
	t.Cleanup(func() {
		cancel()
		s.Wait()
	})
	return Target{Name: "local", IP: net.ParseIP("127.0.0.1"), Port: s.Port()}
}

func TestNTPProberOffset(t *testing.T) {
	testCases := []struct {
		name string
		skew time.Duration
	}{
		{name: "in sync", skew: 0},
		{name: "server ahead", skew: 1500 * time.Millisecond},
		{name: "server behind", skew: -time.Hour},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			target := startResponder(t, responder.Config{Skew: tc.skew, Stratum: 2, RefID: "\xc0\x00\x02\x01"})
			p := &NTPProber{}
			res, err := p.Probe(context.Background(), target, time.Second)
			require.NoError(t, err)
			require.Equal(t, target, res.Target)
			require.InDelta(t, float64(tc.skew)/float64(time.Millisecond), res.OffsetMs, 50)
			require.GreaterOrEqual(t, res.RTTMs, 0.0)
			require.Equal(t, uint8(2), res.Stratum)
			require.Equal(t, "192.0.2.1", res.RefID)
			require.Equal(t, time.UTC, res.UTC.Location())
			require.Equal(t, res.UTC.Unix(), res.Timestamp)
			require.True(t, res.UTC.Equal(res.Local), "local %v is not utc %v", res.Local, res.UTC)
			require.Equal(t, time.Local, res.Local.Location())
			require.False(t, res.Authenticated)
		})
	}
}

func TestNTPProberPrimaryRefID(t *testing.T) {
	target := startResponder(t, responder.Config{Stratum: 1, RefID: "GPS"})
	res, err := (&NTPProber{Version: 3}).Probe(context.Background(), target, time.Second)
	require.NoError(t, err)
	require.Equal(t, "GPS", res.RefID)
}

func TestNTPProberDelayIsMeasured(t *testing.T) {
	target := startResponder(t, responder.Config{Delay: 30 * time.Millisecond})
	res, err := (&NTPProber{}).Probe(context.Background(), target, time.Second)
	require.NoError(t, err)
	// server holds the request between receive and transmit stamps, so it does not count as network delay
	require.Less(t, res.RTTMs, 30.0)
}

func TestNTPProberKissOfDeath(t *testing.T) {
	target := startResponder(t, responder.Config{KissCode: "RATE"})
	_, err := (&NTPProber{}).Probe(context.Background(), target, time.Second)
	require.Error(t, err)
	require.Equal(t, KindProtocol, KindOf(err))
	var kod *ntp.KissOfDeathError
	require.ErrorAs(t, err, &kod)
	require.Equal(t, "RATE", kod.Code)
}

func TestNTPProberBadResponses(t *testing.T) {
	testCases := []struct {
		name   string
		mangle func(p *ntp.Packet)
	}{
		{name: "client mode", mangle: func(p *ntp.Packet) { p.Settings = 0x23 }},
		{name: "unsynchronized", mangle: func(p *ntp.Packet) { p.Settings |= 0xc0 }},
		{name: "stratum 16", mangle: func(p *ntp.Packet) { p.Stratum = 16 }},
		{name: "negative delay", mangle: func(p *ntp.Packet) { p.TxTimeSec += 10 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			target := startResponder(t, responder.Config{Mangle: tc.mangle})
			_, err := (&NTPProber{}).Probe(context.Background(), target, time.Second)
			require.Error(t, err)
			require.Equal(t, KindProtocol, KindOf(err))
			require.False(t, IsTimeout(err))
		})
	}
}

func TestNTPProberIgnoresStaleReplies(t *testing.T) {
	target := startResponder(t, responder.Config{Mangle: func(p *ntp.Packet) { p.OrigTimeFrac++ }})
	_, err := (&NTPProber{}).Probe(context.Background(), target, 200*time.Millisecond)
	require.Error(t, err)
	require.Equal(t, KindNetwork, KindOf(err))
	require.True(t, IsTimeout(err))
}

func TestNTPProberTimeout(t *testing.T) {
	target := startResponder(t, responder.Config{Silent: true})
	start := time.Now()
	_, err := (&NTPProber{}).Probe(context.Background(), target, 200*time.Millisecond)
	require.Error(t, err)
	require.Equal(t, KindNetwork, KindOf(err))
	require.True(t, IsTimeout(err))
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestNTPProberCancel(t *testing.T) {
	target := startResponder(t, responder.Config{Silent: true})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	start := time.Now()
	_, err := (&NTPProber{}).Probe(ctx, target, 5*time.Second)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, KindNetwork, KindOf(err))
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestNTPProberClosedPort(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()

	target := Target{Name: "closed", IP: net.ParseIP("127.0.0.1"), Port: uint16(port)}
	_, err = (&NTPProber{}).Probe(context.Background(), target, 300*time.Millisecond)
	require.Error(t, err)
	require.Equal(t, KindNetwork, KindOf(err))
}

func TestNTPProberBadLocalAddr(t *testing.T) {
	target := Target{Name: "x", IP: net.ParseIP("127.0.0.1"), Port: 123}
	// TEST-NET address is not assigned to any local interface
	_, err := (&NTPProber{LocalAddr: net.ParseIP("192.0.2.200")}).Probe(context.Background(), target, time.Second)
	require.Error(t, err)
	require.Equal(t, KindIO, KindOf(err))
}

func TestNTPProberDSCP(t *testing.T) {
	target := startResponder(t, responder.Config{})
	_, err := (&NTPProber{DSCP: 46}).Probe(context.Background(), target, time.Second)
	require.NoError(t, err)

	_, err = (&NTPProber{DSCP: 99}).Probe(context.Background(), target, time.Second)
	require.Equal(t, KindIO, KindOf(err))
}

func TestNewResultTimes(t *testing.T) {
	t1 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(50 * time.Millisecond)
	t3 := t1.Add(60 * time.Millisecond)
	t4 := t1.Add(120 * time.Millisecond)
	target := Target{Name: "local", IP: net.ParseIP("127.0.0.1"), Port: 123}

	res, err := newResult(target, &ntp.Packet{Stratum: 2}, t1, t2, t3, t4)
	require.NoError(t, err)
	require.InDelta(t, -5.0, res.OffsetMs, 1e-9)
	require.InDelta(t, 110.0, res.RTTMs, 1e-9)
	require.True(t, t4.Add(-5*time.Millisecond).Equal(res.UTC))
	require.True(t, res.UTC.Equal(res.Local))
	require.Equal(t, time.Local, res.Local.Location())
	require.Equal(t, res.UTC.Unix(), res.Timestamp)
}

func TestResultCorrection(t *testing.T) {
	r := &Result{OffsetMs: -12.5}
	require.Equal(t, -12500*time.Microsecond, r.Correction())
}
