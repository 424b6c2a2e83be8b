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

package responder

import (
	"context"
	"encoding/binary"
	"net"
	"strings"
	"testing"
	"time"

	ntp "github.com/aguacero7/rkik/ntp/protocol"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

var ts = time.Unix(1585231321, 148166539)

func TestFillStaticHeaders(t *testing.T) {
	s := New(Config{RefID: "CHANDLER"})
	response := &ntp.Packet{}
	s.fillStaticHeaders(response)
	require.Equal(t, uint8(1), response.Stratum)
	require.Equal(t, binary.BigEndian.Uint32([]byte("CHAN")), response.ReferenceID, "Reference-ID must be 4 bytes")
	require.Equal(t, uint32(10), response.RootDispersion)
}

func TestFillStaticHeadersKiss(t *testing.T) {
	s := New(Config{KissCode: "RATE"})
	response := &ntp.Packet{}
	s.fillStaticHeaders(response)
	require.Equal(t, uint8(0), response.Stratum)
	require.Equal(t, "RATE", ntp.RefIDString(0, response.ReferenceID))
}

func TestGenerateResponse(t *testing.T) {
	request := &ntp.Packet{Settings: 0x23, Poll: 8, TxTimeSec: 3794210679, TxTimeFrac: 2718216404}
	response := &ntp.Packet{}
	nowSec, nowFrac := ntp.Time(ts)

	generateResponse(ts, ts, request, response)

	require.Equal(t, uint8(4), response.Mode())
	require.Equal(t, uint8(4), response.Version())
	require.Equal(t, request.Poll, response.Poll)
	require.True(t, response.OriginMatches(request))
	require.Equal(t, nowSec, response.RxTimeSec)
	require.Equal(t, nowFrac, response.RxTimeFrac)
	require.Equal(t, nowSec, response.TxTimeSec)
	require.Equal(t, nowFrac, response.TxTimeFrac)
	require.Equal(t, uint8(0), response.Stratum, "stratum is a static header")

	New(Config{}).fillStaticHeaders(response)
	require.NoError(t, ntp.ValidateResponse(response))
}

func TestServerAnswers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(Config{Skew: time.Hour})
	require.NoError(t, s.Listen("127.0.0.1:0"))
	s.Start(ctx)

	conn, err := net.Dial("udp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	request := ntp.NewRequest(time.Now(), 4)
	b, err := request.Bytes()
	require.NoError(t, err)
	_, err = conn.Write(b)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	response, err := ntp.BytesToPacket(buf[:n])
	require.NoError(t, err)
	require.True(t, response.OriginMatches(request))
	require.Greater(t, ntp.Unix(response.TxTimeSec, response.TxTimeFrac).Sub(time.Now()), 59*time.Minute)
	require.Equal(t, int64(1), s.Requests())

	cancel()
	s.Wait()
}

func TestServerLogsBadRequests(t *testing.T) {
	hook := test.NewGlobal()
	level := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	t.Cleanup(func() {
		log.SetLevel(level)
		hook.Reset()
		log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(Config{})
	require.NoError(t, s.Listen("127.0.0.1:0"))
	s.Start(ctx)

	conn, err := net.Dial("udp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("garbage"))
	require.NoError(t, err)
	// requests are served in order, an answer means the garbage was handled
	request := ntp.NewRequest(time.Now(), 4)
	b, err := request.Bytes()
	require.NoError(t, err)
	_, err = conn.Write(b)
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1024))
	require.NoError(t, err)

	cancel()
	s.Wait()

	var messages []string
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	require.Contains(t, strings.Join(messages, "\n"), "[server] failed to decode request from")
	require.Equal(t, int64(1), s.Requests())
}
