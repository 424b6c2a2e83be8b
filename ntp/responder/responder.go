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
Package responder implements a tiny NTP server answering client requests on UDP.
It is meant to run in-process next to a client: skew, stratum, reference id
and failure modes are all configurable.
*/
package responder

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	ntp "github.com/aguacero7/rkik/ntp/protocol"
	log "github.com/sirupsen/logrus"
)

// Config is a responder config structure
type Config struct {
	// Skew is added to every timestamp the server hands out
	Skew time.Duration
	// Delay is how long the server holds a request before answering
	Delay   time.Duration
	Stratum uint8
	RefID   string
	// KissCode makes the server answer with stratum 0 and this code
	KissCode string
	// Silent server reads requests and never answers
	Silent bool
	// Mangle is applied to every response right before it is sent
	Mangle func(response *ntp.Packet)
}

// Server answers NTP client requests
type Server struct {
	Config Config

	conn     *net.UDPConn
	wg       sync.WaitGroup
	requests atomic.Int64
	now      func() time.Time
}

// New returns server with given config
func New(c Config) *Server {
	if c.Stratum == 0 && c.KissCode == "" {
		c.Stratum = 1
	}
	return &Server{Config: c, now: time.Now}
}

// Listen binds the server to the address, eg "127.0.0.1:0"
func (s *Server) Listen(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.conn = conn
	return nil
}

// Addr returns the bound address
func (s *Server) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Port returns the bound port
func (s *Server) Port() uint16 {
	return uint16(s.Addr().Port)
}

// Requests returns how many valid requests were received
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Start serves requests in the background until ctx is done
func (s *Server) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		s.conn.Close()
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve()
	}()
}

// Wait blocks until the server is shut down
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) serve() {
	buf := make([]byte, 1024)
	for {
		n, remAddr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Debugf("[server] failed to read packet on %s: %v", s.conn.LocalAddr(), err)
			continue
		}
		received := s.now().Add(s.Config.Skew)
		request, err := ntp.BytesToPacket(buf[:n])
		if err != nil {
			log.Debugf("[server] failed to decode request from %s: %v", remAddr, err)
			continue
		}
		if !request.ValidSettingsFormat() {
			log.Debugf("[server] ignoring request from %s with settings %#x", remAddr, request.Settings)
			continue
		}
		s.requests.Add(1)
		if s.Config.Silent {
			continue
		}
		if s.Config.Delay > 0 {
			time.Sleep(s.Config.Delay)
		}
		response := &ntp.Packet{}
		s.fillStaticHeaders(response)
		generateResponse(s.now().Add(s.Config.Skew), received, request, response)
		if s.Config.Mangle != nil {
			s.Config.Mangle(response)
		}
		b, err := response.Bytes()
		if err != nil {
			log.Debugf("[server] failed to encode response to %s: %v", remAddr, err)
			continue
		}
		if _, err := s.conn.WriteToUDP(b, remAddr); err != nil {
			log.Debugf("[server] failed to send response to %s: %v", remAddr, err)
		}
	}
}

// fillStaticHeaders sets the fields which don't depend on the request
func (s *Server) fillStaticHeaders(response *ntp.Packet) {
	response.Stratum = s.Config.Stratum
	// Precision is 32-bit float. It's always -32 since we can only report 1ns.
	response.Precision = -32
	response.RootDelay = 0
	// Root Dispersion (0.000152)
	response.RootDispersion = 10
	refID := s.Config.RefID
	if s.Config.KissCode != "" {
		response.Stratum = 0
		refID = s.Config.KissCode
	}
	// Reference ID is 4 bytes, shorter ones are zero padded
	id := make([]byte, 4)
	copy(id, refID)
	response.ReferenceID = binary.BigEndian.Uint32(id)
}

// generateResponse fills the timestamps of the reply:
// origin echoes the client transmit, receive and transmit are server time
func generateResponse(now time.Time, received time.Time, request, response *ntp.Packet) {
	// keep the client version, set mode to server
	response.Settings = request.Settings&0x38 | 4
	response.Poll = request.Poll

	// Reference timestamp rounded to 1000s looks like a recent sync
	lastSyncSec, lastSyncFrac := ntp.Time(time.Unix(now.Unix()/1000*1000, 0))
	response.RefTimeSec = lastSyncSec
	response.RefTimeFrac = lastSyncFrac

	response.OrigTimeSec = request.TxTimeSec
	response.OrigTimeFrac = request.TxTimeFrac

	response.RxTimeSec, response.RxTimeFrac = ntp.Time(received)
	response.TxTimeSec, response.TxTimeFrac = ntp.Time(now)
}
