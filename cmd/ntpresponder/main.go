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

// ntpresponder is a small NTP server answering with a configurable skew,
// used to exercise rkik against known offsets.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	syscall "golang.org/x/sys/unix"

	"github.com/aguacero7/rkik/ntp/responder"
)

func main() {
	var (
		c              responder.Config
		logLevel       string
		ip             string
		port           int
		stratum        int
		monitoringPort int
	)

	flag.StringVar(&logLevel, "loglevel", "info", "Set a log level. Can be: debug, info, warning, error")
	flag.StringVar(&ip, "ip", "127.0.0.1", "IP to listen to")
	flag.IntVar(&port, "port", 123, "Port to run service on")
	flag.IntVar(&monitoringPort, "monitoringport", 0, "Port to serve Prometheus metrics on, disabled if 0")
	flag.StringVar(&c.RefID, "refid", "OLEG", "Reference ID of the server")
	flag.IntVar(&stratum, "stratum", 1, "Stratum of the server")
	flag.DurationVar(&c.Skew, "extraoffset", 0, "Extra offset to return to clients")
	flag.DurationVar(&c.Delay, "delay", 0, "Hold every request this long before answering")
	flag.StringVar(&c.KissCode, "kiss", "", "Answer every request with this kiss-o'-death code")
	flag.Parse()

	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Fatalf("Unrecognized log level: %v", logLevel)
	}
	log.SetLevel(level)

	if stratum < 1 || stratum > 15 {
		log.Fatalf("Config is invalid: stratum %d is outside 1..15", stratum)
	}
	c.Stratum = uint8(stratum)

	s := responder.New(c)
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	if err := s.Listen(addr); err != nil {
		log.Fatalf("Listening on %s: %v", addr, err)
	}
	log.Infof("Serving NTP on %s with extra offset %v", s.Addr(), c.Skew)

	if monitoringPort != 0 {
		reg := prometheus.NewRegistry()
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "ntpresponder_requests_total",
			Help: "Valid client requests received",
		}, func() float64 { return float64(s.Requests()) }))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			srv := &http.Server{Addr: fmt.Sprintf(":%d", monitoringPort), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			log.Error(srv.ListenAndServe())
		}()
	}

	// Handle interrupt for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()
	s.Start(ctx)
	<-ctx.Done()
	log.Warning("Graceful shutdown")
	s.Wait()
}
