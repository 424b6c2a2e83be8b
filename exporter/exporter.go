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
Package exporter publishes the latest probe outcomes as Prometheus metrics.
*/
package exporter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/aguacero7/rkik/probe"
	"github.com/aguacero7/rkik/stats"
)

const namespace = "rkik"

// Exporter holds the registry and the metrics we update after every cycle
type Exporter struct {
	registry *prometheus.Registry

	offset   *prometheus.GaugeVec
	rtt      *prometheus.GaugeVec
	stratum  *prometheus.GaugeVec
	up       *prometheus.GaugeVec
	failures *prometheus.CounterVec
	drift    prometheus.Gauge
	worst    prometheus.Gauge
	cycles   prometheus.Counter
}

// New creates an Exporter with its own registry
func New() *Exporter {
	labels := []string{"target"}
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		offset: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "offset_ms",
			Help: "Clock offset of the server relative to the local clock in milliseconds",
		}, labels),
		rtt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rtt_ms",
			Help: "Round trip delay to the server in milliseconds",
		}, labels),
		stratum: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "stratum",
			Help: "Stratum reported by the server",
		}, labels),
		up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "up",
			Help: "Whether the last probe of the server succeeded",
		}, labels),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "probe_failures_total",
			Help: "Failed probes by error kind",
		}, []string{"target", "kind"}),
		drift: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "drift_ms",
			Help: "Spread between the highest and lowest offset of the last cycle",
		}),
		worst: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "max_abs_offset_ms",
			Help: "Largest absolute offset of the last cycle",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Completed probe cycles",
		}),
	}
	e.registry.MustRegister(e.offset, e.rtt, e.stratum, e.up, e.failures, e.drift, e.worst, e.cycles)
	return e
}

// Registry exposes the underlying registry
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Observe updates metrics with outcomes of one cycle
func (e *Exporter) Observe(outcomes []probe.Outcome) {
	e.cycles.Inc()
	for _, o := range outcomes {
		if o.Err != nil {
			e.up.WithLabelValues(o.Spec).Set(0)
			e.failures.WithLabelValues(o.Spec, probe.KindOf(o.Err).String()).Inc()
			continue
		}
		e.up.WithLabelValues(o.Spec).Set(1)
		e.offset.WithLabelValues(o.Spec).Set(o.Result.OffsetMs)
		e.rtt.WithLabelValues(o.Spec).Set(o.Result.RTTMs)
		e.stratum.WithLabelValues(o.Spec).Set(float64(o.Result.Stratum))
	}
	offsets := stats.Offsets(stats.Successful(outcomes))
	if s, err := stats.Aggregate(offsets); err == nil {
		e.drift.Set(s.DriftMs)
	}
	if s, err := stats.Severity(offsets); err == nil {
		e.worst.Set(s.MaxMs)
	}
}

// Handler serves the registry
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(
		e.registry,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	)
}

// Listen binds addr and serves /metrics until ctx is done.
// It returns the bound address so ":0" can be used.
func (e *Exporter) Listen(ctx context.Context, addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warningf("metrics server shutdown: %v", err)
		}
	}()
	go func() {
		log.Infof("serving metrics on http://%s/metrics", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %v", err)
		}
	}()
	return ln.Addr(), nil
}
