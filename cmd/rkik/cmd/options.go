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

package cmd

import (
	"fmt"
	"math"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aguacero7/rkik/config"
	"github.com/aguacero7/rkik/dscp"
	"github.com/aguacero7/rkik/format"
	"github.com/aguacero7/rkik/monitor"
	"github.com/aguacero7/rkik/probe"
	"github.com/aguacero7/rkik/runner"
)

// options shared by the probing commands
type options struct {
	// probe
	timeout    float64
	ipv6       bool
	dnsServer  string
	sourceAddr string
	dscp       int
	version    int
	authType   string
	authKey    string
	authKeyID  uint16

	// output
	format  string
	json    bool
	short   bool
	verbose bool
	pretty  bool

	// loop
	count       int
	interval    float64
	infinite    bool
	record      string
	metricsAddr string

	// plugin
	plugin   bool
	warning  float64
	critical float64

	changed func(name string) bool
}

func addProbeFlags(fs *pflag.FlagSet, o *options) {
	fs.Float64VarP(&o.timeout, "timeout", "t", probe.DefaultTimeout.Seconds(), "timeout in seconds for resolution and exchange of one target")
	fs.BoolVarP(&o.ipv6, "ipv6", "6", false, "only use IPv6 addresses")
	fs.StringVar(&o.dnsServer, "dns-server", "", "resolve names using this DNS server instead of the system resolver")
	fs.StringVar(&o.sourceAddr, "source", "", "source address of requests")
	fs.IntVar(&o.dscp, "dscp", 0, "DSCP value of requests")
	fs.IntVar(&o.version, "ntp-version", 4, "NTP version of requests")
	fs.StringVar(&o.authType, "auth-type", "sha1", "symmetric key type: md5, sha1, sha256, sha512, aes128, aes256")
	fs.StringVar(&o.authKey, "auth-key", "", "symmetric key, ASCII or hex; enables authenticated NTP")
	fs.Uint16Var(&o.authKeyID, "auth-key-id", 1, "symmetric key id")
}

func addOutputFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVarP(&o.format, "format", "f", string(format.Text), "output format: text, json, json-short, simple")
	fs.BoolVarP(&o.json, "json", "j", false, "alias for --format json")
	fs.BoolVarP(&o.short, "short", "S", false, "alias for --format simple, or json-short together with --json")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "verbose output")
	fs.BoolVarP(&o.pretty, "pretty", "p", false, "indent JSON output")
}

func addLoopFlags(fs *pflag.FlagSet, o *options) {
	fs.IntVarP(&o.count, "count", "c", 1, "number of probes")
	fs.Float64VarP(&o.interval, "interval", "i", 1, "seconds between probes")
	fs.BoolVarP(&o.infinite, "infinite", "8", false, "probe until interrupted")
	fs.StringVar(&o.record, "record", "", "record every outcome into this SQLite database")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}

func addPluginFlags(fs *pflag.FlagSet, o *options) {
	fs.BoolVar(&o.plugin, "plugin", false, "monitoring plugin output and exit codes")
	fs.Float64Var(&o.warning, "warning", 0, "warning threshold of absolute offset in ms, needs --plugin")
	fs.Float64Var(&o.critical, "critical", 0, "critical threshold of absolute offset in ms, needs --plugin")
}

// bind remembers which flags were given and fills the rest from the config store
func (o *options) bind(cmd *cobra.Command) {
	o.changed = cmd.Flags().Changed
	store, err := config.LoadDefault()
	if err != nil {
		log.Warningf("ignoring config: %v", err)
		return
	}
	o.applyDefaults(store.Data.Defaults)
}

func (o *options) isChanged(name string) bool {
	return o.changed != nil && o.changed(name)
}

func (o *options) applyDefaults(d config.Defaults) {
	if d.Timeout != nil && !o.isChanged("timeout") {
		o.timeout = *d.Timeout
	}
	if d.Format != nil && !o.isChanged("format") && !o.json && !o.short {
		o.format = *d.Format
	}
	if d.IPv6Only != nil && !o.isChanged("ipv6") {
		o.ipv6 = *d.IPv6Only
	}
}

func (o *options) timeoutDuration() time.Duration {
	return time.Duration(o.timeout * float64(time.Second))
}

func (o *options) outputFormat() (format.Format, error) {
	switch {
	case o.json && o.short:
		return format.JSONShort, nil
	case o.short:
		return format.Simple, nil
	case o.json:
		return format.JSON, nil
	}
	return format.ParseFormat(o.format)
}

func (o *options) runnerConfig() runner.Config {
	return runner.Config{
		Count:    o.count,
		Infinite: o.infinite,
		Interval: time.Duration(o.interval * float64(time.Second)),
	}
}

func (o *options) thresholds() monitor.Thresholds {
	var t monitor.Thresholds
	if o.isChanged("warning") {
		w := o.warning
		t.Warning = &w
	}
	if o.isChanged("critical") {
		c := o.critical
		t.Critical = &c
	}
	return t
}

// validate checks flag combinations. Plugin related mistakes exit with UNKNOWN.
func (o *options) validate() error {
	if o.plugin {
		if o.infinite || o.count > 1 {
			return pluginErrorf("--plugin runs exactly one probe, it can't be used with --count or --infinite")
		}
		if err := o.thresholds().Validate(); err != nil {
			return pluginErrorf("%v", err)
		}
	} else if o.isChanged("warning") || o.isChanged("critical") {
		return pluginErrorf("--warning and --critical need --plugin")
	}
	if o.timeout <= 0 || math.IsNaN(o.timeout) {
		return usageErrorf("--timeout must be positive")
	}
	if o.infinite && o.isChanged("count") && o.count != 1 {
		return usageErrorf("--infinite cannot be used with --count")
	}
	if o.interval < 0 || math.IsNaN(o.interval) {
		return usageErrorf("--interval must not be negative")
	}
	if o.isChanged("interval") && !o.infinite && o.count == 1 {
		return usageErrorf("--interval requires --infinite or --count")
	}
	rc := o.runnerConfig()
	if err := rc.Validate(); err != nil {
		return usageErrorf("%v", err)
	}
	f, err := o.outputFormat()
	if err != nil {
		return usageErrorf("%v", err)
	}
	if o.verbose && (f == format.Simple || f == format.JSONShort) {
		log.Warning("--verbose has no effect with short format")
	}
	if o.dscp < 0 || o.dscp > dscp.Max {
		return usageErrorf("--dscp must be within 0..%d", dscp.Max)
	}
	if o.version < 1 || o.version > 4 {
		return usageErrorf("--ntp-version must be within 1..4")
	}
	if o.sourceAddr != "" && net.ParseIP(o.sourceAddr) == nil {
		return usageErrorf("--source %q is not an IP address", o.sourceAddr)
	}
	if o.authKey != "" {
		if _, err := probe.ParseAuthType(o.authType); err != nil {
			return usageErrorf("%v", err)
		}
	}
	return nil
}

// client builds probe client out of flags
func (o *options) client() (*probe.Client, error) {
	c := probe.NewClient(o.ipv6, o.timeoutDuration())
	if o.dnsServer != "" {
		l, err := probe.NewDNSLookuper(o.dnsServer, o.timeoutDuration())
		if err != nil {
			return nil, err
		}
		c.Resolver.Lookuper = l
	}
	var local net.IP
	if o.sourceAddr != "" {
		local = net.ParseIP(o.sourceAddr)
	}
	if o.authKey == "" {
		c.Prober = &probe.NTPProber{LocalAddr: local, DSCP: o.dscp, Version: uint8(o.version)}
		return c, nil
	}
	kt, err := probe.ParseAuthType(o.authType)
	if err != nil {
		return nil, err
	}
	c.Prober = &probe.AuthProber{
		KeyType:   kt,
		KeyID:     o.authKeyID,
		Key:       o.authKey,
		Version:   o.version,
		LocalAddr: local,
	}
	return c, nil
}

// plugin mode problems are reported as UNKNOWN
func pluginErrorf(format string, args ...any) error {
	return &ExitError{Code: monitor.Unknown.ExitCode(), Err: fmt.Errorf(format, args...)}
}
