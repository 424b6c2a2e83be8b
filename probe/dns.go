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
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/miekg/dns"
)

// ResolvConf is where nameservers are taken from by default
var ResolvConf = "/etc/resolv.conf"

// DNSLookuper resolves hosts by asking one DNS server directly
type DNSLookuper struct {
	// Server is host:port of the DNS server
	Server string
	Client *dns.Client
}

// NewDNSLookuper returns lookuper using server, or the first nameserver of resolv.conf if server is empty.
// Server without port gets port 53.
func NewDNSLookuper(server string, timeout time.Duration) (*DNSLookuper, error) {
	if server == "" {
		conf, err := dns.ClientConfigFromFile(ResolvConf)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", ResolvConf, err)
		}
		if len(conf.Servers) == 0 {
			return nil, fmt.Errorf("no nameservers in %s", ResolvConf)
		}
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	} else if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSLookuper{
		Server: server,
		Client: &dns.Client{Net: "udp", Timeout: timeout},
	}, nil
}

// LookupIP implements Lookuper. network is "ip", "ip4" or "ip6".
// Addresses come back in answer order, A records before AAAA.
func (l *DNSLookuper) LookupIP(ctx context.Context, network, host string) ([]net.IP, error) {
	var qtypes []uint16
	switch network {
	case "ip":
		qtypes = []uint16{dns.TypeA, dns.TypeAAAA}
	case "ip4":
		qtypes = []uint16{dns.TypeA}
	case "ip6":
		qtypes = []uint16{dns.TypeAAAA}
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}

	var ips []net.IP
	var lastErr error
	for _, qtype := range qtypes {
		found, err := l.query(ctx, host, qtype)
		if err != nil {
			lastErr = err
			continue
		}
		ips = append(ips, found...)
	}
	if len(ips) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, &net.DNSError{Err: "no such host", Name: host, Server: l.Server, IsNotFound: true}
	}
	return ips, nil
}

func (l *DNSLookuper) query(ctx context.Context, host string, qtype uint16) ([]net.IP, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	client := l.Client
	if client == nil {
		client = &dns.Client{}
	}
	r, _, err := client.ExchangeContext(ctx, msg, l.Server)
	if err != nil {
		return nil, fmt.Errorf("querying %s for %s: %w", l.Server, dns.TypeToString[qtype], err)
	}
	if r.Rcode != dns.RcodeSuccess {
		return nil, &net.DNSError{
			Err:        dns.RcodeToString[r.Rcode],
			Name:       host,
			Server:     l.Server,
			IsNotFound: r.Rcode == dns.RcodeNameError,
		}
	}
	var ips []net.IP
	for _, rr := range r.Answer {
		switch v := rr.(type) {
		case *dns.A:
			ips = append(ips, v.A)
		case *dns.AAAA:
			ips = append(ips, v.AAAA)
		}
	}
	return ips, nil
}

// String returns the server the lookuper talks to
func (l *DNSLookuper) String() string {
	host, port, err := net.SplitHostPort(l.Server)
	if err != nil {
		return l.Server
	}
	if p, _ := strconv.Atoi(port); p == 53 {
		return host
	}
	return l.Server
}
