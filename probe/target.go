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
	"sort"
	"strconv"
	"strings"
)

// DefaultPort is the NTP port
const DefaultPort uint16 = 123

// Target is a resolved server
type Target struct {
	// Name is the spec as given by the user
	Name string
	IP   net.IP
	Port uint16
}

// Addr returns host:port suitable for dialing
func (t Target) Addr() string {
	return net.JoinHostPort(t.IP.String(), strconv.Itoa(int(t.Port)))
}

func (t Target) String() string {
	return fmt.Sprintf("%s (%s)", t.Name, t.Addr())
}

// ParseTarget splits target spec into host and optional port.
// Accepted forms: host, host:port, ipv4, ipv4:port, [ipv6], [ipv6]:port, ipv6.
// port is 0 when the spec carries none.
func ParseTarget(spec string) (host string, port uint16, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", 0, newError(KindOther, "empty target", nil)
	}
	if strings.HasPrefix(spec, "[") {
		end := strings.IndexByte(spec, ']')
		if end < 0 {
			return "", 0, newError(KindOther, fmt.Sprintf("missing ']' in %q", spec), nil)
		}
		host = spec[1:end]
		if host == "" {
			return "", 0, newError(KindOther, fmt.Sprintf("empty address in %q", spec), nil)
		}
		rest := spec[end+1:]
		if rest == "" {
			return host, 0, nil
		}
		if !strings.HasPrefix(rest, ":") {
			return "", 0, newError(KindOther, fmt.Sprintf("unexpected %q after address in %q", rest, spec), nil)
		}
		port, err = parsePort(rest[1:])
		return host, port, err
	}
	switch strings.Count(spec, ":") {
	case 0:
		return spec, 0, nil
	case 1:
		i := strings.IndexByte(spec, ':')
		if i == 0 {
			return "", 0, newError(KindOther, fmt.Sprintf("missing host in %q", spec), nil)
		}
		port, err = parsePort(spec[i+1:])
		return spec[:i], port, err
	default:
		// bare IPv6 literal, a port needs brackets
		if net.ParseIP(spec) == nil {
			return "", 0, newError(KindOther, fmt.Sprintf("invalid address %q", spec), nil)
		}
		return spec, 0, nil
	}
}

func parsePort(s string) (uint16, error) {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, newError(KindProtocol, fmt.Sprintf("invalid port %q", s), err)
	}
	if p == 0 {
		return 0, newError(KindProtocol, "port 0 is not allowed", nil)
	}
	return uint16(p), nil
}

// Lookuper looks up IP addresses of a host. net.DefaultResolver implements it.
type Lookuper interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// Resolver turns target specs into Targets
type Resolver struct {
	Lookuper Lookuper
	// DefaultPort is used when spec has none, 123 if zero
	DefaultPort uint16
}

// NewResolver returns Resolver backed by the system resolver
func NewResolver() *Resolver {
	return &Resolver{Lookuper: net.DefaultResolver, DefaultPort: DefaultPort}
}

// Resolve parses spec and picks one address for it.
// Candidates are ordered IPv4 first (unless ipv6Only) keeping lookup order within a family,
// and the first one wins, so the choice is stable for a given lookup answer.
func (r *Resolver) Resolve(ctx context.Context, spec string, ipv6Only bool) (Target, error) {
	host, port, err := ParseTarget(spec)
	if err != nil {
		return Target{}, err
	}
	if port == 0 {
		port = r.DefaultPort
		if port == 0 {
			port = DefaultPort
		}
	}
	target := Target{Name: spec, Port: port}

	if ip := net.ParseIP(host); ip != nil {
		if ipv6Only && ip.To4() != nil {
			return Target{}, newError(KindDNS, fmt.Sprintf("%s is an IPv4 address but IPv6 only was requested", host), nil)
		}
		target.IP = ip
		return target, nil
	}

	network := "ip"
	if ipv6Only {
		network = "ip6"
	}
	lookuper := r.Lookuper
	if lookuper == nil {
		lookuper = net.DefaultResolver
	}
	ips, err := lookuper.LookupIP(ctx, network, host)
	if err != nil {
		return Target{}, newError(KindDNS, fmt.Sprintf("resolving '%s'", host), err)
	}
	ip := pickIP(ips, ipv6Only)
	if ip == nil {
		if ipv6Only {
			return Target{}, newError(KindDNS, fmt.Sprintf("no IPv6 address found for '%s'", host), nil)
		}
		return Target{}, newError(KindDNS, fmt.Sprintf("no IP address found for '%s'", host), nil)
	}
	target.IP = ip
	return target, nil
}

// pickIP applies address selection policy
func pickIP(ips []net.IP, ipv6Only bool) net.IP {
	candidates := make([]net.IP, 0, len(ips))
	for _, ip := range ips {
		if ip == nil {
			continue
		}
		if ipv6Only && ip.To4() != nil {
			continue
		}
		candidates = append(candidates, ip)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].To4() != nil && candidates[j].To4() == nil
	})
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}
