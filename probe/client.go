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
	"time"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of probing one spec of a batch
type Outcome struct {
	Spec   string
	Result *Result
	Err    error
}

// Client resolves target specs and probes them
type Client struct {
	Resolver *Resolver
	Prober   Prober
	IPv6Only bool
	// Timeout bounds resolution and exchange of a single target
	Timeout time.Duration
}

// NewClient returns Client using system resolver and plain NTP
func NewClient(ipv6Only bool, timeout time.Duration) *Client {
	return &Client{
		Resolver: NewResolver(),
		Prober:   &NTPProber{},
		IPv6Only: ipv6Only,
		Timeout:  timeout,
	}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Query resolves spec and probes it once
func (c *Client) Query(ctx context.Context, spec string) (*Result, error) {
	rctx, cancel := context.WithTimeout(ctx, c.timeout())
	target, err := c.Resolver.Resolve(rctx, spec, c.IPv6Only)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, exchangeError(ctx, "resolving "+spec, err)
		}
		return nil, err
	}
	return c.Prober.Probe(ctx, target, c.timeout())
}

// CompareDetailed probes all specs concurrently.
// Outcomes are in the order of specs, a failure of one spec never affects the others.
func (c *Client) CompareDetailed(ctx context.Context, specs []string) []Outcome {
	out := make([]Outcome, len(specs))
	var eg errgroup.Group
	for i, spec := range specs {
		eg.Go(func() error {
			res, err := c.Query(ctx, spec)
			out[i] = Outcome{Spec: spec, Result: res, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

// Compare probes all specs concurrently and fails if any of them failed.
// The error reported is the one of the first failed spec in input order.
func (c *Client) Compare(ctx context.Context, specs []string) ([]*Result, error) {
	outcomes := c.CompareDetailed(ctx, specs)
	results := make([]*Result, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			return nil, o.Err
		}
		results = append(results, o.Result)
	}
	return results, nil
}

// QueryOne probes a single target with the system resolver and plain NTP
func QueryOne(ctx context.Context, spec string, ipv6Only bool, timeout time.Duration) (*Result, error) {
	return NewClient(ipv6Only, timeout).Query(ctx, spec)
}

// CompareMany probes several targets at once with the system resolver and plain NTP
func CompareMany(ctx context.Context, specs []string, ipv6Only bool, timeout time.Duration) ([]*Result, error) {
	return NewClient(ipv6Only, timeout).Compare(ctx, specs)
}
