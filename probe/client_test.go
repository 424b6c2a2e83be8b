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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var compareZone = fakeLookuper{
	"a.example": {net.ParseIP("192.0.2.1")},
	"b.example": {net.ParseIP("192.0.2.2")},
	"c.example": {net.ParseIP("192.0.2.3")},
}

// delays make the first spec finish last
var delays = map[string]time.Duration{
	"192.0.2.1": 150 * time.Millisecond,
	"192.0.2.2": 75 * time.Millisecond,
	"192.0.2.3": 0,
}

func fakeProbe(_ context.Context, target Target, _ time.Duration) (*Result, error) {
	time.Sleep(delays[target.IP.String()])
	return &Result{Target: target, OffsetMs: float64(target.IP.To4()[3])}, nil
}

func newTestClient(t *testing.T) (*Client, *MockProber) {
	ctrl := gomock.NewController(t)
	prober := NewMockProber(ctrl)
	return &Client{
		Resolver: &Resolver{Lookuper: compareZone},
		Prober:   prober,
		Timeout:  time.Second,
	}, prober
}

func TestClientQuery(t *testing.T) {
	c, prober := newTestClient(t)
	prober.EXPECT().Probe(gomock.Any(), Target{Name: "a.example:1123", IP: net.ParseIP("192.0.2.1"), Port: 1123}, time.Second).
		Return(&Result{OffsetMs: 1.5}, nil)

	res, err := c.Query(context.Background(), "a.example:1123")
	require.NoError(t, err)
	require.Equal(t, 1.5, res.OffsetMs)
}

func TestClientQueryResolveError(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.Query(context.Background(), "nope.example")
	require.Equal(t, KindDNS, KindOf(err))
}

func TestCompareDetailedKeepsOrder(t *testing.T) {
	c, prober := newTestClient(t)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(fakeProbe).Times(3)

	specs := []string{"a.example", "b.example", "c.example"}
	start := time.Now()
	outcomes := c.CompareDetailed(context.Background(), specs)
	// concurrent: bounded by the slowest probe, not the sum
	require.Less(t, time.Since(start), 220*time.Millisecond)
	require.Len(t, outcomes, 3)
	for i, o := range outcomes {
		require.NoError(t, o.Err)
		require.Equal(t, specs[i], o.Spec)
		require.Equal(t, specs[i], o.Result.Target.Name)
		require.Equal(t, float64(i+1), o.Result.OffsetMs)
	}
}

func TestCompareDetailedIsolatesFailures(t *testing.T) {
	c, prober := newTestClient(t)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, target Target, timeout time.Duration) (*Result, error) {
			if target.Name == "b.example" {
				return nil, networkError("reading response", context.DeadlineExceeded)
			}
			return fakeProbe(ctx, target, timeout)
		}).Times(3)

	outcomes := c.CompareDetailed(context.Background(), []string{"a.example", "b.example", "c.example"})
	require.NoError(t, outcomes[0].Err)
	require.Error(t, outcomes[1].Err)
	require.Nil(t, outcomes[1].Result)
	require.True(t, IsTimeout(outcomes[1].Err))
	require.NoError(t, outcomes[2].Err)
	require.Equal(t, "c.example", outcomes[2].Result.Target.Name)
}

func TestCompareDetailedResolveFailure(t *testing.T) {
	c, prober := newTestClient(t)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(fakeProbe).Times(1)

	outcomes := c.CompareDetailed(context.Background(), []string{"missing.example", "c.example"})
	require.Equal(t, KindDNS, KindOf(outcomes[0].Err))
	require.NoError(t, outcomes[1].Err)
}

func TestCompareAllOrNothing(t *testing.T) {
	c, prober := newTestClient(t)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(fakeProbe).Times(2)

	results, err := c.Compare(context.Background(), []string{"b.example", "a.example"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "b.example", results[0].Target.Name)
	require.Equal(t, "a.example", results[1].Target.Name)

	prober.EXPECT().Probe(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(fakeProbe).Times(1)
	results, err = c.Compare(context.Background(), []string{"a.example", "x.example", "y.example:bad"})
	require.Nil(t, results)
	// first failure in input order wins
	require.Equal(t, KindDNS, KindOf(err))
}

func TestQueryOneLiteral(t *testing.T) {
	target := startResponder(t, responderConfigInSync)
	res, err := QueryOne(context.Background(), target.Addr(), false, time.Second)
	require.NoError(t, err)
	require.Equal(t, target.Addr(), res.Target.Name)
	require.InDelta(t, 0, res.OffsetMs, 50)
}

func TestCompareManyLiteral(t *testing.T) {
	a := startResponder(t, responderConfigInSync)
	b := startResponder(t, responderConfigInSync)
	results, err := CompareMany(context.Background(), []string{a.Addr(), b.Addr()}, false, time.Second)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, a.Port, results[0].Target.Port)
	require.Equal(t, b.Port, results[1].Target.Port)
}
