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

package runner

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/aguacero7/rkik/probe"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func okCycle(_ context.Context) ([]probe.Outcome, error) {
	return []probe.Outcome{{Spec: "a", Result: &probe.Result{OffsetMs: 1}}}, nil
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name string
		c    Config
		err  bool
	}{
		{name: "one", c: Config{Count: 1}},
		{name: "infinite", c: Config{Infinite: true}},
		{name: "zero count", c: Config{Count: 0}, err: true},
		{name: "negative interval", c: Config{Count: 2, Interval: -time.Second}, err: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if tc.err {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
	require.False(t, (&Config{Count: 1}).Continuous())
	require.True(t, (&Config{Count: 2}).Continuous())
	require.True(t, (&Config{Infinite: true}).Continuous())
}

func TestRunCount(t *testing.T) {
	r := New(Config{Count: 3})
	require.Equal(t, Idle, r.State())
	emitted := []int{}
	err := r.Run(context.Background(), okCycle, func(n int, outcomes []probe.Outcome) error {
		require.Len(t, outcomes, 1)
		emitted = append(emitted, n)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, emitted)
	require.Equal(t, Stopped, r.State())
	require.Equal(t, int64(3), r.Cycles())
}

func TestRunNoTrailingWait(t *testing.T) {
	r := New(Config{Count: 2, Interval: 300 * time.Millisecond})
	start := time.Now()
	err := r.Run(context.Background(), okCycle, func(int, []probe.Outcome) error { return nil })
	require.NoError(t, err)
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	require.Less(t, elapsed, 550*time.Millisecond)
}

func TestRunSingleCycleNoWait(t *testing.T) {
	r := New(Config{Count: 1, Interval: time.Hour})
	start := time.Now()
	require.NoError(t, r.Run(context.Background(), okCycle, func(int, []probe.Outcome) error { return nil }))
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, int64(1), r.Cycles())
}

func TestRunCancelDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(Config{Count: 5, Interval: 10 * time.Second})
	start := time.Now()
	err := r.Run(ctx, okCycle, func(int, []probe.Outcome) error {
		time.AfterFunc(50*time.Millisecond, cancel)
		return nil
	})
	require.NoError(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, Cancelled, r.State())
	require.Equal(t, int64(1), r.Cycles())
}

func TestRunInfinite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(Config{Infinite: true, Interval: time.Millisecond})
	err := r.Run(ctx, okCycle, func(n int, _ []probe.Outcome) error {
		if n == 4 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, Cancelled, r.State())
	require.Equal(t, int64(4), r.Cycles())
}

func TestRunCancelMidCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cycle := func(ctx context.Context) ([]probe.Outcome, error) {
		cancel()
		<-ctx.Done()
		return []probe.Outcome{
			{Spec: "fast", Result: &probe.Result{OffsetMs: 2}},
			{Spec: "slow", Err: &probe.Error{Kind: probe.KindNetwork, Msg: "probe cancelled", Err: context.Canceled}},
			{Spec: "broken", Err: &probe.Error{Kind: probe.KindProtocol, Msg: "bad mode"}},
		}, nil
	}
	var got []probe.Outcome
	r := New(Config{Count: 3})
	err := r.Run(ctx, cycle, func(_ int, outcomes []probe.Outcome) error {
		got = outcomes
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, Cancelled, r.State())
	require.Len(t, got, 2)
	require.Equal(t, "fast", got[0].Spec)
	require.Equal(t, "broken", got[1].Spec)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(Config{Count: 3})
	err := r.Run(ctx, func(context.Context) ([]probe.Outcome, error) {
		t.Fatal("cycle must not run")
		return nil, nil
	}, func(int, []probe.Outcome) error { return nil })
	require.NoError(t, err)
	require.Equal(t, Cancelled, r.State())
	require.Equal(t, int64(0), r.Cycles())
}

func TestRunCycleErrorStops(t *testing.T) {
	calls := 0
	r := New(Config{Count: 3})
	err := r.Run(context.Background(), func(context.Context) ([]probe.Outcome, error) {
		calls++
		return nil, errors.New("cannot bind socket")
	}, func(int, []probe.Outcome) error { return nil })
	require.ErrorContains(t, err, "cycle 1: cannot bind socket")
	require.Equal(t, 1, calls)
	require.Equal(t, Stopped, r.State())
}

func TestRunEmitErrorStops(t *testing.T) {
	r := New(Config{Count: 3})
	boom := errors.New("stdout closed")
	err := r.Run(context.Background(), okCycle, func(int, []probe.Outcome) error { return boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, int64(1), r.Cycles())
}

func TestRunTwice(t *testing.T) {
	r := New(Config{Count: 1})
	noop := func(int, []probe.Outcome) error { return nil }
	require.NoError(t, r.Run(context.Background(), okCycle, noop))
	require.ErrorIs(t, r.Run(context.Background(), okCycle, noop), ErrStarted)
}

func TestRunInvalidConfig(t *testing.T) {
	r := New(Config{Count: 0})
	require.Error(t, r.Run(context.Background(), okCycle, func(int, []probe.Outcome) error { return nil }))
	require.Equal(t, Idle, r.State())
}

func TestRunProbeFailuresKeepLooping(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := probe.NewMockProber(ctrl)
	gomock.InOrder(
		prober.EXPECT().Probe(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, &probe.Error{Kind: probe.KindNetwork, Msg: "timeout", Timeout: true}),
		prober.EXPECT().Probe(gomock.Any(), gomock.Any(), gomock.Any()).Return(&probe.Result{OffsetMs: 0.5}, nil),
		prober.EXPECT().Probe(gomock.Any(), gomock.Any(), gomock.Any()).Return(&probe.Result{OffsetMs: 0.7}, nil),
	)
	client := &probe.Client{
		Resolver: &probe.Resolver{},
		Prober:   prober,
		Timeout:  time.Second,
	}
	target := (&net.UDPAddr{IP: net.ParseIP("192.0.2.1"), Port: 123}).String()
	cycle := func(ctx context.Context) ([]probe.Outcome, error) {
		return client.CompareDetailed(ctx, []string{target}), nil
	}
	var failures, successes int
	r := New(Config{Count: 3})
	err := r.Run(context.Background(), cycle, func(_ int, outcomes []probe.Outcome) error {
		for _, o := range outcomes {
			if o.Err != nil {
				failures++
			} else {
				successes++
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, failures)
	require.Equal(t, 2, successes)
}
