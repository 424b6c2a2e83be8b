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
	"testing"
	"time"

	"github.com/aguacero7/rkik/ntp/responder"
	"github.com/beevik/ntp"
	"github.com/stretchr/testify/require"
)

func TestParseAuthType(t *testing.T) {
	at, err := ParseAuthType("SHA256")
	require.NoError(t, err)
	require.Equal(t, ntp.AuthSHA256, at)

	at, err = ParseAuthType("md5")
	require.NoError(t, err)
	require.Equal(t, ntp.AuthMD5, at)

	_, err = ParseAuthType("rot13")
	require.Error(t, err)
}

func TestAuthProberWithoutKey(t *testing.T) {
	target := startResponder(t, responder.Config{Skew: 2 * time.Second, Stratum: 2})
	res, err := (&AuthProber{}).Probe(context.Background(), target, time.Second)
	require.NoError(t, err)
	require.InDelta(t, 2000.0, res.OffsetMs, 50)
	require.GreaterOrEqual(t, res.RTTMs, 0.0)
	require.Equal(t, uint8(2), res.Stratum)
	require.True(t, res.UTC.Equal(res.Local))
	require.False(t, res.Authenticated)
}

func TestAuthProberTimeout(t *testing.T) {
	target := startResponder(t, responder.Config{Silent: true})
	p := &AuthProber{KeyType: ntp.AuthSHA1, KeyID: 1, Key: "secret"}
	_, err := p.Probe(context.Background(), target, 200*time.Millisecond)
	require.Error(t, err)
	require.Equal(t, KindNetwork, KindOf(err))
	require.True(t, IsTimeout(err))
}

func TestAuthProberUnsignedReply(t *testing.T) {
	target := startResponder(t, responder.Config{})
	p := &AuthProber{KeyType: ntp.AuthSHA1, KeyID: 1, Key: "secret"}
	_, err := p.Probe(context.Background(), target, time.Second)
	require.Error(t, err)
	require.Equal(t, KindProtocol, KindOf(err))
}
