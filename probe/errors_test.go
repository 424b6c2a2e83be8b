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
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	require.Equal(t, "dns", KindDNS.String())
	require.Equal(t, "network", KindNetwork.String())
	require.Equal(t, "protocol", KindProtocol.String())
	require.Equal(t, "io", KindIO.String())
	require.Equal(t, "other", KindOther.String())
}

func TestErrorMessage(t *testing.T) {
	err := newError(KindProtocol, "invalid port \"x\"", nil)
	require.Equal(t, "protocol error: invalid port \"x\"", err.Error())

	err = newError(KindIO, "opening socket", os.ErrPermission)
	require.Equal(t, "io error: opening socket: permission denied", err.Error())
	require.ErrorIs(t, err, os.ErrPermission)
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindDNS, "no IPv6 address found for 'x'", nil))
	require.Equal(t, KindDNS, KindOf(err))
	require.Equal(t, KindOther, KindOf(errors.New("foreign")))
	require.Equal(t, KindOther, KindOf(nil))
}

func TestNetworkErrorTimeout(t *testing.T) {
	err := networkError("reading", context.DeadlineExceeded)
	require.True(t, err.Timeout)
	require.True(t, IsTimeout(err))
	require.Equal(t, KindNetwork, err.Kind)

	err = networkError("reading", errors.New("connection refused"))
	require.False(t, IsTimeout(err))
	require.False(t, IsTimeout(errors.New("foreign")))
}
