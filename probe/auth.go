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
	"net"
	"strings"
	"time"

	"github.com/aguacero7/rkik/ntp/protocol"
	"github.com/beevik/ntp"
)

var authTypes = map[string]ntp.AuthType{
	"md5":    ntp.AuthMD5,
	"sha1":   ntp.AuthSHA1,
	"sha256": ntp.AuthSHA256,
	"sha512": ntp.AuthSHA512,
	"aes128": ntp.AuthAES128,
	"aes256": ntp.AuthAES256,
}

// ParseAuthType converts key type name (md5, sha1, sha256, sha512, aes128, aes256) into ntp.AuthType
func ParseAuthType(name string) (ntp.AuthType, error) {
	t, ok := authTypes[strings.ToLower(name)]
	if !ok {
		return ntp.AuthNone, fmt.Errorf("unknown key type %q", name)
	}
	return t, nil
}

// AuthProber does NTP exchange authenticated with a symmetric key
type AuthProber struct {
	KeyType ntp.AuthType
	KeyID   uint16
	// Key is ASCII or hex encoded key
	Key       string
	Version   int
	LocalAddr net.IP
}

// Probe implements Prober
func (p *AuthProber) Probe(ctx context.Context, target Target, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	version := p.Version
	if version == 0 {
		version = 4
	}
	opts := ntp.QueryOptions{
		Timeout: timeout,
		Version: version,
		Auth: ntp.AuthOptions{
			Type:  p.KeyType,
			Key:   p.Key,
			KeyID: p.KeyID,
		},
		Dialer: func(_, remoteAddress string) (net.Conn, error) {
			d := &net.Dialer{}
			if p.LocalAddr != nil {
				d.LocalAddr = &net.UDPAddr{IP: p.LocalAddr}
			}
			return d.DialContext(ctx, "udp", remoteAddress)
		},
	}

	resp, err := ntp.QueryWithOptions(target.Addr(), opts)
	received := time.Now()
	if err != nil {
		var nerr net.Error
		switch {
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, newError(KindNetwork, "probe cancelled", context.Canceled)
		case errors.As(err, &nerr) || errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, networkError(fmt.Sprintf("querying %s", target.Addr()), err)
		case errors.Is(err, ntp.ErrAuthFailed):
			return nil, newError(KindProtocol, fmt.Sprintf("authentication with %s failed", target.Addr()), err)
		default:
			return nil, newError(KindProtocol, fmt.Sprintf("querying %s", target.Addr()), err)
		}
	}
	if err := resp.Validate(); err != nil {
		msg := fmt.Sprintf("bad response from %s", target.Addr())
		if resp.KissCode != "" {
			msg = fmt.Sprintf("kiss of death %q from %s", resp.KissCode, target.Addr())
		}
		return nil, newError(KindProtocol, msg, err)
	}

	utc := received.Add(resp.ClockOffset).UTC()
	return &Result{
		Target:        target,
		OffsetMs:      float64(resp.ClockOffset.Nanoseconds()) / float64(time.Millisecond),
		RTTMs:         float64(resp.RTT.Nanoseconds()) / float64(time.Millisecond),
		Stratum:       resp.Stratum,
		RefID:         protocol.RefIDString(resp.Stratum, resp.ReferenceID),
		UTC:           utc,
		Local:         utc.Local(),
		Timestamp:     utc.Unix(),
		Authenticated: p.KeyType != ntp.AuthNone && p.Key != "",
	}, nil
}
