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

// Package dscp marks outgoing packets with a DSCP value
package dscp

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Max is the largest DSCP value
const Max = 63

// Enable sets DSCP on the socket. ip is the address the socket talks to, it picks the address family.
func Enable(conn net.Conn, ip net.IP, dscp int) error {
	if dscp < 0 || dscp > Max {
		return fmt.Errorf("dscp %d is out of range 0-%d", dscp, Max)
	}
	// DSCP is the upper 6 bits of TOS / traffic class
	if ip.To4() != nil {
		if err := ipv4.NewConn(conn).SetTOS(dscp << 2); err != nil {
			return fmt.Errorf("setting TOS: %w", err)
		}
		return nil
	}
	if err := ipv6.NewConn(conn).SetTrafficClass(dscp << 2); err != nil {
		return fmt.Errorf("setting traffic class: %w", err)
	}
	return nil
}
