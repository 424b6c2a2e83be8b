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
	"net"
)

// Kind classifies probe failures
type Kind int

// Kinds of failures
const (
	KindOther Kind = iota
	KindDNS
	KindNetwork
	KindProtocol
	KindIO
)

var kindToString = map[Kind]string{
	KindOther:    "other",
	KindDNS:      "dns",
	KindNetwork:  "network",
	KindProtocol: "protocol",
	KindIO:       "io",
}

func (k Kind) String() string {
	return kindToString[k]
}

// Error is a classified failure of resolution or probing
type Error struct {
	Kind Kind
	Msg  string
	Err  error
	// Timeout is set for network errors caused by an expired deadline
	Timeout bool
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " error: " + e.Msg
	}
	return e.Kind.String() + " error: " + e.Msg + ": " + e.Err.Error()
}

// Unwrap gives access to the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// networkError builds KindNetwork error, flagging timeouts
func networkError(msg string, err error) *Error {
	e := newError(KindNetwork, msg, err)
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		e.Timeout = true
	}
	return e
}

// KindOf returns the classification of err, KindOther for foreign errors
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindOther
}

// IsTimeout tells if err is a network timeout
func IsTimeout(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Timeout
	}
	return false
}
