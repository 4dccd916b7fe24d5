// Copyright 2026 The CyberCode Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package host drives the remote virtualization host. Every operation is a
// fixed command template with validated parameters, sent over a
// non-interactive command channel with a hard per-call timeout.
package host

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error kinds. Test with errors.Is.
var (
	ErrTimeout     = errors.New("host call timed out")
	ErrRejected    = errors.New("host rejected the request")
	ErrNotFound    = errors.New("resource not found on host")
	ErrUnavailable = errors.New("host unavailable")
)

// ErrImageNotAllowed is returned for images outside the catalog.
var ErrImageNotAllowed = errors.New("image is not in the allow-list")

// Error describes a failed host operation.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("host %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("host %s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// classify wraps err from operation op into an *Error of the right kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var he *Error
	if errors.As(err, &he) {
		return err
	}

	var exit *ExitError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Op: op, Kind: ErrTimeout, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Op: op, Kind: ErrTimeout, Err: err}
	case errors.As(err, &exit):
		return &Error{Op: op, Kind: ErrRejected, Err: err}
	default:
		return &Error{Op: op, Kind: ErrUnavailable, Err: err}
	}
}
