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

package compute

import (
	"errors"
	"fmt"

	"github.com/cybercodeedulabs/cybercode-backend/internal/quota"
)

// Kind is the error category surfaced to callers.
type Kind string

const (
	KindUnauthorized   Kind = "unauthorized"
	KindInvalidRequest Kind = "invalid_request"
	KindNotFound       Kind = "not_found"
	KindForbidden      Kind = "forbidden"
	KindConflict       Kind = "conflict"
	KindQuotaExceeded  Kind = "quota_exceeded"
	KindHostError      Kind = "host_error"
	KindInternal       Kind = "internal"
)

// Stable error codes.
const (
	CodeUnauthorized          = "unauthorized"
	CodeInvalidRequest        = "invalid_request"
	CodeImageNotAllowed       = "image_not_allowed"
	CodeNotFound              = "not_found"
	CodeForbidden             = "forbidden"
	CodeActiveInstanceExists  = "active_instance_exists"
	CodeFreeTierUsed          = "free_tier_used"
	CodeAlreadyTerminating    = "already_terminating"
	CodeConcurrentUpdate      = "concurrent_update"
	CodeNotRunning            = "instance_not_running"
	CodeProvisioningFailed    = "provisioning_failed"
	CodeHostTerminationFailed = "host_termination_failed"
	CodeHostTimeout           = "host_timeout"
	CodeInternal              = "internal_error"
)

// Store errors. Store implementations return these (possibly wrapped).
var (
	ErrInstanceNotFound = errors.New("instance not found")
	ErrStoreConflict    = errors.New("conflicting concurrent update")
)

// Error is a categorized failure of a compute operation.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Dimension string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the category of err, KindInternal when it is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: "authentication required"}
}

func invalidRequest(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, Code: CodeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func notFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: what + " not found"}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: msg}
}

func conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: msg, Err: err}
}

func hostFailure(code, msg string, err error) *Error {
	return &Error{Kind: KindHostError, Code: code, Message: msg, Err: err}
}

// fromDenial converts a policy decision into a caller-facing error.
func fromDenial(d *quota.Denial) *Error {
	if d.Reason == quota.ReasonQuotaExceeded {
		return &Error{
			Kind:      KindQuotaExceeded,
			Code:      string(d.Reason),
			Message:   d.Message,
			Dimension: string(d.Dimension),
		}
	}
	return &Error{Kind: KindForbidden, Code: string(d.Reason), Message: d.Message}
}
