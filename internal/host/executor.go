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

package host

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Executor runs commands on the host.
type Executor interface {
	// Run executes cmd to completion and returns its standard output. A
	// non-zero exit status is reported as *ExitError.
	Run(ctx context.Context, cmd Command) (string, error)

	// Start launches cmd attached to a pseudo-terminal.
	Start(ctx context.Context, cmd Command, pty PTY) (Process, error)
}

// PTY describes the terminal requested for an interactive process.
type PTY struct {
	Term string
	Cols int
	Rows int
}

// Process is a running interactive command.
type Process interface {
	io.Reader // terminal output
	io.Writer // terminal input

	// Wait blocks until the remote command exits.
	Wait() error

	// Close terminates the remote command and releases the channel.
	Close() error
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Status int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("exit status %d", e.Status)
	}
	return fmt.Sprintf("exit status %d: %s", e.Status, msg)
}
