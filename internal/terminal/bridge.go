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

// Package terminal bridges an authenticated client connection to an
// interactive shell inside a running instance.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cybercodeedulabs/cybercode-backend/internal/audit"
	"github.com/cybercodeedulabs/cybercode-backend/internal/compute"
	"github.com/cybercodeedulabs/cybercode-backend/internal/host"
	"github.com/cybercodeedulabs/cybercode-backend/internal/id"
	"github.com/cybercodeedulabs/cybercode-backend/internal/identity"
	"github.com/cybercodeedulabs/cybercode-backend/internal/naming"
	"github.com/cybercodeedulabs/cybercode-backend/internal/observability/logger"
	"github.com/cybercodeedulabs/cybercode-backend/internal/observability/metrics"
)

// SessionTerminated is sent to the client when the remote shell exits.
const SessionTerminated = "\r\nSession terminated\r\n"

const bufferSize = 4096

// Domain errors
var (
	ErrUnauthorized = errors.New("invalid terminal credential")
	ErrForbidden    = errors.New("instance is outside the caller's namespace")
	ErrUnavailable  = errors.New("instance is not available for a terminal")
	ErrShellFailed  = errors.New("failed to start remote shell")
)

// State is the lifecycle state of one connection.
type State int

const (
	StateConnecting State = iota
	StateAuthorizing
	StateAttached
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorizing:
		return "authorizing"
	case StateAttached:
		return "attached"
	default:
		return "closed"
	}
}

// Verifier checks a bearer credential.
type Verifier interface {
	Verify(raw string) (identity.Identity, error)
}

// Locator finds the running instance behind a container name.
type Locator interface {
	FindRunning(ctx context.Context, ident identity.Identity, container string) (*compute.Instance, error)
}

// Shell opens interactive processes inside containers.
type Shell interface {
	OpenShell(ctx context.Context, container string, pty host.PTY) (host.Process, error)
}

// Request is the handshake of a terminal connection.
type Request struct {
	Token      string
	Container  string
	RemoteAddr string
	UserAgent  string
}

// Config configures a Bridge.
type Config struct {
	PTY     host.PTY
	Audit   audit.Logger
	Metrics *metrics.Compute
}

// Bridge authorizes terminal connections and relays their bytes.
type Bridge struct {
	tokens    Verifier
	instances Locator
	shell     Shell
	cfg       Config

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewBridge creates a Bridge.
func NewBridge(tokens Verifier, instances Locator, shell Shell, cfg Config) *Bridge {
	if cfg.Audit == nil {
		cfg.Audit = audit.NopLogger{}
	}
	if cfg.PTY.Term == "" {
		cfg.PTY.Term = "xterm-color"
	}
	if cfg.PTY.Cols == 0 {
		cfg.PTY.Cols = 120
	}
	if cfg.PTY.Rows == 0 {
		cfg.PTY.Rows = 30
	}
	return &Bridge{
		tokens:    tokens,
		instances: instances,
		shell:     shell,
		cfg:       cfg,
		sessions:  make(map[string]*Session),
	}
}

// Session is one terminal connection.
type Session struct {
	ID        string
	Container string
	Identity  identity.Identity

	state atomic.Int32
	conn  io.Closer
}

// State returns the current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) enter(ctx context.Context, st State) {
	s.state.Store(int32(st))
	slog.DebugContext(ctx, "terminal session state",
		logger.String("session_id", s.ID),
		logger.SessionState(st.String()),
	)
}

// Active returns the number of attached sessions.
func (b *Bridge) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// CloseAll closes every attached session's client connection, which ends
// its relay and kills the remote shell.
func (b *Bridge) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.sessions {
		_ = s.conn.Close()
	}
}

// Serve runs one connection to completion. conn is closed on return.
func (b *Bridge) Serve(ctx context.Context, conn io.ReadWriteCloser, req Request) error {
	s := &Session{ID: id.NewUUIDv7(), Container: req.Container, conn: conn}
	s.enter(ctx, StateConnecting)
	defer s.enter(ctx, StateClosed)

	s.enter(ctx, StateAuthorizing)
	proc, err := b.authorize(ctx, s, req)
	if err != nil {
		_ = conn.Close()
		return err
	}

	s.enter(ctx, StateAttached)
	b.track(s, true)
	defer b.track(s, false)

	detach := b.cfg.Metrics.TerminalAttached(ctx)
	defer detach()
	b.cfg.Metrics.TerminalAttempt(ctx, "attached")
	b.cfg.Audit.Log(ctx, audit.Event{
		Type:           audit.TypeTerminalAttached,
		OrganizationID: s.Identity.OrganizationID,
		ActorID:        s.Identity.AccountID,
		Resource:       req.Container,
		IPAddress:      req.RemoteAddr,
		UserAgent:      req.UserAgent,
	})
	slog.InfoContext(ctx, "terminal attached",
		logger.AccountID(s.Identity.AccountID),
		logger.ContainerName(req.Container),
	)

	remote := relay(conn, proc)

	b.cfg.Audit.Log(ctx, audit.Event{
		Type:           audit.TypeTerminalClosed,
		OrganizationID: s.Identity.OrganizationID,
		ActorID:        s.Identity.AccountID,
		Resource:       req.Container,
		Metadata:       map[string]any{"remote_exit": remote},
	})
	slog.InfoContext(ctx, "terminal closed",
		logger.AccountID(s.Identity.AccountID),
		logger.ContainerName(req.Container),
	)
	return nil
}

// authorize verifies the credential, the namespace of the target and the
// instance record, then starts the shell.
func (b *Bridge) authorize(ctx context.Context, s *Session, req Request) (host.Process, error) {
	ident, err := b.tokens.Verify(req.Token)
	if err != nil {
		return nil, b.deny(ctx, req, "", "invalid_token", errors.Join(ErrUnauthorized, err))
	}
	s.Identity = ident

	if !naming.Valid(req.Container) || !naming.InNamespace(ident.Email, req.Container) {
		return nil, b.deny(ctx, req, ident.AccountID, "namespace_mismatch", ErrForbidden)
	}
	if _, err := b.instances.FindRunning(ctx, ident, req.Container); err != nil {
		return nil, b.deny(ctx, req, ident.AccountID, "instance_unavailable", errors.Join(ErrUnavailable, err))
	}

	proc, err := b.shell.OpenShell(ctx, req.Container, b.cfg.PTY)
	if err != nil {
		b.cfg.Metrics.TerminalAttempt(ctx, "shell_failed")
		slog.ErrorContext(ctx, "failed to open remote shell",
			logger.ContainerName(req.Container),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrShellFailed, err)
	}
	return proc, nil
}

func (b *Bridge) deny(ctx context.Context, req Request, actor, outcome string, err error) error {
	b.cfg.Metrics.TerminalAttempt(ctx, outcome)
	b.cfg.Audit.Log(ctx, audit.Event{
		Type:      audit.TypeTerminalDenied,
		ActorID:   actor,
		Resource:  req.Container,
		Metadata:  map[string]any{"reason": outcome},
		IPAddress: req.RemoteAddr,
		UserAgent: req.UserAgent,
	})
	slog.WarnContext(ctx, "terminal connection denied",
		logger.ContainerName(req.Container),
		logger.ErrorCode(outcome),
	)
	return err
}

func (b *Bridge) track(s *Session, add bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if add {
		b.sessions[s.ID] = s
	} else {
		delete(b.sessions, s.ID)
	}
}
