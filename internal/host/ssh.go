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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultPort         = 22
	defaultDialTimeout  = 5 * time.Second
	defaultDialAttempts = 3
	dialRetryInterval   = 200 * time.Millisecond
)

// SSHConfig holds the control channel settings.
type SSHConfig struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte

	// DialTimeout bounds the TCP connect and the SSH handshake.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// DialAttempts is how many times a refused or timed out TCP connect is
	// tried before giving up. The handshake is never retried.
	// If zero, defaultDialAttempts is used.
	DialAttempts int

	// HostKeyCallback verifies the host key. It is required; use
	// KnownHosts to build one from a known_hosts file.
	HostKeyCallback ssh.HostKeyCallback
}

// SSHExecutor runs commands on the host over SSH. It parses the private
// key once during construction and opens a connection per call.
type SSHExecutor struct {
	config *SSHConfig
	signer ssh.Signer
}

// KnownHosts builds a strict host key callback from a known_hosts file.
func KnownHosts(path string) (ssh.HostKeyCallback, error) {
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}
	return cb, nil
}

// NewSSHExecutor validates cfg and parses the private key.
func NewSSHExecutor(cfg *SSHConfig) (*SSHExecutor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}
	if cfg.HostKeyCallback == nil {
		return nil, fmt.Errorf("config host key callback cannot be nil")
	}

	configCopy := *cfg
	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.DialAttempts <= 0 {
		configCopy.DialAttempts = defaultDialAttempts
	}

	signer, err := ssh.ParsePrivateKey(configCopy.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &SSHExecutor{config: &configCopy, signer: signer}, nil
}

// Run executes cmd and returns its standard output. Cancelling ctx kills
// the remote command and drops the connection.
func (e *SSHExecutor) Run(ctx context.Context, cmd Command) (string, error) {
	client, err := e.connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create SSH session on %s: %w", e.config.Host, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd.String()) }()

	select {
	case err := <-done:
		if err == nil {
			return stdout.String(), nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), &ExitError{Status: exitErr.ExitStatus(), Stderr: stderr.String()}
		}
		return stdout.String(), fmt.Errorf("command %s failed on %s: %w", cmd.Op(), e.config.Host, err)
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = client.Close()
		<-done
		return "", ctx.Err()
	}
}

// Start launches cmd on a pseudo-terminal. ctx bounds connection setup
// only; the returned Process lives until Close or remote exit.
func (e *SSHExecutor) Start(ctx context.Context, cmd Command, pty PTY) (Process, error) {
	client, err := e.connect(ctx)
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create SSH session on %s: %w", e.config.Host, err)
	}

	fail := func(step string, err error) (Process, error) {
		_ = session.Close()
		_ = client.Close()
		return nil, fmt.Errorf("failed to %s: %w", step, err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(pty.Term, pty.Rows, pty.Cols, modes); err != nil {
		return fail("request pty", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		return fail("open stdin", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return fail("open stdout", err)
	}
	if err := session.Start(cmd.String()); err != nil {
		return fail("start "+cmd.Op(), err)
	}

	return &sshProcess{client: client, session: session, stdin: stdin, stdout: stdout}, nil
}

func (e *SSHExecutor) connect(ctx context.Context) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User:            e.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(e.signer)},
		HostKeyCallback: e.config.HostKeyCallback,
		Timeout:         e.config.DialTimeout,
	}

	addr := net.JoinHostPort(e.config.Host, strconv.Itoa(e.config.Port))
	dialer := net.Dialer{Timeout: e.config.DialTimeout}
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = dialRetryInterval
	conn, err := backoff.Retry(ctx, func() (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp", addr)
	}, backoff.WithBackOff(retry), backoff.WithMaxTries(uint(e.config.DialAttempts)))
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	deadline := time.Now().Add(e.config.DialTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("SSH handshake with %s failed: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}

type sshProcess struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	once    sync.Once
}

func (p *sshProcess) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *sshProcess) Write(b []byte) (int, error) { return p.stdin.Write(b) }

func (p *sshProcess) Wait() error {
	err := p.session.Wait()
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Status: exitErr.ExitStatus()}
	}
	return err
}

func (p *sshProcess) Close() error {
	var err error
	p.once.Do(func() {
		_ = p.session.Signal(ssh.SIGKILL)
		_ = p.stdin.Close()
		_ = p.session.Close()
		err = p.client.Close()
	})
	return err
}
