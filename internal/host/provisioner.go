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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cybercodeedulabs/cybercode-backend/internal/naming"
	"github.com/cybercodeedulabs/cybercode-backend/internal/observability/logger"
	"github.com/cybercodeedulabs/cybercode-backend/internal/observability/metrics"
)

const (
	defaultCommandTimeout = 60 * time.Second
	defaultShellUser      = "c3user"
)

// Spec describes one instance to launch.
type Spec struct {
	InstanceID     string
	OrganizationID string
	Name           string
	Image          string
	CPU            int
	RAMGiB         int
	DiskGiB        int
}

// Result is the outcome of a successful launch.
type Result struct {
	ContainerName string
}

// Config configures a Provisioner.
type Config struct {
	Catalog        *Catalog
	CommandTimeout time.Duration
	ShellUser      string
	Metrics        *metrics.Compute
	Logger         *slog.Logger
}

// Provisioner performs the host side of the instance lifecycle.
type Provisioner struct {
	exec      Executor
	catalog   *Catalog
	timeout   time.Duration
	shellUser string
	metrics   *metrics.Compute
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewProvisioner creates a Provisioner on top of exec.
func NewProvisioner(exec Executor, cfg Config) (*Provisioner, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}
	p := &Provisioner{
		exec:      exec,
		catalog:   cfg.Catalog,
		timeout:   cfg.CommandTimeout,
		shellUser: cfg.ShellUser,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		tracer:    otel.Tracer("github.com/cybercodeedulabs/cybercode-backend/internal/host"),
	}
	if p.catalog == nil {
		p.catalog = DefaultCatalog()
	}
	if p.timeout <= 0 {
		p.timeout = defaultCommandTimeout
	}
	if p.shellUser == "" {
		p.shellUser = defaultShellUser
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if _, err := shell("probe", p.shellUser); err != nil {
		return nil, err
	}
	return p, nil
}

// SupportsImage reports whether image is in the allow-list.
func (p *Provisioner) SupportsImage(image string) bool {
	_, ok := p.catalog.Resolve(image)
	return ok
}

// Provision ensures the organization's network and profile exist, then
// launches a container named spec.Name with the requested limits.
func (p *Provisioner) Provision(ctx context.Context, spec Spec) (_ Result, err error) {
	ctx, span := p.tracer.Start(ctx, "host.Provision", trace.WithAttributes(
		attribute.String("instance.id", spec.InstanceID),
		attribute.String("instance.image", spec.Image),
	))
	defer func() { endSpan(span, err) }()

	ref, ok := p.catalog.Resolve(spec.Image)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrImageNotAllowed, spec.Image)
	}
	if spec.OrganizationID == "" {
		return Result{}, fmt.Errorf("organization is required")
	}

	network := naming.Network(spec.OrganizationID)
	profile := naming.Profile(spec.OrganizationID)
	if err := p.ensureNetwork(ctx, network); err != nil {
		return Result{}, err
	}
	if err := p.ensureProfile(ctx, profile, network); err != nil {
		return Result{}, err
	}

	name := spec.Name
	cmd, err := launch(ref, name, profile, spec.CPU, spec.RAMGiB, spec.DiskGiB)
	if err != nil {
		return Result{}, err
	}
	if _, err := p.run(ctx, cmd); err != nil {
		if errors.Is(err, ErrTimeout) {
			p.discard(ctx, name)
		}
		return Result{}, err
	}

	p.logger.InfoContext(ctx, "container launched",
		logger.InstanceID(spec.InstanceID),
		logger.ContainerName(name),
		logger.Image(spec.Image),
	)
	return Result{ContainerName: name}, nil
}

// Terminate removes a container. It returns an error matching ErrNotFound
// when the host has no such container.
func (p *Provisioner) Terminate(ctx context.Context, container string) (err error) {
	ctx, span := p.tracer.Start(ctx, "host.Terminate", trace.WithAttributes(
		attribute.String("container.name", container),
	))
	defer func() { endSpan(span, err) }()

	probe, err := info(container)
	if err != nil {
		return err
	}
	if _, err := p.run(ctx, probe); err != nil {
		return err
	}

	del, err := destroy(container)
	if err != nil {
		return err
	}
	if _, err := p.run(ctx, del); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "container deleted", logger.ContainerName(container))
	return nil
}

// OpenShell starts an interactive login shell inside container as the
// unprivileged shell user.
func (p *Provisioner) OpenShell(ctx context.Context, container string, pty PTY) (Process, error) {
	cmd, err := shell(container, p.shellUser)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	proc, err := p.exec.Start(ctx, cmd, pty)
	p.metrics.HostCall(ctx, cmd.Op(), time.Since(start), err)
	if err != nil {
		return nil, classify(cmd.Op(), err)
	}
	return proc, nil
}

func (p *Provisioner) ensureNetwork(ctx context.Context, network string) error {
	show, err := networkShow(network)
	if err != nil {
		return err
	}
	create, err := networkCreate(network)
	if err != nil {
		return err
	}
	return p.ensure(ctx, show, create)
}

func (p *Provisioner) ensureProfile(ctx context.Context, profile, network string) error {
	show, err := profileShow(profile)
	if err != nil {
		return err
	}
	create, err := profileCreate(profile)
	if err != nil {
		return err
	}
	if err := p.ensure(ctx, show, create); err != nil {
		return err
	}

	nic, err := profileNIC(profile)
	if err != nil {
		return err
	}
	attach, err := profileAttach(profile, network)
	if err != nil {
		return err
	}

	bound, err := p.run(ctx, nic)
	if err == nil {
		return checkBinding(profile, network, bound)
	}
	if !errors.Is(err, ErrRejected) {
		return err
	}
	if _, err := p.run(ctx, attach); err != nil {
		if !errors.Is(err, ErrRejected) {
			return err
		}
		// Lost a race with a concurrent attach; the binding must now exist.
		bound, again := p.run(ctx, nic)
		if again != nil {
			return err
		}
		return checkBinding(profile, network, bound)
	}
	return nil
}

// ensure runs create when show fails, tolerating a concurrent creator.
func (p *Provisioner) ensure(ctx context.Context, show, create Command) error {
	_, err := p.run(ctx, show)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrRejected) {
		return err
	}
	if _, err := p.run(ctx, create); err != nil {
		if !errors.Is(err, ErrRejected) {
			return err
		}
		if _, again := p.run(ctx, show); again != nil {
			return err
		}
	}
	return nil
}

func checkBinding(profile, network, bound string) error {
	if got := strings.TrimSpace(bound); got != network {
		return &Error{Op: "profile_nic", Kind: ErrRejected,
			Err: fmt.Errorf("profile %s is attached to network %q, want %q", profile, got, network)}
	}
	return nil
}

// discard removes a container possibly left behind by a launch that timed out.
func (p *Provisioner) discard(ctx context.Context, name string) {
	cmd, err := destroy(name)
	if err != nil {
		return
	}
	if _, err := p.run(context.WithoutCancel(ctx), cmd); err != nil && !errors.Is(err, ErrNotFound) {
		p.logger.WarnContext(ctx, "failed to discard container after launch error",
			logger.ContainerName(name),
			logger.Error(err),
		)
	}
}

// run executes cmd under the per-command timeout and classifies failures.
func (p *Provisioner) run(ctx context.Context, cmd Command) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	out, err := p.exec.Run(ctx, cmd)
	elapsed := time.Since(start)
	p.metrics.HostCall(ctx, cmd.Op(), elapsed, err)
	if err == nil {
		return out, nil
	}

	var herr error
	var exit *ExitError
	switch {
	case errors.As(err, &exit) && strings.Contains(strings.ToLower(exit.Stderr), "not found") &&
		(cmd.Op() == "info" || cmd.Op() == "delete"):
		herr = &Error{Op: cmd.Op(), Kind: ErrNotFound, Err: err}
	case ctx.Err() != nil && !errors.Is(err, context.Canceled):
		herr = &Error{Op: cmd.Op(), Kind: ErrTimeout, Err: err}
	default:
		herr = classify(cmd.Op(), err)
	}

	// Absent objects are answers to show and info probes.
	level := slog.LevelWarn
	if exit != nil && strings.Contains(strings.ToLower(exit.Stderr), "not found") {
		level = slog.LevelDebug
	}
	p.logger.Log(ctx, level, "host command failed",
		logger.HostOp(cmd.Op()),
		logger.Duration(elapsed.Milliseconds()),
		logger.Error(err),
	)
	return out, herr
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
