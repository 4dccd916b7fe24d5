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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cybercodeedulabs/cybercode-backend/internal/audit"
	"github.com/cybercodeedulabs/cybercode-backend/internal/host"
	"github.com/cybercodeedulabs/cybercode-backend/internal/id"
	"github.com/cybercodeedulabs/cybercode-backend/internal/identity"
	"github.com/cybercodeedulabs/cybercode-backend/internal/naming"
	"github.com/cybercodeedulabs/cybercode-backend/internal/observability/logger"
	"github.com/cybercodeedulabs/cybercode-backend/internal/observability/metrics"
	"github.com/cybercodeedulabs/cybercode-backend/internal/quota"
	"github.com/cybercodeedulabs/cybercode-backend/internal/tenant"
)

// Mode selects how provisioning calls are awaited.
type Mode string

const (
	// ModeSync awaits every host call before responding.
	ModeSync Mode = "sync"
	// ModeDetached responds with provisioning rows and reconciles later.
	ModeDetached Mode = "detached"
)

// Request defaults and bounds.
const (
	DefaultPlan  = "student"
	DefaultCount = 1
	DefaultCPU   = 1
	DefaultRAM   = 1
	DefaultDisk  = 2

	nameSuffixLength = 8

	// committedUsageTimeout bounds the usage read that follows a committed
	// create or terminate.
	committedUsageTimeout = 5 * time.Second
)

var planPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

// FreeTier is the fixed shape of the complimentary instance.
type FreeTier struct {
	Image string
	Plan  string
	CPU   int
	RAM   int
	Disk  int
}

// Config configures the Service.
type Config struct {
	Mode        Mode
	MaxBulk     int
	Concurrency int
	FreeTier    FreeTier
	Now         func() time.Time
}

// Service is the instance lifecycle orchestrator.
type Service struct {
	store   Store
	prov    Provisioner
	guard   *quota.Guard
	audit   audit.Logger
	metrics *metrics.Compute
	tracer  trace.Tracer
	cfg     Config
	tasks   dispatcher
}

// NewService creates the orchestrator.
func NewService(store Store, prov Provisioner, auditLogger audit.Logger, m *metrics.Compute, cfg Config) *Service {
	if cfg.Mode == "" {
		cfg.Mode = ModeSync
	}
	if cfg.MaxBulk < 1 {
		cfg.MaxBulk = 1
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.FreeTier == (FreeTier{}) {
		cfg.FreeTier = FreeTier{Image: "ubuntu-22.04", Plan: DefaultPlan, CPU: 1, RAM: 1, Disk: 2}
	}
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{
		store:   store,
		prov:    prov,
		guard:   quota.NewGuard(cfg.Now),
		audit:   auditLogger,
		metrics: m,
		tracer:  otel.Tracer("github.com/cybercodeedulabs/cybercode-backend/internal/compute"),
		cfg:     cfg,
	}
}

// Close stops accepting detached work and waits for in-flight tasks.
func (s *Service) Close(ctx context.Context) error {
	return s.tasks.Close(ctx)
}

// reservation is one validated create call.
type reservation struct {
	image    string
	plan     string
	count    int
	cpu      int
	ram      int
	disk     int
	freeTier bool
}

// CreateInstances reserves and provisions req.Count instances for the caller.
func (s *Service) CreateInstances(ctx context.Context, ident identity.Identity, req CreateRequest) (_ *CreateResult, err error) {
	ctx, span := s.startSpan(ctx, "compute.CreateInstances", ident)
	defer func() { endSpan(span, err) }()

	if ident.AccountID == "" {
		return nil, unauthorized()
	}
	r, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Event{
		Type:           audit.TypeInstanceRequested,
		OrganizationID: ident.OrganizationID,
		ActorID:        ident.AccountID,
		Resource:       "instance",
		Metadata:       map[string]any{"image": r.image, "count": r.count, "cpu": r.cpu, "ram": r.ram, "disk": r.disk},
	})
	return s.create(ctx, ident, r)
}

// CreateFreeInstance reserves and provisions the caller's one complimentary
// instance. A second call always fails with a conflict.
func (s *Service) CreateFreeInstance(ctx context.Context, ident identity.Identity) (_ *CreateResult, err error) {
	ctx, span := s.startSpan(ctx, "compute.CreateFreeInstance", ident)
	defer func() { endSpan(span, err) }()

	if ident.AccountID == "" {
		return nil, unauthorized()
	}
	ft := s.cfg.FreeTier
	if !s.prov.SupportsImage(ft.Image) {
		return nil, internal("free tier image is not available", fmt.Errorf("image %q not in catalog", ft.Image))
	}

	s.audit.Log(ctx, audit.Event{
		Type:           audit.TypeFreeInstanceRequested,
		OrganizationID: ident.OrganizationID,
		ActorID:        ident.AccountID,
		Resource:       "instance",
	})
	return s.create(ctx, ident, reservation{
		image:    ft.Image,
		plan:     ft.Plan,
		count:    1,
		cpu:      ft.CPU,
		ram:      ft.RAM,
		disk:     ft.Disk,
		freeTier: true,
	})
}

func (s *Service) create(ctx context.Context, ident identity.Identity, r reservation) (*CreateResult, error) {
	if !s.tasks.accepting() {
		return nil, internal("service is shutting down", errDispatcherClosed)
	}

	reserved, err := s.reserve(ctx, ident, r)
	if err != nil {
		s.denied(ctx, ident, err)
		return nil, err
	}
	s.metrics.InstancesCreated(ctx, len(reserved), r.freeTier)

	var instances []*Instance
	if s.cfg.Mode == ModeDetached {
		instances = snapshot(reserved)
		bg := context.WithoutCancel(ctx)
		if err := s.tasks.Go(func() { s.provisionAll(bg, reserved) }); err != nil {
			// Shutdown raced the reservation; provision inline.
			instances, err = s.settle(ctx, s.provisionAll(bg, reserved))
			if err != nil {
				return nil, err
			}
		}
	} else {
		instances, err = s.settle(ctx, s.provisionAll(context.WithoutCancel(ctx), reserved))
		if err != nil {
			return nil, err
		}
	}

	return &CreateResult{Instances: instances, Usage: s.committedUsage(ctx, ident.OrganizationID)}, nil
}

// committedUsage reads usage once a change is persisted. It runs detached
// from the caller's deadline and logs failures instead of returning them,
// so the response still reports the stored state.
func (s *Service) committedUsage(ctx context.Context, organizationID string) Usage {
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), committedUsageTimeout)
	defer cancel()
	usage, err := s.store.Usage(uctx, organizationID)
	if err != nil {
		slog.WarnContext(ctx, "failed to compute usage after commit",
			logger.OrganizationID(organizationID),
			logger.Error(err),
		)
	}
	return usage
}

// current re-reads the caller's account so role changes apply to tokens
// issued before them.
func (s *Service) current(ctx context.Context, ident identity.Identity) (identity.Identity, error) {
	if ident.AccountID == "" {
		return ident, unauthorized()
	}
	acct, err := s.store.GetAccount(ctx, ident.AccountID)
	if errors.Is(err, tenant.ErrAccountNotFound) {
		return ident, unauthorized()
	}
	if err != nil {
		return ident, s.storeError("failed to load account", err)
	}
	return withAccount(ident, acct)
}

func withAccount(ident identity.Identity, acct *tenant.Account) (identity.Identity, error) {
	if acct.OrganizationID != ident.OrganizationID {
		return ident, forbidden("account does not belong to the organization in the token")
	}
	ident.Role = acct.Role
	return ident, nil
}

// reserve inserts provisioning rows after every policy check passes, all
// in one transaction holding the organization and account locks.
func (s *Service) reserve(ctx context.Context, ident identity.Identity, r reservation) ([]*Instance, error) {
	prefix := naming.Namespace(ident.Email)
	var reserved []*Instance

	err := s.store.InTx(ctx, func(tx Tx) error {
		reserved = reserved[:0]

		org, err := tx.LockOrganization(ctx, ident.OrganizationID)
		if err != nil {
			return err
		}
		acct, err := tx.LockAccount(ctx, ident.AccountID)
		if err != nil {
			return err
		}
		if acct.OrganizationID != org.ID {
			return forbidden("account does not belong to the organization in the token")
		}

		if r.freeTier {
			used, err := tx.HasFreeTier(ctx, acct.ID)
			if err != nil {
				return err
			}
			if used {
				return conflict(CodeFreeTierUsed, "free instance already used")
			}
		}

		usage, err := tx.OrganizationUsage(ctx, org.ID)
		if err != nil {
			return err
		}
		req := quota.Request{Count: r.count, CPU: r.cpu * r.count, Storage: r.disk * r.count, FreeTier: r.freeTier}
		if err := s.guard.Evaluate(org, acct, usage, req); err != nil {
			var d *quota.Denial
			if errors.As(err, &d) {
				return fromDenial(d)
			}
			return err
		}

		active, err := tx.CountActive(ctx, acct.ID)
		if err != nil {
			return err
		}
		if active > 0 {
			return conflict(CodeActiveInstanceExists, "an active instance already exists for this account")
		}

		now := s.cfg.Now().UTC()
		for i := 0; i < r.count; i++ {
			name, err := naming.Container(prefix, id.Suffix(nameSuffixLength))
			if err != nil {
				return err
			}
			inst := &Instance{
				ID:             id.NewUUIDv7(),
				OwnerAccountID: acct.ID,
				OrganizationID: org.ID,
				Image:          r.image,
				Plan:           r.plan,
				CPU:            r.cpu,
				RAM:            r.ram,
				Disk:           r.disk,
				FreeTier:       r.freeTier,
				Status:         StatusProvisioning,
				HostName:       name,
				CreatedAt:      now,
			}
			if err := tx.InsertInstance(ctx, inst); err != nil {
				return err
			}
			reserved = append(reserved, inst)
		}
		return nil
	})
	if err != nil {
		return nil, s.storeError("failed to reserve instance", err)
	}

	for _, inst := range reserved {
		slog.InfoContext(ctx, "instance reserved",
			logger.InstanceID(inst.ID),
			logger.AccountID(inst.OwnerAccountID),
			logger.OrganizationID(inst.OrganizationID),
			logger.Image(inst.Image),
		)
	}
	return reserved, nil
}

type outcome struct {
	inst *Instance
	err  error
}

// provisionAll issues one host call per instance, at most Concurrency at
// a time, and reconciles each row with its result.
func (s *Service) provisionAll(ctx context.Context, reserved []*Instance) []outcome {
	out := make([]outcome, len(reserved))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, inst := range reserved {
		g.Go(func() error {
			out[i] = s.provisionOne(ctx, inst)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) provisionOne(ctx context.Context, inst *Instance) outcome {
	start := time.Now()
	res, err := s.prov.Provision(ctx, host.Spec{
		InstanceID:     inst.ID,
		OrganizationID: inst.OrganizationID,
		Name:           inst.HostName,
		Image:          inst.Image,
		CPU:            inst.CPU,
		RAMGiB:         inst.RAM,
		DiskGiB:        inst.Disk,
	})
	if err != nil {
		return s.markFailed(ctx, inst, err)
	}

	name := res.ContainerName
	err = s.store.InTx(ctx, func(tx Tx) error {
		return tx.SetStatus(ctx, inst.ID, StatusRunning, &name)
	})
	switch {
	case errors.Is(err, ErrInstanceNotFound):
		// Terminated while provisioning; the container has no owner.
		slog.WarnContext(ctx, "instance removed during provisioning, destroying container",
			logger.InstanceID(inst.ID),
			logger.ContainerName(name),
		)
		if terr := s.prov.Terminate(ctx, name); terr != nil && !errors.Is(terr, host.ErrNotFound) {
			slog.ErrorContext(ctx, "failed to destroy orphaned container",
				logger.ContainerName(name),
				logger.Error(terr),
			)
		}
		return outcome{err: notFound("instance")}
	case err != nil:
		slog.ErrorContext(ctx, "failed to record running instance",
			logger.InstanceID(inst.ID),
			logger.ContainerName(name),
			logger.Error(err),
		)
		return outcome{inst: inst, err: s.storeError("failed to record running instance", err)}
	}

	running := *inst
	running.Status = StatusRunning
	running.ContainerName = &name
	slog.InfoContext(ctx, "instance running",
		logger.InstanceID(inst.ID),
		logger.ContainerName(name),
		logger.Status(string(StatusRunning)),
		logger.Duration(time.Since(start).Milliseconds()),
	)
	s.audit.Log(ctx, audit.Event{
		Type:           audit.TypeInstanceProvisioned,
		OrganizationID: inst.OrganizationID,
		ActorID:        inst.OwnerAccountID,
		Resource:       inst.ID,
		Metadata:       map[string]any{"container": name},
	})
	return outcome{inst: &running}
}

func (s *Service) markFailed(ctx context.Context, inst *Instance, cause error) outcome {
	reason := "rejected"
	if errors.Is(cause, host.ErrTimeout) {
		reason = "timeout"
	}
	s.metrics.InstanceFailed(ctx, reason)
	slog.ErrorContext(ctx, "instance provisioning failed",
		logger.InstanceID(inst.ID),
		logger.OrganizationID(inst.OrganizationID),
		logger.Status(string(StatusFailed)),
		logger.Error(cause),
	)
	s.audit.Log(ctx, audit.Event{
		Type:           audit.TypeInstanceFailed,
		OrganizationID: inst.OrganizationID,
		ActorID:        inst.OwnerAccountID,
		Resource:       inst.ID,
		Metadata:       map[string]any{"reason": reason},
	})

	err := s.store.InTx(ctx, func(tx Tx) error {
		return tx.SetStatus(ctx, inst.ID, StatusFailed, nil)
	})
	if err != nil && !errors.Is(err, ErrInstanceNotFound) {
		slog.ErrorContext(ctx, "failed to record provisioning failure",
			logger.InstanceID(inst.ID),
			logger.Error(err),
		)
	}

	failed := *inst
	failed.Status = StatusFailed
	return outcome{inst: &failed, err: cause}
}

// settle keeps the instances that reached running. When none did, the
// first failure is returned.
func (s *Service) settle(ctx context.Context, outcomes []outcome) ([]*Instance, error) {
	var ok []*Instance
	var firstErr error
	for _, o := range outcomes {
		if o.err == nil {
			ok = append(ok, o.inst)
			continue
		}
		if firstErr == nil {
			firstErr = o.err
		}
	}
	if len(ok) > 0 || firstErr == nil {
		return ok, nil
	}

	var ce *Error
	switch {
	case errors.As(firstErr, &ce):
		return nil, ce
	case errors.Is(firstErr, host.ErrTimeout):
		return nil, hostFailure(CodeHostTimeout, "host did not respond in time", firstErr)
	default:
		return nil, hostFailure(CodeProvisioningFailed, "instance provisioning failed", firstErr)
	}
}

// ListInstances returns the instances visible to the caller, newest first.
func (s *Service) ListInstances(ctx context.Context, ident identity.Identity) ([]*Instance, error) {
	ident, err := s.current(ctx, ident)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListInstances(ctx, ScopeFor(ident))
	if err != nil {
		return nil, s.storeError("failed to list instances", err)
	}
	return list, nil
}

// TerminateInstance destroys an instance and deletes its record. When the
// host refuses, the record is kept in running state.
func (s *Service) TerminateInstance(ctx context.Context, ident identity.Identity, instanceID string) (_ *TerminateResult, err error) {
	ctx, span := s.startSpan(ctx, "compute.TerminateInstance", ident)
	span.SetAttributes(attribute.String("instance.id", instanceID))
	defer func() { endSpan(span, err) }()

	if ident.AccountID == "" {
		return nil, unauthorized()
	}
	if instanceID == "" {
		return nil, invalidRequest("instance id is required")
	}

	var target Instance
	var needsHost bool
	err = s.store.InTx(ctx, func(tx Tx) error {
		acct, err := tx.LockAccount(ctx, ident.AccountID)
		if errors.Is(err, tenant.ErrAccountNotFound) {
			return unauthorized()
		}
		if err != nil {
			return err
		}
		caller, err := withAccount(ident, acct)
		if err != nil {
			return err
		}
		inst, err := tx.LockInstance(ctx, instanceID)
		if err != nil {
			return err
		}
		if !tenant.CanManage(caller.Role, caller.AccountID, caller.OrganizationID, inst.OwnerAccountID, inst.OrganizationID) {
			return forbidden("not allowed to terminate this instance")
		}
		if inst.Status == StatusTerminating {
			return conflict(CodeAlreadyTerminating, "instance is already terminating")
		}
		target = *inst

		if inst.ContainerName == nil || inst.Status == StatusFailed {
			return tx.DeleteInstance(ctx, inst.ID)
		}
		needsHost = true
		return tx.SetStatus(ctx, inst.ID, StatusTerminating, inst.ContainerName)
	})
	if err != nil {
		err = s.storeError("failed to terminate instance", err)
		s.denied(ctx, ident, err)
		return nil, err
	}

	if needsHost {
		if err := s.destroy(ctx, ident, &target); err != nil {
			return nil, err
		}
	}

	s.metrics.InstanceTerminated(ctx)
	slog.InfoContext(ctx, "instance terminated",
		logger.InstanceID(target.ID),
		logger.AccountID(ident.AccountID),
	)
	s.audit.Log(ctx, audit.Event{
		Type:           audit.TypeInstanceTerminated,
		OrganizationID: target.OrganizationID,
		ActorID:        ident.AccountID,
		Resource:       target.ID,
	})

	return &TerminateResult{Success: true, Usage: s.committedUsage(ctx, target.OrganizationID)}, nil
}

// destroy removes the container outside any transaction, then deletes
// the row or reverts it to running.
func (s *Service) destroy(ctx context.Context, ident identity.Identity, inst *Instance) error {
	hostCtx := context.WithoutCancel(ctx)
	name := *inst.ContainerName

	herr := s.prov.Terminate(hostCtx, name)
	if herr != nil && !errors.Is(herr, host.ErrNotFound) {
		slog.ErrorContext(ctx, "host termination failed, reverting to running",
			logger.InstanceID(inst.ID),
			logger.ContainerName(name),
			logger.Error(herr),
		)
		err := s.store.InTx(hostCtx, func(tx Tx) error {
			return tx.SetStatus(hostCtx, inst.ID, StatusRunning, &name)
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to revert instance status",
				logger.InstanceID(inst.ID),
				logger.Error(err),
			)
		}
		s.audit.Log(ctx, audit.Event{
			Type:           audit.TypeTerminationFailed,
			OrganizationID: inst.OrganizationID,
			ActorID:        ident.AccountID,
			Resource:       inst.ID,
		})
		return hostFailure(CodeHostTerminationFailed, "host failed to terminate the instance", herr)
	}
	if herr != nil {
		slog.WarnContext(ctx, "container already absent on host",
			logger.InstanceID(inst.ID),
			logger.ContainerName(name),
		)
	}

	err := s.store.InTx(hostCtx, func(tx Tx) error {
		return tx.DeleteInstance(hostCtx, inst.ID)
	})
	if err != nil && !errors.Is(err, ErrInstanceNotFound) {
		return s.storeError("failed to delete instance", err)
	}
	return nil
}

// GetUsage reports the caller's organization usage, or platform-wide
// usage for admins.
func (s *Service) GetUsage(ctx context.Context, ident identity.Identity) (Usage, error) {
	ident, err := s.current(ctx, ident)
	if err != nil {
		return Usage{}, err
	}
	orgID := ident.OrganizationID
	if ident.Role.IsPlatformAdmin() {
		orgID = ""
	}
	usage, err := s.store.Usage(ctx, orgID)
	if err != nil {
		return Usage{}, s.storeError("failed to compute usage", err)
	}
	return usage, nil
}

// FindRunning returns the running instance using container if the caller
// may manage it.
func (s *Service) FindRunning(ctx context.Context, ident identity.Identity, container string) (*Instance, error) {
	ident, err := s.current(ctx, ident)
	if err != nil {
		return nil, err
	}
	inst, err := s.store.FindByContainerName(ctx, container)
	if err != nil {
		return nil, s.storeError("failed to look up instance", err)
	}
	if !tenant.CanManage(ident.Role, ident.AccountID, ident.OrganizationID, inst.OwnerAccountID, inst.OrganizationID) {
		return nil, forbidden("not allowed to access this instance")
	}
	if inst.Status != StatusRunning {
		return nil, conflict(CodeNotRunning, fmt.Sprintf("instance is %s", inst.Status))
	}
	return inst, nil
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) validate(req CreateRequest) (reservation, error) {
	r := reservation{
		image: req.Image,
		plan:  req.Plan,
		count: req.Count,
		cpu:   req.CPU,
		ram:   req.RAM,
		disk:  req.Disk,
	}
	if r.plan == "" {
		r.plan = DefaultPlan
	}
	if r.count == 0 {
		r.count = DefaultCount
	}
	if r.cpu == 0 {
		r.cpu = DefaultCPU
	}
	if r.ram == 0 {
		r.ram = DefaultRAM
	}
	if r.disk == 0 {
		r.disk = DefaultDisk
	}

	switch {
	case r.image == "":
		return r, invalidRequest("image is required")
	case !planPattern.MatchString(r.plan):
		return r, invalidRequest("invalid plan %q", r.plan)
	case r.count < 1 || r.count > s.cfg.MaxBulk:
		return r, invalidRequest("count must be between 1 and %d", s.cfg.MaxBulk)
	case r.cpu < 1 || r.cpu > host.MaxCPU:
		return r, invalidRequest("cpu must be between 1 and %d", host.MaxCPU)
	case r.ram < 1 || r.ram > host.MaxRAMGiB:
		return r, invalidRequest("ram must be between 1 and %d", host.MaxRAMGiB)
	case r.disk < 1 || r.disk > host.MaxDiskGiB:
		return r, invalidRequest("disk must be between 1 and %d", host.MaxDiskGiB)
	}
	if !s.prov.SupportsImage(r.image) {
		e := invalidRequest("image %q is not available", r.image)
		e.Code = CodeImageNotAllowed
		return r, e
	}
	return r, nil
}

// storeError maps store failures onto the error taxonomy.
func (s *Service) storeError(msg string, err error) error {
	var ce *Error
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, tenant.ErrOrganizationNotFound):
		return notFound("organization")
	case errors.Is(err, tenant.ErrAccountNotFound):
		return notFound("account")
	case errors.Is(err, ErrInstanceNotFound):
		return notFound("instance")
	case errors.Is(err, ErrStoreConflict):
		return conflict(CodeConcurrentUpdate, "request conflicted with a concurrent update, retry")
	default:
		return internal(msg, err)
	}
}

func (s *Service) denied(ctx context.Context, ident identity.Identity, err error) {
	kind := KindOf(err)
	if kind == KindInternal {
		return
	}
	code := CodeOf(err)
	s.metrics.RequestDenied(ctx, code)
	slog.WarnContext(ctx, "request denied",
		logger.AccountID(ident.AccountID),
		logger.OrganizationID(ident.OrganizationID),
		logger.Role(string(ident.Role)),
		logger.ErrorCode(code),
	)
	s.audit.Log(ctx, audit.Event{
		Type:           audit.TypeRequestDenied,
		OrganizationID: ident.OrganizationID,
		ActorID:        ident.AccountID,
		Resource:       "instance",
		Metadata:       map[string]any{"code": code, "kind": string(kind)},
	})
}

func (s *Service) startSpan(ctx context.Context, name string, ident identity.Identity) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("account.id", ident.AccountID),
		attribute.String("organization.id", ident.OrganizationID),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func snapshot(list []*Instance) []*Instance {
	out := make([]*Instance, len(list))
	for i, inst := range list {
		c := *inst
		out[i] = &c
	}
	return out
}
