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

package compute_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cybercodeedulabs/cybercode-backend/internal/compute"
	"github.com/cybercodeedulabs/cybercode-backend/internal/host"
	"github.com/cybercodeedulabs/cybercode-backend/internal/identity"
	"github.com/cybercodeedulabs/cybercode-backend/internal/quota"
	"github.com/cybercodeedulabs/cybercode-backend/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates a CPU quota is enforced across consecutive creates.
// Scope: Unit Test
// Expected: cpu 2 of 4 succeeds and runs; a following cpu 3 request fails with quota_exceeded on cpu.
// Test Case ID: CMP-01
func TestService_CPUQuotaSequential(t *testing.T) {
	f := newFixture(t, compute.Config{}, nil)
	f.org(t, "org-1", tenant.Quotas{CPU: 4, Storage: 50, Instances: 5})
	alice := f.account(t, "alice", "org-1", tenant.RoleDeveloper)
	ctx := context.Background()

	res, err := f.svc.CreateInstances(ctx, alice, compute.CreateRequest{Image: "ubuntu-22.04", CPU: 2, Count: 1})
	require.NoError(t, err)
	require.Len(t, res.Instances, 1)
	inst := res.Instances[0]
	assert.Equal(t, compute.StatusRunning, inst.Status)
	require.NotNil(t, inst.ContainerName)
	assert.True(t, strings.HasPrefix(*inst.ContainerName, "c3-alice-"))
	assert.Equal(t, 2, res.Usage.CPUUsed)
	assert.Equal(t, 4, res.Usage.CPUQuota)
	assert.Equal(t, "student", inst.Plan)
	assert.Equal(t, 2, inst.Disk)

	_, err = f.svc.CreateInstances(ctx, alice, compute.CreateRequest{Image: "ubuntu-22.04", CPU: 3})
	requireKind(t, err, compute.KindQuotaExceeded, "quota_exceeded")
	var ce *compute.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, string(quota.DimensionCPU), ce.Dimension)
	assert.Len(t, f.all(t), 1)
}

// TestPurpose: Validates the free instance is granted once per account.
// Scope: Unit Test
// Security: Complimentary resources cannot be claimed twice
// Expected: First call yields a running free-tier instance; the repeat is a conflict and creates nothing.
// Test Case ID: CMP-02
func TestService_FreeInstanceOnce(t *testing.T) {
	f := newFixture(t, compute.Config{}, nil)
	f.org(t, "org-1", tenant.Quotas{CPU: 0, Storage: 0, Instances: 3})
	bob := f.account(t, "bob", "org-1", tenant.RoleIndividual)
	ctx := context.Background()

	res, err := f.svc.CreateFreeInstance(ctx, bob)
	require.NoError(t, err)
	require.Len(t, res.Instances, 1)
	assert.True(t, res.Instances[0].FreeTier)
	assert.Equal(t, "ubuntu-22.04", res.Instances[0].Image)
	assert.Equal(t, 0, res.Usage.CPUUsed)
	assert.Equal(t, 1, res.Usage.InstanceCount)

	_, err = f.svc.CreateFreeInstance(ctx, bob)
	requireKind(t, err, compute.KindConflict, compute.CodeFreeTierUsed)
	assert.Len(t, f.all(t), 1)

	_, err = f.svc.CreateInstances(ctx, bob, compute.CreateRequest{Image: "ubuntu-22.04"})
	requireKind(t, err, compute.KindQuotaExceeded, "")
}

// TestPurpose: Validates a full create, terminate and list cycle.
// Scope: Unit Test
// Expected: After termination the instance is gone from listings, from the host and from usage.
// Test Case ID: CMP-03
func TestService_CreateTerminateList(t *testing.T) {
	f := newFixture(t, compute.Config{}, nil)
	f.org(t, "org-1", tenant.Quotas{CPU: 8, Storage: 50, Instances: 5})
	carol := f.account(t, "carol", "org-1", tenant.RoleDeveloper)
	ctx := context.Background()

	res, err := f.svc.CreateInstances(ctx, carol, compute.CreateRequest{Image: "debian-12", CPU: 2, RAM: 2, Disk: 10})
	require.NoError(t, err)
	inst := res.Instances[0]
	assert.Equal(t, 10, res.Usage.StorageUsed)
	assert.Len(t, f.host.Containers(), 1)

	list, err := f.svc.ListInstances(ctx, carol)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, inst.ID, list[0].ID)

	out, err := f.svc.TerminateInstance(ctx, carol, inst.ID)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 0, out.Usage.CPUUsed)
	assert.Equal(t, 0, out.Usage.StorageUsed)

	list, err = f.svc.ListInstances(ctx, carol)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.host.Containers())

	usage, err := f.svc.GetUsage(ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.InstanceCount)
}

// TestPurpose: Validates quotas hold under concurrent creates from many accounts.
// Scope: Unit Test
// Security: Racing requests cannot oversubscribe an organization
// Expected: Exactly quota/cpu requests succeed; active CPU never exceeds the quota.
// Test Case ID: CMP-04
func TestService_QuotaUnderConcurrency(t *testing.T) {
	f := newFixture(t, compute.Config{}, nil)
	f.org(t, "org-1", tenant.Quotas{CPU: 4, Storage: 100, Instances: 10})
	ctx := context.Background()

	var ok, exceeded atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		ident := f.account(t, "user"+string(rune('a'+i)), "org-1", tenant.RoleDeveloper)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateInstances(ctx, ident, compute.CreateRequest{Image: "ubuntu-22.04", CPU: 1})
			switch {
			case err == nil:
				ok.Add(1)
			case compute.KindOf(err) == compute.KindQuotaExceeded:
				exceeded.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 4, ok.Load())
	assert.EqualValues(t, 8, exceeded.Load())

	cpu := 0
	for _, inst := range f.all(t) {
		if inst.Status.Active() {
			cpu += inst.CPU
		}
	}
	assert.LessOrEqual(t, cpu, 4)
}

// TestPurpose: Validates the single active instance policy under duplicate requests.
// Scope: Unit Test
// Expected: One of many concurrent creates by the same account succeeds; the rest conflict.
// Test Case ID: CMP-05
func TestService_SingleActiveConcurrent(t *testing.T) {
	f := newFixture(t, compute.Config{}, nil)
	f.org(t, "org-1", tenant.Quotas{CPU: 64, Storage: 500, Instances: 50})
	dave := f.account(t, "dave", "org-1", tenant.RoleDeveloper)
	ctx := context.Background()

	var ok, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateInstances(ctx, dave, compute.CreateRequest{Image: "ubuntu-22.04"})
			if err == nil {
				ok.Add(1)
			} else if compute.CodeOf(err) == compute.CodeActiveInstanceExists {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 7, conflicts.Load())
	assert.Len(t, f.all(t), 1)
}

// TestPurpose: Validates bulk creation and its bounds.
// Scope: Unit Test
// Expected: count 3 creates three running instances; a count over the bulk limit is an invalid request.
// Test Case ID: CMP-06
func TestService_BulkCreate(t *testing.T) {
	f := newFixture(t, compute.Config{MaxBulk: 3}, nil)
	f.org(t, "org-1", tenant.Quotas{CPU: 16, Storage: 100, Instances: 10})
	erin := f.account(t, "erin", "org-1", tenant.RoleDeveloper)
	ctx := context.Background()

	_, err := f.svc.CreateInstances(ctx, erin, compute.CreateRequest{Image: "ubuntu-22.04", Count: 4})
	requireKind(t, err, compute.KindInvalidRequest, compute.CodeInvalidRequest)

	res, err := f.svc.CreateInstances(ctx, erin, compute.CreateRequest{Image: "ubuntu-22.04", Count: 3, CPU: 2})
	require.NoError(t, err)
	assert.Len(t, res.Instances, 3)
	assert.Equal(t, 6, res.Usage.CPUUsed)
	assert.Len(t, f.host.Containers(), 3)

	_, err = f.svc.CreateInstances(ctx, erin, compute.CreateRequest{Image: "ubuntu-22.04"})
	requireKind(t, err, compute.KindConflict, compute.CodeActiveInstanceExists)
}

// TestPurpose: Validates request validation happens before any host or store work.
// Scope: Unit Test
// Security: Unlisted images never reach the host
// Expected: Unknown images and bad sizes are invalid requests; the provisioner is never asked to launch.
// Test Case ID: CMP-07
func TestService_ImageAllowList(t *testing.T) {
	prov := new(mockProvisioner)
	prov.On("SupportsImage", "ubuntu-22.04").Return(true)
	prov.On("SupportsImage", mock.Anything).Return(false)

	f := newFixture(t, compute.Config{}, prov)
	f.org(t, "org-1", tenant.Quotas{CPU: 8, Storage: 50, Instances: 5})
	frank := f.account(t, "frank", "org-1", tenant.RoleDeveloper)
	ctx := context.Background()

	_, err := f.svc.CreateInstances(ctx, frank, compute.CreateRequest{Image: "ubuntu:22.04; reboot"})
	requireKind(t, err, compute.KindInvalidRequest, compute.CodeImageNotAllowed)
	_, err = f.svc.CreateInstances(ctx, frank, compute.CreateRequest{})
	requireKind(t, err, compute.KindInvalidRequest, "")
	_, err = f.svc.CreateInstances(ctx, frank, compute.CreateRequest{Image: "ubuntu-22.04", CPU: -1})
	requireKind(t, err, compute.KindInvalidRequest, "")
	_, err = f.svc.CreateInstances(ctx, frank, compute.CreateRequest{Image: "ubuntu-22.04", Plan: "Gold Plan!"})
	requireKind(t, err, compute.KindInvalidRequest, "")

	prov.AssertNotCalled(t, "Provision", mock.Anything, mock.Anything)
	assert.Empty(t, f.all(t))
}

// TestPurpose: Validates a host failure during provisioning is recorded, not hidden.
// Scope: Unit Test
// Expected: provisioning_failed is returned, the row is kept as failed, and terminating it needs no host call.
// Test Case ID: CMP-08
func TestService_ProvisioningFailure(t *testing.T) {
	prov := new(mockProvisioner)
	prov.On("SupportsImage", mock.Anything).Return(true)
	prov.On("Provision", mock.Anything, mock.Anything).
		Return(nil, &host.Error{Op: "launch", Kind: host.ErrRejected}).Once()

	f := newFixture(t, compute.Config{}, prov)
	f.org(t, "org-1", tenant.Quotas{CPU: 8, Storage: 50, Instances: 5})
	gina := f.account(t, "gina", "org-1", tenant.RoleDeveloper)
	ctx := context.Background()

	_, err := f.svc.CreateInstances(ctx, gina, compute.CreateRequest{Image: "ubuntu-22.04"})
	requireKind(t, err, compute.KindHostError, compute.CodeProvisioningFailed)

	rows := f.all(t)
	require.Len(t, rows, 1)
	assert.Equal(t, compute.StatusFailed, rows[0].Status)
	assert.Nil(t, rows[0].ContainerName)

	usage, err := f.svc.GetUsage(ctx, gina)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.CPUUsed)

	out, err := f.svc.TerminateInstance(ctx, gina, rows[0].ID)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Empty(t, f.all(t))
	prov.AssertNotCalled(t, "Terminate", mock.Anything, mock.Anything)

	prov.On("Provision", mock.Anything, mock.Anything).
		Return(nil, &host.Error{Op: "launch", Kind: host.ErrTimeout}).Once()
	_, err = f.svc.CreateInstances(ctx, gina, compute.CreateRequest{Image: "ubuntu-22.04"})
	requireKind(t, err, compute.KindHostError, compute.CodeHostTimeout)
}

// TestPurpose: Validates a failed host termination keeps the record.
// Scope: Unit Test
// Expected: host_termination_failed; the row exists and is running again.
// Test Case ID: CMP-09
func TestService_TerminationFailureReverts(t *testing.T) {
	prov := new(mockProvisioner)
	prov.On("SupportsImage", mock.Anything).Return(true)
	prov.On("Provision", mock.Anything, mock.Anything).Return(nil, nil)
	prov.On("Terminate", mock.Anything, mock.Anything).Return(&host.Error{Op: "delete", Kind: host.ErrRejected}).Once()

	f := newFixture(t, compute.Config{}, prov)
	f.org(t, "org-1", tenant.Quotas{CPU: 8, Storage: 50, Instances: 5})
	hank := f.account(t, "hank", "org-1", tenant.RoleDeveloper)
	ctx := context.Background()

	res, err := f.svc.CreateInstances(ctx, hank, compute.CreateRequest{Image: "ubuntu-22.04"})
	require.NoError(t, err)
	id := res.Instances[0].ID

	_, err = f.svc.TerminateInstance(ctx, hank, id)
	requireKind(t, err, compute.KindHostError, compute.CodeHostTerminationFailed)

	rows := f.all(t)
	require.Len(t, rows, 1)
	assert.Equal(t, compute.StatusRunning, rows[0].Status)
	assert.NotNil(t, rows[0].ContainerName)

	// A container already gone on the host is treated as cleaned up.
	prov.On("Terminate", mock.Anything, mock.Anything).Return(&host.Error{Op: "info", Kind: host.ErrNotFound}).Once()
	out, err := f.svc.TerminateInstance(ctx, hank, id)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Empty(t, f.all(t))
}

// TestPurpose: Validates concurrent terminate calls on one instance.
// Scope: Unit Test
// Expected: Exactly one succeeds; the other sees already_terminating or not_found.
// Test Case ID: CMP-10
func TestService_DoubleTerminate(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	prov := new(mockProvisioner)
	prov.On("SupportsImage", mock.Anything).Return(true)
	prov.On("Provision", mock.Anything, mock.Anything).Return(nil, nil)
	prov.On("Terminate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			entered <- struct{}{}
			<-release
		}).
		Return(nil)

	f := newFixture(t, compute.Config{}, prov)
	f.org(t, "org-1", tenant.Quotas{CPU: 8, Storage: 50, Instances: 5})
	ivy := f.account(t, "ivy", "org-1", tenant.RoleDeveloper)
	ctx := context.Background()

	res, err := f.svc.CreateInstances(ctx, ivy, compute.CreateRequest{Image: "ubuntu-22.04"})
	require.NoError(t, err)
	id := res.Instances[0].ID

	errs := make(chan error, 2)
	go func() {
		_, err := f.svc.TerminateInstance(ctx, ivy, id)
		errs <- err
	}()
	<-entered

	rows := f.all(t)
	require.Len(t, rows, 1)
	assert.Equal(t, compute.StatusTerminating, rows[0].Status)

	_, err = f.svc.TerminateInstance(ctx, ivy, id)
	requireKind(t, err, compute.KindConflict, compute.CodeAlreadyTerminating)

	close(release)
	require.NoError(t, <-errs)
	prov.AssertNumberOfCalls(t, "Terminate", 1)

	_, err = f.svc.TerminateInstance(ctx, ivy, id)
	requireKind(t, err, compute.KindNotFound, "")
}

// TestPurpose: Validates role-based visibility and termination rights.
// Scope: Unit Test
// Security: Members cannot see or act on each other's instances; org admins are confined to their organization
// Expected: Listings are scoped by role; foreign terminations are forbidden.
// Test Case ID: CMP-11
func TestService_RoleScoping(t *testing.T) {
	f := newFixture(t, compute.Config{}, nil)
	f.org(t, "org-1", tenant.Quotas{CPU: 8, Storage: 50, Instances: 5})
	f.org(t, "org-2", tenant.Quotas{CPU: 8, Storage: 50, Instances: 5})
	jack := f.account(t, "jack", "org-1", tenant.RoleDeveloper)
	kate := f.account(t, "kate", "org-1", tenant.RoleDeveloper)
	lead := f.account(t, "lead", "org-1", tenant.RoleOrgAdmin)
	other := f.account(t, "other", "org-2", tenant.RoleOrgAdmin)
	root := f.account(t, "root", "org-2", tenant.RoleAdmin)
	ctx := context.Background()

	jres, err := f.svc.CreateInstances(ctx, jack, compute.CreateRequest{Image: "ubuntu-22.04"})
	require.NoError(t, err)
	_, err = f.svc.CreateInstances(ctx, kate, compute.CreateRequest{Image: "ubuntu-22.04"})
	require.NoError(t, err)
	_, err = f.svc.CreateInstances(ctx, other, compute.CreateRequest{Image: "ubuntu-22.04"})
	require.NoError(t, err)

	count := func(ident identity.Identity) int {
		list, err := f.svc.ListInstances(ctx, ident)
		require.NoError(t, err)
		return len(list)
	}
	assert.Equal(t, 1, count(jack))
	assert.Equal(t, 2, count(lead))
	assert.Equal(t, 1, count(other))
	assert.Equal(t, 3, count(root))

	jid := jres.Instances[0].ID
	_, err = f.svc.TerminateInstance(ctx, kate, jid)
	requireKind(t, err, compute.KindForbidden, "")
	_, err = f.svc.TerminateInstance(ctx, other, jid)
	requireKind(t, err, compute.KindForbidden, "")
	_, err = f.svc.TerminateInstance(ctx, lead, jid)
	require.NoError(t, err)

	global, err := f.svc.GetUsage(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 16, global.CPUQuota)
	assert.Equal(t, 2, global.ActiveAccountCount)
}

// TestPurpose: Validates organization and account policy checks on create.
// Scope: Unit Test
// Security: Tokens cannot borrow another organization's quota
// Expected: Pending orgs, inactive accounts and mismatched tokens are refused with distinct codes.
// Test Case ID: CMP-12
func TestService_PolicyDenials(t *testing.T) {
	f := newFixture(t, compute.Config{}, nil)
	f.org(t, "org-1", tenant.Quotas{CPU: 8, Storage: 50, Instances: 5})
	require.NoError(t, f.store.PutOrganization(context.Background(), tenant.Organization{ID: "org-p", Status: tenant.StatusPending, Quotas: tenant.Quotas{CPU: 8, Storage: 50, Instances: 5}}))
	mia := f.account(t, "mia", "org-1", tenant.RoleDeveloper)
	pat := f.account(t, "pat", "org-p", tenant.RoleDeveloper)
	ctx := context.Background()
	req := compute.CreateRequest{Image: "ubuntu-22.04"}

	_, err := f.svc.CreateInstances(ctx, pat, req)
	requireKind(t, err, compute.KindForbidden, string(quota.ReasonOrgNotApproved))

	spoofed := mia
	spoofed.OrganizationID = "org-p"
	_, err = f.svc.CreateInstances(ctx, spoofed, req)
	requireKind(t, err, compute.KindForbidden, compute.CodeForbidden)

	require.NoError(t, f.store.PutAccount(context.Background(), tenant.Account{ID: "mia", OrganizationID: "org-1", IsActive: false}))
	_, err = f.svc.CreateInstances(ctx, mia, req)
	requireKind(t, err, compute.KindForbidden, string(quota.ReasonAccountInactive))

	_, err = f.svc.CreateInstances(ctx, identity.Identity{}, req)
	requireKind(t, err, compute.KindUnauthorized, "")

	ghost := mia
	ghost.AccountID = "ghost"
	_, err = f.svc.CreateInstances(ctx, ghost, req)
	requireKind(t, err, compute.KindNotFound, "")
	assert.Empty(t, f.all(t))
}

// TestPurpose: Validates that a change committed after the caller's context ends is still reported as stored.
// Scope: Unit Test
// Expected: With the request context cancelled during the host call, create returns the running instance with usage and terminate returns success.
// Test Case ID: CMP-15
func TestService_CommittedChangeOutlivesRequest(t *testing.T) {
	createCtx, cancelCreate := context.WithCancel(context.Background())
	defer cancelCreate()
	terminateCtx, cancelTerminate := context.WithCancel(context.Background())
	defer cancelTerminate()

	prov := new(mockProvisioner)
	prov.On("SupportsImage", mock.Anything).Return(true)
	prov.On("Provision", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancelCreate() }).Return(nil, nil)
	prov.On("Terminate", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancelTerminate() }).Return(nil)

	f := newFixture(t, compute.Config{}, prov)
	f.org(t, "org-1", tenant.Quotas{CPU: 4, Storage: 50, Instances: 5})
	nora := f.account(t, "nora", "org-1", tenant.RoleDeveloper)

	res, err := f.svc.CreateInstances(createCtx, nora, compute.CreateRequest{Image: "ubuntu-22.04", CPU: 2})
	require.NoError(t, err)
	require.Len(t, res.Instances, 1)
	assert.Equal(t, compute.StatusRunning, res.Instances[0].Status)
	assert.Equal(t, 2, res.Usage.CPUUsed)
	assert.Equal(t, 4, res.Usage.CPUQuota)
	require.Len(t, f.all(t), 1)
	assert.Equal(t, compute.StatusRunning, f.all(t)[0].Status)

	out, err := f.svc.TerminateInstance(terminateCtx, nora, res.Instances[0].ID)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 0, out.Usage.CPUUsed)
	assert.Equal(t, 4, out.Usage.CPUQuota)
	assert.Empty(t, f.all(t))
}

// TestPurpose: Validates that visibility and termination rights follow the stored role, not the role in the token.
// Scope: Unit Test
// Security: A demoted organization admin loses organization-wide rights before the token expires (CWE-613)
// Expected: After demotion the old token lists only its own instances and cannot terminate a colleague's; unknown accounts are unauthorized.
// Test Case ID: CMP-16
func TestService_StoredRoleGovernsAccess(t *testing.T) {
	f := newFixture(t, compute.Config{}, nil)
	f.org(t, "org-1", tenant.Quotas{CPU: 8, Storage: 50, Instances: 5})
	olga := f.account(t, "olga", "org-1", tenant.RoleDeveloper)
	lead := f.account(t, "lead", "org-1", tenant.RoleOrgAdmin)
	ctx := context.Background()

	res, err := f.svc.CreateInstances(ctx, olga, compute.CreateRequest{Image: "ubuntu-22.04"})
	require.NoError(t, err)
	list, err := f.svc.ListInstances(ctx, lead)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.store.PutAccount(ctx, tenant.Account{
		ID:             "lead",
		OrganizationID: "org-1",
		Email:          lead.Email,
		Role:           tenant.RoleDeveloper,
		IsActive:       true,
	}))

	list, err = f.svc.ListInstances(ctx, lead)
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = f.svc.TerminateInstance(ctx, lead, res.Instances[0].ID)
	requireKind(t, err, compute.KindForbidden, "")
	require.Len(t, f.all(t), 1)
	_, err = f.svc.FindRunning(ctx, lead, *res.Instances[0].ContainerName)
	requireKind(t, err, compute.KindForbidden, "")

	ghost := olga
	ghost.AccountID = "ghost"
	_, err = f.svc.ListInstances(ctx, ghost)
	requireKind(t, err, compute.KindUnauthorized, "")
	_, err = f.svc.TerminateInstance(ctx, ghost, res.Instances[0].ID)
	requireKind(t, err, compute.KindUnauthorized, "")

	moved := olga
	moved.OrganizationID = "org-2"
	_, err = f.svc.GetUsage(ctx, moved)
	requireKind(t, err, compute.KindForbidden, "")
}
