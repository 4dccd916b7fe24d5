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
	"testing"

	"github.com/cybercodeedulabs/cybercode-backend/internal/compute"
	"github.com/cybercodeedulabs/cybercode-backend/internal/host"
	"github.com/cybercodeedulabs/cybercode-backend/internal/identity"
	"github.com/cybercodeedulabs/cybercode-backend/internal/store/memory"
	"github.com/cybercodeedulabs/cybercode-backend/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) SupportsImage(image string) bool {
	return m.Called(image).Bool(0)
}

// Provision returns spec.Name as the container name unless the expectation
// supplies a fixed result.
func (m *mockProvisioner) Provision(ctx context.Context, spec host.Spec) (host.Result, error) {
	args := m.Called(ctx, spec)
	if res, ok := args.Get(0).(host.Result); ok {
		return res, args.Error(1)
	}
	return host.Result{ContainerName: spec.Name}, args.Error(1)
}

func (m *mockProvisioner) Terminate(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

type fixture struct {
	store *memory.Store
	host  *host.MemoryHost
	svc   *compute.Service
}

// newFixture wires the service to the memory store. A nil prov uses a real
// provisioner over an in-memory host.
func newFixture(t testing.TB, cfg compute.Config, prov compute.Provisioner) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), host: host.NewMemoryHost()}
	if prov == nil {
		p, err := host.NewProvisioner(f.host, host.Config{})
		require.NoError(t, err)
		prov = p
	}
	if cfg.MaxBulk == 0 {
		cfg.MaxBulk = 5
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 4
	}
	f.svc = compute.NewService(f.store, prov, nil, nil, cfg)
	t.Cleanup(func() { _ = f.svc.Close(context.Background()) })
	return f
}

func (f *fixture) org(t testing.TB, id string, q tenant.Quotas) {
	t.Helper()
	require.NoError(t, f.store.PutOrganization(context.Background(), tenant.Organization{
		ID:     id,
		Name:   id,
		Kind:   tenant.KindOrganization,
		Status: tenant.StatusApproved,
		Quotas: q,
	}))
}

func (f *fixture) account(t testing.TB, id, org string, role tenant.Role) identity.Identity {
	t.Helper()
	require.NoError(t, f.store.PutAccount(context.Background(), tenant.Account{
		ID:             id,
		OrganizationID: org,
		Email:          id + "@example.com",
		Role:           role,
		IsActive:       true,
	}))
	return identity.Identity{AccountID: id, Email: id + "@example.com", Role: role, OrganizationID: org}
}

func (f *fixture) all(t *testing.T) []*compute.Instance {
	t.Helper()
	list, err := f.store.ListInstances(context.Background(), compute.Scope{All: true})
	require.NoError(t, err)
	return list
}

func requireKind(t *testing.T, err error, kind compute.Kind, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, compute.KindOf(err), "error: %v", err)
	if code != "" {
		assert.Equal(t, code, compute.CodeOf(err), "error: %v", err)
	}
}
