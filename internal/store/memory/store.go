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

// Package memory is an in-process record store. Transactions are fully
// serialized, which gives the same guarantees as the row locks of the
// PostgreSQL store for the access patterns of the compute service.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cybercodeedulabs/cybercode-backend/internal/compute"
	"github.com/cybercodeedulabs/cybercode-backend/internal/quota"
	"github.com/cybercodeedulabs/cybercode-backend/internal/tenant"
)

type state struct {
	orgs      map[string]tenant.Organization
	accounts  map[string]tenant.Account
	instances map[string]compute.Instance
}

func (s *state) clone() *state {
	c := &state{
		orgs:      make(map[string]tenant.Organization, len(s.orgs)),
		accounts:  make(map[string]tenant.Account, len(s.accounts)),
		instances: make(map[string]compute.Instance, len(s.instances)),
	}
	for k, v := range s.orgs {
		c.orgs[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.instances {
		c.instances[k] = copyInstance(v)
	}
	return c
}

// Store implements compute.Store in memory.
type Store struct {
	mu    sync.Mutex
	state *state
}

// New returns an empty store.
func New() *Store {
	return &Store{state: &state{
		orgs:      make(map[string]tenant.Organization),
		accounts:  make(map[string]tenant.Account),
		instances: make(map[string]compute.Instance),
	}}
}

// PutOrganization inserts or replaces an organization.
func (s *Store) PutOrganization(ctx context.Context, org tenant.Organization) error {
	if org.ID == "" {
		return fmt.Errorf("organization id is required")
	}
	if org.Quotas.CPU < 0 || org.Quotas.Storage < 0 || org.Quotas.Instances < 0 {
		return fmt.Errorf("quotas must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.orgs[org.ID] = org
	return nil
}

// PutAccount inserts or replaces an account. Its organization must exist
// and cannot change once set.
func (s *Store) PutAccount(ctx context.Context, acct tenant.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.orgs[acct.OrganizationID]; !ok {
		return tenant.ErrOrganizationNotFound
	}
	if prev, ok := s.state.accounts[acct.ID]; ok && prev.OrganizationID != acct.OrganizationID {
		return fmt.Errorf("account %s cannot move to another organization", acct.ID)
	}
	s.state.accounts[acct.ID] = acct
	return nil
}

// InTx runs fn against a private copy of the state and publishes the copy
// when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx compute.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{state: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) ListInstances(ctx context.Context, scope compute.Scope) ([]*compute.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*compute.Instance
	for _, inst := range s.state.instances {
		if scope.Includes(&inst) {
			c := copyInstance(inst)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Usage(ctx context.Context, organizationID string) (compute.Usage, error) {
	if err := ctx.Err(); err != nil {
		return compute.Usage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var u compute.Usage
	if organizationID != "" {
		org, ok := s.state.orgs[organizationID]
		if !ok {
			return u, tenant.ErrOrganizationNotFound
		}
		u.CPUQuota, u.StorageQuota, u.InstanceQuota = org.Quotas.CPU, org.Quotas.Storage, org.Quotas.Instances
	} else {
		for _, org := range s.state.orgs {
			if org.Status == tenant.StatusApproved {
				u.CPUQuota += org.Quotas.CPU
				u.StorageQuota += org.Quotas.Storage
				u.InstanceQuota += org.Quotas.Instances
			}
		}
	}

	owners := make(map[string]struct{})
	for _, inst := range s.state.instances {
		if !inst.Status.Active() || (organizationID != "" && inst.OrganizationID != organizationID) {
			continue
		}
		u.InstanceCount++
		owners[inst.OwnerAccountID] = struct{}{}
		if !inst.FreeTier {
			u.CPUUsed += inst.CPU
			u.StorageUsed += inst.Disk
		}
	}
	u.ActiveAccountCount = len(owners)
	return u, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*tenant.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.state.accounts[id]
	if !ok {
		return nil, tenant.ErrAccountNotFound
	}
	return &acct, nil
}

func (s *Store) FindByContainerName(ctx context.Context, name string) (*compute.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.state.instances {
		if inst.ContainerName != nil && *inst.ContainerName == name {
			c := copyInstance(inst)
			return &c, nil
		}
	}
	return nil, compute.ErrInstanceNotFound
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

type tx struct {
	state *state
}

func (t *tx) LockOrganization(ctx context.Context, id string) (*tenant.Organization, error) {
	org, ok := t.state.orgs[id]
	if !ok {
		return nil, tenant.ErrOrganizationNotFound
	}
	return &org, nil
}

func (t *tx) LockAccount(ctx context.Context, id string) (*tenant.Account, error) {
	acct, ok := t.state.accounts[id]
	if !ok {
		return nil, tenant.ErrAccountNotFound
	}
	return &acct, nil
}

func (t *tx) OrganizationUsage(ctx context.Context, organizationID string) (quota.Usage, error) {
	var u quota.Usage
	for _, inst := range t.state.instances {
		if inst.OrganizationID != organizationID || !inst.Status.Active() {
			continue
		}
		u.Instances++
		if !inst.FreeTier {
			u.CPU += inst.CPU
			u.Storage += inst.Disk
		}
	}
	return u, nil
}

func (t *tx) CountActive(ctx context.Context, ownerAccountID string) (int, error) {
	n := 0
	for _, inst := range t.state.instances {
		if inst.OwnerAccountID == ownerAccountID && inst.Status.Active() {
			n++
		}
	}
	return n, nil
}

func (t *tx) HasFreeTier(ctx context.Context, ownerAccountID string) (bool, error) {
	for _, inst := range t.state.instances {
		if inst.OwnerAccountID == ownerAccountID && inst.FreeTier {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) InsertInstance(ctx context.Context, inst *compute.Instance) error {
	if _, ok := t.state.instances[inst.ID]; ok {
		return compute.ErrStoreConflict
	}
	for _, other := range t.state.instances {
		if other.HostName == inst.HostName {
			return compute.ErrStoreConflict
		}
		if inst.FreeTier && other.FreeTier && other.OwnerAccountID == inst.OwnerAccountID {
			return compute.ErrStoreConflict
		}
	}
	t.state.instances[inst.ID] = copyInstance(*inst)
	return nil
}

func (t *tx) LockInstance(ctx context.Context, id string) (*compute.Instance, error) {
	inst, ok := t.state.instances[id]
	if !ok {
		return nil, compute.ErrInstanceNotFound
	}
	c := copyInstance(inst)
	return &c, nil
}

func (t *tx) SetStatus(ctx context.Context, id string, status compute.Status, containerName *string) error {
	inst, ok := t.state.instances[id]
	if !ok {
		return compute.ErrInstanceNotFound
	}
	inst.Status = status
	if containerName != nil {
		name := *containerName
		inst.ContainerName = &name
	}
	t.state.instances[id] = inst
	return nil
}

func (t *tx) DeleteInstance(ctx context.Context, id string) error {
	if _, ok := t.state.instances[id]; !ok {
		return compute.ErrInstanceNotFound
	}
	delete(t.state.instances, id)
	return nil
}

func copyInstance(inst compute.Instance) compute.Instance {
	if inst.ContainerName != nil {
		name := *inst.ContainerName
		inst.ContainerName = &name
	}
	return inst
}
