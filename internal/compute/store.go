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

	"github.com/cybercodeedulabs/cybercode-backend/internal/host"
	"github.com/cybercodeedulabs/cybercode-backend/internal/quota"
	"github.com/cybercodeedulabs/cybercode-backend/internal/tenant"
)

// Store persists organizations, accounts and instances.
type Store interface {
	// InTx runs fn in one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// ListInstances returns the instances in scope, newest first.
	ListInstances(ctx context.Context, scope Scope) ([]*Instance, error)

	// Usage reports active consumption of one organization, or of every
	// approved organization when organizationID is empty.
	Usage(ctx context.Context, organizationID string) (Usage, error)

	// GetAccount reads an account without locking it.
	GetAccount(ctx context.Context, id string) (*tenant.Account, error)

	// FindByContainerName returns the instance owning a host container.
	FindByContainerName(ctx context.Context, name string) (*Instance, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// Tx is the set of operations available inside a transaction. Lock*
// methods hold the row until the transaction ends.
type Tx interface {
	LockOrganization(ctx context.Context, id string) (*tenant.Organization, error)
	LockAccount(ctx context.Context, id string) (*tenant.Account, error)

	// OrganizationUsage sums active instances of an organization.
	OrganizationUsage(ctx context.Context, organizationID string) (quota.Usage, error)
	CountActive(ctx context.Context, ownerAccountID string) (int, error)
	HasFreeTier(ctx context.Context, ownerAccountID string) (bool, error)
	InsertInstance(ctx context.Context, inst *Instance) error

	LockInstance(ctx context.Context, id string) (*Instance, error)

	// SetStatus updates status and container name. It returns
	// ErrInstanceNotFound when the row no longer exists.
	SetStatus(ctx context.Context, id string, status Status, containerName *string) error
	DeleteInstance(ctx context.Context, id string) error
}

// Provisioner is the host side of the lifecycle.
type Provisioner interface {
	SupportsImage(image string) bool
	Provision(ctx context.Context, spec host.Spec) (host.Result, error)
	Terminate(ctx context.Context, containerName string) error
}
