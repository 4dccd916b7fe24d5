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

package postgres

import (
	"context"
	"errors"

	"github.com/cybercodeedulabs/cybercode-backend/internal/compute"
	"github.com/cybercodeedulabs/cybercode-backend/internal/quota"
	"github.com/cybercodeedulabs/cybercode-backend/internal/tenant"
	"github.com/jackc/pgx/v5"
)

// Store implements compute.Store on PostgreSQL.
type Store struct {
	db *DB
}

// NewStore creates a compute store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

const instanceColumns = `id, owner_account_id, organization_id, image, plan, cpu, ram, disk,
	free_tier, status, host_name, container_name, created_at`

// activeStatuses are the states that hold resources.
var activeStatuses = []string{string(compute.StatusProvisioning), string(compute.StatusRunning)}

func (s *Store) InTx(ctx context.Context, fn func(tx compute.Tx) error) error {
	return s.db.inTx(ctx, func(tx pgx.Tx) error {
		return fn(&instanceTx{q: tx})
	})
}

func (s *Store) ListInstances(ctx context.Context, scope compute.Scope) ([]*compute.Instance, error) {
	sql := `SELECT ` + instanceColumns + ` FROM instances`
	var args []any
	switch {
	case scope.All:
	case scope.OrganizationID != "":
		sql += ` WHERE organization_id = $1`
		args = append(args, scope.OrganizationID)
	default:
		sql += ` WHERE owner_account_id = $1`
		args = append(args, scope.AccountID)
	}
	sql += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrap("failed to list instances", err)
	}
	defer rows.Close()

	var out []*compute.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, wrap("failed to scan instance", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("failed to list instances", err)
	}
	return out, nil
}

func (s *Store) Usage(ctx context.Context, organizationID string) (compute.Usage, error) {
	var u compute.Usage
	if organizationID != "" {
		org, err := getOrganization(ctx, s.db.pool, organizationID, false)
		if err != nil {
			return u, err
		}
		u.CPUQuota, u.StorageQuota, u.InstanceQuota = org.Quotas.CPU, org.Quotas.Storage, org.Quotas.Instances
	} else {
		err := s.db.pool.QueryRow(ctx, `
			SELECT COALESCE(SUM(cpu_quota), 0), COALESCE(SUM(storage_quota), 0), COALESCE(SUM(instance_quota), 0)
			FROM organizations
			WHERE status = $1
		`, tenant.StatusApproved).Scan(&u.CPUQuota, &u.StorageQuota, &u.InstanceQuota)
		if err != nil {
			return u, wrap("failed to sum quotas", err)
		}
	}

	err := s.db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(cpu) FILTER (WHERE NOT free_tier), 0),
			COALESCE(SUM(disk) FILTER (WHERE NOT free_tier), 0),
			COUNT(DISTINCT owner_account_id)
		FROM instances
		WHERE status = ANY($1) AND ($2 = '' OR organization_id = $2)
	`, activeStatuses, organizationID).Scan(&u.InstanceCount, &u.CPUUsed, &u.StorageUsed, &u.ActiveAccountCount)
	if err != nil {
		return u, wrap("failed to compute usage", err)
	}
	return u, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*tenant.Account, error) {
	return getAccount(ctx, s.db.pool, id, false)
}

func (s *Store) FindByContainerName(ctx context.Context, name string) (*compute.Instance, error) {
	row := s.db.pool.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE container_name = $1`, name)
	inst, err := scanInstance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, compute.ErrInstanceNotFound
	}
	if err != nil {
		return nil, wrap("failed to get instance", err)
	}
	return inst, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.pool.Ping(ctx)
}

// instanceTx implements compute.Tx.
type instanceTx struct {
	q querier
}

func (t *instanceTx) LockOrganization(ctx context.Context, id string) (*tenant.Organization, error) {
	return getOrganization(ctx, t.q, id, true)
}

func (t *instanceTx) LockAccount(ctx context.Context, id string) (*tenant.Account, error) {
	return getAccount(ctx, t.q, id, true)
}

func (t *instanceTx) OrganizationUsage(ctx context.Context, organizationID string) (quota.Usage, error) {
	var u quota.Usage
	err := t.q.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(cpu) FILTER (WHERE NOT free_tier), 0),
			COALESCE(SUM(disk) FILTER (WHERE NOT free_tier), 0)
		FROM instances
		WHERE organization_id = $1 AND status = ANY($2)
	`, organizationID, activeStatuses).Scan(&u.Instances, &u.CPU, &u.Storage)
	if err != nil {
		return u, wrap("failed to compute organization usage", err)
	}
	return u, nil
}

func (t *instanceTx) CountActive(ctx context.Context, ownerAccountID string) (int, error) {
	var n int
	err := t.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM instances WHERE owner_account_id = $1 AND status = ANY($2)
	`, ownerAccountID, activeStatuses).Scan(&n)
	if err != nil {
		return 0, wrap("failed to count active instances", err)
	}
	return n, nil
}

func (t *instanceTx) HasFreeTier(ctx context.Context, ownerAccountID string) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM instances WHERE owner_account_id = $1 AND free_tier)
	`, ownerAccountID).Scan(&exists)
	if err != nil {
		return false, wrap("failed to check free tier", err)
	}
	return exists, nil
}

func (t *instanceTx) InsertInstance(ctx context.Context, inst *compute.Instance) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO instances (id, owner_account_id, organization_id, image, plan, cpu, ram, disk,
			free_tier, status, host_name, container_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, inst.ID, inst.OwnerAccountID, inst.OrganizationID, inst.Image, inst.Plan, inst.CPU, inst.RAM, inst.Disk,
		inst.FreeTier, inst.Status, inst.HostName, inst.ContainerName, inst.CreatedAt)
	if err != nil {
		return wrap("failed to insert instance", err)
	}
	return nil
}

func (t *instanceTx) LockInstance(ctx context.Context, id string) (*compute.Instance, error) {
	row := t.q.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = $1 FOR UPDATE`, id)
	inst, err := scanInstance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, compute.ErrInstanceNotFound
	}
	if err != nil {
		return nil, wrap("failed to lock instance", err)
	}
	return inst, nil
}

func (t *instanceTx) SetStatus(ctx context.Context, id string, status compute.Status, containerName *string) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE instances SET status = $2, container_name = COALESCE($3, container_name) WHERE id = $1
	`, id, status, containerName)
	if err != nil {
		return wrap("failed to update instance status", err)
	}
	if tag.RowsAffected() == 0 {
		return compute.ErrInstanceNotFound
	}
	return nil
}

func (t *instanceTx) DeleteInstance(ctx context.Context, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM instances WHERE id = $1`, id)
	if err != nil {
		return wrap("failed to delete instance", err)
	}
	if tag.RowsAffected() == 0 {
		return compute.ErrInstanceNotFound
	}
	return nil
}

func scanInstance(row pgx.Row) (*compute.Instance, error) {
	var inst compute.Instance
	err := row.Scan(
		&inst.ID, &inst.OwnerAccountID, &inst.OrganizationID, &inst.Image, &inst.Plan,
		&inst.CPU, &inst.RAM, &inst.Disk, &inst.FreeTier, &inst.Status,
		&inst.HostName, &inst.ContainerName, &inst.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}
