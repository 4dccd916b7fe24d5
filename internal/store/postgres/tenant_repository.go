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
	"fmt"

	"github.com/cybercodeedulabs/cybercode-backend/internal/tenant"
	"github.com/jackc/pgx/v5"
)

// TenantRepository manages organizations and accounts.
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// PutOrganization inserts or replaces an organization.
func (r *TenantRepository) PutOrganization(ctx context.Context, org tenant.Organization) error {
	if org.ID == "" {
		return fmt.Errorf("organization id is required")
	}
	if org.Kind == "" {
		org.Kind = tenant.KindOrganization
	}
	if org.Status == "" {
		org.Status = tenant.StatusPending
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO organizations (id, name, kind, status, cpu_quota, storage_quota, instance_quota, subscription_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			status = EXCLUDED.status,
			cpu_quota = EXCLUDED.cpu_quota,
			storage_quota = EXCLUDED.storage_quota,
			instance_quota = EXCLUDED.instance_quota,
			subscription_end = EXCLUDED.subscription_end
	`, org.ID, org.Name, org.Kind, org.Status, org.Quotas.CPU, org.Quotas.Storage, org.Quotas.Instances, org.SubscriptionEnd)
	if err != nil {
		return wrap("failed to save organization", err)
	}
	return nil
}

// PutAccount inserts or replaces an account. The organization of an
// existing account is never changed.
func (r *TenantRepository) PutAccount(ctx context.Context, acct tenant.Account) error {
	tag, err := r.db.pool.Exec(ctx, `
		INSERT INTO accounts (id, organization_id, email, role, trial_end, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			trial_end = EXCLUDED.trial_end,
			is_active = EXCLUDED.is_active
		WHERE accounts.organization_id = EXCLUDED.organization_id
	`, acct.ID, acct.OrganizationID, acct.Email, acct.Role, acct.TrialEnd, acct.IsActive)
	if err != nil {
		return wrap("failed to save account", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s cannot move to another organization", acct.ID)
	}
	return nil
}

// GetOrganization returns one organization.
func (r *TenantRepository) GetOrganization(ctx context.Context, id string) (*tenant.Organization, error) {
	return getOrganization(ctx, r.db.pool, id, false)
}

// DeleteOrganization removes an organization with its accounts and instances.
func (r *TenantRepository) DeleteOrganization(ctx context.Context, id string) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		for _, q := range []string{
			`DELETE FROM instances WHERE organization_id = $1`,
			`DELETE FROM accounts WHERE organization_id = $1`,
			`DELETE FROM organizations WHERE id = $1`,
		} {
			if _, err := tx.Exec(ctx, q, id); err != nil {
				return wrap("failed to delete organization", err)
			}
		}
		return nil
	})
}

const organizationColumns = `id, name, kind, status, cpu_quota, storage_quota, instance_quota, subscription_end, created_at`

func getOrganization(ctx context.Context, q querier, id string, lock bool) (*tenant.Organization, error) {
	sql := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}

	var org tenant.Organization
	err := q.QueryRow(ctx, sql, id).Scan(
		&org.ID, &org.Name, &org.Kind, &org.Status,
		&org.Quotas.CPU, &org.Quotas.Storage, &org.Quotas.Instances,
		&org.SubscriptionEnd, &org.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tenant.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, wrap("failed to get organization", err)
	}
	return &org, nil
}

func getAccount(ctx context.Context, q querier, id string, lock bool) (*tenant.Account, error) {
	sql := `SELECT id, organization_id, email, role, trial_end, is_active, created_at FROM accounts WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}

	var acct tenant.Account
	err := q.QueryRow(ctx, sql, id).Scan(
		&acct.ID, &acct.OrganizationID, &acct.Email, &acct.Role,
		&acct.TrialEnd, &acct.IsActive, &acct.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tenant.ErrAccountNotFound
	}
	if err != nil {
		return nil, wrap("failed to get account", err)
	}
	return &acct, nil
}
