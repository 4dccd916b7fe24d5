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

// Package seed loads organization and account fixtures from YAML.
package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cybercodeedulabs/cybercode-backend/internal/tenant"
	"gopkg.in/yaml.v3"
)

// Target receives fixtures. Both record stores implement it.
type Target interface {
	PutOrganization(ctx context.Context, org tenant.Organization) error
	PutAccount(ctx context.Context, acct tenant.Account) error
}

// Fixtures is the file format:
//
//	organizations:
//	  - id: org-1
//	    name: Demo University
//	    status: approved
//	    quotas: {cpu: 8, storage: 100, instances: 10}
//	    accounts:
//	      - id: acct-alice
//	        email: alice@example.com
//	        role: developer
type Fixtures struct {
	Organizations []Organization `yaml:"organizations"`
}

type Organization struct {
	ID              string     `yaml:"id"`
	Name            string     `yaml:"name"`
	Kind            string     `yaml:"kind"`
	Status          string     `yaml:"status"`
	SubscriptionEnd *time.Time `yaml:"subscription_end"`
	Quotas          struct {
		CPU       int `yaml:"cpu"`
		Storage   int `yaml:"storage"`
		Instances int `yaml:"instances"`
	} `yaml:"quotas"`
	Accounts []Account `yaml:"accounts"`
}

type Account struct {
	ID       string     `yaml:"id"`
	Email    string     `yaml:"email"`
	Role     string     `yaml:"role"`
	TrialEnd *time.Time `yaml:"trial_end"`
	Inactive bool       `yaml:"inactive"`
}

// Load reads and validates a fixtures file.
func Load(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}
	return &f, nil
}

func (f *Fixtures) validate() error {
	for _, o := range f.Organizations {
		if o.ID == "" {
			return fmt.Errorf("organization id is required")
		}
		switch tenant.Status(o.Status) {
		case "", tenant.StatusPending, tenant.StatusApproved, tenant.StatusSuspended:
		default:
			return fmt.Errorf("organization %s: unknown status %q", o.ID, o.Status)
		}
		for _, a := range o.Accounts {
			if a.ID == "" || a.Email == "" {
				return fmt.Errorf("organization %s: account id and email are required", o.ID)
			}
			if _, ok := tenant.ParseRole(a.Role); !ok {
				return fmt.Errorf("account %s: unknown role %q", a.ID, a.Role)
			}
		}
	}
	return nil
}

// Apply writes every organization, then its accounts, to t.
func (f *Fixtures) Apply(ctx context.Context, t Target) error {
	for _, o := range f.Organizations {
		org := tenant.Organization{
			ID:              o.ID,
			Name:            o.Name,
			Kind:            tenant.Kind(o.Kind),
			Status:          tenant.Status(o.Status),
			SubscriptionEnd: o.SubscriptionEnd,
			Quotas: tenant.Quotas{
				CPU:       o.Quotas.CPU,
				Storage:   o.Quotas.Storage,
				Instances: o.Quotas.Instances,
			},
		}
		if org.Kind == "" {
			org.Kind = tenant.KindOrganization
		}
		if org.Status == "" {
			org.Status = tenant.StatusPending
		}
		if err := t.PutOrganization(ctx, org); err != nil {
			return fmt.Errorf("organization %s: %w", o.ID, err)
		}

		for _, a := range o.Accounts {
			role, _ := tenant.ParseRole(a.Role)
			acct := tenant.Account{
				ID:             a.ID,
				OrganizationID: o.ID,
				Email:          a.Email,
				Role:           role,
				TrialEnd:       a.TrialEnd,
				IsActive:       !a.Inactive,
			}
			if err := t.PutAccount(ctx, acct); err != nil {
				return fmt.Errorf("account %s: %w", a.ID, err)
			}
		}
	}
	return nil
}

// Accounts returns every account with its organization id.
func (f *Fixtures) Accounts() []tenant.Account {
	var out []tenant.Account
	for _, o := range f.Organizations {
		for _, a := range o.Accounts {
			role, _ := tenant.ParseRole(a.Role)
			out = append(out, tenant.Account{ID: a.ID, OrganizationID: o.ID, Email: a.Email, Role: role})
		}
	}
	return out
}
