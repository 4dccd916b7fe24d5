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

package tenant

import (
	"errors"
	"time"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrAccountNotFound      = errors.New("account not found")
)

type Kind string

const (
	KindIndividual   Kind = "individual"
	KindOrganization Kind = "organization"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusSuspended Status = "suspended"
)

// Quotas is the persisted resource ceiling of an organization.
type Quotas struct {
	CPU       int `json:"cpuQuota"`
	Storage   int `json:"storageQuota"`
	Instances int `json:"instanceQuota"`
}

type Organization struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Kind            Kind       `json:"kind"`
	Status          Status     `json:"status"`
	Quotas          Quotas     `json:"quotas"`
	SubscriptionEnd *time.Time `json:"subscriptionEnd,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// SubscriptionActive reports whether the subscription is open-ended or ends after now.
func (o *Organization) SubscriptionActive(now time.Time) bool {
	return o.SubscriptionEnd == nil || o.SubscriptionEnd.After(now)
}

// Account maps a person to exactly one organization.
type Account struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	Email          string     `json:"email"`
	Role           Role       `json:"role"`
	TrialEnd       *time.Time `json:"trialEnd,omitempty"`
	IsActive       bool       `json:"isActive"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// TrialActive reports whether the account is not on a trial or the trial ends after now.
func (a *Account) TrialActive(now time.Time) bool {
	return a.TrialEnd == nil || a.TrialEnd.After(now)
}
