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

// Package quota decides whether an organization may take on a requested
// allocation given what it already holds.
package quota

import (
	"fmt"
	"time"

	"github.com/cybercodeedulabs/cybercode-backend/internal/tenant"
)

// Reason identifies why a request was denied.
type Reason string

const (
	ReasonOrgNotApproved      Reason = "org_not_approved"
	ReasonSubscriptionExpired Reason = "subscription_expired"
	ReasonAccountInactive     Reason = "account_inactive"
	ReasonTrialExpired        Reason = "trial_expired"
	ReasonQuotaExceeded       Reason = "quota_exceeded"
)

// Dimension names the quota that a request would exceed.
type Dimension string

const (
	DimensionInstances Dimension = "instances"
	DimensionCPU       Dimension = "cpu"
	DimensionStorage   Dimension = "storage"
)

// Usage is what an organization currently holds in active instances.
// CPU and Storage exclude free-tier instances; Instances counts all of them.
type Usage struct {
	Instances int
	CPU       int
	Storage   int
}

// Request is the total allocation asked for by one create call.
type Request struct {
	Count    int
	CPU      int
	Storage  int
	FreeTier bool
}

// Denial is returned when a request is rejected.
type Denial struct {
	Reason    Reason
	Dimension Dimension
	Message   string
}

func (d *Denial) Error() string {
	return d.Message
}

// Guard evaluates requests against organization policy.
type Guard struct {
	now func() time.Time
}

// NewGuard creates a guard reading the current time from now, or
// time.Now when now is nil.
func NewGuard(now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{now: now}
}

// Evaluate returns nil when req is approved and a *Denial otherwise.
// Checks run in a fixed order and stop at the first failure.
func (g *Guard) Evaluate(org *tenant.Organization, acct *tenant.Account, usage Usage, req Request) error {
	now := g.now()

	if org.Status != tenant.StatusApproved {
		return &Denial{Reason: ReasonOrgNotApproved, Message: fmt.Sprintf("organization is %s", org.Status)}
	}
	if !org.SubscriptionActive(now) {
		return &Denial{Reason: ReasonSubscriptionExpired, Message: "organization subscription has expired"}
	}
	if !acct.IsActive {
		return &Denial{Reason: ReasonAccountInactive, Message: "account is not active"}
	}
	if !acct.TrialActive(now) {
		return &Denial{Reason: ReasonTrialExpired, Message: "trial period has ended"}
	}

	if usage.Instances+req.Count > org.Quotas.Instances {
		return exceeded(DimensionInstances, usage.Instances, req.Count, org.Quotas.Instances)
	}
	if req.FreeTier {
		return nil
	}
	if usage.CPU+req.CPU > org.Quotas.CPU {
		return exceeded(DimensionCPU, usage.CPU, req.CPU, org.Quotas.CPU)
	}
	if usage.Storage+req.Storage > org.Quotas.Storage {
		return exceeded(DimensionStorage, usage.Storage, req.Storage, org.Quotas.Storage)
	}
	return nil
}

func exceeded(dim Dimension, used, requested, quota int) *Denial {
	return &Denial{
		Reason:    ReasonQuotaExceeded,
		Dimension: dim,
		Message:   fmt.Sprintf("%s quota exceeded: %d in use, %d requested, %d allowed", dim, used, requested, quota),
	}
}
