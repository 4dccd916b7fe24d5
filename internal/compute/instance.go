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

// Package compute owns the instance lifecycle: quota-checked reservation,
// provisioning on the host, status reconciliation and safe termination.
package compute

import (
	"time"

	"github.com/cybercodeedulabs/cybercode-backend/internal/identity"
	"github.com/cybercodeedulabs/cybercode-backend/internal/tenant"
)

// Status is the lifecycle state of an instance.
type Status string

const (
	StatusProvisioning Status = "provisioning"
	StatusRunning      Status = "running"
	StatusFailed       Status = "failed"
	StatusTerminating  Status = "terminating"
)

// Active reports whether an instance in this state holds resources.
func (s Status) Active() bool {
	return s == StatusProvisioning || s == StatusRunning
}

// Instance is a reserved or provisioned compute unit.
type Instance struct {
	ID             string    `json:"id"`
	OwnerAccountID string    `json:"owner"`
	OrganizationID string    `json:"organizationId"`
	Image          string    `json:"image"`
	Plan           string    `json:"plan"`
	CPU            int       `json:"cpu"`
	RAM            int       `json:"ram"`
	Disk           int       `json:"disk"`
	FreeTier       bool      `json:"freeTier"`
	Status         Status    `json:"status"`
	ContainerName  *string   `json:"name"`
	CreatedAt      time.Time `json:"createdAt"`

	// HostName is the name reserved on the host for this instance. It is
	// copied to ContainerName once the instance is running.
	HostName string `json:"-"`
}

// CreateRequest is the caller-supplied shape of a create call. Zero
// values are replaced by defaults.
type CreateRequest struct {
	Image string `json:"image"`
	Plan  string `json:"plan"`
	Count int    `json:"count"`
	CPU   int    `json:"cpu"`
	RAM   int    `json:"ram"`
	Disk  int    `json:"disk"`
}

// Usage is the resource consumption report for an organization, or for
// the whole platform when requested by an admin.
type Usage struct {
	CPUUsed            int `json:"cpuUsed"`
	CPUQuota           int `json:"cpuQuota"`
	StorageUsed        int `json:"storageUsed"`
	StorageQuota       int `json:"storageQuota"`
	InstanceCount      int `json:"instanceCount"`
	InstanceQuota      int `json:"instanceQuota"`
	ActiveAccountCount int `json:"activeAccountCount"`
}

// CreateResult is returned by the create operations.
type CreateResult struct {
	Instances []*Instance `json:"instances"`
	Usage     Usage       `json:"usage"`
}

// TerminateResult is returned by TerminateInstance.
type TerminateResult struct {
	Success bool  `json:"success"`
	Usage   Usage `json:"usage"`
}

// Scope selects the instances visible to a caller. Exactly one of All,
// OrganizationID or AccountID applies, in that order.
type Scope struct {
	All            bool
	OrganizationID string
	AccountID      string
}

// ScopeFor returns the visibility scope of id: admins see everything,
// organization admins their organization, everyone else their own.
func ScopeFor(id identity.Identity) Scope {
	switch id.Role {
	case tenant.RoleAdmin:
		return Scope{All: true}
	case tenant.RoleOrgAdmin:
		return Scope{OrganizationID: id.OrganizationID}
	default:
		return Scope{AccountID: id.AccountID}
	}
}

// Includes reports whether inst falls inside the scope.
func (s Scope) Includes(inst *Instance) bool {
	switch {
	case s.All:
		return true
	case s.OrganizationID != "":
		return inst.OrganizationID == s.OrganizationID
	default:
		return s.AccountID != "" && inst.OwnerAccountID == s.AccountID
	}
}
