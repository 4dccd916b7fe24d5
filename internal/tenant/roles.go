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

type Role string

const (
	RoleIndividual Role = "individual"
	RoleDeveloper  Role = "developer"
	RoleOrgAdmin   Role = "org_admin"
	RoleAdmin      Role = "admin"
)

// ParseRole accepts only the known role names.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleIndividual, RoleDeveloper, RoleOrgAdmin, RoleAdmin:
		return r, true
	}
	return "", false
}

// IsPlatformAdmin reports whether the role bypasses organization scoping.
func (r Role) IsPlatformAdmin() bool {
	return r == RoleAdmin
}

// CanManage reports whether an actor may act on a resource owned by
// ownerID in ownerOrgID: admins on anything, org admins within their
// organization, everyone else only on their own resources.
func CanManage(role Role, actorID, actorOrgID, ownerID, ownerOrgID string) bool {
	switch {
	case role == RoleAdmin:
		return true
	case role == RoleOrgAdmin && actorOrgID != "" && actorOrgID == ownerOrgID:
		return true
	default:
		return actorID != "" && actorID == ownerID
	}
}
