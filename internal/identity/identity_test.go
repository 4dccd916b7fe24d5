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

package identity

import (
	"testing"
	"time"

	"github.com/cybercodeedulabs/cybercode-backend/internal/tenant"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestTokens(t testing.TB, secret string) *Tokens {
	t.Helper()
	tokens, err := NewTokens(TokenConfig{
		Secret:   []byte(secret),
		Issuer:   "cybercode",
		Audience: "cybercode-users",
		TTL:      time.Hour,
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return tokens
}

var alice = Identity{
	AccountID:      "acct-1",
	Email:          "alice.smith@example.com",
	Role:           tenant.RoleDeveloper,
	OrganizationID: "org-1",
}

// TestPurpose: Validates a token issued by the service verifies back to the same identity.
// Scope: Unit Test
// Security: Authentication integrity
// Expected: Verify returns the identity that was issued.
// Test Case ID: IDN-01
func TestTokens_IssueVerify(t *testing.T) {
	tokens := newTestTokens(t, "s3cret")

	raw, err := tokens.Issue(alice)
	require.NoError(t, err)

	got, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, alice, got)
}

// TestPurpose: Validates rejection of forged, expired, foreign-audience and unsigned tokens.
// Scope: Unit Test
// Security: Token forgery and replay (CWE-347, CWE-613)
// Expected: Every tampered token fails with ErrInvalidToken.
// Test Case ID: IDN-02
func TestTokens_Rejects(t *testing.T) {
	tokens := newTestTokens(t, "s3cret")
	other := newTestTokens(t, "other")

	forged, err := other.Issue(alice)
	require.NoError(t, err)

	expired, err := tokens.Issue(alice)
	require.NoError(t, err)
	later, err := NewTokens(TokenConfig{
		Secret: []byte("s3cret"), Issuer: "cybercode", Audience: "cybercode-users",
		Now: func() time.Time { return testNow.Add(2 * time.Hour) },
	})
	require.NoError(t, err)

	wrongAud, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID: "acct-1", Email: "a@b.c", Role: "developer", OrganizationID: "org-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "cybercode",
			Audience:  jwt.ClaimStrings{"someone-else"},
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		AccountID: "acct-1", Email: "a@b.c", Role: "admin", OrganizationID: "org-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tokens.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = later.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = tokens.Verify(wrongAud)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = tokens.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = tokens.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// TestPurpose: Validates the legacy "uid" claim and required-claim enforcement.
// Scope: Unit Test
// Security: Tokens without organization or with unknown roles grant nothing
// Expected: uid is accepted as the account id; missing org or unknown role yields ErrMissingClaims.
// Test Case ID: IDN-03
func TestTokens_ClaimShapes(t *testing.T) {
	tokens, err := NewTokens(TokenConfig{Secret: []byte("k"), Now: func() time.Time { return testNow }})
	require.NoError(t, err)

	sign := func(c Claims) string {
		c.ExpiresAt = jwt.NewNumericDate(testNow.Add(time.Minute))
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("k"))
		require.NoError(t, err)
		return s
	}

	got, err := tokens.Verify(sign(Claims{UID: "u-9", Email: "x@y.z", Role: "org_admin", OrganizationID: "o"}))
	require.NoError(t, err)
	assert.Equal(t, "u-9", got.AccountID)
	assert.Equal(t, tenant.RoleOrgAdmin, got.Role)

	_, err = tokens.Verify(sign(Claims{AccountID: "u", Email: "x@y.z", Role: "developer"}))
	assert.ErrorIs(t, err, ErrMissingClaims)

	_, err = tokens.Verify(sign(Claims{AccountID: "u", Email: "x@y.z", Role: "root", OrganizationID: "o"}))
	assert.ErrorIs(t, err, ErrMissingClaims)

	_, err = NewTokens(TokenConfig{})
	assert.Error(t, err)
}
