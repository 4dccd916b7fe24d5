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

// Package identity verifies bearer credentials and exposes the caller's
// identity context to the rest of the service.
package identity

import (
	"errors"
	"time"

	"github.com/cybercodeedulabs/cybercode-backend/internal/tenant"
	"github.com/golang-jwt/jwt/v5"
)

// Domain errors
var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrMissingClaims = errors.New("token is missing required claims")
)

// Identity is the authenticated caller as asserted by a verified token.
type Identity struct {
	AccountID      string      `json:"id"`
	Email          string      `json:"email"`
	Role           tenant.Role `json:"role"`
	OrganizationID string      `json:"organization_id"`
}

// Claims is the token payload. "uid" is accepted as an alias of "id".
type Claims struct {
	AccountID      string `json:"id,omitempty"`
	UID            string `json:"uid,omitempty"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id"`
	jwt.RegisteredClaims
}

func (c *Claims) identity() (Identity, error) {
	accountID := c.AccountID
	if accountID == "" {
		accountID = c.UID
	}
	role, ok := tenant.ParseRole(c.Role)
	if accountID == "" || c.Email == "" || c.OrganizationID == "" || !ok {
		return Identity{}, ErrMissingClaims
	}
	return Identity{
		AccountID:      accountID,
		Email:          c.Email,
		Role:           role,
		OrganizationID: c.OrganizationID,
	}, nil
}

// TokenConfig configures HMAC token verification and issuance.
type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

// Tokens verifies and issues HS256 bearer tokens.
type Tokens struct {
	cfg TokenConfig
}

// NewTokens creates a token verifier/issuer.
func NewTokens(cfg TokenConfig) (*Tokens, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tokens{cfg: cfg}, nil
}

// Verify checks signature, expiry and (when configured) issuer and audience,
// then returns the identity carried by the token.
func (t *Tokens) Verify(raw string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.cfg.Now),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}
	if t.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(t.cfg.Audience))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, errors.Join(ErrInvalidToken, err)
	}
	return claims.identity()
}

// Issue signs a token for id valid for the configured TTL.
func (t *Tokens) Issue(id Identity) (string, error) {
	now := t.cfg.Now()
	claims := Claims{
		AccountID:      id.AccountID,
		Email:          id.Email,
		Role:           string(id.Role),
		OrganizationID: id.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.AccountID,
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.TTL)),
		},
	}
	if t.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{t.cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.Secret)
}
