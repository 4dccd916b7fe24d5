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

// Command seed loads organization and account fixtures into the database
// and prints a bearer token for each seeded account.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cybercodeedulabs/cybercode-backend/internal/config"
	"github.com/cybercodeedulabs/cybercode-backend/internal/identity"
	"github.com/cybercodeedulabs/cybercode-backend/internal/seed"
	"github.com/cybercodeedulabs/cybercode-backend/internal/store/postgres"
)

func main() {
	file := flag.String("f", "seed.yaml", "fixtures file")
	reset := flag.Bool("reset", false, "truncate instances, accounts and organizations first")
	printTokens := flag.Bool("tokens", true, "print a bearer token per account")
	flag.Parse()

	if err := run(*file, *reset, *printTokens); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
}

func run(file string, reset, printTokens bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fixtures, err := seed.Load(file)
	if err != nil {
		return err
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if reset {
		fmt.Println("Cleaning database...")
		if err := db.Reset(ctx); err != nil {
			return err
		}
	}

	if err := fixtures.Apply(ctx, postgres.NewTenantRepository(db)); err != nil {
		return err
	}
	fmt.Printf("✓ Seeded %d organizations\n", len(fixtures.Organizations))

	if !printTokens {
		return nil
	}
	tokens, err := identity.NewTokens(identity.TokenConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.TokenTTL,
	})
	if err != nil {
		return err
	}
	for _, acct := range fixtures.Accounts() {
		tok, err := tokens.Issue(identity.Identity{
			AccountID:      acct.ID,
			Email:          acct.Email,
			Role:           acct.Role,
			OrganizationID: acct.OrganizationID,
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%s\n", acct.Email, acct.Role, tok)
	}
	return nil
}
