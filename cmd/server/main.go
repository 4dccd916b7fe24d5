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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cybercodeedulabs/cybercode-backend/internal/audit"
	"github.com/cybercodeedulabs/cybercode-backend/internal/compute"
	"github.com/cybercodeedulabs/cybercode-backend/internal/config"
	"github.com/cybercodeedulabs/cybercode-backend/internal/host"
	"github.com/cybercodeedulabs/cybercode-backend/internal/identity"
	"github.com/cybercodeedulabs/cybercode-backend/internal/observability/logger"
	"github.com/cybercodeedulabs/cybercode-backend/internal/observability/metrics"
	"github.com/cybercodeedulabs/cybercode-backend/internal/observability/tracing"
	"github.com/cybercodeedulabs/cybercode-backend/internal/seed"
	"github.com/cybercodeedulabs/cybercode-backend/internal/store/memory"
	"github.com/cybercodeedulabs/cybercode-backend/internal/store/postgres"
	"github.com/cybercodeedulabs/cybercode-backend/internal/terminal"
	transportHTTP "github.com/cybercodeedulabs/cybercode-backend/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(cfg); err != nil {
		slog.Error("server failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slog.Info("starting cybercode cloud service",
		logger.String("store_driver", cfg.Database.Driver),
		logger.String("host_driver", cfg.Host.Driver),
		logger.String("provision_mode", cfg.Provisioning.Mode),
	)
	ctx := context.Background()

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	} else {
		defer tracer.Shutdown(context.WithoutCancel(ctx))
	}

	meter, err := metrics.New(ctx, metrics.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceVersion: cfg.Observability.ServiceVersion,
	}, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize meter: %w", err)
	}
	defer meter.Shutdown(context.WithoutCancel(ctx))
	computeMetrics, err := metrics.NewCompute(meter)
	if err != nil {
		return fmt.Errorf("failed to create compute instruments: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	executor, err := newExecutor(cfg)
	if err != nil {
		return err
	}

	catalog := host.DefaultCatalog()
	if cfg.Host.ImageCatalog != "" {
		if catalog, err = host.LoadCatalog(cfg.Host.ImageCatalog); err != nil {
			return err
		}
	}

	prov, err := host.NewProvisioner(executor, host.Config{
		Catalog:        catalog,
		CommandTimeout: cfg.Host.CommandTimeout,
		ShellUser:      cfg.Host.ShellUser,
		Metrics:        computeMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create provisioner: %w", err)
	}

	tokens, err := identity.NewTokens(identity.TokenConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to configure tokens: %w", err)
	}

	auditLogger := audit.NewSlogLogger(nil)

	svc := compute.NewService(store, prov, auditLogger, computeMetrics, compute.Config{
		Mode:        compute.Mode(cfg.Provisioning.Mode),
		MaxBulk:     cfg.Provisioning.MaxBulk,
		Concurrency: cfg.Provisioning.Concurrency,
		FreeTier: compute.FreeTier{
			Image: cfg.FreeTier.Image,
			Plan:  cfg.FreeTier.Plan,
			CPU:   cfg.FreeTier.CPU,
			RAM:   cfg.FreeTier.RAM,
			Disk:  cfg.FreeTier.Disk,
		},
	})

	bridge := terminal.NewBridge(tokens, svc, prov, terminal.Config{
		PTY: host.PTY{
			Term: cfg.Terminal.Term,
			Cols: cfg.Terminal.Cols,
			Rows: cfg.Terminal.Rows,
		},
		Audit:   auditLogger,
		Metrics: computeMetrics,
	})

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	handler := transportHTTP.NewHandler(svc, tokens, bridge, transportHTTP.Config{
		ServiceName:    cfg.Observability.ServiceName,
		RequestTimeout: cfg.Server.RequestTimeout,
		AllowedOrigins: cfg.Terminal.AllowedOrigins,
		CORSOrigins:    cfg.Server.CORSOrigins,
	})
	router := transportHTTP.NewRouter(handler, rateLimiter)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}
	bridge.CloseAll()
	if err := svc.Close(shutdownCtx); err != nil {
		slog.Error("provisioning tasks did not finish", logger.Error(err))
	}

	slog.Info("server stopped")
	return nil
}

// openStore returns the configured record store and its cleanup func.
func openStore(ctx context.Context, cfg *config.Config) (compute.Store, func(), error) {
	if cfg.Database.Driver == "memory" {
		slog.Warn("using in-memory store; data is lost on restart")
		store := memory.New()
		if cfg.Database.SeedFile != "" {
			fixtures, err := seed.Load(cfg.Database.SeedFile)
			if err != nil {
				return nil, nil, err
			}
			if err := fixtures.Apply(ctx, store); err != nil {
				return nil, nil, fmt.Errorf("failed to seed store: %w", err)
			}
			slog.Info("seeded in-memory store", logger.String("file", cfg.Database.SeedFile))
		}
		return store, func() {}, nil
	}

	db, err := postgres.New(ctx, postgresConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("connected to database")
	return postgres.NewStore(db), db.Close, nil
}

// newExecutor returns the host command channel.
func newExecutor(cfg *config.Config) (host.Executor, error) {
	if cfg.Host.Driver == "noop" {
		slog.Warn("using simulated host; no containers are created")
		return host.NewMemoryHost(), nil
	}

	key, err := os.ReadFile(cfg.Host.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read host key: %w", err)
	}
	hostKeys, err := host.KnownHosts(cfg.Host.KnownHostsPath)
	if err != nil {
		return nil, err
	}
	return host.NewSSHExecutor(&host.SSHConfig{
		Host:            cfg.Host.Address,
		Port:            cfg.Host.Port,
		User:            cfg.Host.User,
		PrivateKey:      key,
		DialTimeout:     cfg.Host.DialTimeout,
		DialAttempts:    cfg.Host.DialAttempts,
		HostKeyCallback: hostKeys,
	})
}

func postgresConfig(cfg *config.Config) postgres.Config {
	return postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgresConfig(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
