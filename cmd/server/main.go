// Copyright (c) 2026 John Earle
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

// Invoice mail scanner service
//
// Entry point for the scanner service. It:
//  1. Loads configuration from config.yaml and the environment
//  2. Connects to PostgreSQL and applies the schema migrations
//  3. Builds the S3 store, the notification transport and the scan lock
//  4. Verifies the bucket, the queue and the tenant configuration
//  5. Runs the periodic scheduler and serves the control API
//  6. Handles graceful shutdown on SIGTERM/SIGINT
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

	"github.com/jessevdk/go-flags"
	"github.com/redis/go-redis/v9"

	"github.com/invoiceflow/mailscanner/internal/api"
	"github.com/invoiceflow/mailscanner/internal/attachments"
	"github.com/invoiceflow/mailscanner/internal/awsclient"
	"github.com/invoiceflow/mailscanner/internal/blob"
	"github.com/invoiceflow/mailscanner/internal/bootstrap"
	"github.com/invoiceflow/mailscanner/internal/config"
	"github.com/invoiceflow/mailscanner/internal/database"
	"github.com/invoiceflow/mailscanner/internal/dedup"
	"github.com/invoiceflow/mailscanner/internal/graph"
	"github.com/invoiceflow/mailscanner/internal/queue"
	"github.com/invoiceflow/mailscanner/internal/recorder"
	"github.com/invoiceflow/mailscanner/internal/scanlock"
	"github.com/invoiceflow/mailscanner/internal/scanner"
	"github.com/invoiceflow/mailscanner/internal/scheduler"
	"github.com/invoiceflow/mailscanner/internal/tenant"
	"github.com/invoiceflow/mailscanner/internal/watermark"
)

type options struct {
	Config   string `long:"config" short:"c" env:"CONFIG_PATH" description:"Path to config.yaml"`
	LogLevel string `long:"log-level" description:"Override the configured log level (debug, info, warn, error)"`
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	// --- Load Configuration ---
	cfg, err := config.Load(opts.Config)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("starting invoice mail scanner",
		"mailboxes", len(cfg.Mailboxes),
		"transport", cfg.Queue.Transport,
		"scheduler_interval", cfg.SchedulerInterval,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := database.Connect(ctx, "main", cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	version, dirty, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database schema ready", "version", version, "dirty", dirty)

	var tenants bootstrap.TenantSource
	if cfg.TenantDatabaseURL != "" {
		tenantPool, err := database.Connect(ctx, "tenant", cfg.TenantDatabaseURL)
		if err != nil {
			slog.Error("failed to connect to tenant database", "error", err)
			os.Exit(1)
		}
		defer tenantPool.Close()
		tenants = tenant.NewStore(tenantPool)
	}

	// --- AWS ---
	awsCfg, err := awsclient.Load(ctx, cfg.AWS)
	if err != nil {
		slog.Error("failed to load AWS configuration", "error", err)
		os.Exit(1)
	}
	blobs := blob.NewStore(awsCfg, cfg.S3Bucket)

	// --- Redis (Redis transport and scan lock) ---
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		defer rdb.Close()
	}

	// --- Notification Transport ---
	transport, closeTransport, err := queue.Open(ctx, cfg, awsCfg, rdb)
	if err != nil {
		slog.Error("failed to create notification transport", "error", err)
		os.Exit(1)
	}
	defer closeTransport()

	// --- Startup Check ---
	plan, err := bootstrap.Check(ctx, cfg, bootstrap.Deps{
		Bucket:  blobs,
		Queue:   transport,
		Tenants: tenants,
	})
	if err != nil {
		slog.Error("startup check failed", "error", err)
		os.Exit(1)
	}

	// --- Scanner ---
	deps := scanner.Deps{
		Connect: scanner.GraphSessions(graph.NewConnector(graph.ConnectorConfig{
			GraphBaseURL: cfg.Graph.BaseURL,
			VerifySSL:    cfg.Graph.VerifySSL,
		})),
		Watermarks:       watermark.NewStore(pgPool),
		Duplicates:       dedup.NewFilter(pgPool),
		Recorder:         recorder.New(pgPool),
		Uploader:         attachments.NewUploader(blobs, attachments.NewStore(pgPool)),
		Publisher:        queue.NewPublisher(transport),
		QueueDestination: cfg.QueueDestination(),
	}
	if cfg.ScanLockEnabled {
		deps.Locker = scanlock.New(rdb, cfg.ScanLockTTL)
		slog.Info("scan lock enabled", "ttl", cfg.ScanLockTTL)
	}

	sched := scheduler.New(scanner.New(deps), plan.Requests, plan.Interval)
	if cfg.SchedulerAutostart {
		sched.Start(ctx)
	}

	// --- Control API ---
	checks := map[string]api.Pinger{
		"postgres":          pgPool,
		cfg.Queue.Transport: transport,
	}
	if rdb != nil && cfg.Queue.Transport != config.TransportRedis {
		checks["redis"] = redisPinger{rdb}
	}
	handler := api.NewHandler(ctx, sched, checks)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      api.NewServer(handler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// --- Graceful Shutdown ---
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)
		sched.Stop()
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("scanner service listening", "addr", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	// In-flight scans finish before the pools close.
	sched.Wait()
	slog.Info("scanner service stopped")
}

// redisPinger adapts *redis.Client to api.Pinger.
type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}
