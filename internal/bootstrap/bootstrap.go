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

// Package bootstrap verifies the service's external dependencies at
// startup and resolves which mailboxes to scan and how often.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/invoiceflow/mailscanner/internal/config"
	"github.com/invoiceflow/mailscanner/internal/graph"
	"github.com/invoiceflow/mailscanner/internal/scanner"
	"github.com/invoiceflow/mailscanner/internal/tenant"
)

// BucketEnsurer creates the attachment bucket when missing.
type BucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

// Pinger checks a connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TenantSource returns the active tenant configuration.
type TenantSource interface {
	Active(ctx context.Context) (*tenant.Config, error)
}

// Deps are the dependencies checked at startup. Tenants may be nil when
// no tenant database is configured.
type Deps struct {
	Bucket  BucketEnsurer
	Queue   Pinger
	Tenants TenantSource
}

// Plan is what the scheduler runs.
type Plan struct {
	Requests []scanner.Request
	Interval time.Duration
}

// Check verifies the bucket, the queue and the tenant configuration, and
// returns the scan plan. Any failure means the service must not start.
func Check(ctx context.Context, cfg *config.Config, deps Deps) (*Plan, error) {
	slog.Info("service startup check, initializing dependencies")

	if err := deps.Bucket.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("s3 bucket check: %w", err)
	}
	slog.Info("s3 bucket check passed", "bucket", cfg.S3Bucket)

	destination := cfg.QueueDestination()
	if destination == "" {
		return nil, fmt.Errorf("queue check: %w", scanner.ErrMissingQueue)
	}
	if deps.Queue != nil {
		if err := deps.Queue.Ping(ctx); err != nil {
			return nil, fmt.Errorf("queue check: %w", err)
		}
	}
	slog.Info("queue check passed", "transport", cfg.Queue.Transport, "destination", destination)

	plan, err := resolvePlan(ctx, cfg, deps.Tenants)
	if err != nil {
		return nil, err
	}

	slog.Info("service ready, all required dependencies available",
		"mailboxes", len(plan.Requests),
		"interval", plan.Interval.String(),
	)
	return plan, nil
}

// resolvePlan prefers the tenant database over the static configuration.
func resolvePlan(ctx context.Context, cfg *config.Config, tenants TenantSource) (*Plan, error) {
	creds := graph.Credentials{
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
	}
	plan := &Plan{Interval: cfg.SchedulerInterval}

	if tenants != nil {
		tc, err := tenants.Active(ctx)
		if err != nil {
			return nil, fmt.Errorf("tenant config check: %w", err)
		}
		folder := config.DefaultFolder
		if len(cfg.Mailboxes) > 0 {
			folder = cfg.Mailboxes[0].Folder
		}
		for _, mb := range tc.Mailboxes {
			plan.Requests = append(plan.Requests, scanner.Request{Mailbox: mb, Folder: folder, Credentials: creds})
		}
		if tc.ScanInterval > 0 {
			plan.Interval = tc.ScanInterval
		}
		return plan, nil
	}

	for _, mb := range cfg.Mailboxes {
		plan.Requests = append(plan.Requests, scanner.Request{Mailbox: mb.Address, Folder: mb.Folder, Credentials: creds})
	}
	if len(plan.Requests) == 0 {
		return nil, errors.New("tenant config check: no mailboxes configured")
	}
	return plan, nil
}
