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

// Package tenant reads the active tenant's scan settings from the tenant
// configuration database.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNoActiveTenant is returned when no usable tenant_config row exists.
var ErrNoActiveTenant = errors.New("no active tenant configuration")

// Config is the active tenant's scan configuration.
type Config struct {
	Mailboxes    []string
	ScanInterval time.Duration // zero when unset
}

// Querier is the subset of pgxpool.Pool used by the store.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads tenant_config.
type Store struct {
	db Querier
}

// NewStore creates a tenant store backed by the tenant database.
func NewStore(db Querier) *Store {
	return &Store{db: db}
}

// Active returns the configuration of the first active tenant.
func (s *Store) Active(ctx context.Context) (*Config, error) {
	var (
		addresses []string
		minutes   *int
	)
	err := s.db.QueryRow(ctx, `
		SELECT invoice_email_addresses, email_scan_interval_mins
		FROM public.tenant_config
		WHERE is_active = true
		LIMIT 1
	`).Scan(&addresses, &minutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveTenant
	}
	if err != nil {
		return nil, fmt.Errorf("query tenant config: %w", err)
	}

	cfg := &Config{}
	for _, a := range addresses {
		if a = strings.TrimSpace(a); a != "" {
			cfg.Mailboxes = append(cfg.Mailboxes, a)
		}
	}
	if len(cfg.Mailboxes) == 0 {
		return nil, fmt.Errorf("%w: invoice_email_addresses is empty", ErrNoActiveTenant)
	}
	if minutes != nil && *minutes > 0 {
		cfg.ScanInterval = time.Duration(*minutes) * time.Minute
	}

	slog.Info("tenant configuration loaded",
		"mailboxes", len(cfg.Mailboxes),
		"scan_interval", cfg.ScanInterval.String(),
	)
	return cfg, nil
}
