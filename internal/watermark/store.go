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

// Package watermark persists per-mailbox scan progress in Postgres. The
// newest recorded timestamp for a mailbox is the lower bound of its next
// scan window.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/invoiceflow/mailscanner/internal/models"
	"github.com/jackc/pgx/v5"
)

// Update is the result of one scan run, written as a single row change.
type Update struct {
	ScannerID string
	EntityID  string
	Mailbox   string
	Timestamp time.Time
	MessageID string
	NewCount  int
	Status    string // models.ScanStatusSuccess or models.ScanStatusError
}

// DB is the subset of pgxpool.Pool used by the store.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes rows of email_scanner_state.
type Store struct {
	db DB
}

// NewStore creates a watermark store backed by Postgres. The table is
// created by the database migrations.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Latest returns the newest last_processed_timestamp recorded for the
// mailbox, or nil when the mailbox has never been scanned.
func (s *Store) Latest(ctx context.Context, mailbox string) (*time.Time, error) {
	var latest *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT MAX(last_processed_timestamp)
		FROM email_scanner_state
		WHERE email_account = $1
	`, mailbox).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("query latest watermark: %w", err)
	}
	if latest != nil {
		t := latest.UTC()
		latest = &t
	}
	return latest, nil
}

// Upsert applies u in one transaction: the row keyed by
// (scanner_id, entity_id, email_account) is updated with scan_count
// incremented by NewCount, or inserted with scan_count = NewCount.
func (s *Store) Upsert(ctx context.Context, u Update) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin watermark tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var scanCount int
	err = tx.QueryRow(ctx, `
		SELECT scan_count
		FROM email_scanner_state
		WHERE scanner_id = $1 AND entity_id = $2 AND email_account = $3
		FOR UPDATE
	`, u.ScannerID, u.EntityID, u.Mailbox).Scan(&scanCount)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
			INSERT INTO email_scanner_state
				(scanner_id, entity_id, email_account, last_processed_timestamp,
				 last_processed_email_id, scan_count, status, last_scan_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		`, u.ScannerID, u.EntityID, u.Mailbox, u.Timestamp, models.Truncate(u.MessageID, models.MaxMessageIDLen), u.NewCount, u.Status)
		if err != nil {
			return fmt.Errorf("insert watermark: %w", err)
		}
	case err != nil:
		return fmt.Errorf("select watermark: %w", err)
	default:
		_, err = tx.Exec(ctx, `
			UPDATE email_scanner_state
			SET last_processed_timestamp = $4,
			    last_processed_email_id  = $5,
			    scan_count               = scan_count + $6,
			    status                   = $7,
			    last_scan_at             = NOW(),
			    updated_at               = NOW()
			WHERE scanner_id = $1 AND entity_id = $2 AND email_account = $3
		`, u.ScannerID, u.EntityID, u.Mailbox, u.Timestamp, models.Truncate(u.MessageID, models.MaxMessageIDLen), u.NewCount, u.Status)
		if err != nil {
			return fmt.Errorf("update watermark: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit watermark: %w", err)
	}

	slog.Info("scanner state updated",
		"mailbox", u.Mailbox,
		"timestamp", u.Timestamp,
		"new_messages", u.NewCount,
		"status", u.Status,
	)
	return nil
}
