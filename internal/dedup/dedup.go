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

// Package dedup answers whether a message has already been recorded.
// The recorded set lives in invoice_emails, so overlapping scan windows
// never record the same message twice.
package dedup

import (
	"context"
	"log/slog"

	"github.com/invoiceflow/mailscanner/internal/models"
	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgxpool.Pool used by the filter.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Filter checks message IDs against the recorded messages.
type Filter struct {
	db Querier
}

// NewFilter creates a dedup filter backed by Postgres.
func NewFilter(db Querier) *Filter {
	return &Filter{db: db}
}

// Exists reports whether messageID is already recorded. Lookup errors
// are logged and reported as "not recorded"; the UNIQUE constraint on
// email_message_id still rejects a second insert.
func (f *Filter) Exists(ctx context.Context, messageID string) bool {
	id := models.Truncate(messageID, models.MaxMessageIDLen)

	var exists bool
	err := f.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM invoice_emails WHERE email_message_id = $1)
	`, id).Scan(&exists)
	if err != nil {
		slog.Error("duplicate check failed", "message_id", id, "error", err)
		return false
	}

	return exists
}
