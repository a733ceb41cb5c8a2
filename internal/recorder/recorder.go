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

// Package recorder persists newly seen messages to invoice_emails. Each
// recorded message is assigned a work ID that identifies it downstream.
package recorder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/invoiceflow/mailscanner/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool used by the recorder.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder inserts messages into invoice_emails.
type Recorder struct {
	db Execer
}

// New creates a recorder backed by Postgres.
func New(db Execer) *Recorder {
	return &Recorder{db: db}
}

// Record inserts msg under entityID with a fresh work ID and returns that
// work ID. The insert is a single statement, so on error nothing is
// visible and the returned work ID is empty.
func (r *Recorder) Record(ctx context.Context, msg models.NewMessage, entityID string) (string, error) {
	workID := uuid.New().String()

	cc := msg.CC
	if cc == nil {
		cc = []string{}
	}

	var sentAt any
	if !msg.SentAt.IsZero() {
		sentAt = msg.SentAt
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO invoice_emails
			(email_message_id, email_thread_id, subject, received_from_email,
			 received_from_name, received_to_email, cc_emails, body_text, body_html,
			 sent_at, received_at, processing_status, has_attachments,
			 attachment_count, work_id, entity_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		msg.MessageID,
		msg.ThreadID,
		msg.Subject,
		msg.SenderAddress,
		msg.SenderName,
		msg.RecipientEmail,
		cc,
		msg.Body,
		msg.Body,
		sentAt,
		msg.ReceivedAt,
		models.StatusReceived,
		msg.HasAttachments,
		0,
		workID,
		entityID,
	)
	if err != nil {
		return "", fmt.Errorf("insert email %s: %w", msg.MessageID, err)
	}

	slog.Info("email stored", "work_id", workID, "has_attachments", msg.HasAttachments)
	return workID, nil
}
