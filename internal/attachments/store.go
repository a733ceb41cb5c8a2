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

package attachments

import (
	"context"
	"fmt"

	"github.com/invoiceflow/mailscanner/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool used by the document store.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes attachment metadata to invoice_documents.
type Store struct {
	db Execer
}

// NewStore creates a document store backed by Postgres.
func NewStore(db Execer) *Store {
	return &Store{db: db}
}

// Insert writes one invoice_documents row.
func (s *Store) Insert(ctx context.Context, doc models.StoredAttachment) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO invoice_documents
			(document_id, work_id, file_name, file_size, document_type,
			 is_primary, s3_url, ocr_status, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, doc.DocumentID, doc.WorkID, doc.FileName, doc.FileSize, doc.DocumentType,
		doc.IsPrimary, doc.URL, doc.OCRStatus)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.FileName, err)
	}
	return nil
}
