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

// Package attachments copies a recorded message's file attachments to the
// blob store and records their metadata in invoice_documents.
package attachments

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/invoiceflow/mailscanner/internal/models"
)

// Lister lists the attachments of one message, including their content.
type Lister interface {
	ListAttachments(ctx context.Context, mailbox, folderID, messageID string) ([]models.AttachmentEntry, error)
}

// BlobStore stores an object and returns its URL.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// DocumentStore records attachment metadata.
type DocumentStore interface {
	Insert(ctx context.Context, doc models.StoredAttachment) error
}

// Uploader moves attachments from the mail API to the blob store.
type Uploader struct {
	blobs BlobStore
	docs  DocumentStore
}

// NewUploader creates an uploader writing objects to blobs and metadata
// to docs.
func NewUploader(blobs BlobStore, docs DocumentStore) *Uploader {
	return &Uploader{blobs: blobs, docs: docs}
}

// ObjectKey returns the blob key for an attachment of messageID.
func ObjectKey(messageID, fileName string) string {
	return fmt.Sprintf("emails/%s/attachments/%s_%s", messageID, uuid.New().String(), fileName)
}

// UploadAll re-lists the attachments of messageID and stores every
// non-inline one with content. It returns how many were stored and
// recorded. Failures only affect the attachment they occur on; a listing
// failure returns 0.
func (u *Uploader) UploadAll(ctx context.Context, lister Lister, mailbox, folderID, messageID, workID string) (uploaded int) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("attachment processing panicked",
				"work_id", workID,
				"panic", r,
			)
		}
	}()

	entries, err := lister.ListAttachments(ctx, mailbox, folderID, messageID)
	if err != nil {
		slog.Error("failed to list attachments", "work_id", workID, "error", err)
		return 0
	}

	if len(entries) == 0 {
		slog.Info("no attachments found via API", "work_id", workID)
		return 0
	}

	for _, entry := range entries {
		if entry.IsInline {
			slog.Debug("skipping inline attachment", "name", entry.Name)
			continue
		}
		if entry.ContentBytes == "" {
			slog.Warn("attachment has no content bytes",
				"name", entry.Name,
				"work_id", workID,
			)
			continue
		}

		if err := u.store(ctx, entry, messageID, workID); err != nil {
			slog.Error("failed to store attachment",
				"name", entry.Name,
				"work_id", workID,
				"error", err,
			)
			continue
		}
		uploaded++
	}

	slog.Info("attachment processing complete",
		"work_id", workID,
		"uploaded", uploaded,
		"listed", len(entries),
	)
	return uploaded
}

// store uploads one attachment and records it.
func (u *Uploader) store(ctx context.Context, entry models.AttachmentEntry, messageID, workID string) error {
	data, err := base64.StdEncoding.DecodeString(entry.ContentBytes)
	if err != nil {
		return fmt.Errorf("decode content: %w", err)
	}

	url, err := u.blobs.Put(ctx, ObjectKey(messageID, entry.Name), data, entry.ContentType)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	docType, err := DocumentType(entry.Name)
	if err != nil {
		return err
	}

	doc := models.StoredAttachment{
		DocumentID:   uuid.New().String(),
		WorkID:       workID,
		FileName:     entry.Name,
		FileSize:     entry.Size,
		DocumentType: docType,
		IsPrimary:    IsPrimary(docType, entry.ContentType),
		URL:          url,
		OCRStatus:    models.OCRStatusPending,
	}
	if err := u.docs.Insert(ctx, doc); err != nil {
		return err
	}

	slog.Info("attachment stored",
		"document_id", doc.DocumentID,
		"name", entry.Name,
		"size", entry.Size,
		"work_id", workID,
	)
	return nil
}
