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

// Package models defines the data structures shared across the scanner service.
package models

import "time"

// Column limits of the invoice_emails table.
const (
	MaxMessageIDLen = 255
	MaxThreadIDLen  = 255
	MaxSubjectLen   = 500
	MaxAddressLen   = 255
)

// Processing and OCR states this service writes.
const (
	StatusReceived   = "RECEIVED"
	OCRStatusPending = "PENDING"
)

// Scanner state values.
const (
	ScanStatusSuccess = "success"
	ScanStatusError   = "error"
)

// EmailAddress represents a sender or recipient with an address and optional name.
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// MessageSummary is a message as returned by the folder listing query.
// The listing never carries attachment payloads.
type MessageSummary struct {
	ID             string
	ConversationID string
	Subject        string
	Sender         EmailAddress
	To             []EmailAddress
	CC             []EmailAddress
	Body           string
	ReceivedAt     time.Time
	SentAt         time.Time
	HasAttachments bool
}

// NewMessage is a normalized message ready for recording. String fields are
// already truncated to their column limits.
type NewMessage struct {
	MessageID      string
	ThreadID       string
	Subject        string
	SenderAddress  string
	SenderName     string
	RecipientEmail string
	CC             []string
	Body           string
	SentAt         time.Time
	ReceivedAt     time.Time
	HasAttachments bool
}

// StoredMessage is a recorded message together with its work identifier.
type StoredMessage struct {
	NewMessage
	WorkID              string
	EntityID            string
	ProcessingStatus    string
	AttachmentsUploaded int
	Notified            bool
}

// AttachmentEntry is one entry of a message's attachment listing.
// ContentBytes is base64 encoded and may be empty.
type AttachmentEntry struct {
	ID           string
	Name         string
	ContentType  string
	Size         int64
	IsInline     bool
	ContentBytes string
}

// StoredAttachment is the metadata row written for an uploaded attachment.
type StoredAttachment struct {
	DocumentID   string
	WorkID       string
	FileName     string
	FileSize     int64
	DocumentType string
	IsPrimary    bool
	URL          string
	OCRStatus    string
}

// Notification is the wire record sent downstream for each new message.
type Notification struct {
	WorkID string `json:"work_id"`
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
