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

// Package scanner runs incremental scans of a mailbox folder. A scan
// lists every message received since the mailbox's watermark, records
// the ones not seen before, stores their attachments, notifies the work
// queue and finally advances the watermark.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/invoiceflow/mailscanner/internal/attachments"
	"github.com/invoiceflow/mailscanner/internal/graph"
	"github.com/invoiceflow/mailscanner/internal/models"
	"github.com/invoiceflow/mailscanner/internal/watermark"
)

const (
	// DefaultFolder is scanned when a request names no folder.
	DefaultFolder = "Inbox"

	// FallbackWindow bounds the first scan of a mailbox.
	FallbackWindow = 7 * 24 * time.Hour

	// SafetyMargin is subtracted from every lower bound so that late
	// arrivals and clock skew near the watermark are not missed.
	SafetyMargin = 30 * time.Minute

	flushTimeout = 15 * time.Second
)

var (
	// ErrMissingMailbox is returned when a request names no mailbox.
	ErrMissingMailbox = errors.New("mailbox is required")

	// ErrMissingQueue is returned when no notification destination is configured.
	ErrMissingQueue = errors.New("queue destination is not configured")
)

// MailAPI is an authenticated mail API session.
type MailAPI interface {
	ResolveFolder(ctx context.Context, mailbox, name string) (string, error)
	MessagesURL(mailbox, folderID string, since time.Time) string
	FetchMessages(ctx context.Context, pageURL string) (*graph.MessagePage, error)
	attachments.Lister
}

// ConnectFunc acquires a mail API session for a set of credentials.
type ConnectFunc func(ctx context.Context, creds graph.Credentials) (MailAPI, error)

// GraphSessions adapts a graph.Connector to a ConnectFunc.
func GraphSessions(c *graph.Connector) ConnectFunc {
	return func(ctx context.Context, creds graph.Credentials) (MailAPI, error) {
		client, err := c.Connect(ctx, creds)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// WatermarkStore reads and advances per-mailbox scan progress.
type WatermarkStore interface {
	Latest(ctx context.Context, mailbox string) (*time.Time, error)
	Upsert(ctx context.Context, u watermark.Update) error
}

// DuplicateChecker reports whether a message is already recorded.
type DuplicateChecker interface {
	Exists(ctx context.Context, messageID string) bool
}

// Recorder persists a new message and returns its work ID.
type Recorder interface {
	Record(ctx context.Context, msg models.NewMessage, entityID string) (string, error)
}

// AttachmentUploader stores a message's attachments and returns how many
// were stored.
type AttachmentUploader interface {
	UploadAll(ctx context.Context, lister attachments.Lister, mailbox, folderID, messageID, workID string) int
}

// Publisher notifies the work queue about a recorded message.
type Publisher interface {
	Publish(ctx context.Context, workID string) bool
}

// Locker serialises scans of one mailbox. Acquire fails when another scan
// holds the lock.
type Locker interface {
	Acquire(ctx context.Context, mailbox string) (release func(), err error)
}

// Deps holds the collaborators of a Scanner. Locker and Now are optional.
type Deps struct {
	Connect          ConnectFunc
	Watermarks       WatermarkStore
	Duplicates       DuplicateChecker
	Recorder         Recorder
	Uploader         AttachmentUploader
	Publisher        Publisher
	Locker           Locker
	QueueDestination string
	Now              func() time.Time
}

// Scanner runs scans. It holds no per-run state, so concurrent runs are
// independent of each other.
type Scanner struct {
	connect          ConnectFunc
	watermarks       WatermarkStore
	duplicates       DuplicateChecker
	recorder         Recorder
	uploader         AttachmentUploader
	publisher        Publisher
	locker           Locker
	queueDestination string
	now              func() time.Time
}

// New creates a Scanner from its collaborators.
func New(d Deps) *Scanner {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Scanner{
		connect:          d.Connect,
		watermarks:       d.Watermarks,
		duplicates:       d.Duplicates,
		recorder:         d.Recorder,
		uploader:         d.Uploader,
		publisher:        d.Publisher,
		locker:           d.Locker,
		queueDestination: d.QueueDestination,
		now:              now,
	}
}

// Request identifies the mailbox folder to scan.
type Request struct {
	Folder      string
	Mailbox     string
	Credentials graph.Credentials
}

// Result is the outcome of a scan. Messages is empty when the scan
// failed; Run always carries the counters gathered so far.
type Result struct {
	Run      Run
	Messages []models.StoredMessage
}

// Run scans one mailbox folder. A non-nil error means the scan was
// aborted; the watermark is still written when any message was seen
// before the failure.
func (s *Scanner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Mailbox == "" {
		slog.Error("scan rejected", "error", ErrMissingMailbox)
		return &Result{}, ErrMissingMailbox
	}
	if s.queueDestination == "" {
		slog.Error("scan rejected", "mailbox", req.Mailbox, "error", ErrMissingQueue)
		return &Result{}, ErrMissingQueue
	}

	folder := req.Folder
	if folder == "" {
		folder = DefaultFolder
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, req.Mailbox)
		if err != nil {
			slog.Warn("scan skipped", "mailbox", req.Mailbox, "error", err)
			return &Result{}, err
		}
		defer release()
	}

	run := newRun(req.Mailbox, folder, s.now())
	slog.Info("starting email scan",
		"mailbox", run.Mailbox,
		"folder", run.Folder,
		"scanner_id", run.ScannerID,
		"scan_name", run.ScanName,
	)
	start := time.Now()

	messages, err := s.scan(ctx, run, req.Credentials)
	if err != nil {
		slog.Error("scan failed",
			"scan_name", run.ScanName,
			"latency", time.Since(start).String(),
			"error", err,
		)
		s.flush(ctx, run, models.ScanStatusError)
		return &Result{Run: *run}, fmt.Errorf("%s: %w", run.ScanName, err)
	}

	s.flush(ctx, run, models.ScanStatusSuccess)

	slog.Info("scan completed",
		"scan_name", run.ScanName,
		"new", run.NewCount,
		"duplicates", run.DuplicateCount,
		"skipped", run.SkippedCount,
		"attachments", run.AttachmentsUploaded,
		"notified", run.NotificationsSent,
		"failed", run.FailedCount,
		"pages", run.PagesSeen,
		"latency", time.Since(start).String(),
	)
	return &Result{Run: *run, Messages: messages}, nil
}

// scan performs the fallible part of a run. Any returned error is fatal
// to the run.
func (s *Scanner) scan(ctx context.Context, run *Run, creds graph.Credentials) ([]models.StoredMessage, error) {
	api, err := s.connect(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("acquire mail API session: %w", err)
	}

	folderID, err := api.ResolveFolder(ctx, run.Mailbox, run.Folder)
	if err != nil {
		return nil, fmt.Errorf("resolve folder: %w", err)
	}

	since := s.lowerBound(ctx, run.Mailbox)
	slog.Info("listing messages", "mailbox", run.Mailbox, "since", since.Format(time.RFC3339))

	var messages []models.StoredMessage
	for pageURL := api.MessagesURL(run.Mailbox, folderID, since); pageURL != ""; {
		page, err := api.FetchMessages(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", run.PagesSeen+1, err)
		}
		run.PagesSeen++

		for _, msg := range page.Messages {
			if stored := s.processMessage(ctx, api, run, folderID, msg); stored != nil {
				messages = append(messages, *stored)
			}
		}

		pageURL = page.NextLink
	}

	return messages, nil
}

// lowerBound returns the start of the listing window: the mailbox
// watermark, or now minus FallbackWindow, minus SafetyMargin.
func (s *Scanner) lowerBound(ctx context.Context, mailbox string) time.Time {
	bound := s.now().UTC().Add(-FallbackWindow)

	latest, err := s.watermarks.Latest(ctx, mailbox)
	switch {
	case err != nil:
		slog.Error("failed to read watermark, using fallback window", "mailbox", mailbox, "error", err)
	case latest == nil:
		slog.Info("no previous watermark, using fallback window", "mailbox", mailbox)
	default:
		bound = latest.UTC()
	}

	return bound.Add(-SafetyMargin)
}

// processMessage handles one listing entry and returns the stored message
// when it was newly recorded. Failures are counted on run and never
// propagate.
func (s *Scanner) processMessage(ctx context.Context, api MailAPI, run *Run, folderID string, msg models.MessageSummary) (stored *models.StoredMessage) {
	defer func() {
		if r := recover(); r != nil {
			run.FailedCount++
			slog.Error("message processing panicked", "message_id", msg.ID, "panic", r)
			stored = nil
		}
	}()

	if msg.ID == "" || msg.ReceivedAt.IsZero() {
		run.FailedCount++
		slog.Error("message parsing failed", "message_id", msg.ID, "subject", msg.Subject)
		return nil
	}

	// Replies and forwards still count as seen.
	run.observe(msg.ID, msg.ReceivedAt)

	if isReplyOrForward(msg.Subject) {
		run.SkippedCount++
		slog.Debug("reply or forward skipped", "message_id", msg.ID)
		return nil
	}

	if s.duplicates.Exists(ctx, msg.ID) {
		run.DuplicateCount++
		slog.Debug("duplicate email skipped", "message_id", msg.ID)
		return nil
	}

	start := time.Now()
	record := normalize(msg)

	workID, err := s.recorder.Record(ctx, record, run.EntityID)
	if err != nil || workID == "" {
		run.FailedCount++
		slog.Error("failed to insert email", "message_id", msg.ID, "error", err)
		return nil
	}
	run.NewCount++

	result := &models.StoredMessage{
		NewMessage:       record,
		WorkID:           workID,
		EntityID:         run.EntityID,
		ProcessingStatus: models.StatusReceived,
	}

	if msg.HasAttachments {
		n := s.uploader.UploadAll(ctx, api, run.Mailbox, folderID, msg.ID, workID)
		run.AttachmentsUploaded += n
		result.AttachmentsUploaded = n
		if n == 0 {
			slog.Warn("message flagged with attachments but none stored", "work_id", workID)
		}
	}

	if s.publisher.Publish(ctx, workID) {
		run.NotificationsSent++
		result.Notified = true
	} else {
		slog.Warn("work notification not sent", "work_id", workID)
	}

	slog.Info("email processed",
		"work_id", workID,
		"attachments", result.AttachmentsUploaded,
		"latency", time.Since(start).String(),
	)
	return result
}

// flush writes the run's watermark. Nothing is written when no message
// was observed. Errors are logged only.
func (s *Scanner) flush(ctx context.Context, run *Run, status string) {
	if !run.Observed() {
		slog.Info("no messages observed, scanner state unchanged", "mailbox", run.Mailbox)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()

	err := s.watermarks.Upsert(ctx, watermark.Update{
		ScannerID: run.ScannerID,
		EntityID:  run.EntityID,
		Mailbox:   run.Mailbox,
		Timestamp: run.LatestSeenAt,
		MessageID: run.LatestSeenID,
		NewCount:  run.NewCount,
		Status:    status,
	})
	if err != nil {
		slog.Error("failed to update scanner state",
			"scan_name", run.ScanName,
			"status", status,
			"error", err,
		)
	}
}
