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

package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invoiceflow/mailscanner/internal/attachments"
	"github.com/invoiceflow/mailscanner/internal/graph"
	"github.com/invoiceflow/mailscanner/internal/models"
	"github.com/invoiceflow/mailscanner/internal/watermark"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeMail serves pre-built pages. Page URLs are "page:<index>".
type fakeMail struct {
	mu          sync.Mutex
	folderErr   error
	pages       [][]models.MessageSummary
	failPage    int // 1-based page number that fails, 0 for none
	attachments map[string][]models.AttachmentEntry
	since       time.Time
	fetched     int
}

func (f *fakeMail) ResolveFolder(ctx context.Context, mailbox, name string) (string, error) {
	if f.folderErr != nil {
		return "", f.folderErr
	}
	return "folder-1", nil
}

func (f *fakeMail) MessagesURL(mailbox, folderID string, since time.Time) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	return "page:0"
}

func (f *fakeMail) FetchMessages(ctx context.Context, pageURL string) (*graph.MessagePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var i int
	if _, err := fmt.Sscanf(pageURL, "page:%d", &i); err != nil {
		return nil, err
	}
	f.fetched++
	if f.failPage == i+1 {
		return nil, &graph.StatusError{StatusCode: 503, URL: pageURL}
	}

	page := &graph.MessagePage{}
	if i < len(f.pages) {
		page.Messages = f.pages[i]
	}
	if i+1 < len(f.pages) {
		page.NextLink = fmt.Sprintf("page:%d", i+1)
	}
	return page, nil
}

func (f *fakeMail) ListAttachments(ctx context.Context, mailbox, folderID, messageID string) ([]models.AttachmentEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attachments[messageID], nil
}

// memStore is an in-memory watermark store, duplicate checker and recorder
// sharing one message table.
type memStore struct {
	mu        sync.Mutex
	messages  map[string]models.NewMessage
	latest    map[string]time.Time
	upserts   []watermark.Update
	failIDs   map[string]bool
	latestErr error
}

func newMemStore() *memStore {
	return &memStore{
		messages: map[string]models.NewMessage{},
		latest:   map[string]time.Time{},
		failIDs:  map[string]bool{},
	}
}

func (m *memStore) Latest(ctx context.Context, mailbox string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	t, ok := m.latest[mailbox]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memStore) Upsert(ctx context.Context, u watermark.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, u)
	if u.Timestamp.After(m.latest[u.Mailbox]) {
		m.latest[u.Mailbox] = u.Timestamp
	}
	return nil
}

func (m *memStore) Exists(ctx context.Context, messageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.messages[models.Truncate(messageID, models.MaxMessageIDLen)]
	return ok
}

func (m *memStore) Record(ctx context.Context, msg models.NewMessage, entityID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[msg.MessageID] {
		return "", errors.New("connection reset by peer")
	}
	if _, ok := m.messages[msg.MessageID]; ok {
		return "", fmt.Errorf("duplicate key value violates unique constraint")
	}
	m.messages[msg.MessageID] = msg
	return uuid.New().String(), nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// fakePublisher records published work IDs.
type fakePublisher struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (p *fakePublisher) Publish(ctx context.Context, workID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return false
	}
	p.sent = append(p.sent, workID)
	return true
}

// memBlobs and memDocs back a real attachments.Uploader.
type memBlobs struct {
	mu   sync.Mutex
	keys []string
}

func (b *memBlobs) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
	return "s3://test/" + key, nil
}

type memDocs struct {
	mu   sync.Mutex
	docs []models.StoredAttachment
}

func (d *memDocs) Insert(ctx context.Context, doc models.StoredAttachment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs = append(d.docs, doc)
	return nil
}

// fakeLocker fails Acquire while held.
type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	released int
}

var errLockHeld = errors.New("scan already in progress")

func (l *fakeLocker) Acquire(ctx context.Context, mailbox string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, errLockHeld
	}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
	}, nil
}

func message(id, subject string, at time.Time, hasAttachments bool) models.MessageSummary {
	return models.MessageSummary{
		ID:             id,
		ConversationID: "conv-" + id,
		Subject:        subject,
		Sender:         models.EmailAddress{Address: "vendor@test.com", Name: "Vendor"},
		To:             []models.EmailAddress{{Address: "ap@test.com"}},
		Body:           "body of " + id,
		ReceivedAt:     at,
		HasAttachments: hasAttachments,
	}
}

func paginate(msgs []models.MessageSummary, size int) [][]models.MessageSummary {
	var pages [][]models.MessageSummary
	for len(msgs) > 0 {
		n := size
		if n > len(msgs) {
			n = len(msgs)
		}
		pages = append(pages, msgs[:n])
		msgs = msgs[n:]
	}
	return pages
}

// harness wires a Scanner to in-memory collaborators.
type harness struct {
	mail      *fakeMail
	store     *memStore
	publisher *fakePublisher
	blobs     *memBlobs
	docs      *memDocs
	connects  int
	scanner   *Scanner
}

func newHarness(mail *fakeMail, store *memStore) *harness {
	h := &harness{
		mail:      mail,
		store:     store,
		publisher: &fakePublisher{},
		blobs:     &memBlobs{},
		docs:      &memDocs{},
	}
	h.scanner = h.build(nil, "https://sqs.test/000000000000/invoice-work")
	return h
}

func (h *harness) build(locker Locker, queue string) *Scanner {
	return New(Deps{
		Connect: func(ctx context.Context, creds graph.Credentials) (MailAPI, error) {
			h.connects++
			return h.mail, nil
		},
		Watermarks:       h.store,
		Duplicates:       h.store,
		Recorder:         h.store,
		Uploader:         attachments.NewUploader(h.blobs, h.docs),
		Publisher:        h.publisher,
		Locker:           locker,
		QueueDestination: queue,
		Now:              func() time.Time { return fixedNow },
	})
}

func (h *harness) run() (*Result, error) {
	return h.scanner.Run(context.Background(), Request{
		Folder:      "Inbox",
		Mailbox:     "ap@test.com",
		Credentials: graph.Credentials{TenantID: "t", ClientID: "c", ClientSecret: "s"},
	})
}
