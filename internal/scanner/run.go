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
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const scanNameTimeLayout = "2006-01-02 15:04:05 UTC"

// Run is the in-memory state of one scan. Only the latest-seen fields
// are persisted, through the watermark store.
type Run struct {
	ScannerID string
	EntityID  string
	Mailbox   string
	Folder    string
	ScanName  string
	StartedAt time.Time

	PagesSeen           int
	NewCount            int
	DuplicateCount      int
	SkippedCount        int
	AttachmentsUploaded int
	NotificationsSent   int
	FailedCount         int

	LatestSeenAt time.Time
	LatestSeenID string
}

func newRun(mailbox, folder string, now time.Time) *Run {
	return &Run{
		ScannerID: uuid.New().String(),
		EntityID:  uuid.New().String(),
		Mailbox:   mailbox,
		Folder:    folder,
		ScanName:  ScanName(mailbox, folder, now),
		StartedAt: now,
	}
}

// ScanName builds the human-readable label of a scan, e.g.
// "SCAN | Inbox | ap@example.com | 2026-03-01 08:00:00 UTC | #1A2B3C".
func ScanName(mailbox, folder string, now time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("SCAN | %s | %s | %s | #%s", folder, mailbox, now.UTC().Format(scanNameTimeLayout), short)
}

// observe advances the latest-seen pair when at is strictly newer.
func (r *Run) observe(id string, at time.Time) {
	if r.LatestSeenAt.IsZero() || at.After(r.LatestSeenAt) {
		r.LatestSeenAt = at
		r.LatestSeenID = id
	}
}

// Observed reports whether any message was seen during the run.
func (r *Run) Observed() bool {
	return !r.LatestSeenAt.IsZero()
}
