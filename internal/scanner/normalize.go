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
	"strings"

	"github.com/invoiceflow/mailscanner/internal/models"
)

// skippedPrefixes mark replies and forwards, matched case-insensitively.
var skippedPrefixes = []string{"RE:", "FW:"}

func isReplyOrForward(subject string) bool {
	upper := strings.ToUpper(subject)
	for _, p := range skippedPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

// normalize converts a listing entry into a record that fits the
// invoice_emails columns.
func normalize(msg models.MessageSummary) models.NewMessage {
	var recipient string
	for _, to := range msg.To {
		if to.Address != "" {
			recipient = to.Address
			break
		}
	}

	cc := make([]string, 0, len(msg.CC))
	for _, addr := range msg.CC {
		if addr.Address != "" {
			cc = append(cc, addr.Address)
		}
	}

	sentAt := msg.SentAt
	if sentAt.IsZero() {
		sentAt = msg.ReceivedAt
	}

	return models.NewMessage{
		MessageID:      models.Truncate(msg.ID, models.MaxMessageIDLen),
		ThreadID:       models.Truncate(msg.ConversationID, models.MaxThreadIDLen),
		Subject:        models.Truncate(msg.Subject, models.MaxSubjectLen),
		SenderAddress:  models.Truncate(msg.Sender.Address, models.MaxAddressLen),
		SenderName:     models.Truncate(msg.Sender.Name, models.MaxAddressLen),
		RecipientEmail: models.Truncate(recipient, models.MaxAddressLen),
		CC:             cc,
		Body:           msg.Body,
		SentAt:         sentAt,
		ReceivedAt:     msg.ReceivedAt,
		HasAttachments: msg.HasAttachments,
	}
}
