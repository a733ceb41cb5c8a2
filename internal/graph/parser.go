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

package graph

import (
	"log/slog"
	"time"

	"github.com/invoiceflow/mailscanner/internal/models"
)

// filterTimeLayout is the timestamp format used in $filter expressions.
const filterTimeLayout = "2006-01-02T15:04:05Z"

type graphEmailAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
		Name    string `json:"name"`
	} `json:"emailAddress"`
}

func (a graphEmailAddress) toModel() models.EmailAddress {
	return models.EmailAddress{
		Address: a.EmailAddress.Address,
		Name:    a.EmailAddress.Name,
	}
}

// graphMessage represents the relevant fields of a message in a folder listing.
type graphMessage struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversationId"`
	Subject        string              `json:"subject"`
	Sender         *graphEmailAddress  `json:"sender"`
	From           *graphEmailAddress  `json:"from"`
	ToRecipients   []graphEmailAddress `json:"toRecipients"`
	CcRecipients   []graphEmailAddress `json:"ccRecipients"`
	Body           struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	ReceivedDateTime string `json:"receivedDateTime"`
	SentDateTime     string `json:"sentDateTime"`
	HasAttachments   bool   `json:"hasAttachments"`
}

// messagesResponse represents a page of the /messages list response.
type messagesResponse struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

// graphAttachment is a fileAttachment from the /attachments endpoint.
type graphAttachment struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
	IsInline     bool   `json:"isInline"`
	ContentBytes string `json:"contentBytes"`
}

type attachmentsResponse struct {
	Value []graphAttachment `json:"value"`
}

// mailFolder is an entry of /mailFolders or /childFolders.
type mailFolder struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type foldersResponse struct {
	Value    []mailFolder `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

// toSummary converts a Graph message into a MessageSummary. An unparseable
// receivedDateTime leaves ReceivedAt zero; callers treat that as a parse
// failure for the message.
func (m graphMessage) toSummary() models.MessageSummary {
	s := models.MessageSummary{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Subject:        m.Subject,
		Body:           m.Body.Content,
		HasAttachments: m.HasAttachments,
		To:             make([]models.EmailAddress, 0, len(m.ToRecipients)),
		CC:             make([]models.EmailAddress, 0, len(m.CcRecipients)),
	}

	switch {
	case m.Sender != nil:
		s.Sender = m.Sender.toModel()
	case m.From != nil:
		s.Sender = m.From.toModel()
	}

	for _, r := range m.ToRecipients {
		s.To = append(s.To, r.toModel())
	}
	for _, r := range m.CcRecipients {
		s.CC = append(s.CC, r.toModel())
	}

	if t, err := time.Parse(time.RFC3339, m.ReceivedDateTime); err == nil {
		s.ReceivedAt = t.UTC()
	} else {
		slog.Warn("unparseable receivedDateTime",
			"message_id", m.ID,
			"value", m.ReceivedDateTime,
		)
	}
	if t, err := time.Parse(time.RFC3339, m.SentDateTime); err == nil {
		s.SentAt = t.UTC()
	}

	return s
}
