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

// Package graph provides a Microsoft Graph mail client: token acquisition,
// folder resolution, paged message listing and attachment retrieval.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/invoiceflow/mailscanner/internal/models"
)

// ErrFolderNotFound is returned when no folder matches the display name.
var ErrFolderNotFound = errors.New("mail folder not found")

// StatusError is returned for non-2xx Graph API responses.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graph API returned HTTP %d for %s", e.StatusCode, e.URL)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client performs mail API calls with an authenticated HTTP client.
type Client struct {
	httpClient   *http.Client
	graphBaseURL string
}

// NewClient creates a Graph mail client. httpClient must already attach
// the bearer token (see Connector.Connect).
func NewClient(httpClient *http.Client, graphBaseURL string) *Client {
	return &Client{
		httpClient:   httpClient,
		graphBaseURL: graphBaseURL,
	}
}

// MessagePage is one page of a folder listing.
type MessagePage struct {
	Messages []models.MessageSummary
	NextLink string
}

// MessagesURL builds the first-page URL for messages received at or after
// since, newest first.
func (c *Client) MessagesURL(mailbox, folderID string, since time.Time) string {
	params := url.Values{}
	params.Set("$filter", "receivedDateTime ge "+since.UTC().Format(filterTimeLayout))
	params.Set("$orderby", "receivedDateTime desc")

	return fmt.Sprintf("%s/users/%s/mailFolders/%s/messages?%s",
		c.graphBaseURL, url.PathEscape(mailbox), url.PathEscape(folderID), params.Encode())
}

// FetchMessages retrieves a single page of the folder listing. pageURL is
// either MessagesURL or a previous page's NextLink.
func (c *Client) FetchMessages(ctx context.Context, pageURL string) (*MessagePage, error) {
	var page messagesResponse
	if err := c.getJSON(ctx, pageURL, &page); err != nil {
		return nil, fmt.Errorf("fetch messages page: %w", err)
	}

	out := &MessagePage{
		Messages: make([]models.MessageSummary, 0, len(page.Value)),
		NextLink: page.NextLink,
	}
	for _, msg := range page.Value {
		out.Messages = append(out.Messages, msg.toSummary())
	}
	return out, nil
}

// ListAttachments retrieves the full attachment listing, content included,
// for a message.
func (c *Client) ListAttachments(ctx context.Context, mailbox, folderID, messageID string) ([]models.AttachmentEntry, error) {
	attURL := fmt.Sprintf("%s/users/%s/mailFolders/%s/messages/%s/attachments",
		c.graphBaseURL, url.PathEscape(mailbox), url.PathEscape(folderID), url.PathEscape(messageID))

	var resp attachmentsResponse
	if err := c.getJSON(ctx, attURL, &resp); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}

	entries := make([]models.AttachmentEntry, 0, len(resp.Value))
	for _, a := range resp.Value {
		entries = append(entries, models.AttachmentEntry{
			ID:           a.ID,
			Name:         a.Name,
			ContentType:  a.ContentType,
			Size:         a.Size,
			IsInline:     a.IsInline,
			ContentBytes: a.ContentBytes,
		})
	}
	return entries, nil
}

// getJSON performs a GET and decodes a 200 response into v.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		slog.Error("graph API HTTP error",
			"path", req.URL.Path,
			"status", resp.StatusCode,
			"body", string(body),
		)
		return &StatusError{StatusCode: resp.StatusCode, URL: req.URL.Path, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
