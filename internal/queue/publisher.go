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

// Package queue publishes one notification per recorded message so that
// downstream workers can pick the message up by its work ID.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/invoiceflow/mailscanner/internal/models"
)

// Transport sends a notification body and returns the transport's own
// identifier for the sent message.
type Transport interface {
	SendNotification(ctx context.Context, body []byte) (string, error)
	Name() string
}

// Publisher sends work notifications through a Transport.
type Publisher struct {
	transport Transport
}

// NewPublisher creates a publisher using the given transport.
func NewPublisher(t Transport) *Publisher {
	return &Publisher{transport: t}
}

// Publish sends {"work_id": workID}. It returns false on any failure,
// including a panicking transport. There is no retry.
func (p *Publisher) Publish(ctx context.Context, workID string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("notification publish panicked", "work_id", workID, "panic", r)
			ok = false
		}
	}()

	body, err := Encode(workID)
	if err != nil {
		slog.Error("failed to encode notification", "work_id", workID, "error", err)
		return false
	}

	id, err := p.transport.SendNotification(ctx, body)
	if err != nil {
		slog.Error("failed to publish notification",
			"work_id", workID,
			"transport", p.transport.Name(),
			"error", err,
		)
		return false
	}

	slog.Info("published work notification",
		"work_id", workID,
		"transport", p.transport.Name(),
		"transport_message_id", id,
	)
	return true
}

// Encode returns the wire form of a notification.
func Encode(workID string) ([]byte, error) {
	body, err := json.Marshal(models.Notification{WorkID: workID})
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return body, nil
}
