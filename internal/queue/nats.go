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

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSTransport publishes notifications to a JetStream subject.
type NATSTransport struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewNATSTransport ensures a stream named stream captures subject and
// returns a transport publishing to it.
func NewNATSTransport(ctx context.Context, nc *nats.Conn, stream, subject string) (*NATSTransport, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{subject},
	}); err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", stream, err)
	}
	slog.Info("jetstream stream ensured", "stream", stream, "subject", subject)

	return &NATSTransport{nc: nc, js: js, subject: subject}, nil
}

// Name implements Transport.
func (t *NATSTransport) Name() string { return "nats" }

// SendNotification implements Transport. The stream sequence of the
// acknowledged message is returned.
func (t *NATSTransport) SendNotification(ctx context.Context, body []byte) (string, error) {
	ack, err := t.js.Publish(ctx, t.subject, body)
	if err != nil {
		return "", fmt.Errorf("jetstream publish: %w", err)
	}
	return strconv.FormatUint(ack.Sequence, 10), nil
}

// Ping checks the NATS connection.
func (t *NATSTransport) Ping(ctx context.Context) error {
	if !t.nc.IsConnected() {
		return fmt.Errorf("nats connection status %s", t.nc.Status())
	}
	return nil
}
