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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/invoiceflow/mailscanner/internal/config"
)

// CheckedTransport is a Transport with a connectivity check.
type CheckedTransport interface {
	Transport
	Ping(ctx context.Context) error
}

// Open creates the transport selected by cfg.Queue.Transport. rdb is only
// used by the redis transport. The returned func closes any connection
// Open made itself.
func Open(ctx context.Context, cfg *config.Config, awsCfg aws.Config, rdb *redis.Client) (CheckedTransport, func(), error) {
	noop := func() {}

	switch cfg.Queue.Transport {
	case config.TransportSQS:
		return NewSQSTransport(awsCfg, cfg.SQSQueueURL()), noop, nil
	case config.TransportRedis:
		if rdb == nil {
			return nil, noop, fmt.Errorf("queue transport %q requires a redis client", cfg.Queue.Transport)
		}
		return NewRedisTransport(rdb, cfg.Queue.RedisList), noop, nil
	case config.TransportNATS:
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("invoice-mail-scanner"))
		if err != nil {
			return nil, noop, fmt.Errorf("connect to nats: %w", err)
		}
		t, err := NewNATSTransport(ctx, nc, cfg.Queue.NATSStream, cfg.Queue.NATSSubject)
		if err != nil {
			nc.Close()
			return nil, noop, err
		}
		return t, nc.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown queue transport %q", cfg.Queue.Transport)
	}
}
