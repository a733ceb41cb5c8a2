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
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTransport pushes notifications onto a Redis list.
type RedisTransport struct {
	rdb       *redis.Client
	queueName string
}

// NewRedisTransport creates a transport targeting the list queueName.
func NewRedisTransport(rdb *redis.Client, queueName string) *RedisTransport {
	return &RedisTransport{
		rdb:       rdb,
		queueName: queueName,
	}
}

// Name implements Transport.
func (t *RedisTransport) Name() string { return "redis" }

// SendNotification implements Transport. Consumers pop from the other
// end of the list, so LPUSH gives FIFO order. The list length after the
// push is returned as the transport ID.
func (t *RedisTransport) SendNotification(ctx context.Context, body []byte) (string, error) {
	n, err := t.rdb.LPush(ctx, t.queueName, string(body)).Result()
	if err != nil {
		return "", fmt.Errorf("redis LPUSH: %w", err)
	}
	return strconv.FormatInt(n, 10), nil
}

// Ping checks the Redis connection.
func (t *RedisTransport) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return t.rdb.Ping(ctx).Err()
}
