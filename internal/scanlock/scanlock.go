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

// Package scanlock provides an optional per-mailbox lock in Redis so that
// a scheduled scan and a manually triggered scan of the same mailbox do
// not run at the same time.
package scanlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL bounds how long a crashed holder keeps the lock.
	DefaultTTL = 30 * time.Minute

	// keyPrefix namespaces lock keys in Redis.
	keyPrefix = "scanner:lock:"

	releaseTimeout = 5 * time.Second
)

// ErrScanInProgress is returned when another scan holds the mailbox lock.
var ErrScanInProgress = errors.New("scan already in progress")

// releaseScript deletes the key only if it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Client is the subset of *redis.Client used by the locker.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Locker acquires per-mailbox locks.
type Locker struct {
	rdb Client
	ttl time.Duration
}

// New creates a locker. A non-positive ttl uses DefaultTTL.
func New(rdb Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Locker{rdb: rdb, ttl: ttl}
}

// Acquire takes the lock for mailbox. The returned release function
// frees it if it is still ours.
func (l *Locker) Acquire(ctx context.Context, mailbox string) (func(), error) {
	key := keyPrefix + mailbox
	token := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("scan lock SETNX: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrScanInProgress, mailbox)
	}

	slog.Debug("scan lock acquired", "mailbox", mailbox)

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := l.rdb.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			slog.Warn("failed to release scan lock", "mailbox", mailbox, "error", err)
		}
	}
	return release, nil
}
