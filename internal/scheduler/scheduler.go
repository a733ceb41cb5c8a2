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

// Package scheduler runs scan passes over the configured mailboxes on a
// fixed interval. It can be started, stopped and queried at runtime.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/invoiceflow/mailscanner/internal/scanner"
)

// Runner runs a single mailbox scan.
type Runner interface {
	Run(ctx context.Context, req scanner.Request) (*scanner.Result, error)
}

// Status is a snapshot of the scheduler state.
type Status struct {
	Running   bool
	Interval  time.Duration
	LastRunAt time.Time
	Runs      int
}

// Scheduler owns the periodic scan loop.
type Scheduler struct {
	runner   Runner
	requests []scanner.Request
	interval time.Duration

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	lastRunAt time.Time
	runs      int

	wg sync.WaitGroup
}

// New creates a stopped scheduler that scans requests every interval.
func New(runner Runner, requests []scanner.Request, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		requests: requests,
		interval: interval,
	}
}

// Start launches the loop. It returns false if the loop is already running.
// The first pass starts immediately.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(loopCtx)

	slog.Info("scheduler started", "interval", s.interval.String(), "mailboxes", len(s.requests))
	return true
}

// Stop prevents further passes. A scan already in progress runs to
// completion. It returns false if the loop was not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}

	s.cancel()
	s.running = false
	s.cancel = nil

	slog.Info("scheduler stopped")
	return true
}

// Status returns the current scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Running:   s.running,
		Interval:  s.interval,
		LastRunAt: s.lastRunAt,
		Runs:      s.runs,
	}
}

// TriggerNow starts one pass in the background and returns immediately.
// It is independent of the loop and may overlap with a scheduled pass.
func (s *Scheduler) TriggerNow() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		slog.Info("manual scan triggered")
		s.pass(context.Background())
	}()
}

// Wait blocks until the loop and all triggered passes have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.pass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler loop exiting")
			return
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

// pass scans every mailbox in turn. Cancelling ctx stops the pass before
// the next mailbox but never interrupts a running scan. Only passes that
// scanned at least one mailbox are counted.
func (s *Scheduler) pass(ctx context.Context) {
	scanCtx := context.WithoutCancel(ctx)

	scanned := 0
	for _, req := range s.requests {
		if ctx.Err() != nil {
			slog.Info("scan pass interrupted by stop", "next_mailbox", req.Mailbox)
			break
		}

		scanned++
		res, err := s.runner.Run(scanCtx, req)
		if err != nil {
			slog.Error("scheduled scan failed", "mailbox", req.Mailbox, "error", err)
			continue
		}
		slog.Info("scheduled scan finished",
			"mailbox", req.Mailbox,
			"new", len(res.Messages),
		)
	}

	// A pass stopped before its first mailbox is not a run.
	if scanned == 0 {
		return
	}

	s.mu.Lock()
	s.lastRunAt = time.Now().UTC()
	s.runs++
	s.mu.Unlock()
}
