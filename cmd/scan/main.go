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

// Invoice mail scanner, one-shot scan
//
// Standalone CLI that runs a single scan pass and exits. Useful for
// seeding a new deployment or checking a mailbox by hand.
//
// Usage:
//
//	go run ./cmd/scan/ [--config config.yaml] [--mailbox ap@example.com] [--folder Inbox]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/redis/go-redis/v9"

	"github.com/invoiceflow/mailscanner/internal/attachments"
	"github.com/invoiceflow/mailscanner/internal/awsclient"
	"github.com/invoiceflow/mailscanner/internal/blob"
	"github.com/invoiceflow/mailscanner/internal/bootstrap"
	"github.com/invoiceflow/mailscanner/internal/config"
	"github.com/invoiceflow/mailscanner/internal/database"
	"github.com/invoiceflow/mailscanner/internal/dedup"
	"github.com/invoiceflow/mailscanner/internal/graph"
	"github.com/invoiceflow/mailscanner/internal/queue"
	"github.com/invoiceflow/mailscanner/internal/recorder"
	"github.com/invoiceflow/mailscanner/internal/scanner"
	"github.com/invoiceflow/mailscanner/internal/watermark"
)

type options struct {
	Config  string `long:"config" short:"c" env:"CONFIG_PATH" description:"Path to config.yaml"`
	Mailbox string `long:"mailbox" short:"m" description:"Scan only this mailbox (default: every configured mailbox)"`
	Folder  string `long:"folder" short:"f" description:"Folder to scan when --mailbox is set" default:"Inbox"`
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(opts.Config)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		slog.Error("scan failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	pgPool, err := database.Connect(ctx, "main", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pgPool.Close()

	if _, _, err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}

	awsCfg, err := awsclient.Load(ctx, cfg.AWS)
	if err != nil {
		return err
	}
	blobs := blob.NewStore(awsCfg, cfg.S3Bucket)

	var rdb *redis.Client
	if cfg.Queue.Transport == config.TransportRedis {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opt)
		defer rdb.Close()
	}

	transport, closeTransport, err := queue.Open(ctx, cfg, awsCfg, rdb)
	if err != nil {
		return err
	}
	defer closeTransport()

	// The CLI never reads the tenant database; --mailbox overrides the
	// configured list.
	if opts.Mailbox != "" {
		cfg.Mailboxes = []config.MailboxConfig{{Address: opts.Mailbox, Folder: opts.Folder}}
	}
	plan, err := bootstrap.Check(ctx, cfg, bootstrap.Deps{Bucket: blobs, Queue: transport})
	if err != nil {
		return err
	}

	s := scanner.New(scanner.Deps{
		Connect: scanner.GraphSessions(graph.NewConnector(graph.ConnectorConfig{
			GraphBaseURL: cfg.Graph.BaseURL,
			VerifySSL:    cfg.Graph.VerifySSL,
		})),
		Watermarks:       watermark.NewStore(pgPool),
		Duplicates:       dedup.NewFilter(pgPool),
		Recorder:         recorder.New(pgPool),
		Uploader:         attachments.NewUploader(blobs, attachments.NewStore(pgPool)),
		Publisher:        queue.NewPublisher(transport),
		QueueDestination: cfg.QueueDestination(),
	})

	start := time.Now()
	var failed int
	for _, req := range plan.Requests {
		res, err := s.Run(ctx, req)
		if err != nil {
			failed++
		}
		printSummary(req, res, err)
	}

	slog.Info("scan pass complete",
		"mailboxes", len(plan.Requests),
		"failed", failed,
		"elapsed", time.Since(start).String(),
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d scans failed", failed, len(plan.Requests))
	}
	return nil
}

func printSummary(req scanner.Request, res *scanner.Result, err error) {
	r := res.Run
	fmt.Printf("%s/%s: new=%d duplicates=%d skipped=%d attachments=%d notified=%d failed=%d",
		req.Mailbox, req.Folder,
		r.NewCount, r.DuplicateCount, r.SkippedCount,
		r.AttachmentsUploaded, r.NotificationsSent, r.FailedCount,
	)
	if err != nil {
		fmt.Printf(" error=%q", err.Error())
	}
	fmt.Println()
}
