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

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
graph:
  tenant_id: ${TEST_TENANT_ID}
  client_id: client-123
  client_secret: s3cret
mailboxes:
  - address: ap@example.com
  - address: ""
  - address: invoices@example.com
    folder: Vendors
database:
  url: postgres://scanner@localhost/scanner
aws:
  endpoint_url: http://localstack:4566/
s3:
  bucket: attachments
queue:
  sqs_queue_name: invoice-work
scheduler:
  interval: 10m
scan_lock:
  ttl: 5m
port: 9090
log_level: DEBUG
`

// TestParse_ExpandsEnvAndDefaults verifies env expansion, folder defaults
// and skipping of empty mailbox entries.
func TestParse_ExpandsEnvAndDefaults(t *testing.T) {
	t.Setenv("TEST_TENANT_ID", "tenant-abc")

	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Graph.TenantID != "tenant-abc" {
		t.Errorf("TenantID = %q, want tenant-abc", cfg.Graph.TenantID)
	}
	if cfg.Graph.BaseURL != DefaultGraphBaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.Graph.BaseURL)
	}
	if !cfg.Graph.VerifySSL {
		t.Error("VerifySSL should default to true")
	}

	if len(cfg.Mailboxes) != 2 {
		t.Fatalf("expected 2 mailboxes, got %d", len(cfg.Mailboxes))
	}
	if cfg.Mailboxes[0].Folder != DefaultFolder {
		t.Errorf("first folder = %q, want %q", cfg.Mailboxes[0].Folder, DefaultFolder)
	}
	if cfg.Mailboxes[1].Folder != "Vendors" {
		t.Errorf("second folder = %q, want Vendors", cfg.Mailboxes[1].Folder)
	}

	if cfg.SchedulerInterval != 10*time.Minute {
		t.Errorf("SchedulerInterval = %v, want 10m", cfg.SchedulerInterval)
	}
	if cfg.ScanLockTTL != 5*time.Minute {
		t.Errorf("ScanLockTTL = %v, want 5m", cfg.ScanLockTTL)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Queue.Transport != TransportSQS {
		t.Errorf("Transport = %q, want sqs", cfg.Queue.Transport)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel = %v, want debug", cfg.SlogLevel())
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

// TestConfig_SQSQueueURL verifies queue URL construction.
func TestConfig_SQSQueueURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "explicit url wins",
			cfg:  Config{Queue: QueueConfig{SQSQueueURL: "https://sqs/explicit", SQSQueueName: "q"}},
			want: "https://sqs/explicit",
		},
		{
			name: "localstack endpoint",
			cfg: Config{
				AWS:   AWSConfig{EndpointURL: "http://localstack:4566"},
				Queue: QueueConfig{SQSQueueName: "invoice-work"},
			},
			want: "http://localstack:4566/000000000000/invoice-work",
		},
		{
			name: "regional aws",
			cfg: Config{
				AWS:   AWSConfig{Region: "eu-west-1", AccountID: "123456789012"},
				Queue: QueueConfig{SQSQueueName: "invoice-work"},
			},
			want: "https://sqs.eu-west-1.amazonaws.com/123456789012/invoice-work",
		},
		{
			name: "nothing configured",
			cfg:  Config{},
			want: "",
		},
		{
			name: "name without account",
			cfg:  Config{Queue: QueueConfig{SQSQueueName: "q"}},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.SQSQueueURL(); got != tt.want {
				t.Errorf("SQSQueueURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestConfig_Validate verifies required fields and transport checks.
func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Graph:       GraphConfig{TenantID: "t", ClientID: "c", ClientSecret: "s"},
			DatabaseURL: "postgres://x",
			S3Bucket:    "b",
			Queue:       QueueConfig{Transport: TransportSQS},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	cfg := base()
	cfg.Graph.ClientSecret = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing client secret")
	}

	cfg = base()
	cfg.Queue.Transport = TransportRedis
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for redis transport without redis.url")
	}

	cfg = base()
	cfg.Queue.Transport = "kafka"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown transport")
	}

	cfg = base()
	cfg.ScanLockEnabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for scan lock without redis.url")
	}
}

// TestLoad_ReadsFile verifies Load reads from an explicit path.
func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("graph:\n  verify_ssl: false\nport: 7070\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Graph.VerifySSL {
		t.Error("VerifySSL should be false when set in YAML")
	}
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Port)
	}
}

// TestLoad_MissingFile verifies a read error is returned.
func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// TestConfig_QueueDestination verifies the destination per transport.
func TestConfig_QueueDestination(t *testing.T) {
	cfg := &Config{
		Queue: QueueConfig{
			SQSQueueURL: "https://sqs.test/1/q",
			RedisList:   "work",
			NATSSubject: "invoice.work",
		},
	}

	tests := map[string]string{
		TransportSQS:   "https://sqs.test/1/q",
		TransportRedis: "work",
		TransportNATS:  "invoice.work",
		"kafka":        "",
	}
	for transport, want := range tests {
		cfg.Queue.Transport = transport
		if got := cfg.QueueDestination(); got != want {
			t.Errorf("%s: destination = %q, want %q", transport, got, want)
		}
	}

	cfg.Queue.Transport = TransportSQS
	cfg.Queue.SQSQueueURL = ""
	if got := cfg.QueueDestination(); got != "" {
		t.Errorf("unresolved sqs destination = %q, want empty", got)
	}
}

// TestLoad_ExampleConfig verifies the shipped example loads and validates.
func TestLoad_ExampleConfig(t *testing.T) {
	t.Setenv("GRAPH_TENANT_ID", "tenant-abc")
	t.Setenv("GRAPH_CLIENT_ID", "client-123")
	t.Setenv("GRAPH_CLIENT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://scanner@localhost/invoices")
	t.Setenv("TENANT_DATABASE_URL", "")
	t.Setenv("SCAN_MAILBOX", "ap@example.com")
	t.Setenv("AWS_ENDPOINT_URL", "http://localstack:4566")
	t.Setenv("REDIS_URL", "")
	t.Setenv("NATS_URL", "")

	cfg, err := Load(filepath.Join("..", "..", "config", "config.example.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	if len(cfg.Mailboxes) != 1 || cfg.Mailboxes[0].Address != "ap@example.com" {
		t.Errorf("Mailboxes = %+v", cfg.Mailboxes)
	}
	if cfg.SchedulerInterval != time.Hour || !cfg.SchedulerAutostart {
		t.Errorf("scheduler = %v autostart=%v", cfg.SchedulerInterval, cfg.SchedulerAutostart)
	}
	if got := cfg.QueueDestination(); got != "http://localstack:4566/000000000000/invoice-work" {
		t.Errorf("QueueDestination() = %q", got)
	}
}

// TestParse_InvalidDuration verifies malformed durations are rejected
// instead of silently replaced by defaults.
func TestParse_InvalidDuration(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"interval without unit", "scheduler:\n  interval: \"5\"\n"},
		{"interval garbage", "scheduler:\n  interval: hourly\n"},
		{"negative interval", "scheduler:\n  interval: -5m\n"},
		{"ttl without unit", "scan_lock:\n  ttl: \"30\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

// TestParse_DurationDefaults verifies omitted durations use the defaults.
func TestParse_DurationDefaults(t *testing.T) {
	t.Setenv("SCHEDULER_INTERVAL_MINUTES", "")

	cfg, err := Parse([]byte("port: 9000\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SchedulerInterval != time.Hour {
		t.Errorf("SchedulerInterval = %v, want 1h", cfg.SchedulerInterval)
	}
	if cfg.ScanLockTTL != 30*time.Minute {
		t.Errorf("ScanLockTTL = %v, want 30m", cfg.ScanLockTTL)
	}
}
