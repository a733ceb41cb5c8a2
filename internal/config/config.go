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

// Package config loads configuration from config.yaml and environment variables.
// The result is loaded once at process start and treated as read-only.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultGraphBaseURL is the Microsoft Graph v1.0 endpoint.
	DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

	// DefaultFolder is scanned when a mailbox entry has no folder.
	DefaultFolder = "Inbox"

	// Notification transports.
	TransportSQS   = "sqs"
	TransportRedis = "redis"
	TransportNATS  = "nats"
)

// GraphConfig holds the app registration used for the mail API.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	BaseURL      string
	VerifySSL    bool
}

// MailboxConfig is a single mailbox/folder pair to scan.
type MailboxConfig struct {
	Address string
	Folder  string
}

// AWSConfig holds the shared AWS client settings. EndpointURL is set for
// LocalStack and similar emulators.
type AWSConfig struct {
	Region          string
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	AccountID       string
}

// QueueConfig selects and addresses the notification transport.
type QueueConfig struct {
	Transport    string
	SQSQueueName string
	SQSQueueURL  string
	RedisList    string
	NATSSubject  string
	NATSStream   string
}

// Config holds all configuration for the scanner service.
type Config struct {
	Graph     GraphConfig
	Mailboxes []MailboxConfig

	// Postgres
	DatabaseURL       string
	TenantDatabaseURL string

	AWS      AWSConfig
	S3Bucket string
	Queue    QueueConfig

	RedisURL string
	NATSURL  string

	SchedulerInterval  time.Duration
	SchedulerAutostart bool

	ScanLockEnabled bool
	ScanLockTTL     time.Duration

	// Server (control surface)
	Port     int
	LogLevel string
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Graph struct {
		TenantID     string `yaml:"tenant_id"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		BaseURL      string `yaml:"base_url"`
		VerifySSL    *bool  `yaml:"verify_ssl"`
	} `yaml:"graph"`
	Mailboxes []struct {
		Address string `yaml:"address"`
		Folder  string `yaml:"folder"`
	} `yaml:"mailboxes"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	TenantDatabase struct {
		URL string `yaml:"url"`
	} `yaml:"tenant_database"`
	AWS struct {
		Region          string `yaml:"region"`
		EndpointURL     string `yaml:"endpoint_url"`
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
		SessionToken    string `yaml:"session_token"`
		AccountID       string `yaml:"account_id"`
	} `yaml:"aws"`
	S3 struct {
		Bucket string `yaml:"bucket"`
	} `yaml:"s3"`
	Queue struct {
		Transport    string `yaml:"transport"`
		SQSQueueName string `yaml:"sqs_queue_name"`
		SQSQueueURL  string `yaml:"sqs_queue_url"`
		RedisList    string `yaml:"redis_list"`
		NATSSubject  string `yaml:"nats_subject"`
		NATSStream   string `yaml:"nats_stream"`
	} `yaml:"queue"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	Scheduler struct {
		Interval  string `yaml:"interval"`
		Autostart bool   `yaml:"autostart"`
	} `yaml:"scheduler"`
	ScanLock struct {
		Enabled bool   `yaml:"enabled"`
		TTL     string `yaml:"ttl"`
	} `yaml:"scan_lock"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from the file at path (CONFIG_PATH or
// /app/config/config.yaml when empty), expanding ${VAR} references, and
// fills unset values from environment variables.
func Load(path string) (*Config, error) {
	configPath := firstNonEmpty(path, envOrDefault("CONFIG_PATH", "/app/config/config.yaml"))

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse builds a Config from raw YAML bytes.
func Parse(data []byte) (*Config, error) {
	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	interval, err := parseDuration("scheduler.interval", raw.Scheduler.Interval, envOrDefaultMinutes("SCHEDULER_INTERVAL_MINUTES", 60*time.Minute))
	if err != nil {
		return nil, err
	}
	lockTTL, err := parseDuration("scan_lock.ttl", raw.ScanLock.TTL, 30*time.Minute)
	if err != nil {
		return nil, err
	}

	verifySSL := envOrDefaultBool("VERIFY_SSL", true)
	if raw.Graph.VerifySSL != nil {
		verifySSL = *raw.Graph.VerifySSL
	}

	cfg := &Config{
		Graph: GraphConfig{
			TenantID:     firstNonEmpty(raw.Graph.TenantID, os.Getenv("GRAPH_TENANT_ID")),
			ClientID:     firstNonEmpty(raw.Graph.ClientID, os.Getenv("GRAPH_CLIENT_ID")),
			ClientSecret: firstNonEmpty(raw.Graph.ClientSecret, os.Getenv("GRAPH_CLIENT_SECRET")),
			BaseURL:      strings.TrimRight(firstNonEmpty(raw.Graph.BaseURL, envOrDefault("GRAPH_API_ENDPOINT", DefaultGraphBaseURL)), "/"),
			VerifySSL:    verifySSL,
		},
		DatabaseURL:       firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
		TenantDatabaseURL: firstNonEmpty(raw.TenantDatabase.URL, os.Getenv("TENANT_DATABASE_URL")),
		AWS: AWSConfig{
			Region:          firstNonEmpty(raw.AWS.Region, envOrDefault("AWS_REGION", "us-east-1")),
			EndpointURL:     strings.TrimRight(firstNonEmpty(raw.AWS.EndpointURL, os.Getenv("AWS_ENDPOINT_URL")), "/"),
			AccessKeyID:     firstNonEmpty(raw.AWS.AccessKeyID, os.Getenv("AWS_ACCESS_KEY_ID")),
			SecretAccessKey: firstNonEmpty(raw.AWS.SecretAccessKey, os.Getenv("AWS_SECRET_ACCESS_KEY")),
			SessionToken:    firstNonEmpty(raw.AWS.SessionToken, os.Getenv("AWS_SESSION_TOKEN")),
			AccountID:       firstNonEmpty(raw.AWS.AccountID, os.Getenv("AWS_ACCOUNT_ID")),
		},
		S3Bucket: firstNonEmpty(raw.S3.Bucket, envOrDefault("S3_BUCKET_NAME", "invoice-attachments")),
		Queue: QueueConfig{
			Transport:    strings.ToLower(firstNonEmpty(raw.Queue.Transport, envOrDefault("QUEUE_TRANSPORT", TransportSQS))),
			SQSQueueName: firstNonEmpty(raw.Queue.SQSQueueName, os.Getenv("SQS_QUEUE_NAME")),
			SQSQueueURL:  firstNonEmpty(raw.Queue.SQSQueueURL, os.Getenv("SQS_QUEUE_URL")),
			RedisList:    firstNonEmpty(raw.Queue.RedisList, envOrDefault("REDIS_QUEUE", "invoice-work")),
			NATSSubject:  firstNonEmpty(raw.Queue.NATSSubject, envOrDefault("NATS_SUBJECT", "invoice.work")),
			NATSStream:   firstNonEmpty(raw.Queue.NATSStream, envOrDefault("NATS_STREAM", "INVOICE_WORK")),
		},
		RedisURL:           firstNonEmpty(raw.Redis.URL, os.Getenv("REDIS_URL")),
		NATSURL:            firstNonEmpty(raw.NATS.URL, os.Getenv("NATS_URL")),
		SchedulerInterval:  interval,
		SchedulerAutostart: raw.Scheduler.Autostart || envOrDefaultBool("SCHEDULER_AUTOSTART", false),
		ScanLockEnabled:    raw.ScanLock.Enabled || envOrDefaultBool("SCAN_LOCK_ENABLED", false),
		ScanLockTTL:        lockTTL,
		Port:               raw.Port,
		LogLevel:           strings.ToLower(firstNonEmpty(raw.LogLevel, envOrDefault("LOG_LEVEL", "info"))),
	}
	if cfg.Port == 0 {
		cfg.Port = envOrDefaultInt("PORT", 8080)
	}

	for _, m := range raw.Mailboxes {
		address := strings.TrimSpace(m.Address)
		if address == "" {
			// Skip entries left empty by unset env vars
			continue
		}
		cfg.Mailboxes = append(cfg.Mailboxes, MailboxConfig{
			Address: address,
			Folder:  firstNonEmpty(m.Folder, DefaultFolder),
		})
	}
	if len(cfg.Mailboxes) == 0 {
		if address := os.Getenv("SCAN_MAILBOX"); address != "" {
			cfg.Mailboxes = append(cfg.Mailboxes, MailboxConfig{
				Address: address,
				Folder:  envOrDefault("SCAN_FOLDER", DefaultFolder),
			})
		}
	}

	return cfg, nil
}

// Validate checks that the settings every binary needs are present.
func (c *Config) Validate() error {
	var missing []string
	if c.Graph.TenantID == "" {
		missing = append(missing, "graph.tenant_id")
	}
	if c.Graph.ClientID == "" {
		missing = append(missing, "graph.client_id")
	}
	if c.Graph.ClientSecret == "" {
		missing = append(missing, "graph.client_secret")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "database.url")
	}
	if c.S3Bucket == "" {
		missing = append(missing, "s3.bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.Queue.Transport {
	case TransportSQS:
	case TransportRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("queue transport %q requires redis.url", c.Queue.Transport)
		}
	case TransportNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("queue transport %q requires nats.url", c.Queue.Transport)
		}
	default:
		return fmt.Errorf("unknown queue transport %q", c.Queue.Transport)
	}

	if c.ScanLockEnabled && c.RedisURL == "" {
		return fmt.Errorf("scan_lock.enabled requires redis.url")
	}
	return nil
}

// SQSQueueURL returns the configured queue URL, or builds one from the
// queue name: LocalStack style when an endpoint is set, otherwise the
// regional AWS form. Empty when nothing is configured.
func (c *Config) SQSQueueURL() string {
	if c.Queue.SQSQueueURL != "" {
		return c.Queue.SQSQueueURL
	}
	if c.Queue.SQSQueueName == "" {
		return ""
	}
	if c.AWS.EndpointURL != "" {
		return fmt.Sprintf("%s/000000000000/%s", c.AWS.EndpointURL, c.Queue.SQSQueueName)
	}
	if c.AWS.AccountID == "" {
		return ""
	}
	return fmt.Sprintf("https://sqs.%s.amazonaws.com/%s/%s", c.AWS.Region, c.AWS.AccountID, c.Queue.SQSQueueName)
}

// QueueDestination returns the address notifications are sent to for the
// configured transport. Empty means the destination is unresolved.
func (c *Config) QueueDestination() string {
	switch c.Queue.Transport {
	case TransportSQS:
		return c.SQSQueueURL()
	case TransportRedis:
		return c.Queue.RedisList
	case TransportNATS:
		return c.Queue.NATSSubject
	default:
		return ""
	}
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}

// envOrDefaultMinutes reads a whole number of minutes.
func envOrDefaultMinutes(key string, fallback time.Duration) time.Duration {
	if n := envOrDefaultInt(key, 0); n > 0 {
		return time.Duration(n) * time.Minute
	}
	return fallback
}

// parseDuration parses a Go duration such as "15m". Empty means fallback;
// anything unparseable or non-positive is an error.
func parseDuration(field, raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse %s %q: must be positive", field, raw)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
