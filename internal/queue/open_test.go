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
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/redis/go-redis/v9"

	"github.com/invoiceflow/mailscanner/internal/config"
)

// TestOpen verifies the transport is selected by configuration.
func TestOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	tests := []struct {
		transport string
		rdb       *redis.Client
		wantName  string
		wantErr   bool
	}{
		{transport: config.TransportSQS, wantName: "sqs"},
		{transport: config.TransportRedis, rdb: rdb, wantName: "redis"},
		{transport: config.TransportRedis, wantErr: true},
		{transport: "kafka", wantErr: true},
	}

	for _, tt := range tests {
		cfg := &config.Config{Queue: config.QueueConfig{
			Transport:   tt.transport,
			SQSQueueURL: "http://localhost:4566/000000000000/invoice-work",
			RedisList:   "invoice-work",
		}}

		tr, closeFn, err := Open(context.Background(), cfg, aws.Config{Region: "us-east-1"}, tt.rdb)
		closeFn()
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.transport)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.transport, err)
		}
		if tr.Name() != tt.wantName {
			t.Errorf("Name() = %q, want %q", tr.Name(), tt.wantName)
		}
	}
}
