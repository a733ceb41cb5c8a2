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

package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

func testConfig(endpoint string) aws.Config {
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("test", "test", ""),
	}
	if endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}
	return cfg
}

// TestStore_ObjectURL verifies both URL layouts.
func TestStore_ObjectURL(t *testing.T) {
	remote := NewStore(aws.Config{Region: "eu-west-1"}, "invoices")
	if got := remote.ObjectURL("emails/m/attachments/x_a.pdf"); got != "https://invoices.s3.eu-west-1.amazonaws.com/emails/m/attachments/x_a.pdf" {
		t.Errorf("aws url = %q", got)
	}

	local := NewStore(testConfig("http://localhost:4566/"), "invoices")
	if got := local.ObjectURL("k"); got != "http://localhost:4566/invoices/k" {
		t.Errorf("endpoint url = %q", got)
	}
}

// TestStore_Put verifies the object is written path-style to the endpoint.
func TestStore_Put(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		ctype  string
		body   []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method = r.Method
		path = r.URL.Path
		ctype = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewStore(testConfig(server.URL), "invoices")
	url, err := s.Put(context.Background(), "emails/m1/attachments/u_a.pdf", []byte("%PDF"), "application/pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut || path != "/invoices/emails/m1/attachments/u_a.pdf" {
		t.Errorf("request = %s %s", method, path)
	}
	if ctype != "application/pdf" {
		t.Errorf("Content-Type = %q", ctype)
	}
	if !strings.Contains(string(body), "%PDF") {
		t.Errorf("body = %q", body)
	}
	if url != server.URL+"/invoices/emails/m1/attachments/u_a.pdf" {
		t.Errorf("url = %q", url)
	}
}
