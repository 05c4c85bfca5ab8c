package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestWebhookJob_Execute(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     bool
		wantSuccess bool
		wantMessage string
	}{
		{
			name:        "success",
			status:      http.StatusOK,
			body:        `{"success": true, "message": "340 documents synced"}`,
			wantSuccess: true,
			wantMessage: "340 documents synced",
		},
		{
			name:        "pipeline reports failure",
			status:      http.StatusOK,
			body:        `{"success": false, "message": "source API quota exceeded"}`,
			wantSuccess: false,
			wantMessage: "source API quota exceeded",
		},
		{
			name:        "accepted with empty body",
			status:      http.StatusAccepted,
			body:        "",
			wantSuccess: true,
			wantMessage: "pipeline returned status 202",
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `oops`,
			wantErr: true,
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `{"success":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var received webhookRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
					t.Errorf("decode request: %v", err)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			job := NewWebhookJob(WebhookConfig{Name: "comprehensive-sync", URL: srv.URL}, nopLogger())
			result, err := job.Execute(context.Background())

			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if received.Job != "comprehensive-sync" {
				t.Errorf("request job = %q", received.Job)
			}
			if tt.wantErr {
				return
			}
			if result.Success != tt.wantSuccess || result.Message != tt.wantMessage {
				t.Errorf("Execute() = %+v", result)
			}
		})
	}
}

func TestWebhookJob_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	job := NewWebhookJob(WebhookConfig{
		Name:             "language-sync",
		URL:              srv.URL,
		FailureThreshold: 2,
		OpenTimeout:      time.Hour,
	}, nopLogger())

	for i := 0; i < 2; i++ {
		if _, err := job.Execute(context.Background()); err == nil {
			t.Fatalf("call %d: expected error", i+1)
		}
	}
	if job.BreakerState() != "open" {
		t.Fatalf("breaker state = %s, want open", job.BreakerState())
	}

	_, err := job.Execute(context.Background())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("open breaker must not call the endpoint, got %d hits", hits.Load())
	}
}

func TestWebhookJob_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	job := NewWebhookJob(WebhookConfig{Name: "slow", URL: srv.URL, Timeout: 50 * time.Millisecond}, nopLogger())
	_, err := job.Execute(context.Background())
	if err == nil || !strings.Contains(err.Error(), "request failed") {
		t.Errorf("expected timeout error, got %v", err)
	}
}
