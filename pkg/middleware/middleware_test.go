package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docsync/core/pkg/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantCode   int
	}{
		{"any origin", nil, "http://admin.local", http.MethodGet, "*", http.StatusOK},
		{"listed origin", []string{"http://admin.local"}, "http://admin.local", http.MethodGet, "http://admin.local", http.StatusOK},
		{"unlisted origin", []string{"http://admin.local"}, "http://evil.local", http.MethodGet, "", http.StatusOK},
		{"preflight", nil, "http://admin.local", http.MethodOptions, "*", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/schedulers", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			CORS(tt.allowed...)(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewKeyedLimiter(time.Hour, 2)
	mux := http.NewServeMux()
	mux.Handle("POST /api/schedulers/{key}/trigger", RateLimit(limiter, PathKey("key"), logger.Nop())(okHandler()))

	post := func(key string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/schedulers/"+key+"/trigger", nil))
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := post("language-sync"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
	}

	rec := post("language-sync")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	if rec := post("comprehensive-sync"); rec.Code != http.StatusOK {
		t.Errorf("other scheduler must have its own bucket, got %d", rec.Code)
	}
}

func TestKeyedLimiter_Disabled(t *testing.T) {
	limiter := NewKeyedLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if ok, _ := limiter.Allow("k"); !ok {
			t.Fatalf("disabled limiter rejected request %d", i+1)
		}
	}
}
