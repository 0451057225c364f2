package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/incidentfox/incidentfox/internal/ratelimit"
)

func TestRateLimit_RejectsWhenExhausted(t *testing.T) {
	handler := RateLimit(ratelimit.New(0.5, 1))(okHandler())

	if w := serve(handler, httptest.NewRequest(http.MethodPost, "/mcp", nil)); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}

	w := serve(handler, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	if ra := w.Header().Get("Retry-After"); ra != "2" {
		t.Errorf("Retry-After = %q, want 2", ra)
	}
	if !strings.Contains(w.Body.String(), "Rate limit exceeded") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	for _, l := range []*ratelimit.Limiter{nil, ratelimit.New(0, 0)} {
		handler := RateLimit(l)(okHandler())
		for i := 0; i < 50; i++ {
			if w := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil)); w.Code != http.StatusOK {
				t.Fatalf("request %d status = %d", i, w.Code)
			}
		}
	}
}
