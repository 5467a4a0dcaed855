package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
)

func TestRateLimiterRefills(t *testing.T) {
	rl := newRateLimiter(2)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := rl.allow("10.0.0.1"); !ok {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	ok, wait := rl.allow("10.0.0.1")
	if ok {
		t.Fatal("third request in the same instant should be limited")
	}
	if wait <= 0 || wait > 30*time.Second {
		t.Errorf("wait = %v, want up to half a minute", wait)
	}
	if ok, _ := rl.allow("10.0.0.2"); !ok {
		t.Error("other clients have their own bucket")
	}

	now = now.Add(30 * time.Second)
	if ok, _ := rl.allow("10.0.0.1"); !ok {
		t.Error("half a minute refills one token at 2/min")
	}

	now = now.Add(time.Hour)
	rl.sweep(10 * time.Minute)
	if n := len(rl.clients); n != 0 {
		t.Errorf("idle buckets = %d after sweep, want 0", n)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0)
	for i := 0; i < 100; i++ {
		if ok, _ := rl.allow("x"); !ok {
			t.Fatal("a zero limit disables limiting")
		}
	}
}

func TestRateLimitMiddlewareSetsRetryAfter(t *testing.T) {
	rl := newRateLimiter(1)
	h := rateLimitMiddleware(rl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.0.2.9:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 should carry Retry-After")
	}
}

func TestOriginPolicy(t *testing.T) {
	open := newOriginPolicy(nil)
	if !open.allows("https://anywhere.example") {
		t.Error("empty policy allows every origin")
	}
	p := newOriginPolicy([]string{"https://Play.Example.org", " "})
	if !p.allows("https://play.example.org") || p.allows("https://evil.example") {
		t.Errorf("policy = %v", p)
	}

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if !p.checkOrigin(req) {
		t.Error("clients without an Origin header are allowed")
	}
	req.Header.Set("Origin", "https://evil.example")
	if p.checkOrigin(req) {
		t.Error("unknown origin should be refused")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := corsMiddleware(newOriginPolicy([]string{"https://play.example.org"}), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight should not reach the handler")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/mysteries", nil)
	req.Header.Set("Origin", "https://play.example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://play.example.org" {
		t.Errorf("allow-origin = %q", got)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"Bearer abc.def", "abc.def", false},
		{"bearer   abc", "abc", false},
		{"Basic abc", "", true},
		{"Bearer", "", true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, err := bearerToken(req)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("bearerToken(%q) = %q, %v", tt.header, got, err)
		}
	}
}

func TestStaffRouteUsesLiveFlags(t *testing.T) {
	w := newWebEnv(t)
	w.newMystery(t, "Audit", "Rumor", "Word on the street.")
	tok := w.login(t, "Wizard", "potrzebie")

	if rec := w.do(t, http.MethodGet, "/api/v1/mysteries/1/journal", tok, nil); rec.Code != http.StatusOK {
		t.Fatalf("staff journal: %d", rec.Code)
	}
	w.game.DB.Objects[refWiz].Flags[0] &^= gamedb.FlagWizard
	if rec := w.do(t, http.MethodGet, "/api/v1/mysteries/1/journal", tok, nil); rec.Code != http.StatusForbidden {
		t.Errorf("demoted staff: %d, want 403", rec.Code)
	}
}
