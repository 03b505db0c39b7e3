package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/thevalentinedev/altreach/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(tag("a"), tag("b"), tag("c"))(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if strings.Join(order, "") != "abc" {
		t.Errorf("middleware ran in order %v, want a,b,c", order)
	}
}

func TestRecoveryCatchesPanic(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/v1", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Status != "error" {
		t.Errorf("status field = %q, want error", resp.Status)
	}
}

func TestLoggingCapturesStatus(t *testing.T) {
	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/v1?token=secret", nil))

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", w.Code)
	}
}

func TestMaskIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"192.168.1.42:8080", "192.168.1.0/24"},
		{"10.0.0.5", "10.0.0.0/24"},
		{"[2001:db8:abcd:1234::1]:443", "2001:db8:abcd::/48"},
		{"not-an-ip", "[redacted]"},
	}
	for _, tt := range tests {
		if got := maskIP(tt.in); got != tt.want {
			t.Errorf("maskIP(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCORSRejectsWithoutConfiguredOrigins(t *testing.T) {
	handler := CORS(CORSConfig{})(okHandler())

	req := httptest.NewRequest("GET", "/v1", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty for secure default", got)
	}
}

func TestCORSEchoesAllowedOrigin(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})(okHandler())

	req := httptest.NewRequest("GET", "/v1", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want true", got)
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})(okHandler())

	req := httptest.NewRequest("GET", "/v1", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty for unknown origin", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("Max-Age = %q, want 600", got)
	}
	if body := w.Body.String(); strings.Contains(body, "ok") {
		t.Error("preflight should not reach the handler")
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/v1", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestAPIKeyDisabledPassesThrough(t *testing.T) {
	cfg := &config.Config{APIKeyEnabled: false}
	handler := APIKey(cfg)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/v1", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", w.Code)
	}
}

func TestAPIKeyRejectsMissingKey(t *testing.T) {
	cfg := &config.Config{APIKeyEnabled: true, APIKey: "super-secret-key-123"}
	handler := APIKey(cfg)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/v1", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAPIKeyAcceptsHeaderAndQuery(t *testing.T) {
	cfg := &config.Config{APIKeyEnabled: true, APIKey: "super-secret-key-123"}
	handler := APIKey(cfg)(okHandler())

	req := httptest.NewRequest("POST", "/v1", nil)
	req.Header.Set("X-API-Key", "super-secret-key-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("header auth status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest("POST", "/v1?api_key=super-secret-key-123", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("query auth status = %d, want 200", w.Code)
	}
}

func TestAPIKeySkipsHealthAndMetrics(t *testing.T) {
	cfg := &config.Config{APIKeyEnabled: true, APIKey: "super-secret-key-123"}
	handler := APIKey(cfg)(okHandler())

	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200 without key", path, w.Code)
		}
	}
}

func TestRateLimiterAllowAndDeny(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, false)
	defer rl.Close()

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("first two requests should be allowed")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("third request in window should be denied")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("different IPs get separate buckets")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter(1, 50*time.Millisecond, false)
	defer rl.Close()

	if !rl.Allow("1.2.3.4") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("second request should be denied")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("1.2.3.4") {
		t.Error("request after window reset should be allowed")
	}
}

func TestRateLimitMiddlewareResponds429(t *testing.T) {
	m := NewRateLimitMiddleware(1, false)
	defer m.Close()
	handler := m.Handler()(okHandler())

	req := httptest.NewRequest("POST", "/v1", nil)
	req.RemoteAddr = "9.9.9.9:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
}

func TestRateLimiterCloseIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, false)
	rl.Close()
	rl.Close()
}

func TestGetClientIPTrustProxy(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := getClientIP(req, false); got != "10.0.0.1" {
		t.Errorf("untrusted proxy: got %q, want RemoteAddr IP", got)
	}
	if got := getClientIP(req, true); got != "203.0.113.9" {
		t.Errorf("trusted proxy: got %q, want first forwarded IP", got)
	}
}

func TestGetClientIPNormalizesMappedIPv6(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "::ffff:203.0.113.9")

	if got := getClientIP(req, true); got != "203.0.113.9" {
		t.Errorf("got %q, want normalized IPv4", got)
	}
}

func TestTimeoutSends504(t *testing.T) {
	handler := Timeout(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/v1", nil))

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
}

func TestTimeoutPassesFastRequests(t *testing.T) {
	handler := Timeout(time.Second)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/v1", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", w.Body.String())
	}
}
