package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thevalentinedev/altreach/internal/assist"
	"github.com/thevalentinedev/altreach/internal/config"
	"github.com/thevalentinedev/altreach/internal/extract"
	"github.com/thevalentinedev/altreach/internal/types"
)

type stubExtractor struct {
	mu   sync.Mutex
	post *types.Post
	err  error
	got  *extract.Request
}

func (s *stubExtractor) Extract(ctx context.Context, req extract.Request) (*types.Post, error) {
	s.mu.Lock()
	s.got = &req
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.post, nil
}

func (s *stubExtractor) lastRequest() *extract.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got
}

type stubAdvisor struct {
	enabled bool
	result  *types.AssistResult
	err     error
}

func (s *stubAdvisor) Enabled() bool { return s.enabled }

func (s *stubAdvisor) Suggest(ctx context.Context, req assist.SuggestRequest) (*types.AssistResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func testHandlerConfig() *config.Config {
	return &config.Config{
		DefaultTimeout: 5 * time.Second,
		MaxTimeout:     10 * time.Second,
		MetricsEnabled: true,
	}
}

func postJSON(t *testing.T, router http.Handler, body string) (*httptest.ResponseRecorder, types.Response) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/v1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp types.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v\nbody: %s", err, w.Body.String())
	}
	return w, resp
}

func TestHealthEndpoint(t *testing.T) {
	h := New(&stubExtractor{}, &stubAdvisor{}, testHandlerConfig())
	router := NewRouter(h, testHandlerConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp types.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("health response is not JSON: %v", err)
	}
	if resp.Status != types.StatusOK {
		t.Errorf("status field = %q, want ok", resp.Status)
	}
	if resp.Version == "" {
		t.Error("health response should include version")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := New(&stubExtractor{}, &stubAdvisor{}, testHandlerConfig())
	router := NewRouter(h, testHandlerConfig())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", w.Code)
	}
}

func TestExtractSuccess(t *testing.T) {
	extractor := &stubExtractor{
		post: &types.Post{
			URL:   "https://x.com/janedoe/status/12345",
			Text:  "Shipping today.",
			Media: []string{"https://pbs.example.com/a.jpg"},
		},
	}
	h := New(extractor, &stubAdvisor{}, testHandlerConfig())
	router := NewRouter(h, testHandlerConfig())

	w, resp := postJSON(t, router, `{
		"cmd": "content.extract",
		"url": "https://x.com/janedoe/status/12345",
		"authToken": "abc123",
		"csrfToken": "csrf456",
		"maxTimeout": 20000
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if resp.Status != types.StatusOK {
		t.Fatalf("status field = %q, message %q", resp.Status, resp.Message)
	}
	if resp.Post == nil || resp.Post.Text != "Shipping today." {
		t.Errorf("post = %+v", resp.Post)
	}

	got := extractor.lastRequest()
	if got == nil {
		t.Fatal("extractor was not called")
	}
	if got.AuthToken != "abc123" || got.CSRFToken != "csrf456" {
		t.Errorf("credentials not passed through: %+v", got)
	}
	if got.Timeout != 20*time.Second {
		t.Errorf("timeout = %v, want 20s from maxTimeout ms", got.Timeout)
	}
}

func TestExtractErrorKindInBody(t *testing.T) {
	extractor := &stubExtractor{
		err: types.NewContentNotFoundError("https://x.com/janedoe/status/12345"),
	}
	h := New(extractor, &stubAdvisor{}, testHandlerConfig())
	router := NewRouter(h, testHandlerConfig())

	w, resp := postJSON(t, router, `{
		"cmd": "content.extract",
		"url": "https://x.com/janedoe/status/12345",
		"authToken": "abc123"
	}`)

	// Command failures keep HTTP 200, the body carries the error.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if resp.Status != types.StatusError {
		t.Errorf("status field = %q, want error", resp.Status)
	}
	if resp.Error != types.KindContentNotFound {
		t.Errorf("error kind = %q, want %q", resp.Error, types.KindContentNotFound)
	}
}

func TestExtractRequiresURL(t *testing.T) {
	h := New(&stubExtractor{}, &stubAdvisor{}, testHandlerConfig())
	router := NewRouter(h, testHandlerConfig())

	_, resp := postJSON(t, router, `{"cmd": "content.extract", "authToken": "abc123"}`)

	if resp.Status != types.StatusError {
		t.Errorf("status field = %q, want error", resp.Status)
	}
	if resp.Error != types.KindInvalidURL {
		t.Errorf("error kind = %q, want %q", resp.Error, types.KindInvalidURL)
	}
}

func TestInvalidJSONRejected(t *testing.T) {
	h := New(&stubExtractor{}, &stubAdvisor{}, testHandlerConfig())
	router := NewRouter(h, testHandlerConfig())

	_, resp := postJSON(t, router, `{not json`)

	if resp.Status != types.StatusError {
		t.Errorf("status field = %q, want error", resp.Status)
	}
	if !strings.Contains(resp.Message, "Invalid JSON") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestUnknownCommandRejected(t *testing.T) {
	h := New(&stubExtractor{}, &stubAdvisor{}, testHandlerConfig())
	router := NewRouter(h, testHandlerConfig())

	_, resp := postJSON(t, router, `{"cmd": "sessions.create"}`)

	if resp.Status != types.StatusError {
		t.Errorf("status field = %q, want error", resp.Status)
	}
	if !strings.Contains(resp.Message, "Unknown command") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestAssistDisabled(t *testing.T) {
	h := New(&stubExtractor{}, &stubAdvisor{enabled: false}, testHandlerConfig())
	router := NewRouter(h, testHandlerConfig())

	_, resp := postJSON(t, router, `{"cmd": "content.assist", "text": "great post"}`)

	if resp.Status != types.StatusError {
		t.Errorf("status field = %q, want error", resp.Status)
	}
	if resp.Error != types.KindAssistDisabled {
		t.Errorf("error kind = %q, want %q", resp.Error, types.KindAssistDisabled)
	}
}

func TestAssistWithPastedText(t *testing.T) {
	extractor := &stubExtractor{}
	advisor := &stubAdvisor{
		enabled: true,
		result: &types.AssistResult{
			Tone:    "friendly",
			Model:   "gpt-4o-mini",
			Replies: []string{"Nice!", "Congrats!"},
		},
	}
	h := New(extractor, advisor, testHandlerConfig())
	router := NewRouter(h, testHandlerConfig())

	_, resp := postJSON(t, router, `{"cmd": "content.assist", "text": "We shipped v2 today"}`)

	if resp.Status != types.StatusOK {
		t.Fatalf("status field = %q, message %q", resp.Status, resp.Message)
	}
	if resp.Assist == nil || len(resp.Assist.Replies) != 2 {
		t.Errorf("assist = %+v", resp.Assist)
	}
	if extractor.lastRequest() != nil {
		t.Error("pasted text must not trigger an extraction")
	}
}

func TestAssistWithURLExtractsFirst(t *testing.T) {
	extractor := &stubExtractor{
		post: &types.Post{URL: "https://x.com/janedoe/status/12345", Text: "We shipped v2 today"},
	}
	advisor := &stubAdvisor{
		enabled: true,
		result:  &types.AssistResult{Tone: "friendly", Replies: []string{"Congrats!"}},
	}
	h := New(extractor, advisor, testHandlerConfig())
	router := NewRouter(h, testHandlerConfig())

	_, resp := postJSON(t, router, `{
		"cmd": "content.assist",
		"url": "https://x.com/janedoe/status/12345",
		"authToken": "abc123"
	}`)

	if resp.Status != types.StatusOK {
		t.Fatalf("status field = %q, message %q", resp.Status, resp.Message)
	}
	if extractor.lastRequest() == nil {
		t.Error("URL-based assist must extract the post first")
	}
	if resp.Post == nil {
		t.Error("response should include the extracted post")
	}
	if resp.Assist == nil || len(resp.Assist.Replies) != 1 {
		t.Errorf("assist = %+v", resp.Assist)
	}
}

func TestAssistRequiresTextOrURL(t *testing.T) {
	h := New(&stubExtractor{}, &stubAdvisor{enabled: true}, testHandlerConfig())
	router := NewRouter(h, testHandlerConfig())

	_, resp := postJSON(t, router, `{"cmd": "content.assist"}`)

	if resp.Status != types.StatusError {
		t.Errorf("status field = %q, want error", resp.Status)
	}
	if resp.Error != types.KindInvalidRequest {
		t.Errorf("error kind = %q, want %q", resp.Error, types.KindInvalidRequest)
	}
}

func TestStatsEndpointTracksExtractions(t *testing.T) {
	extractor := &stubExtractor{
		post: &types.Post{URL: "https://x.com/janedoe/status/12345", Text: "hi"},
	}
	h := New(extractor, &stubAdvisor{}, testHandlerConfig())
	router := NewRouter(h, testHandlerConfig())

	postJSON(t, router, `{
		"cmd": "content.extract",
		"url": "https://x.com/janedoe/status/12345",
		"authToken": "abc123"
	}`)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d, want 200", w.Code)
	}

	var body struct {
		Domains map[string]struct {
			RequestCount int64 `json:"requestCount"`
			SuccessCount int64 `json:"successCount"`
		} `json:"domains"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("stats response is not JSON: %v", err)
	}
	if body.Domains["x.com"].SuccessCount != 1 {
		t.Errorf("domains = %+v, want one x.com success", body.Domains)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := New(&stubExtractor{}, &stubAdvisor{}, testHandlerConfig())
	router := NewRouter(h, testHandlerConfig())

	req := httptest.NewRequest(http.MethodGet, "/v1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	h := New(&stubExtractor{}, &stubAdvisor{}, testHandlerConfig())
	router := NewRouter(h, testHandlerConfig())

	req := httptest.NewRequest(http.MethodPost, "/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
