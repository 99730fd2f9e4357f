package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/urportal/portal/internal/auth"
	"github.com/urportal/portal/internal/metrics"
	"github.com/urportal/portal/internal/model"
)

type httpRecorder struct {
	metrics.Nop
	mu       sync.Mutex
	requests []string
	statuses []int
}

func (h *httpRecorder) RecordHTTPRequest(method, route string, statusCode int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, method+" "+route)
	h.statuses = append(h.statuses, statusCode)
}

// newChainRouter は本番と同じ順序でミドルウェアを組み立てたchiルーターを返す。
func newChainRouter(t *testing.T, logBuf *bytes.Buffer, mc metrics.MetricsCollector) (*chi.Mux, *auth.TokenManager) {
	t.Helper()
	tm := newTestTokenManager()
	rl := NewRateLimiter(DefaultRateLimiterConfig(), mc)
	t.Cleanup(rl.Stop)

	logger := slog.New(slog.NewJSONHandler(logBuf, nil))

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware(logger))
	r.Use(NewLoggingMiddleware(logger))
	r.Use(NewMetricsMiddleware(mc))
	r.Use(NewSecurityHeadersMiddleware(false))
	r.Use(NewCORSMiddleware(nil))
	r.Use(NewSessionMiddleware(tm, mc))
	r.Use(rl.GeneralMiddleware())

	r.Get("/api/courses/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/api/user", func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
			return
		}
		json.NewEncoder(w).Encode(user)
	})
	r.Get("/api/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	return r, tm
}

func TestMiddlewareChain_AuthenticatedRequest(t *testing.T) {
	var logBuf bytes.Buffer
	rec := &httpRecorder{}
	r, tm := newChainRouter(t, &logBuf, rec)

	token, _, err := tm.Issue(&model.User{ID: "user-chain", Username: "john"})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://portal.example.com" {
		t.Error("CORS headers should be set")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be set")
	}

	var entry map[string]any
	if err := json.Unmarshal(logBuf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v\nraw: %s", err, logBuf.String())
	}
	if entry["user_id"] != "user-chain" {
		t.Errorf("logged user_id = %v, want user-chain", entry["user_id"])
	}

	if len(rec.requests) != 1 || rec.requests[0] != "GET /api/user" {
		t.Errorf("recorded = %v", rec.requests)
	}
}

func TestMiddlewareChain_AnonymousReachesHandler(t *testing.T) {
	var logBuf bytes.Buffer
	r, _ := newChainRouter(t, &logBuf, metrics.Nop{})

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 from the handler", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != model.ErrCodeUnauthenticated {
		t.Errorf("code = %q", body.Code)
	}
}

func TestMiddlewareChain_MetricsUseRoutePattern(t *testing.T) {
	var logBuf bytes.Buffer
	rec := &httpRecorder{}
	r, _ := newChainRouter(t, &logBuf, rec)

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/courses/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	want := []string{
		"GET /api/courses/{id}",
		"GET /api/courses/{id}",
		"GET /api/courses/{id}",
		"GET " + unmatchedRoute,
	}
	if len(rec.requests) != len(want) {
		t.Fatalf("recorded = %v, want %v", rec.requests, want)
	}
	for i := range want {
		if rec.requests[i] != want[i] {
			t.Errorf("recorded[%d] = %q, want %q", i, rec.requests[i], want[i])
		}
	}
	if rec.statuses[3] != http.StatusNotFound {
		t.Errorf("unmatched status = %d, want 404", rec.statuses[3])
	}
}

func TestMiddlewareChain_PanicRecovered(t *testing.T) {
	var logBuf bytes.Buffer
	rec := &httpRecorder{}
	r, _ := newChainRouter(t, &logBuf, rec)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("500 body is not JSON: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q", body.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("boom")) {
		t.Error("panic value must not leak to the client")
	}
}

func TestRecoveryMiddleware_ReraisesAbortHandler(t *testing.T) {
	handler := NewRecoveryMiddleware(slog.New(slog.NewJSONHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered = %v, want http.ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

// ヘッダー送信後のpanicでは500を書き込まず、送信済みのレスポンスをそのまま残す。
func TestRecoveryMiddleware_CommittedResponseKept(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))
	handler := NewRecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"c-1"}`))
		panic("after commit")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/courses", nil))

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if got := w.Body.String(); got != `{"id":"c-1"}` {
		t.Errorf("body = %q, want the committed body only", got)
	}

	var entry map[string]any
	if err := json.Unmarshal(logBuf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log record: %v\n%s", err, logBuf.String())
	}
	if entry["msg"] != "panic recovered" || entry["response_committed"] != true {
		t.Errorf("log = %v", entry)
	}
}

func TestMetricsMiddleware_NilCollector(t *testing.T) {
	h := NewMetricsMiddleware(nil)(okHandler())

	defer func() {
		if rec := recover(); rec != nil {
			t.Fatalf("metrics middleware panicked with a nil collector: %v", rec)
		}
	}()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		hsts     bool
		wantHSTS bool
	}{
		{"development", false, false},
		{"production", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSecurityHeadersMiddleware(tt.hsts)(okHandler())
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			for header, want := range map[string]string{
				"X-Content-Type-Options":  "nosniff",
				"X-Frame-Options":         "DENY",
				"Referrer-Policy":         "strict-origin-when-cross-origin",
				"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
				"Cache-Control":           "no-store",
			} {
				if got := w.Header().Get(header); got != want {
					t.Errorf("%s = %q, want %q", header, got, want)
				}
			}
			if got := w.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS present = %v, want %v", got, tt.wantHSTS)
			}
		})
	}
}
