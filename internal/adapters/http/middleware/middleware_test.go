package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestRateLimit_PerIP(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	handler := RateLimit(limiter, nil)(okHandler)

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}
	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1:4000"); code != http.StatusNoContent {
			t.Fatalf("request %d = %d", i, code)
		}
	}
	if code := send("10.0.0.1:4001"); code != http.StatusTooManyRequests {
		t.Errorf("third request from same IP = %d, want 429", code)
	}
	if code := send("10.0.0.2:4000"); code != http.StatusNoContent {
		t.Errorf("other IP = %d, want 204", code)
	}

	if n := limiter.Sweep(time.Now().Add(time.Hour)); n != 2 {
		t.Errorf("Sweep removed %d visitors, want 2", n)
	}
}

func TestSessionStore_Lifecycle(t *testing.T) {
	ss := NewSessionStore(time.Hour)
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	ss.now = func() time.Time { return now }

	token, err := ss.Create(Session{AccountID: "a1", Email: "anna@example.org", Role: "customer", CustomerID: "c1"})
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	other, _ := ss.Create(Session{AccountID: "a1", Role: "customer"})
	if s, ok := ss.Get(token); !ok || s.CustomerID != "c1" || !s.CreatedAt.Equal(now) {
		t.Errorf("Get() = %+v, %v", s, ok)
	}

	if n := ss.DeleteAccount("a1"); n != 2 {
		t.Errorf("DeleteAccount() = %d, want 2", n)
	}
	if _, ok := ss.Get(other); ok {
		t.Error("session survived DeleteAccount")
	}

	token, _ = ss.Create(Session{AccountID: "a2", Role: "staff"})
	now = now.Add(2 * time.Hour)
	if _, ok := ss.Get(token); ok {
		t.Error("expired session returned")
	}
}

func TestRequireRole(t *testing.T) {
	ss := NewSessionStore(0)
	staffToken, _ := ss.Create(Session{AccountID: "s1", Role: "staff"})
	customerToken, _ := ss.Create(Session{AccountID: "c1", Role: "customer"})
	handler := Chain(okHandler, Auth(ss), RequireRole(nil, "admin", "staff"))

	tests := []struct {
		name  string
		token string
		want  int
		code  string
	}{
		{"anonymous", "", http.StatusUnauthorized, "auth.required"},
		{"unknown token", "nope", http.StatusUnauthorized, "auth.required"},
		{"customer", customerToken, http.StatusForbidden, "auth.forbidden"},
		{"staff", staffToken, http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/customers", nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.token})
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.code != "" && !strings.Contains(rr.Body.String(), `"code":"`+tt.code+`"`) {
				t.Errorf("body = %s, want code %s", rr.Body.String(), tt.code)
			}
		})
	}
}

func TestCSRF_JSONExemptFormsChecked(t *testing.T) {
	handler := CSRF(CSRFConfig{Key: []byte(strings.Repeat("k", 32))})(okHandler)

	form := httptest.NewRequest(http.MethodPost, "/ajax", strings.NewReader("action=book_lesson"))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, form)
	if rr.Code != http.StatusForbidden || !strings.Contains(rr.Body.String(), "auth.csrf") {
		t.Errorf("form without token = %d %s", rr.Code, rr.Body.String())
	}

	js := httptest.NewRequest(http.MethodPost, "/ajax", strings.NewReader(`{"action":"book_lesson"}`))
	js.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, js)
	if rr.Code != http.StatusNoContent {
		t.Errorf("json post = %d, want 204", rr.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, h := range []string{"Content-Security-Policy", "X-Frame-Options", "X-Content-Type-Options", "Referrer-Policy"} {
		if rr.Header().Get(h) == "" {
			t.Errorf("missing %s", h)
		}
	}
}

func TestTracing_NamesSpanAfterRoute(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/courses/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	Tracing(mux).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/courses/c1", nil))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if got := spans[0].Name(); got != "GET /api/courses/{id}" {
		t.Errorf("span name = %q", got)
	}
	if spans[0].Status().Code.String() != "Error" {
		t.Errorf("span status = %v, want Error", spans[0].Status())
	}
}
