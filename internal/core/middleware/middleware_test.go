package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mylog "github.com/mohammed-shakir/geoconvert/internal/logger"
)

func TestLogging_PropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	zl := mylog.Build(mylog.Config{Level: "debug"}, &buf)

	var seen string
	h := Logging(mylog.NewSlog(&zl))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = mylog.RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/units", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen != "req-1" {
		t.Fatalf("context request id=%q want req-1", seen)
	}
	if got := rr.Header().Get("X-Request-ID"); got != "req-1" {
		t.Fatalf("response request id=%q want req-1", got)
	}
	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-1"`) || !strings.Contains(out, `"status":418`) {
		t.Fatalf("log line missing fields: %s", out)
	}
}

func TestLogging_GeneratesRequestID(t *testing.T) {
	zl := mylog.Build(mylog.Config{Level: "error"}, &bytes.Buffer{})
	h := Logging(mylog.NewSlog(&zl))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if id := rr.Header().Get("X-Request-ID"); len(id) != 16 {
		t.Fatalf("generated request id=%q want 16 hex chars", id)
	}
}

func TestRecover_Returns500(t *testing.T) {
	zl := mylog.Build(mylog.Config{Level: "error"}, &bytes.Buffer{})
	h := Recover(mylog.NewSlog(&zl))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/explode", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", rr.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/combine", nil))
	if rr.Code != http.StatusNoContent || called {
		t.Fatalf("preflight status=%d called=%v want 204 without handler", rr.Code, called)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Fatalf("allow methods=%q want POST", got)
	}
}
