package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/movekind/gateway/internal/models"
	"github.com/movekind/gateway/internal/umbraco"
)

type fakeChecker struct {
	calls int
	err   error
}

func (f *fakeChecker) Me(ctx context.Context) (models.Member, error) {
	f.calls++
	if umbraco.CookieFromContext(ctx) == "" {
		return models.Member{}, &umbraco.HTTPError{Op: "get member", Status: http.StatusUnauthorized}
	}
	return models.Member{Username: "anna"}, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuthGate(t *testing.T) {
	cases := []struct {
		name     string
		path     string
		cookie   string
		checkErr error
		wantCode int
		wantLoc  string
	}{
		{"api passes", "/api/schedule", "", nil, http.StatusOK, ""},
		{"public prefix", "/login", "", nil, http.StatusOK, ""},
		{"media passes", "/media/a.jpg", "", nil, http.StatusOK, ""},
		{"identity cookie", "/schedule", IdentityCookie + "=abc", nil, http.StatusOK, ""},
		{"no cookie", "/schedule", "", nil, http.StatusFound, "/login?next=%2Fschedule"},
		{"member check ok", "/favorites", "other=1", nil, http.StatusOK, ""},
		{"member check fails", "/favorites", "other=1", &umbraco.HTTPError{Status: 401}, http.StatusFound, "/login?next=%2Ffavorites"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewAuthGate(&fakeChecker{err: tc.checkErr}, 0, quietLogger())
			h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.cookie != "" {
				req.Header.Set("Cookie", tc.cookie)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if got := rec.Header().Get("Location"); got != tc.wantLoc {
				t.Errorf("location = %q, want %q", got, tc.wantLoc)
			}
		})
	}
}

func TestAuthGateRemembersUntilFlush(t *testing.T) {
	checker := &fakeChecker{}
	g := NewAuthGate(checker, time.Minute, quietLogger())
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	serve := func() {
		req := httptest.NewRequest(http.MethodGet, "/plan", nil)
		req.Header.Set("Cookie", "sid=1")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	serve()
	serve()
	if checker.calls != 1 {
		t.Errorf("member checks = %d, want 1", checker.calls)
	}

	g.Flush()
	serve()
	if checker.calls != 2 {
		t.Errorf("member checks after flush = %d, want 2", checker.calls)
	}
}
