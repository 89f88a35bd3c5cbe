package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/movekind/gateway/internal/models"
	"github.com/movekind/gateway/internal/umbraco"
)

// IdentityCookie is the backend's member session cookie.
const IdentityCookie = ".AspNetCore.Identity.Application"

var publicPrefixes = []string{
	"/auth",
	"/login",
	"/register",
	"/_next",
	"/favicon.ico",
	"/icons",
	"/media",
	"/robots.txt",
	"/sitemap.xml",
	"/manifest.webmanifest",
	"/healthz",
}

// MemberChecker confirms a member session. *umbraco.Client satisfies it.
type MemberChecker interface {
	Me(ctx context.Context) (models.Member, error)
}

// AuthGate redirects signed-out visitors of page routes to the login page.
// API routes always pass; the backend enforces access there.
type AuthGate struct {
	checker MemberChecker
	ttl     time.Duration
	log     *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	passed map[string]time.Time // cookie header -> expiry
}

// NewAuthGate returns a gate that remembers a successful member check for
// ttl per Cookie header. A zero ttl disables the memory.
func NewAuthGate(checker MemberChecker, ttl time.Duration, log *slog.Logger) *AuthGate {
	return &AuthGate{
		checker: checker,
		ttl:     ttl,
		log:     log,
		now:     time.Now,
		passed:  make(map[string]time.Time),
	}
}

// Middleware applies the gate.
func (g *AuthGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.allowed(r) {
			next.ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.Path), http.StatusFound)
	})
}

// Flush forgets all remembered member checks.
func (g *AuthGate) Flush() {
	g.mu.Lock()
	clear(g.passed)
	g.mu.Unlock()
}

func (g *AuthGate) allowed(r *http.Request) bool {
	path := r.URL.Path
	if strings.HasPrefix(path, "/api") || isPublic(path) {
		return true
	}
	if _, err := r.Cookie(IdentityCookie); err == nil {
		return true
	}
	cookie := r.Header.Get("Cookie")
	if cookie == "" || g.checker == nil {
		return false
	}
	if g.remembered(cookie) {
		return true
	}

	if _, err := g.checker.Me(umbraco.WithCookie(r.Context(), cookie)); err != nil {
		if !umbraco.IsUnauthorized(err) {
			g.log.Warn("member check failed", "path", path, "error", err)
		}
		return false
	}
	g.remember(cookie)
	return true
}

func (g *AuthGate) remembered(cookie string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	exp, ok := g.passed[cookie]
	return ok && g.now().Before(exp)
}

func (g *AuthGate) remember(cookie string) {
	if g.ttl <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for k, exp := range g.passed {
		if !now.Before(exp) {
			delete(g.passed, k)
		}
	}
	g.passed[cookie] = now.Add(g.ttl)
}

func isPublic(path string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
