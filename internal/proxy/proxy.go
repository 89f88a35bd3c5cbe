// Package proxy forwards browser requests to the CMS backend unchanged,
// apart from hop-by-hop headers and cookie scoping.
package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/movekind/gateway/internal/events"
	"github.com/movekind/gateway/internal/storage"
)

// ContentCache stores public upstream responses.
type ContentCache interface {
	Get(ctx context.Context, key string) (storage.CacheEntry, bool, error)
	Put(ctx context.Context, key string, e storage.CacheEntry) error
}

// Options configures a Proxy.
type Options struct {
	BaseURL            string
	CookieDomain       string
	Timeout            time.Duration
	InsecureSkipVerify bool
	Logger             *slog.Logger
	Events             events.Publisher
	Cache              ContentCache
}

// Proxy forwards requests to the backend base URL.
type Proxy struct {
	baseURL      string
	cookieDomain string
	api          *http.Client
	media        *http.Client
	logger       *slog.Logger
	events       events.Publisher
	cache        ContentCache
}

// New builds a Proxy. API calls use opts.Timeout; media streams have no
// overall deadline, only a response-header timeout.
func New(opts Options) *Proxy {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = opts.Timeout
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // dev backends use self-signed certs
	}
	noRedirect := func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	return &Proxy{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		cookieDomain: opts.CookieDomain,
		api:          &http.Client{Timeout: opts.Timeout, Transport: transport, CheckRedirect: noRedirect},
		media:        &http.Client{Transport: transport, CheckRedirect: noRedirect},
		logger:       opts.Logger,
		events:       opts.Events,
		cache:        opts.Cache,
	}
}

// To returns a handler forwarding every request to the fixed upstream path.
func (p *Proxy) To(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.Forward(w, r, path)
	}
}

// Forward relays r to path on the backend and writes the backend's answer.
// The inbound query string is kept. It returns the relayed status, or 0
// when nothing reached the backend.
func (p *Proxy) Forward(w http.ResponseWriter, r *http.Request, path string) int {
	resp, ok := p.roundTrip(w, r, path)
	if !ok {
		return 0
	}
	defer func() { _ = resp.Body.Close() }()
	p.relay(w, r, resp)
	return resp.StatusCode
}

// ForwardAuth forwards like Forward and publishes an auth-changed signal
// when the backend answers 2xx.
func (p *Proxy) ForwardAuth(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := p.Forward(w, r, path)
		if status >= 200 && status < 300 && p.events != nil {
			p.events.Publish()
		}
	}
}

// ForwardCached serves GET requests from the content cache when possible
// and stores 200 responses. Other methods are forwarded as usual.
func (p *Proxy) ForwardCached(w http.ResponseWriter, r *http.Request, path string) {
	if p.cache == nil || r.Method != http.MethodGet {
		p.Forward(w, r, path)
		return
	}
	key := joinQuery(path, r.URL.RawQuery)
	if e, ok, err := p.cache.Get(r.Context(), key); err != nil {
		p.logger.Warn("content cache read failed", "key", key, "error", err)
	} else if ok {
		w.Header().Set("Content-Type", e.ContentType)
		w.Header().Set("X-Cache", "HIT")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(e.Body)
		return
	}

	resp, ok := p.roundTrip(w, r, path)
	if !ok {
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "reading upstream response failed"})
			return
		}
		if err := p.cache.Put(r.Context(), key, storage.CacheEntry{Body: body, ContentType: resp.Header.Get("Content-Type")}); err != nil {
			p.logger.Warn("content cache write failed", "key", key, "error", err)
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))
		resp.Header.Set("X-Cache", "MISS")
	}
	p.relay(w, r, resp)
}

func (p *Proxy) roundTrip(w http.ResponseWriter, r *http.Request, path string) (*http.Response, bool) {
	if p.baseURL == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Missing UMBRACO_BASE_URL"})
		return nil, false
	}

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, p.baseURL+joinQuery(path, r.URL.RawQuery), body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "building upstream request failed"})
		return nil, false
	}
	if body != nil {
		req.ContentLength = r.ContentLength
	}
	req.Header = r.Header.Clone()
	removeHopByHop(req.Header)

	resp, err := p.api.Do(req)
	if err != nil {
		p.logger.Error("upstream request failed", "method", r.Method, "path", path, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Could not reach the server. Please try again."})
		return nil, false
	}
	return resp, true
}

func (p *Proxy) relay(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	h := w.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	removeHopByHop(h)
	if cookies := h.Values("Set-Cookie"); len(cookies) > 0 {
		h.Del("Set-Cookie")
		for _, c := range cookies {
			h.Add("Set-Cookie", RewriteSetCookie(c, p.cookieDomain))
		}
	}

	w.WriteHeader(resp.StatusCode)
	if !bodyAllowed(resp.StatusCode) || r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.Warn("relaying upstream body failed", "path", r.URL.Path, "error", err)
	}
}

func bodyAllowed(status int) bool {
	switch status {
	case http.StatusNoContent, http.StatusResetContent, http.StatusNotModified:
		return false
	}
	return true
}

func joinQuery(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&" + rawQuery
	}
	return path + "?" + rawQuery
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
