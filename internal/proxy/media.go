package proxy

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	mediaAccept       = "image/avif,image/webp,image/*,video/*,*/*;q=0.8"
	mediaCacheControl = "public, max-age=31536000, immutable"
)

var (
	mediaRequestHeaders  = []string{"Range", "If-None-Match", "If-Modified-Since", "If-Range"}
	mediaResponseHeaders = []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges", "ETag", "Last-Modified"}
)

// Media streams /media/<path> from the backend. Only images and videos are
// relayed; range requests are passed through so video can seek.
func (p *Proxy) Media(w http.ResponseWriter, r *http.Request, path string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if p.baseURL == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Missing UMBRACO_BASE_URL"})
		return
	}
	path = strings.TrimPrefix(path, "/")
	if path == "" || containsDotDot(path) {
		http.Error(w, "Bad media path", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, p.baseURL+"/media/"+path, nil)
	if err != nil {
		http.Error(w, "Bad media path", http.StatusBadRequest)
		return
	}
	req.Header.Set("Accept", mediaAccept)
	for _, k := range mediaRequestHeaders {
		if v := r.Header.Get(k); v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := p.media.Do(req)
	if err != nil {
		p.logger.Error("media request failed", "path", path, "error", err)
		http.Error(w, "Upstream unreachable", http.StatusBadGateway)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	case http.StatusNotModified:
		copyHeaders(w.Header(), resp.Header, "ETag", "Last-Modified")
		w.Header().Set("Cache-Control", mediaCacheControl)
		w.WriteHeader(http.StatusNotModified)
		return
	default:
		http.Error(w, fmt.Sprintf("Upstream %d", resp.StatusCode), resp.StatusCode)
		return
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "video/") {
		http.Error(w, "Not an image or video", http.StatusUnsupportedMediaType)
		return
	}

	copyHeaders(w.Header(), resp.Header, mediaResponseHeaders...)
	w.Header().Set("Cache-Control", mediaCacheControl)
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.Debug("media stream ended early", "path", path, "error", err)
	}
}

func copyHeaders(dst, src http.Header, keys ...string) {
	for _, k := range keys {
		if v := src.Get(k); v != "" {
			dst.Set(k, v)
		}
	}
}

func containsDotDot(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
