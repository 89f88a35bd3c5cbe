package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMedia(t *testing.T) {
	backend := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/media/abc/photo.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set("ETag", `"v1"`)
			_, _ = io.WriteString(w, "jpegbytes")
		case "/media/abc/clip.mp4":
			if got := r.Header.Get("Range"); got != "bytes=0-3" {
				t.Errorf("range = %q", got)
			}
			w.Header().Set("Content-Type", "video/mp4")
			w.Header().Set("Content-Range", "bytes 0-3/100")
			w.Header().Set("Accept-Ranges", "bytes")
			w.WriteHeader(http.StatusPartialContent)
			_, _ = io.WriteString(w, "mp4!")
		case "/media/abc/notes.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, "<html>")
		case "/media/abc/cached.png":
			w.Header().Set("ETag", `"v2"`)
			w.WriteHeader(http.StatusNotModified)
		default:
			http.NotFound(w, r)
		}
	})
	p := New(Options{BaseURL: backend.URL})

	cases := []struct {
		name      string
		path      string
		header    map[string]string
		status    int
		body      string
		immutable bool
	}{
		{"image", "abc/photo.jpg", nil, http.StatusOK, "jpegbytes", true},
		{"video range", "abc/clip.mp4", map[string]string{"Range": "bytes=0-3"}, http.StatusPartialContent, "mp4!", true},
		{"not media", "abc/notes.html", nil, http.StatusUnsupportedMediaType, "Not an image or video\n", false},
		{"not modified", "abc/cached.png", map[string]string{"If-None-Match": `"v2"`}, http.StatusNotModified, "", true},
		{"missing", "abc/none.jpg", nil, http.StatusNotFound, "Upstream 404\n", false},
		{"traversal", "abc/../../etc/passwd", nil, http.StatusBadRequest, "Bad media path\n", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/media/x", nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			p.Media(rec, req, tc.path)

			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}
			if rec.Body.String() != tc.body {
				t.Errorf("body = %q, want %q", rec.Body.String(), tc.body)
			}
			immutable := strings.Contains(rec.Header().Get("Cache-Control"), "immutable")
			if immutable != tc.immutable {
				t.Errorf("cache-control = %q", rec.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestMediaRangeHeadersRelayed(t *testing.T) {
	backend := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Range", "bytes 0-3/100")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = io.WriteString(w, "mp4!")
	})
	p := New(Options{BaseURL: backend.URL})

	rec := httptest.NewRecorder()
	p.Media(rec, httptest.NewRequest(http.MethodGet, "/media/v.mp4", nil), "v.mp4")
	if got := rec.Header().Get("Content-Range"); got != "bytes 0-3/100" {
		t.Errorf("content-range = %q", got)
	}
}

func TestMediaRejectsPost(t *testing.T) {
	p := New(Options{BaseURL: "http://unused"})
	rec := httptest.NewRecorder()
	p.Media(rec, httptest.NewRequest(http.MethodPost, "/media/a.jpg", nil), "a.jpg")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
