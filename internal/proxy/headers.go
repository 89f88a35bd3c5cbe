package proxy

import (
	"net/http"
	"strings"
)

// hopByHop lists headers that describe a single connection and must not be
// forwarded. Content-Length is recomputed for the relayed body.
var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
	"Content-Length",
}

// removeHopByHop deletes the hop-by-hop headers and any header named in
// Connection.
func removeHopByHop(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopByHop {
		h.Del(name)
	}
	h.Del("Host")
}

// RewriteSetCookie scopes a backend cookie to the gateway: the Domain
// attribute is dropped (or replaced by domain when set) and Path defaults
// to "/". Other attributes are kept verbatim.
func RewriteSetCookie(line, domain string) string {
	parts := strings.Split(line, ";")
	out := make([]string, 0, len(parts)+2)
	out = append(out, strings.TrimSpace(parts[0]))
	hasPath := false
	for _, attr := range parts[1:] {
		attr = strings.TrimSpace(attr)
		if attr == "" {
			continue
		}
		name, _, _ := strings.Cut(attr, "=")
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "domain":
			continue
		case "path":
			hasPath = true
		}
		out = append(out, attr)
	}
	if !hasPath {
		out = append(out, "Path=/")
	}
	if domain != "" {
		out = append(out, "Domain="+domain)
	}
	return strings.Join(out, "; ")
}
