// Package clientip extracts the real client IP address from HTTP requests.
//
// Proxy headers are checked in priority order before falling back to the
// connection's remote address, which matters for rate limiting and security
// logging when the service runs behind a load balancer or CDN.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Header priority: most trustworthy sources first.
var proxyHeaders = []string{
	"CF-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// GetIP returns the client IP for the request, or "unknown" when no valid
// address can be determined. X-Forwarded-For lists the original client
// leftmost; every candidate is validated and normalized before use.
func GetIP(r *http.Request) string {
	for _, header := range proxyHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}

		// X-Forwarded-For may carry "client, proxy1, proxy2".
		if idx := strings.IndexByte(value, ','); idx >= 0 {
			value = value[:idx]
		}

		if ip := normalize(strings.TrimSpace(value)); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := normalize(host); ip != "" {
		return ip
	}

	return "unknown"
}

// normalize validates the candidate and returns its canonical form,
// or an empty string when it is not a usable address.
func normalize(candidate string) string {
	ip := net.ParseIP(candidate)
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
