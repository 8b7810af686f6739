package challenge

import (
	"net"
	"net/http"
)

// ClientIP extracts the originating address from a request for audit
// logging, preferring the proxy-forwarded address when present.
func ClientIP(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
