package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// clientIP returns the best-effort client address. Forwarding headers are honored only behind a
// trusted proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != "" {
			return ip
		}
		if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
			return addr.Unmap().String()
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().String()
	}
	return ""
}

func parseForwardedIP(raw string) string {
	for _, p := range strings.Split(raw, ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(p)); err == nil {
			return addr.Unmap().String()
		}
	}
	return ""
}
