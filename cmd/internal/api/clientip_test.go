package api

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		remote string
		xff    string
		xri    string
		trust  bool
		want   string
	}{
		{"remote addr", "192.0.2.1:1234", "", "", false, "192.0.2.1"},
		{"ignores xff untrusted", "192.0.2.1:1234", "198.51.100.2", "", false, "192.0.2.1"},
		{"first valid xff", "192.0.2.1:1234", "garbage, 198.51.100.2, 10.0.0.1", "", true, "198.51.100.2"},
		{"x-real-ip", "192.0.2.1:1234", "", "198.51.100.3", true, "198.51.100.3"},
		{"unmaps v4-in-v6", "[::ffff:192.0.2.5]:80", "", "", false, "192.0.2.5"},
		{"ipv6", "[2001:db8::1]:80", "", "", false, "2001:db8::1"},
		{"unparseable", "pipe", "", "", false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xri != "" {
				r.Header.Set("X-Real-IP", tc.xri)
			}
			if got := clientIP(r, tc.trust); got != tc.want {
				t.Fatalf("clientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
