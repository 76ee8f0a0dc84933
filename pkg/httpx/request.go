package httpx

import (
	"net"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tollgate/pkg/cryptox"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderAccessToken   = "X-Access-Token"

	maxDeviceIDLen = 128
)

var deviceHeaders = []string{"X-Device-Id", "X-Device-ID", "X-Device"}

// ClientIP is the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address. Proxies that write "unknown" are skipped.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if first != "" && !strings.EqualFold(first, "unknown") {
			return first
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && !strings.EqualFold(xri, "unknown") {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// DeviceID returns the client supplied device id, or a stable 16 hex
// character fingerprint of User-Agent and client IP.
func DeviceID(r *http.Request) string {
	if v, ok := SuppliedDeviceID(r); ok {
		return v
	}
	return cryptox.ShortDigest(r.UserAgent()+"|"+ClientIP(r), 16)
}

// SuppliedDeviceID returns the device id header, capped at 128 characters.
func SuppliedDeviceID(r *http.Request) (string, bool) {
	for _, h := range deviceHeaders {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			if len(v) > maxDeviceIDLen {
				v = v[:maxDeviceIDLen]
			}
			return v, true
		}
	}
	return "", false
}

// StripBearer removes an optional case-insensitive "Bearer " prefix.
func StripBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return v
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get(HeaderAuthorization))
	if len(authz) < 7 || !strings.EqualFold(authz[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(authz[7:])
	return tok, tok != ""
}
