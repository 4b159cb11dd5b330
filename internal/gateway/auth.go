package gateway

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/soyeahso/kairos/internal/config"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // "token" | "none"
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth is the effective gateway credential. An empty Token disables
// authentication.
type ResolvedAuth struct {
	Token string
}

// Enabled reports whether clients must present a token.
func (a ResolvedAuth) Enabled() bool { return a.Token != "" }

// ResolveAuth resolves the gateway token from config, falling back to
// KAIROS_GATEWAY_TOKEN.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{Token: cfg.Token}
	if auth.Token == "" {
		auth.Token = os.Getenv("KAIROS_GATEWAY_TOKEN")
	}
	return auth
}

// Authorize checks a presented token against the server credential.
func Authorize(serverAuth ResolvedAuth, token string) AuthResult {
	if !serverAuth.Enabled() {
		return AuthResult{OK: true, Method: "none"}
	}
	if token == "" {
		return AuthResult{OK: false, Reason: "token_missing"}
	}
	if !safeEqual(token, serverAuth.Token) {
		return AuthResult{OK: false, Reason: "token_mismatch"}
	}
	return AuthResult{OK: true, Method: "token"}
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// safeEqual performs a constant-time string comparison. It does not return
// early on a length mismatch so the secret length is not leaked via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
