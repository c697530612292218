// Package auth protects the HTTP surface with API keys, CORS, and
// per-key rate limiting. Backend keys cover event intake and reads;
// admin keys additionally cover operator endpoints.
package auth

import (
	"net"
	"net/http"
	"strings"

	"vouchd/pkg/logger"
	"vouchd/pkg/utils"
)

// Role is the access level resolved from a request's API key.
type Role int

const (
	RoleUnauth Role = iota
	RoleBackend
	RoleAdmin
)

// SecConfig holds resolved security settings for the middleware.
type SecConfig struct {
	AllowedOrigins []string
	BackendKeys    map[string]struct{}
	AdminKeys      map[string]struct{}
	RPS            float64
	Burst          int
}

// KeySet turns a key list into a lookup set.
func KeySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// Middleware returns the request gateway. Health and metrics probes
// pass unauthenticated; everything else requires a known API key,
// checked against a per-key rate limiter.
func Middleware(cfg SecConfig) func(http.Handler) http.Handler {
	limiters := newKeyLimits(cfg.RPS, cfg.Burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if r.Method == http.MethodGet && (r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics") {
				next.ServeHTTP(w, r)
				return
			}

			role, key := authenticate(r, cfg)
			if role == RoleUnauth {
				utils.WriteError(w, http.StatusUnauthorized, "unauthorized")
				logger.Warn("request_unauthorized", "path", r.URL.Path, "remote", r.RemoteAddr)
				return
			}
			if role != RoleAdmin && adminOnly(r.URL.Path) {
				utils.WriteError(w, http.StatusForbidden, "forbidden")
				logger.Warn("request_forbidden", "path", r.URL.Path)
				return
			}
			if !limiters.allow(key) {
				utils.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				logger.Warn("rate_limited", "path", r.URL.Path)
				return
			}

			logger.Debug("request_allowed", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

func adminOnly(path string) bool {
	return strings.HasPrefix(path, "/v1/admin")
}

func authenticate(r *http.Request, cfg SecConfig) (Role, string) {
	auth := r.Header.Get("Authorization")
	var key string
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		key = strings.TrimSpace(auth[7:])
	}
	if key == "" {
		key = r.Header.Get("X-API-Key")
	}
	if key == "" {
		return RoleUnauth, clientIP(r)
	}
	if _, ok := cfg.AdminKeys[key]; ok {
		return RoleAdmin, key
	}
	if _, ok := cfg.BackendKeys[key]; ok {
		return RoleBackend, key
	}
	return RoleUnauth, key
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
