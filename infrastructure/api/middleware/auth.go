package middleware

import (
	"net/http"
)

// AuthConfig holds API key authentication configuration.
type AuthConfig struct {
	apiKeys map[string]struct{}
	enabled bool
}

// NewAuthConfig creates an AuthConfig with a single API key. An empty key
// disables authentication.
func NewAuthConfig(apiKey string) AuthConfig {
	if apiKey == "" {
		return AuthConfig{enabled: false}
	}
	return AuthConfig{
		apiKeys: map[string]struct{}{apiKey: {}},
		enabled: true,
	}
}

// NewAuthConfigWithKeys creates an AuthConfig with multiple API keys. An
// empty key list disables authentication.
func NewAuthConfigWithKeys(apiKeys []string) AuthConfig {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	if len(keys) == 0 {
		return AuthConfig{enabled: false}
	}
	return AuthConfig{apiKeys: keys, enabled: true}
}

// Enabled reports whether authentication is enforced.
func (c AuthConfig) Enabled() bool { return c.enabled }

// validKey reports whether the presented key is accepted.
func (c AuthConfig) validKey(apiKey string) bool {
	_, ok := c.apiKeys[apiKey]
	return ok
}

// WriteProtect returns a middleware that requires X-API-KEY authentication
// on mutating methods. Reads (GET, HEAD, OPTIONS) always pass; a config
// without keys passes everything through.
func WriteProtect(config AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.enabled {
				next.ServeHTTP(w, r)
				return
			}

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-KEY")
			if apiKey == "" {
				unauthorized(w, "X-API-KEY header is required")
				return
			}
			if !config.validKey(apiKey) {
				unauthorized(w, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + detail + `","code":"unauthorized"}`))
}
