package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// APIKeys is the list of accepted keys; authentication is off when empty
	APIKeys []string

	// SkipPaths are paths that don't require authentication. A trailing "*"
	// matches by prefix.
	SkipPaths []string
}

// AuthMiddleware provides API key authentication
type AuthMiddleware struct {
	apiKeys []string
	skipMap map[string]bool
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(config AuthConfig) *AuthMiddleware {
	m := &AuthMiddleware{
		skipMap: make(map[string]bool),
	}
	for _, key := range config.APIKeys {
		if key = strings.TrimSpace(key); key != "" {
			m.apiKeys = append(m.apiKeys, key)
		}
	}
	for _, path := range config.SkipPaths {
		m.skipMap[path] = true
	}
	return m
}

// Wrap wraps an http.Handler with authentication
func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.apiKeys) == 0 || m.shouldSkipAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := extractAPIKey(r)
		if apiKey == "" {
			unauthorized(w, "Missing API key")
			return
		}

		if !validateAPIKey(apiKey, m.apiKeys) {
			log.Warn().
				Str("remote_addr", r.RemoteAddr).
				Str("request_id", GetRequestID(r.Context())).
				Msg("Invalid API key attempt")
			unauthorized(w, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// IsEnabled returns whether any API key is configured
func (m *AuthMiddleware) IsEnabled() bool {
	return len(m.apiKeys) > 0
}

// shouldSkipAuth checks if the path should skip authentication
func (m *AuthMiddleware) shouldSkipAuth(path string) bool {
	if m.skipMap[path] {
		return true
	}
	for skipPath := range m.skipMap {
		if strings.HasSuffix(skipPath, "*") && strings.HasPrefix(path, strings.TrimSuffix(skipPath, "*")) {
			return true
		}
	}
	return false
}

// extractAPIKey extracts the API key from the request
// Supports: Authorization header (Bearer/ApiKey) and X-API-Key header
func extractAPIKey(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if strings.HasPrefix(authHeader, "ApiKey ") {
		return strings.TrimPrefix(authHeader, "ApiKey ")
	}
	return r.Header.Get("X-API-Key")
}

// validateAPIKey uses constant-time comparison
func validateAPIKey(provided string, validKeys []string) bool {
	for _, valid := range validKeys {
		if subtle.ConstantTimeCompare([]byte(provided), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer realm=\"incidentfox\"")
	writeError(w, http.StatusUnauthorized, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(`{"error":"` + message + `"}`)); err != nil {
		log.Debug().Err(err).Msg("Failed to write error response")
	}
}
