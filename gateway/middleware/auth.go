package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"hagglex/observability/logging"
)

// Authenticator checks admin requests against the configured bearer tokens.
// Comparison is constant time so the token list does not leak through timing.
type Authenticator struct {
	logger *slog.Logger
	tokens []string
}

func NewAuthenticator(tokens []string, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	trimmed := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if token = strings.TrimSpace(token); token != "" {
			trimmed = append(trimmed, token)
		}
	}
	return &Authenticator{logger: logger, tokens: trimmed}
}

func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(a.tokens) == 0 {
				http.Error(w, "admin interface disabled", http.StatusForbidden)
				return
			}
			presented := extractBearer(r.Header.Get("Authorization"))
			if presented == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			if !a.allowed(presented) {
				a.logger.Warn("admin auth rejected",
					"path", r.URL.Path,
					logging.MaskField("token", presented),
				)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authenticator) allowed(presented string) bool {
	match := false
	for _, token := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(presented)) == 1 {
			match = true
		}
	}
	return match
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
