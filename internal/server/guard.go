package server

import (
	"context"
	"net/http"
	"strings"

	"secure-file-hub/internal/auth"
)

const unauthorizedDetail = "invalid or expired credentials"

// CurrentUser returns the username the session guard authenticated.
func CurrentUser(ctx context.Context) string {
	if c, ok := ctx.Value(claimsKey).(*auth.Claims); ok {
		return c.Username()
	}
	return ""
}

// requireSession rejects requests without a valid bearer credential. Every
// failure gets the same response so callers cannot tell why they were
// refused.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := s.credential(r)
		if !ok {
			unauthorized(w)
			return
		}
		claims, err := s.cfg.Auth.Verify(token)
		if err != nil {
			s.logger.Debug("session rejected", "rid", RequestIDFromContext(r.Context()), "error", err)
			unauthorized(w)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// credential extracts the raw token. The cookie wins when present; otherwise
// the Authorization header must be exactly "Bearer <token>".
func (s *Server) credential(r *http.Request) (string, bool) {
	if c, err := r.Cookie(s.cfg.CookieName); err == nil && c.Value != "" {
		token := strings.TrimPrefix(c.Value, "Bearer ")
		return token, token != ""
	}

	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.Split(h, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, unauthorizedDetail)
}
