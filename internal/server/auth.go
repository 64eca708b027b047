package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"secure-file-hub/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin verifies credentials and issues the session cookie
// (HttpOnly, SameSite=Lax, Path=/) carrying "Bearer <token>".
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, expires, err := s.cfg.Auth.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		s.metrics.RecordLoginAttempt(false)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Warn("login failed", "user", body.Username, "ip", r.RemoteAddr)
			writeError(w, http.StatusBadRequest, "incorrect username or password")
			return
		}
		s.logger.Error("login error", "user", body.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "login unavailable")
		return
	}

	s.metrics.RecordLoginAttempt(true)
	s.logger.Info("login", "user", body.Username, "ip", r.RemoteAddr)

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "Bearer " + token,
		Path:     "/",
		MaxAge:   int(s.cfg.Auth.TokenTTL() / time.Second),
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "login successful"})
}

// handleLogout clears the session cookie. Tokens stay valid until they
// expire.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
