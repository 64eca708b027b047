package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"secure-file-hub/internal/unify"
)

// handleUnify merges the store into the artifact, relays it and returns it
// as a plain-text download.
func (s *Server) handleUnify(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	start := time.Now()

	art, err := s.cfg.Unifier.Unify(r.Context())
	if err != nil {
		s.metrics.RecordUnify(time.Since(start), 0, 0, err)
		s.logger.Error("unify failed", "user", user, "error", err)
		switch {
		case errors.Is(err, unify.ErrNoStore):
			writeError(w, http.StatusNotFound, "storage directory not found")
		case errors.Is(err, unify.ErrWrite), errors.Is(err, unify.ErrRelay):
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeStorageError(w, err)
		}
		return
	}

	failed := 0
	for _, sec := range art.Sections {
		if sec.Err != nil {
			failed++
		}
	}
	s.metrics.RecordUnify(time.Since(start), len(art.Sections), failed, nil)
	s.logger.Info("files unified", "user", user, "files", len(art.Sections), "failed", failed, "archive_key", art.ArchiveKey)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(art.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, art.Text)
}
