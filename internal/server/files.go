package server

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"secure-file-hub/internal/storage"
)

type listedFile struct {
	storage.FileInfo
	UploadedBy string `json:"uploaded_by"`
}

type deleteMetadata struct {
	DeletedBy string `json:"deleted_by"`
	Timestamp string `json:"timestamp"`
}

type deleteResp struct {
	Status   string         `json:"status"`
	Detail   string         `json:"detail"`
	Metadata deleteMetadata `json:"metadata"`
}

// handleListFiles returns every stored file. A store that does not exist
// yet lists as [].
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())

	files, err := s.cfg.Store.List(r.Context())
	if err != nil {
		s.logger.Error("list files failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read files: "+err.Error())
		return
	}

	out := make([]listedFile, 0, len(files))
	for _, f := range files {
		out = append(out, listedFile{FileInfo: f, UploadedBy: user})
	}
	writeJSON(w, http.StatusOK, out)
}

// fileParam returns the name captured by the /files/* route. chi matches
// against RawPath when the request carried escapes that Path cannot
// represent (such as %2F), and against the decoded Path otherwise, so the
// capture is unescaped only in the first case.
func fileParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return name, nil
	}
	return url.PathUnescape(name)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())

	name, err := fileParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	if err := s.cfg.Store.Delete(r.Context(), name); err != nil {
		s.metrics.RecordDelete(false)
		s.logger.Warn("delete failed", "user", user, "file", name, "error", err)
		writeStorageError(w, err)
		return
	}

	s.metrics.RecordDelete(true)
	s.logger.Info("file deleted", "user", user, "file", name)

	writeJSON(w, http.StatusOK, deleteResp{
		Status: "success",
		Detail: fmt.Sprintf("file %q deleted", name),
		Metadata: deleteMetadata{
			DeletedBy: user,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}
