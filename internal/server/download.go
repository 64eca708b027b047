package server

import (
	"mime"
	"net/http"
)

// handleDownload streams a stored file as an attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())

	name, err := fileParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	f, info, err := s.cfg.Store.Open(r.Context(), name)
	if err != nil {
		s.metrics.RecordDownloadError()
		writeStorageError(w, err)
		return
	}
	defer func() { _ = f.Close() }()

	s.logger.Info("file downloaded", "user", user, "file", name, "rid", RequestIDFromContext(r.Context()))
	s.metrics.RecordDownload(info.Size)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", attachment(name))
	http.ServeContent(w, r, name, info.LastModified, f)
}

// attachment builds a Content-Disposition value that forces a download.
func attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
