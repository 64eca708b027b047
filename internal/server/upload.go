package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// uploadLimitSlack covers multipart headers and boundaries on top of the
// configured file size limit.
const uploadLimitSlack = 1 << 20

type uploadResp struct {
	Status   string         `json:"status"`
	FileInfo uploadFileInfo `json:"file_info"`
}

type uploadFileInfo struct {
	OriginalName string `json:"original_name"`
	SavedPath    string `json:"saved_path"`
	Size         int64  `json:"size"`
	User         string `json:"user"`
}

// handleUpload streams the multipart "file" field into the store. The
// store never overwrites: a taken name is a 400.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	user := CurrentUser(r.Context())

	if limit := s.cfg.Store.MaxBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+uploadLimitSlack)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		s.metrics.RecordUploadError()
		writeError(w, http.StatusBadRequest, "expected multipart/form-data body")
		return
	}

	part, err := nextFilePart(mr)
	if err != nil {
		s.metrics.RecordUploadError()
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer part.Close()

	info, err := s.cfg.Store.Save(r.Context(), part.FileName(), part)
	if err != nil {
		s.metrics.RecordUploadError()
		s.logger.Warn("upload failed", "user", user, "file", part.FileName(), "error", err)
		writeStorageError(w, err)
		return
	}

	s.metrics.RecordUpload(info.Size, time.Since(start))
	s.logger.Info("file uploaded", "user", user, "file", info.Name, "bytes", info.Size)

	writeJSON(w, http.StatusCreated, uploadResp{
		Status: "success",
		FileInfo: uploadFileInfo{
			OriginalName: info.Name,
			SavedPath:    info.Path,
			Size:         info.Size,
			User:         user,
		},
	})
}

// nextFilePart skips to the "file" form field.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing file field")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			if part.FileName() == "" {
				_ = part.Close()
				return nil, errors.New("missing file name")
			}
			return part, nil
		}
		_ = part.Close()
	}
}
