package server

import (
	"net/http"
	"sync"
	"time"
)

// Metrics holds in-process counters for the hub.
type Metrics struct {
	mu sync.RWMutex

	// Upload metrics
	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration

	// Download metrics
	downloadsTotal      int64
	downloadBytesTotal  int64
	downloadErrorsTotal int64

	deletesTotal      int64
	deleteErrorsTotal int64

	// Auth metrics
	loginAttemptsTotal int64
	loginSuccessTotal  int64
	loginFailuresTotal int64

	// Aggregation metrics
	unifyRunsTotal      int64
	unifyErrorsTotal    int64
	unifyDurationTotal  time.Duration
	unifyFilesTotal     int64
	unifyFileErrorTotal int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordUpload records a successful upload
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

func (m *Metrics) RecordDownload(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
	m.downloadBytesTotal += bytes
}

func (m *Metrics) RecordDownloadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErrorsTotal++
}

// RecordDelete records a delete attempt.
func (m *Metrics) RecordDelete(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.deletesTotal++
	} else {
		m.deleteErrorsTotal++
	}
}

// RecordLoginAttempt records a login attempt
func (m *Metrics) RecordLoginAttempt(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginAttemptsTotal++
	if success {
		m.loginSuccessTotal++
	} else {
		m.loginFailuresTotal++
	}
}

// RecordUnify records one aggregation run. files and fileErrors are only
// meaningful when err is nil.
func (m *Metrics) RecordUnify(duration time.Duration, files, fileErrors int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unifyRunsTotal++
	m.unifyDurationTotal += duration
	if err != nil {
		m.unifyErrorsTotal++
		return
	}
	m.unifyFilesTotal += int64(files)
	m.unifyFileErrorTotal += int64(fileErrors)
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		UploadsTotal:        m.uploadsTotal,
		UploadBytesTotal:    m.uploadBytesTotal,
		UploadErrorsTotal:   m.uploadErrorsTotal,
		UploadAvgDurationMs: avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		DownloadsTotal:      m.downloadsTotal,
		DownloadBytesTotal:  m.downloadBytesTotal,
		DownloadErrorsTotal: m.downloadErrorsTotal,
		DeletesTotal:        m.deletesTotal,
		DeleteErrorsTotal:   m.deleteErrorsTotal,
		LoginAttemptsTotal:  m.loginAttemptsTotal,
		LoginSuccessTotal:   m.loginSuccessTotal,
		LoginFailuresTotal:  m.loginFailuresTotal,
		UnifyRunsTotal:      m.unifyRunsTotal,
		UnifyErrorsTotal:    m.unifyErrorsTotal,
		UnifyAvgDurationMs:  avgDuration(m.unifyDurationTotal, m.unifyRunsTotal),
		UnifyFilesTotal:     m.unifyFilesTotal,
		UnifyFileErrorTotal: m.unifyFileErrorTotal,
		RequestsTotal:       m.requestsTotal,
		RequestErrors5xx:    m.requestErrors5xx,
		RequestErrors4xx:    m.requestErrors4xx,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	// Upload metrics
	UploadsTotal        int64   `json:"uploads_total"`
	UploadBytesTotal    int64   `json:"upload_bytes_total"`
	UploadErrorsTotal   int64   `json:"upload_errors_total"`
	UploadAvgDurationMs float64 `json:"upload_avg_duration_ms"`

	// Download metrics
	DownloadsTotal      int64 `json:"downloads_total"`
	DownloadBytesTotal  int64 `json:"download_bytes_total"`
	DownloadErrorsTotal int64 `json:"download_errors_total"`

	DeletesTotal      int64 `json:"deletes_total"`
	DeleteErrorsTotal int64 `json:"delete_errors_total"`

	// Auth metrics
	LoginAttemptsTotal int64 `json:"login_attempts_total"`
	LoginSuccessTotal  int64 `json:"login_success_total"`
	LoginFailuresTotal int64 `json:"login_failures_total"`

	// Aggregation metrics
	UnifyRunsTotal      int64   `json:"unify_runs_total"`
	UnifyErrorsTotal    int64   `json:"unify_errors_total"`
	UnifyAvgDurationMs  float64 `json:"unify_avg_duration_ms"`
	UnifyFilesTotal     int64   `json:"unify_files_total"`
	UnifyFileErrorTotal int64   `json:"unify_file_errors_total"`

	// System metrics
	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}

// handleMetrics serves the snapshot as JSON, or in the Prometheus text
// format when asked for it.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := s.metrics.Snapshot()
	if wantsPrometheus(r) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := writePrometheus(w, snap, s.cfg.Version); err != nil {
			s.logger.Warn("write metrics failed", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
