// prometheus.go - Prometheus text exposition of the metrics snapshot.
package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

type promMetric struct {
	name  string
	help  string
	kind  string
	value float64
}

func promMetrics(s MetricsSnapshot) []promMetric {
	return []promMetric{
		{"sfh_requests_total", "Total number of HTTP requests", "counter", float64(s.RequestsTotal)},
		{"sfh_request_errors_4xx_total", "HTTP responses with a 4xx status", "counter", float64(s.RequestErrors4xx)},
		{"sfh_request_errors_5xx_total", "HTTP responses with a 5xx status", "counter", float64(s.RequestErrors5xx)},
		{"sfh_uploads_total", "Total number of stored uploads", "counter", float64(s.UploadsTotal)},
		{"sfh_upload_bytes_total", "Bytes stored by uploads", "counter", float64(s.UploadBytesTotal)},
		{"sfh_upload_errors_total", "Rejected or failed uploads", "counter", float64(s.UploadErrorsTotal)},
		{"sfh_upload_duration_avg_ms", "Average upload duration in milliseconds", "gauge", s.UploadAvgDurationMs},
		{"sfh_downloads_total", "Total number of file downloads", "counter", float64(s.DownloadsTotal)},
		{"sfh_download_bytes_total", "Bytes served by downloads", "counter", float64(s.DownloadBytesTotal)},
		{"sfh_download_errors_total", "Failed downloads", "counter", float64(s.DownloadErrorsTotal)},
		{"sfh_deletes_total", "Total number of deleted files", "counter", float64(s.DeletesTotal)},
		{"sfh_delete_errors_total", "Failed deletes", "counter", float64(s.DeleteErrorsTotal)},
		{"sfh_login_attempts_total", "Login attempts with a well-formed body", "counter", float64(s.LoginAttemptsTotal)},
		{"sfh_login_success_total", "Successful logins", "counter", float64(s.LoginSuccessTotal)},
		{"sfh_login_failures_total", "Failed logins", "counter", float64(s.LoginFailuresTotal)},
		{"sfh_unify_runs_total", "Successful aggregation runs", "counter", float64(s.UnifyRunsTotal)},
		{"sfh_unify_errors_total", "Aggregation runs that failed", "counter", float64(s.UnifyErrorsTotal)},
		{"sfh_unify_duration_avg_ms", "Average aggregation duration in milliseconds", "gauge", s.UnifyAvgDurationMs},
		{"sfh_unify_files_total", "Files read by aggregation runs", "counter", float64(s.UnifyFilesTotal)},
		{"sfh_unify_file_errors_total", "Files aggregation could not read", "counter", float64(s.UnifyFileErrorTotal)},
	}
}

// writePrometheus renders snap in the Prometheus text format.
func writePrometheus(w io.Writer, snap MetricsSnapshot, version string) error {
	var b strings.Builder
	b.WriteString("# HELP sfh_info Application version info\n")
	b.WriteString("# TYPE sfh_info gauge\n")
	fmt.Fprintf(&b, "sfh_info{version=%q} 1\n", version)

	for _, m := range promMetrics(snap) {
		fmt.Fprintf(&b, "\n# HELP %s %s\n# TYPE %s %s\n%s %g\n", m.name, m.help, m.name, m.kind, m.name, m.value)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// wantsPrometheus reports whether the caller asked for the text format
// rather than JSON.
func wantsPrometheus(r *http.Request) bool {
	if r.URL.Query().Get("format") == "prometheus" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/plain") && !strings.Contains(accept, "application/json")
}
