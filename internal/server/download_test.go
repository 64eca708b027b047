package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload_Attachment(t *testing.T) {
	env := newTestEnv(t)
	c := env.login()
	env.upload(c, "report.txt", "quarterly numbers")

	rr := env.do(authed(httptest.NewRequest(http.MethodGet, "/files/report.txt", nil), c))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=report.txt`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "quarterly numbers", rr.Body.String())

	snap := env.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.DownloadsTotal)
	assert.Equal(t, int64(len("quarterly numbers")), snap.DownloadBytesTotal)
}

func TestDownload_QuotedFilename(t *testing.T) {
	env := newTestEnv(t)
	c := env.login()
	env.upload(c, "my report.txt", "x")

	rr := env.do(authed(httptest.NewRequest(http.MethodGet, "/files/my%20report.txt", nil), c))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="my report.txt"`, rr.Header().Get("Content-Disposition"))
}

func TestDownload_Range(t *testing.T) {
	env := newTestEnv(t)
	c := env.login()
	env.upload(c, "digits.txt", "0123456789")

	req := authed(httptest.NewRequest(http.MethodGet, "/files/digits.txt", nil), c)
	req.Header.Set("Range", "bytes=2-4")
	rr := env.do(req)
	assert.Equal(t, http.StatusPartialContent, rr.Code)
	assert.Equal(t, "234", rr.Body.String())
}

func TestDownload_Errors(t *testing.T) {
	env := newTestEnv(t)
	c := env.login()
	env.upload(c, "seed.txt", "s")
	require.NoError(t, os.Mkdir(filepath.Join(env.store.Root(), "dir"), 0o755))

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"missing", "/files/nope.txt", http.StatusNotFound},
		{"directory", "/files/dir", http.StatusBadRequest},
		{"traversal", "/files/../../etc/passwd", http.StatusBadRequest},
		{"encoded traversal", "/files/..%2F..%2Fetc%2Fpasswd", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(authed(httptest.NewRequest(http.MethodGet, tt.target, nil), c))
			assert.Equal(t, tt.want, rr.Code)
			assert.NotEmpty(t, detail(t, rr))
		})
	}
}

func TestDownload_PercentInName(t *testing.T) {
	env := newTestEnv(t)
	c := env.login()
	env.upload(c, "100%.txt", "full")
	env.upload(c, "a%41.txt", "literal")
	env.upload(c, "aA.txt", "other")

	rr := env.do(authed(httptest.NewRequest(http.MethodGet, "/files/100%25.txt", nil), c))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "full", rr.Body.String())

	rr = env.do(authed(httptest.NewRequest(http.MethodGet, "/files/a%2541.txt", nil), c))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "literal", rr.Body.String())
}
