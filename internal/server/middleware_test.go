package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var h Health
	decodeJSON(t, rr, &h)
	assert.Equal(t, HealthStatusHealthy, h.Status)
	assert.Equal(t, "test", h.Version)
	require.Contains(t, h.Components, "storage")
	assert.Equal(t, ComponentStatusUp, h.Components["storage"].Status)
	assert.NotContains(t, h.Components, "database")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	c := env.login()
	env.upload(c, "m.txt", "abc")

	rr := env.do(authed(httptest.NewRequest(http.MethodGet, "/metrics", nil), c))
	require.Equal(t, http.StatusOK, rr.Code)

	var m map[string]any
	decodeJSON(t, rr, &m)
	assert.EqualValues(t, 1, m["login_success_total"])
	assert.EqualValues(t, 1, m["uploads_total"])
	assert.EqualValues(t, 3, m["upload_bytes_total"])
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", rr.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))

	secure := newTestEnvWith(t, envOptions{configure: func(c *Config) { c.CookieSecure = true }})
	rr = secure.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rr.Header().Get("Strict-Transport-Security"))

	rr = secure.do(tokenRequest(testUser, testPass))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, rr.Result().Cookies()[0].Secure)
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, rr.Header().Get("X-Request-Id"), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "trace-42")
	rr = env.do(req)
	assert.Equal(t, "trace-42", rr.Header().Get("X-Request-Id"))
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := env.do(req)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = env.do(req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/files", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr = env.do(req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestOriginList(t *testing.T) {
	assert.Equal(t, []string{"http://a.example", "*"}, originList([]string{" http://a.example/ ", "", "*"}))
}

func TestCompressesLargeJSON(t *testing.T) {
	env := newTestEnv(t)
	c := env.login()
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		env.upload(c, n+"-with-a-reasonably-long-name.txt", "x")
	}

	req := authed(httptest.NewRequest(http.MethodGet, "/files", nil), c)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := env.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
}

func TestMetricsEndpoint_Prometheus(t *testing.T) {
	env := newTestEnv(t)
	c := env.login()
	env.upload(c, "m.txt", "abc")

	for _, mutate := range []func(*http.Request){
		func(r *http.Request) { r.URL.RawQuery = "format=prometheus" },
		func(r *http.Request) { r.Header.Set("Accept", "text/plain") },
	} {
		req := authed(httptest.NewRequest(http.MethodGet, "/metrics", nil), c)
		mutate(req)
		rr := env.do(req)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")

		body := rr.Body.String()
		assert.Contains(t, body, `sfh_info{version="test"} 1`)
		assert.Contains(t, body, "# TYPE sfh_uploads_total counter\nsfh_uploads_total 1\n")
		assert.Contains(t, body, "sfh_upload_bytes_total 3\n")
		assert.Contains(t, body, "sfh_login_success_total 1\n")
	}
}
