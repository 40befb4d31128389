package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-laravel-webprofiler/framework/config"
	"github.com/km-arc/go-laravel-webprofiler/profiler"
)

// seed writes two profiles and returns the storage DSN.
func seed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	s, err := profiler.NewFileStorage(dir)
	require.NoError(t, err)

	now := time.Now()
	for i, p := range []struct{ token, method, url string }{
		{"aaa111", http.MethodGet, "http://localhost/hello"},
		{"bbb222", http.MethodPost, "http://localhost/subscribe"},
	} {
		profile := profiler.NewProfile(p.token)
		profile.Method = p.method
		profile.URL = p.url
		profile.IP = "127.0.0.1"
		profile.StatusCode = http.StatusOK
		profile.Time = now.Add(time.Duration(i) * time.Second)
		profile.Collectors["request"] = map[string]any{"method": p.method}
		require.NoError(t, s.Write(context.Background(), profile))
	}
	return "file:" + dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	dsn := seed(t)

	out, err := run(t, "--dsn", dsn, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "TOKEN"))
	assert.True(t, strings.HasPrefix(lines[1], "bbb222"), "newest first")

	out, err = run(t, "--dsn", dsn, "list", "--method", "post", "--json")
	require.NoError(t, err)
	var found []profiler.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "bbb222", found[0].Token)
}

func TestShow(t *testing.T) {
	dsn := seed(t)

	out, err := run(t, "--dsn", dsn, "show", "aaa111", "--panel", "request")
	require.NoError(t, err)
	assert.Equal(t, "method: GET\n", out)

	out, err = run(t, "--dsn", dsn, "show", "aaa111", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"token": "aaa111"`)

	_, err = run(t, "--dsn", dsn, "show", "aaa111", "--panel", "time")
	assert.ErrorContains(t, err, `no "time" panel`)

	_, err = run(t, "--dsn", dsn, "show", "nope")
	assert.ErrorIs(t, err, profiler.ErrProfileNotFound)
}

func TestPurge(t *testing.T) {
	dsn := seed(t)

	out, err := run(t, "--dsn", dsn, "purge")
	require.NoError(t, err)
	assert.Contains(t, out, "purged successfully")

	out, err = run(t, "--dsn", dsn, "list", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, "null", out)
}

func TestUnsupportedDSN(t *testing.T) {
	_, err := run(t, "--dsn", "redis://localhost", "list")
	assert.ErrorIs(t, err, profiler.ErrUnsupportedDSN)
}

func TestViewerApp(t *testing.T) {
	dsn := seed(t)
	cfg := &config.Config{
		App:      config.AppConfig{Env: "testing", Charset: "UTF-8"},
		Log:      config.LogConfig{Level: "error", Format: "logfmt", BufferSize: 10},
		Profiler: config.ProfilerConfig{MountPrefix: "/_profiler", CacheDir: t.TempDir()},
	}
	a, err := newViewerApp(cfg, dsn)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/_profiler/", rr.Header().Get("Location"))
	assert.Empty(t, rr.Header().Get(profiler.TokenHeader), "the viewer does not profile itself")

	rr = httptest.NewRecorder()
	a.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/_profiler/empty/search/results?limit=10", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "aaa111")
	assert.Contains(t, rr.Body.String(), "bbb222")
}
