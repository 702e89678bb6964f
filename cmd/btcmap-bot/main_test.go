package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcmap-bot/internal/bot"
	"btcmap-bot/internal/btcmap"
)

const geo = `{"type":"Polygon","coordinates":[[[10,0],[20,0],[20,5],[10,5],[10,0]]]}`

func apiServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/areas/testville":
			_, _ = w.Write([]byte(`{"id":"testville","tags":{"name":"Testville","geo_json":` + geo + `}}`))
		case "/v2/areas/flatland":
			_, _ = w.Write([]byte(`{"id":"flatland","tags":{"name":"Flatland"}}`))
		case "/v2/events":
			_, _ = w.Write([]byte(`[{"type":"create","element_id":"node:42","created_at":"2099-01-01T00:00:00Z"}]`))
		case "/v2/elements/node:42":
			_, _ = w.Write([]byte(`{"id":"42","osm_json":{"lon":15,"lat":2,"tags":{"name":"Coffee Shop"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeConfig points the bot at srv and makes the publisher append each message to a file.
func writeConfig(t *testing.T, srv *httptest.Server, publishExit int) (cfgPath, statePath, published string) {
	t.Helper()
	dir := t.TempDir()
	statePath = filepath.Join(dir, "watermark")
	published = filepath.Join(dir, "published")
	cfg := fmt.Sprintf(`
api:
  base_url: %s
  timeout: 2s
state:
  path: %s
publish:
  command: sh
  args: ["-c", "printf '%%s\\n' \"$1\" >> \"$0\"; exit %d", %q]
  timeout: 5s
`, srv.URL, statePath, publishExit, published)
	cfgPath = filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, statePath, published
}

func TestRunUsage(t *testing.T) {
	for _, args := range [][]string{nil, {"-h"}, {"a", "b"}, {"-nope", "a"}, {"testville", "-h"}} {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), args, &stdout, &stderr)
		assert.Equal(t, exitUsage, code, "%v", args)
		assert.Contains(t, stderr.String(), "Usage: btcmap-bot", "%v", args)
	}
}

func TestRunPublishesAndCommits(t *testing.T) {
	srv := apiServer(t)
	cfgPath, statePath, published := writeConfig(t, srv, 0)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", cfgPath, "testville"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	assert.Contains(t, stdout.String(), "Found 1 new local businesses in Testville since")
	b, err := os.ReadFile(published)
	require.NoError(t, err)
	assert.Equal(t, "A new business accepting Bitcoin in Testville! Coffee Shop https://btcmap.org/merchant/42\n", string(b))

	wm, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(string(wm)))
}

func TestRunPublishFailureStillCommits(t *testing.T) {
	srv := apiServer(t)
	cfgPath, statePath, _ := writeConfig(t, srv, 1)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", cfgPath, "testville"}, &stdout, &stderr)
	assert.Equal(t, exitOK, code)
	assert.FileExists(t, statePath)
	assert.Contains(t, stderr.String(), "publish failed")
}

func TestRunNoBoundaryData(t *testing.T) {
	srv := apiServer(t)
	cfgPath, statePath, _ := writeConfig(t, srv, 0)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", cfgPath, "flatland"}, &stdout, &stderr)
	assert.Equal(t, exitFatal, code)
	assert.Equal(t, "Community 'flatland' does not have GeoJSON data\n", stdout.String())
	assert.NoFileExists(t, statePath)
}

func TestRunUnknownCommunity(t *testing.T) {
	srv := apiServer(t)
	cfgPath, _, _ := writeConfig(t, srv, 0)
	override := filepath.Join(t.TempDir(), "other-watermark")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", cfgPath, "-state", override, "atlantis"}, &stdout, &stderr)
	assert.Equal(t, exitFatal, code)
	assert.Equal(t, "Community 'atlantis' does not exist\n", stdout.String())
	assert.NoFileExists(t, override)
}

func TestRunBadConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", filepath.Join(t.TempDir(), "missing.yml"), "testville"}, &stdout, &stderr)
	assert.Equal(t, exitFatal, code)
	assert.True(t, strings.HasPrefix(stdout.String(), "Invalid configuration:"))
}

func TestDiagnostic(t *testing.T) {
	cases := map[error]string{
		fmt.Errorf("%w: GET x: http 404", btcmap.ErrCommunityNotFound):      "Community 'x' does not exist",
		fmt.Errorf("%w: dial tcp: refused", btcmap.ErrCommunityNotFound):    "Community 'x' does not exist",
		fmt.Errorf("%w: %w", btcmap.ErrNoBoundaryData, errors.New("empty")): "Community 'x' does not have GeoJSON data",
		fmt.Errorf("%w: boom\nline two", btcmap.ErrFeedFetch):               "Could not fetch events: event feed fetch failed: boom line two",
		fmt.Errorf("%w: node:1: boom", btcmap.ErrElementFetch):              "Could not fetch element: element fetch failed: node:1: boom",
		fmt.Errorf("%w: disk", bot.ErrLoadWatermark):                        "Could not load watermark: load watermark: disk",
		fmt.Errorf("%w: disk", bot.ErrCommitWatermark):                      "Could not save watermark: commit watermark: disk",
		context.Canceled: "Interrupted",
		fmt.Errorf("%w: %w", btcmap.ErrFeedFetch, context.Canceled):         "Interrupted",
		fmt.Errorf("%w: node:1: %w", btcmap.ErrElementFetch, context.Canceled): "Interrupted",
	}
	for err, want := range cases {
		assert.Equal(t, want, diagnostic(err, "x"))
	}
}
