package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "v1", cfg.Version)
	assert.Equal(t, "vacation-tracker-", cfg.CachePrefix)
	assert.Equal(t, "vacation-tracker-v1", cfg.SnapshotName())
	assert.Equal(t, []string{
		"index.html",
		"style.css",
		"app.js",
		"vacationTracker.json",
		"assets/icons/icon-512X512.png",
	}, cfg.Manifest)
	assert.Equal(t, "/index.html", cfg.OfflineDocument)
	assert.Equal(t, ModeSimulate, cfg.Delivery.Mode)
	assert.Equal(t, 0.5, cfg.Delivery.SuccessRate)
	assert.True(t, cfg.Delivery.Deferred)
	assert.Equal(t, "vacation-sync", cfg.Delivery.Tag)
	assert.Equal(t, 10*time.Second, cfg.Delivery.TimeoutDuration())
	assert.Equal(t, 30*time.Second, cfg.Connectivity.IntervalDuration())

	m, err := cfg.AssetManifest()
	require.NoError(t, err)
	assert.Equal(t, "/index.html", m.Paths[0])
}

func TestLoad_YAMLOverrides(t *testing.T) {
	path := writeFile(t, "vacatrack.yaml", `
version: v7
origin: http://assets.example
manifest:
  - index.html
  - app.js
delivery:
  mode: http
  endpoint: http://acceptor.example/vacations
  success_rate: 1
  deferred: false
  timeout: 2s
connectivity:
  interval: 250ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "vacation-tracker-v7", cfg.SnapshotName())
	assert.Equal(t, "http://assets.example", cfg.Origin)
	assert.Equal(t, []string{"index.html", "app.js"}, cfg.Manifest)
	assert.Equal(t, ModeHTTP, cfg.Delivery.Mode)
	assert.Equal(t, "http://acceptor.example/vacations", cfg.Delivery.Endpoint)
	assert.Equal(t, 1.0, cfg.Delivery.SuccessRate)
	assert.False(t, cfg.Delivery.Deferred)
	assert.Equal(t, 2*time.Second, cfg.Delivery.TimeoutDuration())
	assert.Equal(t, 250*time.Millisecond, cfg.Connectivity.IntervalDuration())
	// Untouched fields keep their defaults.
	assert.Equal(t, "vacation-sync", cfg.Delivery.Tag)
}

func TestLoad_CUE(t *testing.T) {
	path := writeFile(t, "vacatrack.cue", `
version: "v2"
delivery: seed: 42
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", cfg.Version)
	assert.Equal(t, uint64(42), cfg.Delivery.Seed)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Version, cfg.Version)
}

func TestLoad_ManifestFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"),
		[]byte(`["index.html", "offline.css"]`), 0o644))
	path := filepath.Join(dir, "vacatrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("manifest_file: manifest.json\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html", "offline.css"}, cfg.Manifest)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unknown field", "c.yaml", "colour: blue\n", "colour"},
		{"unknown nested field", "c.yaml", "delivery:\n  retries: 3\n", "retries"},
		{"empty version", "c.yaml", "version: \"\"\n", "version"},
		{"bad mode", "c.yaml", "delivery:\n  mode: carrier-pigeon\n", "mode"},
		{"rate out of range", "c.yaml", "delivery:\n  success_rate: 1.5\n", "success_rate"},
		{"bad duration", "c.yaml", "delivery:\n  timeout: soon\n", "delivery.timeout"},
		{"http without endpoint", "c.yaml", "delivery:\n  mode: http\n", "delivery.endpoint"},
		{"duplicate manifest path", "c.yaml", "manifest: [a.js, /a.js]\n", "duplicate"},
		{"malformed yaml", "c.yaml", "version: [\n", "parse"},
		{"cue type error", "c.cue", "listen: 8080\n", "listen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
