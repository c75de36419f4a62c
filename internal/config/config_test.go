// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewDefaults(t *testing.T) {
	cfg, err := New(writeConfig(t, `destRoot = "/dest"`))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "/dest", cfg.DestRoot)
	assert.Equal(t, "pulled", cfg.QBittorrent.PulledTag)
	assert.Equal(t, []string{"radarr", "sonarr"}, cfg.QBittorrent.Categories)

	for name, arr := range map[string]ArrConfig{"sonarr": cfg.Sonarr, "lidarr": cfg.Lidarr} {
		assert.Equal(t, name, arr.Subdir)
		assert.Equal(t, 60, arr.MinAgeMinutes)
		assert.True(t, arr.DryRun, "%s dry-run must default on", name)
		assert.True(t, arr.CleanEmptyDirs)
		assert.Equal(t, 30*time.Second, arr.HTTPTimeout())
		assert.Equal(t, time.Hour, arr.MinAge())
	}
	assert.Equal(t, 14, cfg.Lidarr.HistorySinceDays)
}

func TestNewReadsAllSections(t *testing.T) {
	cfg, err := New(writeConfig(t, `
destRoot = "/mnt/staging"
logLevel = "debug"

[qbittorrent]
host = "http://localhost:8080"
username = "admin"
password = "hunter2"
categories = ["radarr"]

[rclone]
remote = "seedbox"
srcRoot = "/downloads"
config = "/etc/rclone.conf"
timeout = 3600

[sonarr]
url = "http://localhost:8989"
apiKey = "abc"
minAgeMinutes = 120
dryRun = false

[lidarr]
url = "http://localhost:8686"
apiKey = "def"
historySinceDays = 7
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "hunter2", cfg.QBittorrent.Password)
	assert.Equal(t, []string{"radarr"}, cfg.QBittorrent.Categories)
	assert.Equal(t, 3600, cfg.Rclone.Timeout)
	assert.Equal(t, 2*time.Hour, cfg.Sonarr.MinAge())
	assert.False(t, cfg.Sonarr.DryRun)
	assert.Equal(t, 7, cfg.Lidarr.HistorySinceDays)

	require.NoError(t, cfg.ValidatePull())
	require.NoError(t, cfg.ValidateSonarr())
	require.NoError(t, cfg.ValidateLidarr())
}

func TestNewEnvOverride(t *testing.T) {
	t.Setenv("QBITPULLER_DESTROOT", "/from/env")
	t.Setenv("QBITPULLER_SONARR__APIKEY", "env-key")

	cfg, err := New(writeConfig(t, `
destRoot = "/from/file"

[sonarr]
url = "http://localhost:8989"
apiKey = "file-key"
`))
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.DestRoot)
	assert.Equal(t, "env-key", cfg.Sonarr.APIKey)
}

func TestNewMissingExplicitFileFails(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidateReportsMissingKeys(t *testing.T) {
	cfg, err := New(writeConfig(t, `logLevel = "info"`))
	require.NoError(t, err)

	err = cfg.ValidateSonarr()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destRoot")
	assert.Contains(t, err.Error(), "sonarr.apiKey")
	assert.Contains(t, err.Error(), "sonarr.url")

	err = cfg.ValidatePull()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qbittorrent.host")
	assert.Contains(t, err.Error(), "rclone.remote")
}

func TestValidateLidarr(t *testing.T) {
	cfg, err := New(writeConfig(t, `
destRoot = "/dest"

[lidarr]
url = "http://localhost:8686"
`))
	require.NoError(t, err)

	err = cfg.ValidateLidarr()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lidarr.apiKey")
}
