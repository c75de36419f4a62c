// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads qBitPuller settings from a TOML file with
// QBITPULLER__ environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/milouz1985/qBitPuller/internal/logger"
)

// QBittorrentConfig holds the download-client connection settings.
type QBittorrentConfig struct {
	Host       string   `mapstructure:"host"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	PulledTag  string   `mapstructure:"pulledTag"`
	Categories []string `mapstructure:"categories"`
	Timeout    int      `mapstructure:"timeout"` // seconds
}

// RcloneConfig holds the transfer settings for the pull subcommand.
type RcloneConfig struct {
	Remote  string `mapstructure:"remote"`
	SrcRoot string `mapstructure:"srcRoot"`
	Config  string `mapstructure:"config"`
	Timeout int    `mapstructure:"timeout"` // seconds per copy, 0 = unbounded
}

// ArrConfig holds the settings for one media-manager cleanup.
// HistorySinceDays only applies to path-mode inventories (Lidarr).
type ArrConfig struct {
	URL              string `mapstructure:"url"`
	APIKey           string `mapstructure:"apiKey"`
	Timeout          int    `mapstructure:"timeout"` // seconds
	Subdir           string `mapstructure:"subdir"`
	MinAgeMinutes    int    `mapstructure:"minAgeMinutes"`
	DryRun           bool   `mapstructure:"dryRun"`
	CleanEmptyDirs   bool   `mapstructure:"cleanEmptyDirs"`
	HistorySinceDays int    `mapstructure:"historySinceDays"`
}

// MinAge returns the minimum-age threshold as a duration.
func (a ArrConfig) MinAge() time.Duration {
	if a.MinAgeMinutes <= 0 {
		return 0
	}
	return time.Duration(a.MinAgeMinutes) * time.Minute
}

// HTTPTimeout returns the API timeout as a duration.
func (a ArrConfig) HTTPTimeout() time.Duration {
	if a.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.Timeout) * time.Second
}

// Config is the full application configuration.
type Config struct {
	LogLevel string `mapstructure:"logLevel"`
	LogPath  string `mapstructure:"logPath"`

	// DestRoot is the local staging area pulls land in and cleanups are
	// scoped to.
	DestRoot string `mapstructure:"destRoot"`

	// LockDir is where single-instance lock files live.
	LockDir string `mapstructure:"lockDir"`

	QBittorrent QBittorrentConfig `mapstructure:"qbittorrent"`
	Rclone      RcloneConfig      `mapstructure:"rclone"`
	Sonarr      ArrConfig         `mapstructure:"sonarr"`
	Lidarr      ArrConfig         `mapstructure:"lidarr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("logPath", "")
	v.SetDefault("lockDir", "/var/lock")

	// Empty defaults register the keys so environment-only values survive
	// Unmarshal.
	for _, key := range []string{
		"destRoot",
		"qbittorrent.host", "qbittorrent.username", "qbittorrent.password",
		"rclone.remote", "rclone.srcRoot", "rclone.config",
		"sonarr.url", "sonarr.apiKey",
		"lidarr.url", "lidarr.apiKey",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("qbittorrent.pulledTag", "pulled")
	v.SetDefault("qbittorrent.categories", []string{"radarr", "sonarr"})
	v.SetDefault("qbittorrent.timeout", 30)

	v.SetDefault("rclone.timeout", 0)

	for _, section := range []string{"sonarr", "lidarr"} {
		v.SetDefault(section+".timeout", 30)
		v.SetDefault(section+".subdir", section)
		v.SetDefault(section+".minAgeMinutes", 60)
		v.SetDefault(section+".dryRun", true)
		v.SetDefault(section+".cleanEmptyDirs", true)
	}
	v.SetDefault("lidarr.historySinceDays", 14)
}

// New reads configuration from configPath (or the default search locations
// when empty) plus QBITPULLER-prefixed environment variables. A missing
// config file
// is fine as long as the environment provides the required values; the log
// level follows config-file edits at runtime.
func New(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("/etc/qbitpuller")
		v.AddConfigPath("$HOME/.config/qbitpuller")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("QBITPULLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			if err := v.Unmarshal(cfg); err != nil {
				log.Error().Err(err).Msg("config reload failed")
				return
			}
			logger.SetLevel(cfg.LogLevel)
			log.Debug().Str("file", e.Name).Str("logLevel", cfg.LogLevel).Msg("config reloaded")
		})
		v.WatchConfig()
	}

	return cfg, nil
}

func requireValues(pairs map[string]string) error {
	var missing []string
	for key, val := range pairs {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidatePull checks the settings the pull subcommand needs.
func (c *Config) ValidatePull() error {
	return requireValues(map[string]string{
		"destRoot":             c.DestRoot,
		"qbittorrent.host":     c.QBittorrent.Host,
		"qbittorrent.username": c.QBittorrent.Username,
		"qbittorrent.password": c.QBittorrent.Password,
		"rclone.remote":        c.Rclone.Remote,
		"rclone.srcRoot":       c.Rclone.SrcRoot,
	})
}

// ValidateSonarr checks the settings the sonarr cleanup needs.
func (c *Config) ValidateSonarr() error {
	return requireValues(map[string]string{
		"destRoot":      c.DestRoot,
		"sonarr.url":    c.Sonarr.URL,
		"sonarr.apiKey": c.Sonarr.APIKey,
	})
}

// ValidateLidarr checks the settings the lidarr cleanup needs.
func (c *Config) ValidateLidarr() error {
	return requireValues(map[string]string{
		"destRoot":      c.DestRoot,
		"lidarr.url":    c.Lidarr.URL,
		"lidarr.apiKey": c.Lidarr.APIKey,
	})
}
