// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package qbittorrent wraps the go-qbittorrent client with the small surface
// the puller needs: authenticated torrent listing and tagging.
package qbittorrent

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
)

// contentPath on torrents was introduced with WebAPI 2.8.2; older daemons
// force the puller onto its basename fallback when mapping source paths.
var minContentPathVersion = semver.MustParse("2.8.2")

// Config holds the connection settings for one qBittorrent instance.
type Config struct {
	Host     string
	Username string
	Password string
	Timeout  time.Duration
}

// Client is an authenticated qBittorrent connection.
type Client struct {
	*qbt.Client
	webAPIVersion       string
	supportsContentPath bool
}

// NewClient connects and logs in, retrying transient login failures. The
// WebAPI version is probed once so callers can adapt to older daemons.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	qbtClient := qbt.NewClient(qbt.Config{
		Host:     cfg.Host,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  int(timeout.Seconds()),
	})

	err := retry.Do(
		func() error { return qbtClient.LoginCtx(ctx) },
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("login to qBittorrent at %s: %w", cfg.Host, err)
	}

	webAPIVersion, err := qbtClient.GetWebAPIVersionCtx(ctx)
	if err != nil {
		webAPIVersion = ""
	}

	supportsContentPath := false
	if webAPIVersion != "" {
		if v, err := semver.NewVersion(webAPIVersion); err == nil {
			supportsContentPath = !v.LessThan(minContentPathVersion)
		}
	}

	log.Debug().
		Str("host", cfg.Host).
		Str("webAPIVersion", webAPIVersion).
		Bool("supportsContentPath", supportsContentPath).
		Msg("qBittorrent client connected")

	return &Client{
		Client:              qbtClient,
		webAPIVersion:       webAPIVersion,
		supportsContentPath: supportsContentPath,
	}, nil
}

// Torrents returns every torrent the daemon knows about; filtering happens
// in the puller so one listing serves all categories.
func (c *Client) Torrents(ctx context.Context) ([]qbt.Torrent, error) {
	torrents, err := c.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{})
	if err != nil {
		return nil, fmt.Errorf("list torrents: %w", err)
	}
	return torrents, nil
}

// AddTags tags the given torrents, retrying transient failures.
func (c *Client) AddTags(ctx context.Context, hashes []string, tags string) error {
	err := retry.Do(
		func() error { return c.AddTagsCtx(ctx, hashes, tags) },
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("add tags %q: %w", tags, err)
	}
	return nil
}

// SupportsContentPath reports whether the daemon exposes content_path on
// torrents.
func (c *Client) SupportsContentPath() bool {
	return c.supportsContentPath
}

// WebAPIVersion returns the probed WebAPI version, empty when unknown.
func (c *Client) WebAPIVersion() string {
	return c.webAPIVersion
}
