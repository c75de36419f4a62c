// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package arr

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// eventDownloadFolderImported is the Lidarr history event emitted when a
// download has been imported into the library.
const eventDownloadFolderImported = "downloadFolderImported"

// Lidarr fetches the import history over the v1 API.
type Lidarr struct {
	c *client
}

// NewLidarr creates a Lidarr client for baseURL (without the /api/v1 suffix).
func NewLidarr(baseURL, apiKey string, timeout time.Duration) *Lidarr {
	return &Lidarr{c: newClient(baseURL, apiKey, timeout)}
}

type historyRecord struct {
	Data struct {
		DroppedPath string `json:"droppedPath"`
		SourcePath  string `json:"sourcePath"`
	} `json:"data"`
}

// ImportedPaths returns the deduplicated, sorted source paths of downloads
// Lidarr imported since the given time. Records without a usable path are
// skipped; a fetch failure is fatal for the run.
func (l *Lidarr) ImportedPaths(ctx context.Context, since time.Time) ([]string, error) {
	params := url.Values{
		"date":      []string{since.UTC().Format(time.RFC3339)},
		"eventType": []string{eventDownloadFolderImported},
	}

	var records []historyRecord
	if err := l.c.get(ctx, "api/v1/history/since", params, &records); err != nil {
		return nil, fmt.Errorf("fetch import history: %w", err)
	}

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		src := rec.Data.DroppedPath
		if src == "" {
			src = rec.Data.SourcePath
		}
		if src == "" {
			continue
		}
		seen[src] = struct{}{}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	log.Debug().Int("paths", len(paths)).Time("since", since).Msg("fetched lidarr import history")
	return paths, nil
}
