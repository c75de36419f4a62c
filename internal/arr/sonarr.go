// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package arr

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/milouz1985/qBitPuller/internal/cleanup"
)

// Sonarr fetches the episode-file inventory over the v3 API.
type Sonarr struct {
	c *client
}

// NewSonarr creates a Sonarr client for baseURL (without the /api/v3 suffix).
func NewSonarr(baseURL, apiKey string, timeout time.Duration) *Sonarr {
	return &Sonarr{c: newClient(baseURL, apiKey, timeout)}
}

type series struct {
	ID *int64 `json:"id"`
}

type episodeFile struct {
	Path string `json:"path"`
	Size *int64 `json:"size"`
}

// EpisodeFileIndex builds the (basename, size) fingerprint set of every
// episode file Sonarr has in its library. Records with missing fields are
// skipped; a fetch failure is fatal for the run.
func (s *Sonarr) EpisodeFileIndex(ctx context.Context) (*cleanup.FingerprintSet, error) {
	var all []series
	if err := s.c.get(ctx, "api/v3/series", nil, &all); err != nil {
		return nil, fmt.Errorf("fetch series: %w", err)
	}

	index := cleanup.NewFingerprintSet()
	for _, sr := range all {
		if sr.ID == nil {
			continue
		}

		params := url.Values{"seriesId": []string{strconv.FormatInt(*sr.ID, 10)}}
		var files []episodeFile
		if err := s.c.get(ctx, "api/v3/episodefile", params, &files); err != nil {
			return nil, fmt.Errorf("fetch episode files for series %d: %w", *sr.ID, err)
		}

		for _, f := range files {
			if f.Path == "" || f.Size == nil {
				continue
			}
			index.Add(f.Path, *f.Size)
		}
	}

	log.Debug().Int("fingerprints", index.Len()).Msg("built sonarr episode-file index")
	return index, nil
}
