// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package puller moves completed downloads from the seedbox into the local
// staging area: it selects finished, untagged torrents in the watched
// categories, copies their content with rclone, then tags them so they are
// never pulled twice.
package puller

import (
	"context"
	"path/filepath"
	"strings"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog/log"
)

// TorrentClient is the slice of the qBittorrent client the puller consumes.
type TorrentClient interface {
	Torrents(ctx context.Context) ([]qbt.Torrent, error)
	AddTags(ctx context.Context, hashes []string, tags string) error
	SupportsContentPath() bool
}

// Copier is the transfer collaborator, satisfied by rclone.Runner.
type Copier interface {
	Source(contentPath string) string
	Copy(ctx context.Context, src, dst string) error
}

// Stats summarizes one pull run.
type Stats struct {
	Eligible int
	Pulled   int
	Failed   int
}

// Service orchestrates one pull pass.
type Service struct {
	client     TorrentClient
	copier     Copier
	destRoot   string
	categories map[string]struct{}
	pulledTag  string
}

// NewService wires a pull service. Torrents outside categories are ignored;
// pulledTag marks completed transfers.
func NewService(client TorrentClient, copier Copier, destRoot string, categories []string, pulledTag string) *Service {
	cats := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		if c = strings.TrimSpace(c); c != "" {
			cats[c] = struct{}{}
		}
	}
	return &Service{
		client:     client,
		copier:     copier,
		destRoot:   destRoot,
		categories: cats,
		pulledTag:  pulledTag,
	}
}

// Run lists torrents, pulls every completed untagged one in the watched
// categories, and tags successes. A listing failure is fatal; per-torrent
// copy or tag failures are logged and skip only that torrent.
func (s *Service) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	torrents, err := s.client.Torrents(ctx)
	if err != nil {
		return stats, err
	}

	wanted := make([]qbt.Torrent, 0, len(torrents))
	for _, t := range torrents {
		if _, ok := s.categories[strings.TrimSpace(t.Category)]; !ok {
			continue
		}
		if t.Progress < 1.0 {
			continue
		}
		if hasTag(t.Tags, s.pulledTag) {
			continue
		}
		wanted = append(wanted, t)
	}
	stats.Eligible = len(wanted)

	if len(wanted) == 0 {
		log.Info().Msg("nothing to pull")
		return stats, nil
	}
	log.Info().Int("count", len(wanted)).Msg("torrents to pull")

	for _, t := range wanted {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		if t.Hash == "" {
			log.Warn().Str("name", t.Name).Msg("skipping torrent without hash")
			continue
		}

		contentPath := t.ContentPath
		if contentPath == "" || !s.client.SupportsContentPath() {
			contentPath = t.Name
		}

		src := s.copier.Source(contentPath)
		dst := filepath.Join(s.destRoot, t.Category, t.Name)

		log.Info().Str("category", t.Category).Str("name", t.Name).Str("src", src).Msg("pulling torrent")
		if err := s.copier.Copy(ctx, src, dst); err != nil {
			stats.Failed++
			log.Error().Err(err).Str("name", t.Name).Msg("pull failed")
			continue
		}

		// The tag is the only thing preventing a re-pull, so a tagging
		// failure leaves this torrent for the next run instead of counting
		// it as pulled.
		if err := s.client.AddTags(ctx, []string{t.Hash}, s.pulledTag); err != nil {
			stats.Failed++
			log.Error().Err(err).Str("name", t.Name).Msg("failed to tag pulled torrent")
			continue
		}

		stats.Pulled++
		log.Info().Str("name", t.Name).Str("tag", s.pulledTag).Msg("torrent pulled and tagged")
	}

	log.Info().
		Int("eligible", stats.Eligible).
		Int("pulled", stats.Pulled).
		Int("failed", stats.Failed).
		Msg("pull run complete")

	return stats, nil
}

func hasTag(tags, want string) bool {
	for _, tag := range strings.Split(tags, ",") {
		if strings.TrimSpace(tag) == want {
			return true
		}
	}
	return false
}
