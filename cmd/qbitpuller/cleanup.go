// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/milouz1985/qBitPuller/internal/arr"
	"github.com/milouz1985/qBitPuller/internal/cleanup"
	"github.com/milouz1985/qBitPuller/internal/config"
	"github.com/milouz1985/qBitPuller/internal/logger"
	"github.com/milouz1985/qBitPuller/internal/singleinstance"
)

func RunCleanupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete imported media from the staging area",
	}

	cmd.AddCommand(runCleanupSonarrCommand())
	cmd.AddCommand(runCleanupLidarrCommand())
	return cmd
}

func runCleanupSonarrCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sonarr",
		Short: "Delete staged episode files Sonarr has imported",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			cfg, err := config.New(configPath)
			if err != nil {
				return err
			}
			logger.Setup(cfg.LogLevel, cfg.LogPath)

			if err := cfg.ValidateSonarr(); err != nil {
				return err
			}

			arrCfg := cfg.Sonarr
			if cmd.Flags().Changed("dry-run") {
				arrCfg.DryRun = dryRun
			}

			fetch := func(ctx context.Context) (cleanup.Inventory, error) {
				client := arr.NewSonarr(arrCfg.URL, arrCfg.APIKey, arrCfg.HTTPTimeout())
				set, err := client.EpisodeFileIndex(ctx)
				if err != nil {
					return cleanup.Inventory{}, fmt.Errorf("fetch episode files: %w", err)
				}
				return cleanup.Inventory{Mode: cleanup.MatchFingerprint, Fingerprints: set}, nil
			}

			return runCleanup(cmd.Context(), cfg, arrCfg, "sonarr", fetch)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "Report what would be deleted without deleting")

	return cmd
}

func runCleanupLidarrCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "lidarr",
		Short: "Delete staged audio files Lidarr has imported",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			cfg, err := config.New(configPath)
			if err != nil {
				return err
			}
			logger.Setup(cfg.LogLevel, cfg.LogPath)

			if err := cfg.ValidateLidarr(); err != nil {
				return err
			}

			arrCfg := cfg.Lidarr
			if cmd.Flags().Changed("dry-run") {
				arrCfg.DryRun = dryRun
			}

			fetch := func(ctx context.Context) (cleanup.Inventory, error) {
				client := arr.NewLidarr(arrCfg.URL, arrCfg.APIKey, arrCfg.HTTPTimeout())
				since := time.Now().AddDate(0, 0, -arrCfg.HistorySinceDays)
				paths, err := client.ImportedPaths(ctx, since)
				if err != nil {
					return cleanup.Inventory{}, fmt.Errorf("fetch import history: %w", err)
				}
				return cleanup.Inventory{Mode: cleanup.MatchPath, Paths: paths}, nil
			}

			return runCleanup(cmd.Context(), cfg, arrCfg, "lidarr", fetch)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "Report what would be deleted without deleting")

	return cmd
}

// runCleanup holds the shared orchestration: take the per-target lock,
// validate the scan root before talking to the media manager, then fetch
// the inventory and run the engine against it.
func runCleanup(ctx context.Context, cfg *config.Config, arrCfg config.ArrConfig, name string, fetch func(context.Context) (cleanup.Inventory, error)) error {
	lock, err := singleinstance.Acquire(filepath.Join(cfg.LockDir, "qbitpuller-"+name+"-cleanup.lock"))
	if err != nil {
		if errors.Is(err, singleinstance.ErrHeld) {
			log.Info().Str("target", name).Msg("another cleanup is already running, exiting")
			return nil
		}
		return err
	}
	defer lock.Release()

	root := cfg.DestRoot
	if arrCfg.Subdir != "" {
		root = filepath.Join(cfg.DestRoot, arrCfg.Subdir)
	}

	eng, err := cleanup.New(cleanup.Config{
		Root:           root,
		MinAge:         arrCfg.MinAge(),
		DryRun:         arrCfg.DryRun,
		PruneEmptyDirs: arrCfg.CleanEmptyDirs,
	})
	if err != nil {
		return fmt.Errorf("scan root: %w", err)
	}

	inv, err := fetch(ctx)
	if err != nil {
		return err
	}

	if _, err := eng.Run(ctx, inv); err != nil {
		return err
	}
	return nil
}
