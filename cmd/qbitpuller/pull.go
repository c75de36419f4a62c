// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/milouz1985/qBitPuller/internal/config"
	"github.com/milouz1985/qBitPuller/internal/logger"
	"github.com/milouz1985/qBitPuller/internal/puller"
	"github.com/milouz1985/qBitPuller/internal/qbittorrent"
	"github.com/milouz1985/qBitPuller/internal/rclone"
	"github.com/milouz1985/qBitPuller/internal/singleinstance"
)

func RunPullCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Copy finished torrents from the seedbox into the local staging area",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			cfg, err := config.New(configPath)
			if err != nil {
				return err
			}
			logger.Setup(cfg.LogLevel, cfg.LogPath)

			if err := cfg.ValidatePull(); err != nil {
				return err
			}

			lock, err := singleinstance.Acquire(filepath.Join(cfg.LockDir, "qbitpuller.lock"))
			if err != nil {
				if errors.Is(err, singleinstance.ErrHeld) {
					log.Info().Msg("another pull is already running, exiting")
					return nil
				}
				return err
			}
			defer lock.Release()

			ctx := cmd.Context()

			client, err := qbittorrent.NewClient(ctx, qbittorrent.Config{
				Host:     cfg.QBittorrent.Host,
				Username: cfg.QBittorrent.Username,
				Password: cfg.QBittorrent.Password,
				Timeout:  time.Duration(cfg.QBittorrent.Timeout) * time.Second,
			})
			if err != nil {
				return err
			}

			copier := &rclone.Runner{
				Remote:     cfg.Rclone.Remote,
				SrcRoot:    cfg.Rclone.SrcRoot,
				ConfigPath: cfg.Rclone.Config,
				Timeout:    time.Duration(cfg.Rclone.Timeout) * time.Second,
			}

			svc := puller.NewService(client, copier, cfg.DestRoot, cfg.QBittorrent.Categories, cfg.QBittorrent.PulledTag)

			stats, err := svc.Run(ctx)
			if err != nil {
				return err
			}
			if stats.Failed > 0 {
				return errors.New("some transfers failed, see log for details")
			}
			return nil
		},
	}

	return cmd
}
