// Copyright (c) 2026, milouz1985 and the qBitPuller contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package rclone shells out to rclone to copy completed downloads off the
// seedbox. rclone is treated as a black box: a command line, an exit code,
// and a timeout.
package rclone

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strings"
	"time"

	"github.com/Hellseher/go-shellquote"
	"github.com/rs/zerolog/log"
)

// Runner invokes rclone copy against a configured remote.
type Runner struct {
	// Remote is the rclone remote name (without the trailing colon).
	Remote string

	// SrcRoot is the download root on the remote side. Torrent content
	// paths are rebased onto it.
	SrcRoot string

	// ConfigPath optionally points rclone at a specific config file.
	ConfigPath string

	// Timeout bounds a single copy invocation. Zero means no timeout.
	Timeout time.Duration

	// Binary overrides the rclone executable, mainly for tests.
	Binary string
}

// Source maps a torrent's content path on the seedbox to an rclone source.
// Paths under SrcRoot are used as-is; anything else falls back to the
// basename joined under SrcRoot, since the daemon may report paths from a
// different mount namespace.
func (r *Runner) Source(contentPath string) string {
	cp := strings.TrimRight(contentPath, "/")
	root := strings.TrimRight(r.SrcRoot, "/")

	switch {
	case cp == root:
		return r.Remote + ":" + root
	case strings.HasPrefix(cp, root+"/"):
		return r.Remote + ":" + cp
	default:
		return r.Remote + ":" + path.Join(root, path.Base(cp))
	}
}

// Copy runs rclone copy src dst, creating dst first. Combined output is
// captured; a non-zero exit or a timeout is returned as an error carrying
// the tail of rclone's output.
func (r *Runner) Copy(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create destination %s: %w", dst, err)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := []string{
		"copy", src, dst,
		"--transfers", "4",
		"--checkers", "8",
		"--retries", "5",
		"--retries-sleep", "10s",
		"--ignore-existing",
		"--log-level", "INFO",
	}
	if r.ConfigPath != "" {
		args = append(args, "--config", r.ConfigPath)
	}

	binary := r.Binary
	if binary == "" {
		binary = "rclone"
	}

	log.Info().Str("command", shellquote.Join(append([]string{binary}, args...)...)).Msg("running rclone copy")

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("rclone copy timed out after %s: %w", duration.Round(time.Second), ctx.Err())
		}
		exitCode := -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
		return fmt.Errorf("rclone copy failed (exit code %d): %s", exitCode, tail(output.String(), 2048))
	}

	log.Debug().Dur("duration", duration).Str("src", src).Str("dst", dst).Msg("rclone copy completed")
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
