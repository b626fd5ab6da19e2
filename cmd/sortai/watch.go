package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sortai/sortai/internal/config"
	"github.com/sortai/sortai/internal/model"
	"github.com/sortai/sortai/internal/obs"
	"github.com/sortai/sortai/internal/pipeline"
	"github.com/sortai/sortai/internal/scan"
	"github.com/sortai/sortai/internal/watch"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a directory and organize new files once they stop changing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.EnableWatchMode {
				return fmt.Errorf("watch mode is disabled in config (enable_watch_mode: false)")
			}

			p, err := newPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			m, err := watch.New(obs.NewNamed("watch"), watch.Options{
				QuietPeriod: cfg.WatchQuietPeriod,
				QueueSize:   cfg.MaxQueueSize,
			})
			if err != nil {
				return err
			}
			defer m.Stop()

			ctx := cmd.Context()
			go func() {
				if err := m.Start(ctx, args[0]); err != nil && err != context.Canceled {
					fmt.Fprintln(cmd.ErrOrStderr(), "watch stopped:", err)
				}
			}()

			maintenance := time.NewTicker(6 * time.Hour)
			defer maintenance.Stop()

			fmt.Printf("watching %s (quiet period %s)\n", args[0], cfg.WatchQuietPeriod)
			for {
				select {
				case <-ctx.Done():
					return nil
				case entry, ok := <-m.Stable():
					if !ok {
						return nil
					}
					if err := organizeWatched(ctx, p, entry); err != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), "organize failed:", entry.Path, err)
					} else {
						fmt.Println("organized:", entry.Path)
					}
				case now := <-maintenance.C:
					runMaintenance(cmd, p, cfg, now)
				}
			}
		},
	}
	return cmd
}

func runMaintenance(cmd *cobra.Command, p *pipeline.Pipeline, cfg config.Config, now time.Time) {
	backupDir := filepath.Join(cfg.DataDir, "backups")
	if err := p.Maintain(now, cfg.MovementLogRetention, backupDir, cfg.BackupGenerations); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "maintenance failed:", err)
	}
}

func organizeWatched(ctx context.Context, p *pipeline.Pipeline, entry model.WatchQueueEntry) error {
	info, err := os.Stat(entry.Path)
	if err != nil {
		return err
	}
	ext := filepath.Ext(entry.Path)
	file := model.FileRecord{
		ID: entry.Path, Path: entry.Path, Size: info.Size(), ModTime: info.ModTime(),
		Ext: ext, Type: scan.ClassifyExtension(ext),
	}
	_, err = p.ClassifyAndRoute(ctx, file, time.Now())
	return err
}
