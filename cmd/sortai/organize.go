package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/sortai/sortai/internal/model"
)

func organizeCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "organize <directory>",
		Short: "Scan a directory and file every confident match into the taxonomy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			ctx := cmd.Context()
			res, err := p.Scan(ctx, args[0])
			if err != nil {
				return err
			}

			var files []model.FileRecord
			files = append(files, res.Loose...)
			for _, folder := range res.Folders {
				files = append(files, folder.Files...)
			}

			if dryRun {
				fmt.Printf("dry run: %d files would be classified\n", len(files))
				return nil
			}

			bar := progressbar.Default(int64(len(files)), "organizing")
			now := time.Now
			organized := 0
			for _, f := range files {
				decision, err := p.ClassifyAndRoute(ctx, f, now())
				if err != nil {
					return fmt.Errorf("classifying %s: %w", f.Path, err)
				}
				if decision.Outcome != nil {
					organized++
				}
				_ = bar.Add(1)
			}
			snap := p.Snapshot()
			queued, review := snap.Queued, snap.ForReview

			results, err := p.RunPhase2(ctx, now())
			if err != nil {
				return err
			}
			organized += len(results)

			fmt.Printf("\norganized=%d phase2-followups=%d queued=%d for-review=%d\n", organized, len(results), queued, review)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would happen without moving files")
	return cmd
}
