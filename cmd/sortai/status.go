package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	var watchFlag bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report pipeline counters, optionally streaming as they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			print := func() {
				snap := p.Snapshot()
				fmt.Printf("processed=%d queued=%d for-review=%d llm-mode=%s\n",
					snap.Processed, snap.Queued, snap.ForReview, p.Router.Mode())
			}
			print()
			if !watchFlag {
				return nil
			}

			ctx := cmd.Context()
			updates := p.Subscribe()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-updates:
					print()
				case <-time.After(5 * time.Second):
					print()
				}
			}
		},
	}
	cmd.Flags().BoolVar(&watchFlag, "watch", false, "keep printing as counters change")
	return cmd
}
