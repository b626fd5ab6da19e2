package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func undoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Reverse the most recent organize action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			entry, err := p.Undo(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("undone: %s -> %s\n", entry.Destination, entry.Source)
			return nil
		},
	}
}

func redoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Re-apply the most recently undone organize action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			defer p.Close()

			entry, err := p.Redo(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("redone: %s -> %s\n", entry.Source, entry.Destination)
			return nil
		},
	}
}
