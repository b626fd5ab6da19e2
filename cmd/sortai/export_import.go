package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sortai/sortai/internal/store"
)

func exportCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a portable JSON archive of the learned taxonomy, graph, and history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := store.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer db.Close()

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			manifest, err := db.Export(out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d entities, %d relationships, %d patterns, %d feedback items, %d movements\n",
				manifest.EntityCount, manifest.RelationCount, manifest.PatternCount, manifest.FeedbackCount, manifest.MovementCount)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "file to write the archive to (default: stdout)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <archive.json>",
		Short: "Load a previously exported archive, upserting into the current store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := store.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer db.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if err := db.Import(f); err != nil {
				return err
			}
			fmt.Println("import complete")
			return nil
		},
	}
	return cmd
}
