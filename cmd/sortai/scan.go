package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sortai/sortai/internal/scan"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <directory>",
		Short: "Walk a directory and report what would be organized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			res, err := scan.Walk(cmd.Context(), args[0], scan.Options{FolderMinSize: cfg.ClusterMinSize})
			if err != nil {
				return err
			}

			fmt.Printf("%d loose files, %d folder units\n", len(res.Loose), len(res.Folders))
			for _, f := range res.Folders {
				fmt.Printf("  folder %-40s %3d files  dominant=%s\n", f.Path, len(f.Files), f.DominantType)
			}
			return nil
		},
	}
	return cmd
}
