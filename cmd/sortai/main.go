// Command sortai is SortAI's CLI entrypoint (§10): a thin Cobra driver
// over the pipeline package, in the same spirit as wingthing's cmd/wt
// and codeNERD's cmd/nerd command trees.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sortai/sortai/internal/config"
	"github.com/sortai/sortai/internal/obs"
	"github.com/sortai/sortai/internal/pipeline"
)

var (
	configPath      string
	dataDirFlag     string
	destinationRoot string
	verbose         bool
)

func main() {
	root := &cobra.Command{
		Use:   "sortai",
		Short: "sortai — local-first file organization engine",
		Long:  "Watches, scores, and files your messy folders into a taxonomy you control, without ever deleting your files.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "override the configured data directory")
	root.PersistentFlags().StringVar(&destinationRoot, "destination", "", "root directory files are organized into")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "force console-format logs even when SORTAI_LOG_FORMAT=json")

	root.AddCommand(scanCmd(), organizeCmd(), watchCmd(), undoCmd(), redoCmd(), exportCmd(), importCmd(), statusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if verbose {
		os.Setenv("SORTAI_LOG_FORMAT", "")
	}
	return cfg, cfg.Validate()
}

func newPipeline() (*pipeline.Pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dest := destinationRoot
	if dest == "" {
		dest = cfg.CustomDestinationPath
	}
	return pipeline.New(obs.New(), cfg, pipeline.Options{DestinationRoot: dest})
}
