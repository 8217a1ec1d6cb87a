package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"topo/internal/config"
	"topo/internal/document"
	"topo/internal/feature"
	"topo/internal/kernel"
	"topo/internal/logging"
	"topo/internal/scene"
	"topo/internal/version"
)

var (
	// formatFlag is the CLI --format flag value
	formatFlag string
	configDir  string
)

var rootCmd = &cobra.Command{
	Use:   "topo",
	Short: "topo - persistent topological naming engine",
	Long: `topo maintains durable names for the sub-elements of B-rep shapes across
model rebuilds. Kernel-assigned indices like Face3 are unstable; topo overlays
content-derived names that survive rebuilds, traces element lineage through
the feature history, and re-finds elements after topology changes.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("topo version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "human", "Output format (json, human)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory holding topo.toml")
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Format: logging.Format(cfg.Logging.Format),
	})
}

// buildScene loads a scene file, materializes its document and runs the
// recompute pipeline against the synthetic kernel.
func buildScene(path string, cfg *config.Config, logger *logging.Logger) (*document.Document, *feature.Engine, error) {
	sc, err := scene.Load(path)
	if err != nil {
		return nil, nil, err
	}
	doc, err := sc.Build(logger)
	if err != nil {
		return nil, nil, err
	}
	cache := feature.NewCache(cfg.Cache.MaxEntries, logger)
	cache.Attach(doc)
	eng := feature.NewEngine(kernel.NewSynthetic(), cache, cfg, logger)
	// The document is returned even when the recompute failed, so the
	// recompute command can report the per-feature state.
	err = doc.Recompute(eng)
	return doc, eng, err
}

// mustObject resolves an object by name or exits.
func mustObject(doc *document.Document, name string) *document.Object {
	o := doc.ObjectByName(name)
	if o == nil {
		fmt.Fprintf(os.Stderr, "Error: no object %q in document %q\n", name, doc.Name())
		os.Exit(1)
	}
	return o
}
