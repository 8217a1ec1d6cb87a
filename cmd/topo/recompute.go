package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"topo/internal/store"
)

var recomputeSave bool

var recomputeCmd = &cobra.Command{
	Use:   "recompute <scene>",
	Short: "Build a scene and run the recompute pipeline",
	Long: `Build the document a scene declares and run every feature's execute
step in dependency order, reporting the mapped-name count per feature. A
failing feature skips its dependents; the sweep still covers independent
branches.

Examples:
  topo recompute model.yaml
  topo recompute --save model.yaml`,
	Args: cobra.ExactArgs(1),
	Run:  runRecompute,
}

func init() {
	recomputeCmd.Flags().BoolVar(&recomputeSave, "save", false, "Persist the document to the store")
	rootCmd.AddCommand(recomputeCmd)
}

func runRecompute(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	logger := newLogger(cfg)

	doc, _, err := buildScene(args[0], cfg, logger)
	if err != nil && doc == nil {
		fmt.Fprintf(os.Stderr, "Error building scene: %v\n", err)
		os.Exit(1)
	}

	facts := recomputeFacts{}
	for _, o := range doc.Objects() {
		of := objectFacts{Name: o.Name(), Op: o.Op.Code, Error: o.ExecError}
		if o.Link != nil {
			of.Op = ""
			of.Link = o.Link.Name()
		}
		if s := o.Shape(); !s.IsNull() {
			of.Mapped = s.Map().Len()
		}
		facts.Objects = append(facts.Objects, of)
	}

	if recomputeSave {
		st, err := store.Open(cfg.Store.Path, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()
		if err := st.SaveDocument(doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving document: %v\n", err)
			os.Exit(1)
		}
		facts.Saved = true
	}

	output, err := FormatResponse(newResponse(doc.Name(), facts), OutputFormat(formatFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}
