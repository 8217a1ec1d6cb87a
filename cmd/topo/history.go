package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	historyRecursive bool
	historySameType  bool
)

var historyCmd = &cobra.Command{
	Use:   "history <scene> <object> <element>",
	Short: "Trace an element's lineage through the feature history",
	Long: `Trace a durable name back through the features that produced it,
newest first. The walk ends at an origin element, at a feature that no
longer exists, or when the lineage loops; the last two are reported as
lineage lost.

Examples:
  topo history model.yaml Fillet Face7
  topo history --same-type model.yaml Fuse Edge2`,
	Args: cobra.ExactArgs(3),
	Run:  runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyRecursive, "recursive", true, "Follow lineage across features")
	historyCmd.Flags().BoolVar(&historySameType, "same-type", false, "Stop when the element kind changes")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	logger := newLogger(cfg)

	doc, eng, err := buildScene(args[0], cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building scene: %v\n", err)
		os.Exit(1)
	}
	obj := mustObject(doc, args[1])

	items, err := eng.ElementHistory(obj, args[2], historyRecursive, historySameType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error tracing history: %v\n", err)
		os.Exit(1)
	}

	facts := historyFacts{
		Object:  obj.Name(),
		Element: args[2],
		Items:   historyStepsOf(items),
	}
	output, err := FormatResponse(newResponse(doc.Name(), facts), OutputFormat(formatFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}
