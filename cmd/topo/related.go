package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	relatedSameType bool
	relatedNoCache  bool
)

var relatedCmd = &cobra.Command{
	Use:   "related <scene> <object> <element>",
	Short: "Find elements sharing lineage with a reference",
	Long: `Find every mapped element of an object's shape sharing the deepest
ancestor lineage with the referenced element. A stale durable reference
that no longer resolves directly still finds its successors this way.

Examples:
  topo related model.yaml Fillet Edge3
  topo related --same-type model.yaml Fillet ';Edge3;BOX'`,
	Args: cobra.ExactArgs(3),
	Run:  runRelated,
}

func init() {
	relatedCmd.Flags().BoolVar(&relatedSameType, "same-type", false, "Only elements of the referenced kind")
	relatedCmd.Flags().BoolVar(&relatedNoCache, "no-cache", false, "Bypass the per-shape result memo")
	rootCmd.AddCommand(relatedCmd)
}

func runRelated(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	logger := newLogger(cfg)

	doc, eng, err := buildScene(args[0], cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building scene: %v\n", err)
		os.Exit(1)
	}
	obj := mustObject(doc, args[1])

	matches, err := eng.RelatedElements(obj, args[2], relatedSameType, !relatedNoCache)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error searching related elements: %v\n", err)
		os.Exit(1)
	}

	facts := matchFacts{
		Object:  obj.Name(),
		Query:   args[2],
		Matches: matchesOf(obj.Name(), matches),
	}
	output, err := FormatResponse(newResponse(doc.Name(), facts), OutputFormat(formatFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}
