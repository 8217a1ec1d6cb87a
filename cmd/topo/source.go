package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sourceSingle bool

var sourceCmd = &cobra.Command{
	Use:   "source <scene> <object> <src-object> <src-element>",
	Short: "Find the element corresponding to one referenced upstream",
	Long: `Find, on an object's shape, the element(s) corresponding to an element
referenced on an upstream feature. Three search stages run in cost order:
durable-name shortcut, geometric congruence, exhaustive lineage scan.

Examples:
  topo source model.yaml Fillet Box Face1
  topo source --single model.yaml Fuse Box Edge3`,
	Args: cobra.ExactArgs(4),
	Run:  runSource,
}

func init() {
	sourceCmd.Flags().BoolVar(&sourceSingle, "single", false, "Return only the first match")
	rootCmd.AddCommand(sourceCmd)
}

func runSource(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	logger := newLogger(cfg)

	doc, eng, err := buildScene(args[0], cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building scene: %v\n", err)
		os.Exit(1)
	}
	obj := mustObject(doc, args[1])
	src := mustObject(doc, args[2])

	matches, err := eng.ElementFromSource(obj, "", src, args[3], sourceSingle)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error searching correspondence: %v\n", err)
		os.Exit(1)
	}

	facts := matchFacts{
		Object:  obj.Name(),
		Query:   args[2] + "." + args[3],
		Matches: matchesOf(obj.Name(), matches),
	}
	output, err := FormatResponse(newResponse(doc.Name(), facts), OutputFormat(formatFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}
