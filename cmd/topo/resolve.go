package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <scene> <object> <element>",
	Short: "Resolve an element reference both ways",
	Long: `Resolve an element reference on an object's current shape.

The reference is an index name ("Face3"), a datum alias ("Plane"), a
durable-name reference (leading ";"), or a dotted subname path ending in
one of those. Index references synthesize durable names for wire, shell,
solid and compound elements on first encounter.

Examples:
  topo resolve model.yaml Fillet Face3
  topo resolve model.yaml Fillet ';Edge3;BOX;FLT:1'`,
	Args: cobra.ExactArgs(3),
	Run:  runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	logger := newLogger(cfg)

	doc, eng, err := buildScene(args[0], cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building scene: %v\n", err)
		os.Exit(1)
	}
	obj := mustObject(doc, args[1])

	me, owner, err := eng.ElementName(obj, args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving element: %v\n", err)
		os.Exit(1)
	}

	facts := elementFacts{
		Object:  owner.Name(),
		Element: args[2],
		Durable: string(me.Name),
		Index:   me.Index.String(),
	}
	output, err := FormatResponse(newResponse(doc.Name(), facts), OutputFormat(formatFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}
