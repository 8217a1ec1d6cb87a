package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"topo/internal/logging"
	"topo/internal/store"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage saved documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved documents",
	Args:  cobra.NoArgs,
	Run:   runDocsList,
}

var docsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a saved document's features and mapped-name counts",
	Args:  cobra.ExactArgs(1),
	Run:   runDocsShow,
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved document",
	Args:  cobra.ExactArgs(1),
	Run:   runDocsDelete,
}

func init() {
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsShowCmd)
	docsCmd.AddCommand(docsDeleteCmd)
	rootCmd.AddCommand(docsCmd)
}

func openStore() (*store.Store, *logging.Logger, func()) {
	cfg := loadConfig()
	logger := newLogger(cfg)
	st, err := store.Open(cfg.Store.Path, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	return st, logger, func() { _ = st.Close() }
}

func runDocsList(cmd *cobra.Command, args []string) {
	st, _, closeStore := openStore()
	defer closeStore()

	names, err := st.ListDocuments()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing documents: %v\n", err)
		os.Exit(1)
	}
	if len(names) == 0 {
		fmt.Println("no saved documents")
		return
	}
	fmt.Println(strings.Join(names, "\n"))
}

func runDocsShow(cmd *cobra.Command, args []string) {
	st, logger, closeStore := openStore()
	defer closeStore()

	doc, err := st.LoadDocument(args[0], logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading document: %v\n", err)
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
	output, err := FormatResponse(newResponse(doc.Name(), facts), OutputFormat(formatFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}

func runDocsDelete(cmd *cobra.Command, args []string) {
	st, _, closeStore := openStore()
	defer closeStore()

	if err := st.DeleteDocument(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting document: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("deleted %s\n", args[0])
}
