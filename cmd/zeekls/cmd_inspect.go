package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.lsp.dev/uri"

	"github.com/lexcodex/zeekls/lang"
	"github.com/lexcodex/zeekls/query"
)

func newInspectCmd() *cobra.Command {
	var showTree bool
	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Parse a Zeek script and dump its symbol model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			tree, err := lang.Parse(data)
			if err != nil {
				return err
			}
			if showTree {
				fmt.Fprintln(cmd.OutOrStdout(), tree.Root().Sexp(data))
				return nil
			}
			module := query.ModuleOf(tree, uri.File(path), data)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(module)
		},
	}
	cmd.Flags().BoolVar(&showTree, "tree", false, "Print the syntax tree instead of the symbol model")
	return cmd
}
