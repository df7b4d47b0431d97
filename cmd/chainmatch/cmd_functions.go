package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/condlab/chainmatch/pkg/meta"
	"github.com/condlab/chainmatch/pkg/static"
)

var functionsFlags struct {
	meta  string
	query string
	limit int
}

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List or fuzzy-search instrumented functions",
	RunE:  runFunctions,
}

func init() {
	f := functionsCmd.Flags()
	f.StringVar(&functionsFlags.meta, "meta", "", "Directory holding *.meta.json files")
	f.StringVarP(&functionsFlags.query, "query", "q", "", "Fuzzy search query (empty lists all)")
	f.IntVar(&functionsFlags.limit, "limit", 20, "Max search results")
	_ = functionsCmd.MarkFlagRequired("meta")
}

func runFunctions(cmd *cobra.Command, args []string) error {
	m := meta.Load(functionsFlags.meta)
	idx := static.Build(m)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	if functionsFlags.query == "" {
		funcs := make([]meta.Function, 0, len(m.FunctionsByHash))
		for _, fn := range m.FunctionsByHash {
			funcs = append(funcs, fn)
		}
		sort.Slice(funcs, func(i, j int) bool { return funcs[i].Name < funcs[j].Name })
		fmt.Fprintln(w, "HASH\tNAME\tCHAINS\tSIGNATURE")
		for _, fn := range funcs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", fn.Hash, fn.Name, len(idx.Chains(fn.Hash)), fn.Signature)
		}
		return nil
	}

	matches := static.SearchFunctions(functionsFlags.query, m.FunctionsByHash, functionsFlags.limit)
	if len(matches) == 0 {
		return fmt.Errorf("no function matching %q", functionsFlags.query)
	}
	fmt.Fprintln(w, "SCORE\tHASH\tNAME\tCHAINS\tSIGNATURE")
	for _, fm := range matches {
		fmt.Fprintf(w, "%.2f\t%s\t%s\t%d\t%s\n",
			fm.Score, fm.Function.Hash, fm.Function.Name, len(idx.Chains(fm.Function.Hash)), fm.Function.Signature)
	}
	return nil
}
