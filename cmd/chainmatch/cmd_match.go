package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/condlab/chainmatch/pkg/match"
	"github.com/condlab/chainmatch/pkg/meta"
	"github.com/condlab/chainmatch/pkg/static"
	"github.com/condlab/chainmatch/pkg/trace"
)

var matchFlags struct {
	meta      string
	funcHash  string
	funcName  string
	events    string
	topk      int
	threshold float64
	prefilter int
	raw       bool
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank a function's static chains against a trace",
	Long: `Read a JSON array of trace events, compress loop iterations and rank
the function's static condition chains by alignment score.

Usage:
  chainmatch match --meta ./meta --func-hash 1a2b < events.json
  chainmatch match --meta ./meta --func-name clamp --events events.json`,
	RunE: runMatch,
}

func init() {
	f := matchCmd.Flags()
	f.StringVar(&matchFlags.meta, "meta", "", "Directory holding *.meta.json files")
	f.StringVar(&matchFlags.funcHash, "func-hash", "", "Hash of the function whose chains to rank")
	f.StringVar(&matchFlags.funcName, "func-name", "", "Function name to resolve via fuzzy search")
	f.StringVar(&matchFlags.events, "events", "-", "Trace events JSON file (- for stdin)")
	f.IntVar(&matchFlags.topk, "topk", 0, "Max candidates to return")
	f.Float64Var(&matchFlags.threshold, "threshold", 0, "Minimum score to keep")
	f.IntVar(&matchFlags.prefilter, "prefilter", 0, "Jaccard prefilter size before alignment")
	f.BoolVar(&matchFlags.raw, "raw", false, "Skip loop compression")
	_ = matchCmd.MarkFlagRequired("meta")
}

func runMatch(cmd *cobra.Command, args []string) error {
	events, err := readEvents(matchFlags.events)
	if err != nil {
		return err
	}

	m := meta.Load(matchFlags.meta)
	idx := static.Build(m)

	funcHash := matchFlags.funcHash
	if funcHash == "" {
		if matchFlags.funcName == "" {
			return fmt.Errorf("either --func-hash or --func-name is required")
		}
		matches := static.SearchFunctions(matchFlags.funcName, m.FunctionsByHash, 1)
		if len(matches) == 0 {
			return fmt.Errorf("no function matching %q", matchFlags.funcName)
		}
		funcHash = matches[0].Function.Hash
		fmt.Fprintf(cmd.ErrOrStderr(), "resolved %q to %s (%s)\n",
			matchFlags.funcName, funcHash, matches[0].Function.Signature)
	}

	if !matchFlags.raw {
		events = trace.Compress(events)
	}

	candidates := match.New(idx).Match(funcHash, events, match.Options{
		TopK:          matchFlags.topk,
		Threshold:     matchFlags.threshold,
		PrefilterSize: matchFlags.prefilter,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(candidates)
}

func readEvents(path string) ([]trace.Event, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open events file: %w", err)
		}
		defer f.Close()
		r = f
	}
	var events []trace.Event
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to parse trace events: %w", err)
	}
	return events, nil
}
