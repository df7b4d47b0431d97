package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/condlab/chainmatch/pkg/trace"
)

var compressFlags struct {
	events string
}

var compressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Collapse loop iterations in a raw trace",
	Long: `Read a JSON array of trace events and print the loop-compressed
sequence: each loop keeps its entry decision, its first iteration body
and its exit decision.`,
	RunE: runCompress,
}

func init() {
	compressCmd.Flags().StringVar(&compressFlags.events, "events", "-", "Trace events JSON file (- for stdin)")
}

func runCompress(cmd *cobra.Command, args []string) error {
	events, err := readEvents(compressFlags.events)
	if err != nil {
		return err
	}
	compressed := trace.Compress(events)
	fmt.Fprintf(cmd.ErrOrStderr(), "%d events -> %d\n", len(events), len(compressed))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(compressed)
}
