package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/condlab/chainmatch/pkg/report"
)

var reportFlags struct {
	session   string
	logs      string
	meta      string
	out       string
	suite     string
	test      string
	dedupe    bool
	approx    bool
	topk      int
	threshold float64
	prefilter int
	narrate   bool
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build per-assertion JSONL records from a runtime log",
	Long: `Frame a runtime condition log into per-assertion windows, compress
loop iterations, resolve exact static chains and (optionally) rank
approximate candidates, then write one JSON record per assertion.

Usage:
  chainmatch report --logs run.jsonl --meta ./meta -o report.jsonl
  chainmatch report --session session.yaml

Flags override the session file when both are given.`,
	RunE: runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.session, "session", "", "Session YAML file capturing a report run")
	f.StringVar(&reportFlags.logs, "logs", "", "Runtime NDJSON log (plain or .gz)")
	f.StringVar(&reportFlags.meta, "meta", "", "Directory holding *.meta.json files")
	f.StringVarP(&reportFlags.out, "output", "o", "-", "Output JSONL path (- for stdout)")
	f.StringVar(&reportFlags.suite, "suite", "", "Only report tests whose suite contains this substring")
	f.StringVar(&reportFlags.test, "test", "", "Only report tests whose name contains this substring")
	f.BoolVar(&reportFlags.dedupe, "dedupe-conds", false, "Keep only the first occurrence of each condition per invocation")
	f.BoolVar(&reportFlags.approx, "approx", false, "Rank approximate chain candidates when no exact match exists")
	f.IntVar(&reportFlags.topk, "topk", 0, "Max approximate candidates per invocation")
	f.Float64Var(&reportFlags.threshold, "threshold", 0, "Minimum approximate match score")
	f.IntVar(&reportFlags.prefilter, "prefilter", 0, "Jaccard prefilter size before alignment")
	f.BoolVar(&reportFlags.narrate, "narrate", false, "Add a natural-language divergence summary (needs GEMINI_API_KEY)")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg := &report.Config{}
	if reportFlags.session != "" {
		loaded, err := report.LoadConfig(reportFlags.session)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if reportFlags.logs != "" {
		cfg.Logs = reportFlags.logs
	}
	if reportFlags.meta != "" {
		cfg.Meta = reportFlags.meta
	}
	if cmd.Flags().Changed("output") {
		cfg.Out = reportFlags.out
	}
	if reportFlags.suite != "" {
		cfg.Suite = reportFlags.suite
	}
	if reportFlags.test != "" {
		cfg.Test = reportFlags.test
	}
	if reportFlags.dedupe {
		cfg.DedupeConds = true
	}
	if reportFlags.approx {
		cfg.Approx.Enabled = true
	}
	if reportFlags.topk > 0 {
		cfg.Approx.TopK = reportFlags.topk
	}
	if reportFlags.threshold > 0 {
		cfg.Approx.Threshold = reportFlags.threshold
	}
	if reportFlags.prefilter > 0 {
		cfg.Approx.Prefilter = reportFlags.prefilter
	}
	if reportFlags.narrate {
		cfg.Narrate = true
	}

	if cfg.Logs == "" {
		return fmt.Errorf("no runtime log given (--logs or session file)")
	}
	if cfg.Meta == "" {
		return fmt.Errorf("no metadata directory given (--meta or session file)")
	}

	n, err := report.Generate(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d records\n", n)
	return nil
}
