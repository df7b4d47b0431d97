package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "chainmatch",
	Short: "Match runtime condition traces against static condition chains",
	Long: "ChainMatch aligns the branch/loop decisions a test actually made\n" +
		"against the condition chains known statically for each function,\n" +
		"and explains near-misses as edit scripts over decision points.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		if verbose {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	},
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(functionsCmd)
	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
