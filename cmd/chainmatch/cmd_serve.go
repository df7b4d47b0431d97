package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/condlab/chainmatch/internal/manager"
	"github.com/condlab/chainmatch/pkg/server"
)

var serveFlags struct {
	base string
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	Long: `Serve the matching engine over HTTP. Each subdirectory of the base
directory holding *.meta.json files is exposed as a session.

The listen address defaults to :8080, or :$PORT when set.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.base, "base", "./data", "Base directory of metadata snapshots")
	f.StringVar(&serveFlags.addr, "addr", "", "Listen address (default :8080 or :$PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := serveFlags.addr
	if addr == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		addr = ":" + port
	}

	mgr := manager.NewSessionManager(serveFlags.base)
	fmt.Fprintf(cmd.ErrOrStderr(), "serving sessions from %s on %s\n", serveFlags.base, addr)
	return server.NewServer(mgr).Run(addr)
}
