package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/server"
	"github.com/Epistemic-Technology/research-library/web"
)

var (
	serveAddr  string
	serveStdio bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP server and MCP endpoint",
	Long: `Serves the page label admin, ingest uploads, ask and cite over HTTP, with the
MCP streamable HTTP transport mounted at /mcp.

Use --stdio to serve MCP over stdin/stdout instead, for desktop assistants.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveStdio, "stdio", false, "serve MCP over stdio")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	log, err := logger.NewLogger(logger.LogConfig{})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withLibrary(cmd, func(lib *operations.Library) error {
		mcpServer := server.CreateServer(lib, log)
		if serveStdio {
			log.Info("Serving MCP over stdio")
			return mcpServer.Run(ctx, &mcp.StdioTransport{})
		}

		addr := serveAddr
		if addr == "" {
			addr = lib.Config().HTTP.Addr
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s (MCP at /mcp)\n", addr)
		return web.NewServer(lib, server.HTTPHandler(mcpServer), log).Run(ctx, addr)
	})
}
