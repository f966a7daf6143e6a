package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/cli"
	mcpAdapter "github.com/aretw0/lattice/pkg/adapters/mcp"
	"github.com/aretw0/lattice/pkg/adapters/memory"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Model Context Protocol server",
	Long: `Exposes start_activity, respond, cancel_activity and activity_status as MCP
tools. Each tool returns the events its room produced. Uses stdio unless --sse is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sse, _ := cmd.Flags().GetBool("sse")
		addr, _ := cmd.Flags().GetString("addr")
		baseURL, _ := cmd.Flags().GetString("base-url")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		events := memory.NewRecorder()
		backend, err := cli.Build(ctx, cfg, logger, events)
		if err != nil {
			return err
		}
		defer backend.Close()

		srv := mcpAdapter.NewServer(backend.Engine, events, backend.Engine.Loader(), lattice.Version,
			mcpAdapter.WithLogger(logger),
			mcpAdapter.WithMaxInputSize(cfg.MaxInputSize),
		)
		if sse {
			return srv.ServeSSE(ctx, addr, baseURL)
		}
		return srv.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().Bool("sse", false, "Serve the SSE transport instead of stdio")
	mcpCmd.Flags().String("addr", ":8081", "Address for the SSE transport")
	mcpCmd.Flags().String("base-url", "http://localhost:8081", "Public base URL for the SSE transport")
}
