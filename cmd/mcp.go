package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/tagger/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients list tags and save entry tags. Configure with:

  {
    "mcpServers": {
      "tagger": { "command": "tagger", "args": ["mcp"] }
    }
  }

Available tools: tagger_list_tags, tagger_save_entry_tags, tagger_entry_tags`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
		defer stop()
		return mcp.NewServer(s, logger).ServeStdio(ctx, buildVersion)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
