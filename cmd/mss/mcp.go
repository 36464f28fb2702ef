package main

import (
	"github.com/spf13/cobra"

	"github.com/1broseidon/mss/internal/mcp"
)

func newMCPCmd(a *app) *cobra.Command {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol server",
	}
	mcpCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve window and space tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			defer c.Close()
			a.logger.Debug("mcp server starting", "socket", c.SocketPath())
			return mcp.NewServer(c, a.logger).Run(cmd.Context())
		},
	})
	return mcpCmd
}
