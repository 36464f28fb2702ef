package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/1broseidon/mss/internal/agent"
	"github.com/1broseidon/mss/internal/platform"
	"github.com/1broseidon/mss/internal/probe"
	"github.com/1broseidon/mss/internal/runtimepath"
)

// errNoStandaloneAgent is returned where the agent only runs injected.
var errNoStandaloneAgent = errors.New("no standalone agent on this platform; the agent runs inside the Dock (sudo mss load)")

func newAgentCmd(a *app) *cobra.Command {
	var socket string
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the command dispatcher as a standalone process",
		Long: "Run the command dispatcher against the local window manager. On X11 this\n" +
			"serves the same protocol as the injected agent, which is useful for\n" +
			"developing clients.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := runtimepath.InvokingUser()
			if err != nil {
				return err
			}
			if socket == "" {
				socket = a.cfg.SocketPath(user)
			}

			logFile, err := agent.OpenLogFile(a.cfg.AgentLogPath(user), agent.DefaultLogMaxSize, agent.DefaultLogMaxFiles)
			if err != nil {
				return err
			}
			defer logFile.Close()
			logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: a.cfg.SlogLevel()}))

			rt, backend, closeBackend, err := standaloneBackend()
			if err != nil {
				return err
			}
			defer closeBackend()
			return serveAgent(cmd.Context(), a, rt, backend, socket, logger)
		},
	}
	cmd.Flags().StringVar(&socket, "socket", "", "Socket path (default: the invoking user's agent socket)")
	return cmd
}

// backendRuntime pairs a capability probe runtime with its spec.
type backendRuntime struct {
	runtime probe.Runtime
	spec    probe.Spec
}

func serveAgent(ctx context.Context, a *app, rt backendRuntime, backend platform.Backend, socket string, logger *slog.Logger) error {
	table, err := probe.Resolve(rt.runtime, rt.spec, logger)
	if err != nil {
		return fmt.Errorf("capability probe failed: %w", err)
	}
	srv, err := agent.NewServer(agent.Options{
		SocketPath:   socket,
		Backend:      backend,
		Capabilities: table.Capabilities(),
		ReadTimeout:  a.cfg.Agent.ReadTimeout,
		FadeInterval: a.cfg.Agent.FadeInterval,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}
	a.logger.Info("agent listening", "socket", socket, "capabilities", table.Capabilities().String())
	return srv.Run(ctx)
}
