//go:build darwin

// Command mss-agent is built with -buildmode=c-shared and loaded into the
// Dock. Its initializer starts the dispatcher on a goroutine and returns so
// that dlopen completes.
package main

import "C"

import (
	"context"
	"log/slog"
	"os"

	"github.com/1broseidon/mss/internal/agent"
	"github.com/1broseidon/mss/internal/config"
	"github.com/1broseidon/mss/internal/platform"
	"github.com/1broseidon/mss/internal/probe"
	"github.com/1broseidon/mss/internal/runtimepath"
)

func init() {
	go serve()
}

func main() {}

func serve() {
	user, err := runtimepath.InvokingUser()
	if err != nil {
		return
	}
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}

	var logger *slog.Logger
	logFile, logErr := agent.OpenLogFile(cfg.AgentLogPath(user), agent.DefaultLogMaxSize, agent.DefaultLogMaxFiles)
	if logErr != nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
		logger.Warn("agent log unavailable, using stderr", "error", logErr)
	} else {
		defer logFile.Close()
		logger = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	}
	if err != nil {
		logger.Warn("config unreadable, using defaults", "error", err)
	}
	logger = logger.With("pid", os.Getpid())

	rt, err := probe.NewObjCRuntime()
	if err != nil {
		logger.Error("objc runtime unavailable", "error", err)
		return
	}
	table, err := probe.Resolve(rt, probe.DockSpec, logger)
	if err != nil {
		logger.Error("capability probe failed, agent not started", "error", err)
		return
	}
	backend, err := platform.NewSkyLightBackend(table)
	if err != nil {
		logger.Error("window server unavailable", "error", err)
		return
	}

	srv, err := agent.NewServer(agent.Options{
		SocketPath:   cfg.SocketPath(user),
		Backend:      backend,
		Capabilities: table.Capabilities(),
		ReadTimeout:  cfg.Agent.ReadTimeout,
		FadeInterval: cfg.Agent.FadeInterval,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to create agent", "error", err)
		return
	}
	if err := srv.Listen(); err != nil {
		logger.Error("agent not started", "error", err)
		return
	}
	logger.Info("agent started", "socket", srv.SocketPath(), "capabilities", table.Capabilities().String())
	if err := srv.Run(context.Background()); err != nil {
		logger.Error("agent stopped", "error", err)
	}
}
