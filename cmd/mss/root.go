package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/1broseidon/mss/internal/client"
	"github.com/1broseidon/mss/internal/config"
	"github.com/1broseidon/mss/internal/install"
	"github.com/1broseidon/mss/internal/protocol"
	"github.com/1broseidon/mss/internal/runtimepath"
)

type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "mss",
		Short:         "Install, load and talk to the mss scripting addition",
		Version:       protocol.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Show debug logging")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default ~/.config/mss/config.yaml)")

	root.AddCommand(
		newCheckCmd(a),
		newInstallCmd(a),
		newLoadCmd(a),
		newUninstallCmd(a),
		newStatusCmd(a),
		newTestCmd(a),
		newInjectCmd(a),
		newAgentCmd(a),
		newMCPCmd(a),
	)
	return root
}

func (a *app) init() error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(tint.NewHandler(a.stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(a.stderr),
	}))

	path := a.configPath
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return err
		}
	}
	res, err := config.LoadFromPath(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = res.Config
	if res.File != "" {
		a.logger.Debug("config loaded", "file", res.File)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// client returns a transport for the invoking user's agent.
func (a *app) client() (*client.Context, error) {
	user, err := runtimepath.InvokingUser()
	if err != nil {
		return nil, err
	}
	return client.New(
		client.WithSocketPath(a.cfg.SocketPath(user)),
		client.WithTimeout(a.cfg.Client.Timeout),
		client.WithLogger(a.logger),
	)
}

func (a *app) manager() (*install.Manager, error) {
	agentImage, err := a.cfg.AgentImagePath()
	if err != nil {
		return nil, err
	}
	injectorImage, err := a.cfg.InjectorImagePath()
	if err != nil {
		return nil, err
	}
	c, err := a.client()
	if err != nil {
		return nil, err
	}
	layout := install.Layout{
		Root:          a.cfg.Install.Root,
		BundleName:    a.cfg.Install.BundleName,
		Identifier:    a.cfg.Install.Identifier,
		HostProcess:   a.cfg.Install.HostProcess,
		AgentImage:    agentImage,
		InjectorImage: injectorImage,
		LoadTimeout:   a.cfg.Install.LoadTimeout,
	}
	return install.New(layout,
		install.WithHandshaker(c),
		install.WithLogger(a.logger),
	), nil
}
