package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1broseidon/mss/internal/bootstrap"
	"github.com/1broseidon/mss/internal/inject"
	"github.com/1broseidon/mss/internal/install"
)

func newInjectCmd(a *app) *cobra.Command {
	var (
		pid   int
		image string
		arch  string
	)
	cmd := &cobra.Command{
		Use:    "inject",
		Short:  "Load an agent image into a running process",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := inject.Target{PID: pid, Arch: bootstrap.Arch(arch)}
			if target.Arch == "" {
				target.Arch = install.DefaultEnvironment().Arch()
			}
			opener, err := inject.DefaultOpener()
			if err != nil {
				return err
			}
			in := inject.New(opener, inject.DefaultSymbols(),
				inject.WithTimeout(a.cfg.Install.LoadTimeout),
				inject.WithLogger(a.logger),
			)
			if err := in.Inject(cmd.Context(), target, image); err != nil {
				return err
			}
			a.logger.Debug("injected", "pid", pid, "image", image)
			return nil
		},
	}
	cmd.Flags().IntVar(&pid, "pid", 0, "Target process id")
	cmd.Flags().StringVar(&image, "image", "", "Absolute path of the agent image")
	cmd.Flags().StringVar(&arch, "arch", "", fmt.Sprintf("Target architecture (%s or %s; default: this machine)", bootstrap.AMD64, bootstrap.ARM64))
	cmd.MarkFlagRequired("pid")
	cmd.MarkFlagRequired("image")
	return cmd
}
