package main

import (
	"github.com/spf13/cobra"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check privileges, system protections and boot arguments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			if err := m.Check(); err != nil {
				return err
			}
			newStyles(a.stdout).check(a.stdout, "All system requirements met")
			return nil
		},
	}
}

func newInstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Stage and sign the bundle, then restart the Dock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			if err := m.Install(cmd.Context()); err != nil {
				return err
			}
			newStyles(a.stdout).check(a.stdout, "Installed at %s", m.Layout().BundlePath())
			return nil
		},
	}
}

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load the agent into the Dock, installing first if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			hs, err := m.Load(cmd.Context())
			if err != nil {
				return err
			}
			newStyles(a.stdout).check(a.stdout, "Loaded (version %s, %d/%d capabilities)",
				hs.Version, hs.Capabilities.Count(), capabilityTotal)
			return nil
		},
	}
}

func newUninstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the bundle and restart the Dock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			if err := m.Uninstall(cmd.Context()); err != nil {
				return err
			}
			newStyles(a.stdout).check(a.stdout, "Uninstalled")
			return nil
		},
	}
}
