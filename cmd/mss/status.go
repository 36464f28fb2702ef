package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/1broseidon/mss/internal/install"
	"github.com/1broseidon/mss/internal/platform"
	"github.com/1broseidon/mss/internal/protocol"
)

var capabilityTotal = len(protocol.AllCapabilities)

var capabilityLabels = map[protocol.Capability]string{
	protocol.CapDockSpaces:    "Dock Spaces",
	protocol.CapDPPM:          "Desktop Picture Manager",
	protocol.CapAddSpace:      "Add Space",
	protocol.CapRemoveSpace:   "Remove Space",
	protocol.CapMoveSpace:     "Move Space",
	protocol.CapSetWindow:     "Set Window",
	protocol.CapAnimationTime: "Animation Time",
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report bundle, agent and requirement status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			writeStatus(a.stdout, m.Status(cmd.Context()))
			return nil
		},
	}
}

func writeStatus(w io.Writer, st install.Status) {
	s := newStyles(w)
	fmt.Fprintln(w, "Status Report:")
	fmt.Fprintln(w)

	if st.State == install.StateAbsent {
		s.row(w, "Installation", false, "Not installed")
	} else {
		s.row(w, "Installation", st.State != install.StateStaged, "%s at %s", st.State, st.Path)
		if st.Version != "" {
			fmt.Fprintln(w, s.label.Render("Version:")+st.Version)
		}
		if st.Digest != "" {
			fmt.Fprintln(w, s.label.Render("Digest:")+s.dim.Render("blake3:"+st.Digest))
		}
	}

	if st.Handshake != nil {
		s.row(w, "Loading", true, "Loaded (version %s, %d/%d capabilities)",
			st.Handshake.Version, st.Handshake.Capabilities.Count(), capabilityTotal)
	} else {
		s.row(w, "Loading", false, "Not loaded")
	}

	if st.Precondition == nil {
		s.row(w, "Requirements", true, "All requirements met")
	} else {
		s.row(w, "Requirements", false, "Not met (run 'check' for details)")
	}
	fmt.Fprintln(w)
}

func newTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Handshake with the agent and list its capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			defer c.Close()

			fmt.Fprintln(a.stdout, "Testing scripting addition...")
			hs, err := c.Handshake(cmd.Context())
			if err != nil {
				return fmt.Errorf("handshake failed, scripting addition not loaded (try: sudo mss load): %w", err)
			}
			writeConnection(a.stdout, c, a.logger)
			if !writeCapabilities(a.stdout, hs) {
				return &silentError{msg: "incomplete capabilities"}
			}
			return nil
		},
	}
}

// connectionSource is the part of the client that knows this process's
// window-server connection.
type connectionSource interface {
	ConnectionID() (int32, error)
}

// writeConnection prints the caller's window-server connection. Platforms
// without one print nothing.
func writeConnection(w io.Writer, src connectionSource, logger *slog.Logger) {
	cid, err := src.ConnectionID()
	if err != nil {
		if !errors.Is(err, platform.ErrUnsupported) {
			logger.Warn("window server connection unavailable", "error", err)
		}
		return
	}
	fmt.Fprintf(w, "  Window server connection: %d\n", cid)
}

// writeCapabilities prints the handshake and reports whether every
// capability is present.
func writeCapabilities(w io.Writer, hs protocol.Handshake) bool {
	s := newStyles(w)
	s.check(w, "Handshake successful")
	fmt.Fprintf(w, "  Version: %s\n", hs.Version)
	fmt.Fprintln(w, "  Capabilities:")
	for _, c := range protocol.AllCapabilities {
		if hs.Capabilities.Has(c) {
			fmt.Fprintf(w, "    %s %s\n", s.ok.Render("✓"), capabilityLabels[c])
		} else {
			fmt.Fprintf(w, "    %s %s\n", s.bad.Render("✗"), capabilityLabels[c])
		}
	}
	fmt.Fprintln(w)

	n := hs.Capabilities.Count()
	if n == capabilityTotal {
		s.check(w, "Scripting addition is working correctly (%d/%d capabilities)", n, capabilityTotal)
		return true
	}
	fmt.Fprintln(w, s.warn.Render("⚠")+fmt.Sprintf(" Warning: only %d/%d capabilities available", n, capabilityTotal))
	fmt.Fprintln(w, "  This may indicate compatibility issues with your macOS version")
	return false
}
