package install

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/1broseidon/mss/internal/inject"
	"github.com/1broseidon/mss/internal/protocol"
)

// Load gets the agent running in the host and returns its handshake. It
// installs first when no signed bundle exists. An agent that already
// answers is left alone.
func (m *Manager) Load(ctx context.Context) (protocol.Handshake, error) {
	if m.handshaker == nil {
		return protocol.Handshake{}, errors.New("no agent handshaker configured")
	}
	if err := m.Check(); err != nil {
		return protocol.Handshake{}, err
	}

	if !m.Installed() {
		m.logger.Info("bundle missing, installing", "path", m.layout.BundlePath())
		if err := m.Install(ctx); err != nil {
			return protocol.Handshake{}, err
		}
	} else if hs, err := m.probe(ctx); err == nil {
		m.logger.Info("agent already loaded", "version", hs.Version)
		return hs, nil
	}

	pid, err := m.waitForHost(ctx)
	if err != nil {
		return protocol.Handshake{}, err
	}
	m.logger.Debug("host located", "process", m.layout.HostProcess, "pid", pid)

	loader := m.layout.LoaderPath()
	args := []string{"--pid", strconv.Itoa(pid), "--image", m.layout.PayloadPath()}
	if err := m.runner.Run(ctx, loader, args...); err != nil {
		return protocol.Handshake{}, &inject.Failure{
			Stage:       "loader",
			Err:         err,
			Remediation: "run 'mss check' and reinstall with 'sudo mss install'",
		}
	}

	hs, err := inject.Verify(ctx, m.handshaker, m.layout.LoadTimeout, m.pollInterval)
	if err != nil {
		return hs, err
	}
	m.logger.Info("agent loaded", "version", hs.Version, "capabilities", hs.Capabilities.Count())
	return hs, nil
}

func (m *Manager) probe(ctx context.Context) (protocol.Handshake, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return m.handshaker.Handshake(ctx)
}

// waitForHost polls for the host process, which may be restarting after an
// install.
func (m *Manager) waitForHost(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, m.layout.LoadTimeout)
	defer cancel()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		pid, err := m.locator.Find(m.layout.HostProcess)
		if err == nil {
			return pid, nil
		}
		select {
		case <-ctx.Done():
			return 0, &inject.Failure{
				Stage:       "host lookup",
				Err:         err,
				Remediation: fmt.Sprintf("make sure %s is running and retry", m.layout.HostProcess),
			}
		case <-ticker.C:
		}
	}
}
