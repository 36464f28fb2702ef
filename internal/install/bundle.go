package install

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
	"howett.net/plist"

	"github.com/1broseidon/mss/internal/protocol"
)

const (
	loaderName    = "mss-loader"
	payloadBundle = "payload.bundle"
	payloadName   = "payload"
	signatureDir  = "_CodeSignature"
)

// BundlePath is the canonical bundle location.
func (l Layout) BundlePath() string {
	return filepath.Join(l.Root, l.BundleName)
}

// LoaderPath is the staged injector image.
func (l Layout) LoaderPath() string {
	return filepath.Join(l.BundlePath(), "Contents", "MacOS", loaderName)
}

func (l Layout) payloadBundlePath() string {
	return filepath.Join(l.BundlePath(), "Contents", "Resources", payloadBundle)
}

// PayloadPath is the staged agent image handed to dlopen in the host.
func (l Layout) PayloadPath() string {
	return filepath.Join(l.payloadBundlePath(), "Contents", "MacOS", payloadName)
}

type infoPlist struct {
	Identifier    string `plist:"CFBundleIdentifier"`
	Name          string `plist:"CFBundleName"`
	Executable    string `plist:"CFBundleExecutable"`
	PackageType   string `plist:"CFBundlePackageType"`
	Version       string `plist:"CFBundleVersion"`
	ShortVersion  string `plist:"CFBundleShortVersionString"`
	InfoVersion   string `plist:"CFBundleInfoDictionaryVersion"`
	MinimumSystem string `plist:"LSMinimumSystemVersion,omitempty"`
}

func writeInfoPlist(path string, info infoPlist) error {
	data, err := plist.MarshalIndent(info, plist.XMLFormat, "\t")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readInfoPlist(path string) (infoPlist, error) {
	var info infoPlist
	data, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return info, nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// stage builds and signs the bundle tree at the canonical path.
func (m *Manager) stage(ctx context.Context) error {
	l := m.layout
	if l.AgentImage == "" {
		return errors.New("agent image path is not configured")
	}
	if l.InjectorImage == "" {
		return errors.New("injector image path is not configured")
	}

	bundle := l.BundlePath()
	payload := l.payloadBundlePath()
	dirs := []string{
		filepath.Join(bundle, "Contents", "MacOS"),
		filepath.Join(bundle, "Contents", "Resources"),
		filepath.Join(payload, "Contents", "MacOS"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := copyFile(l.InjectorImage, l.LoaderPath(), 0755); err != nil {
		return fmt.Errorf("failed to copy injector image: %w", err)
	}
	if err := copyFile(l.AgentImage, l.PayloadPath(), 0755); err != nil {
		return fmt.Errorf("failed to copy agent image: %w", err)
	}

	manifests := []struct {
		path string
		info infoPlist
	}{
		{
			path: filepath.Join(bundle, "Contents", "Info.plist"),
			info: infoPlist{
				Identifier:    l.Identifier,
				Name:          "mss",
				Executable:    loaderName,
				PackageType:   "osax",
				Version:       protocol.Version,
				ShortVersion:  protocol.Version,
				InfoVersion:   "6.0",
				MinimumSystem: "11.0",
			},
		},
		{
			path: filepath.Join(payload, "Contents", "Info.plist"),
			info: infoPlist{
				Identifier:   l.Identifier + ".payload",
				Name:         payloadName,
				Executable:   payloadName,
				PackageType:  "BNDL",
				Version:      protocol.Version,
				ShortVersion: protocol.Version,
				InfoVersion:  "6.0",
			},
		},
	}
	for _, mf := range manifests {
		if err := writeInfoPlist(mf.path, mf.info); err != nil {
			return err
		}
	}
	m.logger.Debug("bundle staged", "path", bundle)

	// Inner bundle first; the outer signature seals it.
	for _, target := range []string{payload, bundle} {
		if err := m.runner.Run(ctx, "codesign", "--force", "--sign", "-", target); err != nil {
			return fmt.Errorf("failed to sign %s: %w", target, err)
		}
	}
	m.logger.Debug("bundle signed", "path", bundle)
	return nil
}

// Install replaces any existing bundle with a freshly staged and signed
// one, then restarts the host. A failure before the restart leaves no
// bundle behind.
func (m *Manager) Install(ctx context.Context) error {
	if err := m.Check(); err != nil {
		return err
	}

	bundle := m.layout.BundlePath()
	if err := os.RemoveAll(bundle); err != nil {
		return fmt.Errorf("%w: failed to remove existing bundle: %v", ErrInstallFailure, err)
	}
	if err := m.stage(ctx); err != nil {
		if rmErr := os.RemoveAll(bundle); rmErr != nil {
			m.logger.Warn("failed to remove partial bundle", "path", bundle, "error", rmErr)
		}
		return fmt.Errorf("%w: %v", ErrInstallFailure, err)
	}
	m.logger.Info("bundle installed", "path", bundle)

	if err := m.restartHost(ctx); err != nil {
		return fmt.Errorf("%w: bundle installed but %v", ErrInstallFailure, err)
	}
	return nil
}

// Uninstall removes the bundle and restarts the host so the agent is
// unloaded. Removing an absent bundle succeeds.
func (m *Manager) Uninstall(ctx context.Context) error {
	if err := m.requirePrivilege(); err != nil {
		return err
	}

	bundle := m.layout.BundlePath()
	if _, err := os.Stat(bundle); errors.Is(err, fs.ErrNotExist) {
		m.logger.Info("bundle not installed", "path", bundle)
		return nil
	}
	if err := os.RemoveAll(bundle); err != nil {
		return fmt.Errorf("%w: failed to remove %s: %v", ErrInstallFailure, bundle, err)
	}
	m.logger.Info("bundle removed", "path", bundle)

	if err := m.restartHost(ctx); err != nil {
		return fmt.Errorf("%w: bundle removed but %v", ErrInstallFailure, err)
	}
	return nil
}

func (m *Manager) restartHost(ctx context.Context) error {
	host := m.layout.HostProcess
	if err := m.runner.Run(ctx, "killall", host); err != nil {
		return fmt.Errorf("%s did not restart: %w", host, err)
	}
	m.logger.Info("host restarted", "process", host)
	return nil
}

// Digest returns a blake3 digest over the bundle's file paths and
// contents. Signatures are excluded since they embed signing metadata.
func (m *Manager) Digest() (string, error) {
	root := m.layout.BundlePath()
	h := blake3.New()
	var size [8]byte
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == signatureDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}

		h.Write([]byte(filepath.ToSlash(rel)))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint64(size[:], uint64(info.Size()))
		h.Write(size[:])
		_, err = io.Copy(h, f)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to digest %s: %w", root, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
