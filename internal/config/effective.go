package config

import "fmt"

// ValidationError names the offending key and, when known, where it was set.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// BuildEffectiveConfig applies raw on top of the defaults and validates the
// result.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	setString(&cfg.SocketDir, raw.SocketDir)
	setString(&cfg.LogLevel, raw.LogLevel)
	if raw.Client != nil {
		setDuration(&cfg.Client.Timeout, raw.Client.Timeout)
	}
	if raw.Agent != nil {
		setDuration(&cfg.Agent.ReadTimeout, raw.Agent.ReadTimeout)
		setDuration(&cfg.Agent.FadeInterval, raw.Agent.FadeInterval)
		setString(&cfg.Agent.LogFile, raw.Agent.LogFile)
	}
	if in := raw.Install; in != nil {
		setString(&cfg.Install.Root, in.Root)
		setString(&cfg.Install.BundleName, in.BundleName)
		setString(&cfg.Install.Identifier, in.Identifier)
		setString(&cfg.Install.HostProcess, in.HostProcess)
		setString(&cfg.Install.AgentImage, in.AgentImage)
		setString(&cfg.Install.InjectorImage, in.InjectorImage)
		setDuration(&cfg.Install.LoadTimeout, in.LoadTimeout)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
