package config

import "time"

// RawConfig mirrors Config with pointer fields so that keys absent from the
// file keep their defaults.
type RawConfig struct {
	SocketDir *string     `yaml:"socket_dir"`
	LogLevel  *string     `yaml:"log_level"`
	Client    *RawClient  `yaml:"client"`
	Agent     *RawAgent   `yaml:"agent"`
	Install   *RawInstall `yaml:"install"`
}

type RawClient struct {
	Timeout *time.Duration `yaml:"timeout"`
}

type RawAgent struct {
	ReadTimeout  *time.Duration `yaml:"read_timeout"`
	FadeInterval *time.Duration `yaml:"fade_interval"`
	LogFile      *string        `yaml:"log_file"`
}

type RawInstall struct {
	Root          *string        `yaml:"root"`
	BundleName    *string        `yaml:"bundle_name"`
	Identifier    *string        `yaml:"identifier"`
	HostProcess   *string        `yaml:"host_process"`
	AgentImage    *string        `yaml:"agent_image"`
	InjectorImage *string        `yaml:"injector_image"`
	LoadTimeout   *time.Duration `yaml:"load_timeout"`
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *time.Duration) {
	if src != nil {
		*dst = *src
	}
}
