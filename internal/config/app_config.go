// Package config implements the ConfigStore: discovery and layered
// resolution of the TOML configuration document described in spec §3/§4.3.
package config

import (
	"os"

	"github.com/OpenPeeDeeP/xdg"
)

// AppConfig carries process identity and XDG directory resolution, the way
// the teacher's AppConfig does, but without any GUI/keybinding concerns.
type AppConfig struct {
	Name      string
	Version   string
	Commit    string
	BuildDate string
	Debug     bool
	Verbose   bool

	ConfigDir string
	StateDir  string
}

// NewAppConfig builds an AppConfig, resolving XDG directories the way the
// teacher's app_config.go does via OpenPeeDeeP/xdg.
func NewAppConfig(version, commit, buildDate string) (*AppConfig, error) {
	x := xdg.New("containai", "cai")

	configDir := x.ConfigHome()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, err
	}
	stateDir := x.CacheHome()
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, err
	}

	return &AppConfig{
		Name:      "cai",
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		Debug:     os.Getenv("CONTAINAI_VERBOSE") == "1",
		Verbose:   os.Getenv("CONTAINAI_VERBOSE") == "1",
		ConfigDir: configDir,
		StateDir:  stateDir,
	}, nil
}
