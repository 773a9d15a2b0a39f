// Package config loads braindump configuration, merging the global file
// under the home directory with a per-project override.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full braindump configuration.
type Config struct {
	Version string `yaml:"version" mapstructure:"version"`

	// DefaultTarget is the agent handed off to when --target is omitted.
	DefaultTarget string `yaml:"default_target" mapstructure:"default_target"`

	Handoff HandoffConfig `yaml:"handoff" mapstructure:"handoff"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
	Project ProjectConfig `yaml:"project" mapstructure:"project"`
}

// HandoffConfig configures resume-document generation.
type HandoffConfig struct {
	// Tokens overrides the target's registry budget when positive.
	Tokens    int  `yaml:"tokens" mapstructure:"tokens"`
	Clipboard bool `yaml:"clipboard" mapstructure:"clipboard"`
}

// WatchConfig configures the session watcher.
type WatchConfig struct {
	IntervalSeconds int      `yaml:"interval_seconds" mapstructure:"interval_seconds"`
	Agents          []string `yaml:"agents" mapstructure:"agents"`
}

// ProjectConfig holds project-specific settings, normally only present
// in the project-level file.
type ProjectConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	Path string `yaml:"path" mapstructure:"path"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:       "1",
		DefaultTarget: "claude-code",
		Handoff: HandoffConfig{
			Clipboard: true,
		},
		Watch: WatchConfig{
			IntervalSeconds: 30,
		},
	}
}

// Load merges defaults, the global config, and the project config, in
// that order. Missing files are not errors.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if home, err := os.UserHomeDir(); err == nil {
		loadFile(filepath.Join(home, ".braindump", "config.yaml"), cfg)
	}
	if cwd, err := os.Getwd(); err == nil {
		loadFile(filepath.Join(cwd, ".braindump", "config.yaml"), cfg)
		if cfg.Project.Name == "" {
			cfg.Project.Name = filepath.Base(cwd)
		}
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	return v.Unmarshal(cfg)
}

// WriteDefault writes the built-in defaults to path unless a file is
// already there.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GlobalConfigPath returns the path of the global config file.
func GlobalConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".braindump", "config.yaml")
}

// ProjectConfigPath returns the path of the project config file.
func ProjectConfigPath() string {
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, ".braindump", "config.yaml")
}
