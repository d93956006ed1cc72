package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
	"src.repld.dev/pkg/prog"
)

// Config is the server configuration. The zero value is not usable; start
// from DefaultConfig and amend it from a config file or flags.
type Config struct {
	// Address the console server listens on.
	Listen string `yaml:"listen"`
	// Address the WebSocket endpoint listens on. Empty disables it.
	HTTP string `yaml:"http"`
	// Path of the command history database. Empty disables history.
	DB string `yaml:"db"`
	// Path of the control socket. Empty disables the control service.
	Sock string `yaml:"sock"`

	Console ConsoleConfig `yaml:"console"`
	Shell   ShellConfig   `yaml:"shell"`
}

// ConsoleConfig configures the console command loop.
type ConsoleConfig struct {
	Prompt string `yaml:"prompt"`
}

// ShellConfig configures shells started from consoles.
type ShellConfig struct {
	Prompt        string `yaml:"prompt"`
	PendingPrompt string `yaml:"pending_prompt"`
	HideOutput    bool   `yaml:"hide_output"`
	HidePrompt    bool   `yaml:"hide_prompt"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:  "127.0.0.1:7780",
		Console: ConsoleConfig{Prompt: "repld> "},
		Shell:   ShellConfig{Prompt: "> ", PendingPrompt: "... "},
	}
}

// LoadConfig reads a YAML config file on top of the defaults. Unknown keys
// are errors; an empty file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(bs))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Listen == "" {
		return errors.New("listen address must not be empty")
	}
	return nil
}

// applyFlags overrides config fields from command-line flags that were set.
func (cfg *Config) applyFlags(f *prog.Flags) {
	if f.ListenAddr != "" {
		cfg.Listen = f.ListenAddr
	}
	if f.HTTPAddr != "" {
		cfg.HTTP = f.HTTPAddr
	}
	if f.DB != "" {
		cfg.DB = f.DB
	}
	if f.Sock != "" {
		cfg.Sock = f.Sock
	}
}
