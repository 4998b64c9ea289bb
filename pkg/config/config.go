package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultConfigFile is read from the working directory when present
const DefaultConfigFile = "load-factors.toml"

// EnvPrefix prefixes environment overrides (e.g. LOAD_FACTORS_ENTRY=dashboard)
const EnvPrefix = "LOAD_FACTORS_"

// Config holds all configuration for the application
type Config struct {
	File       string `koanf:"file"`
	Entry      string `koanf:"entry"`
	Format     string `koanf:"format"`
	Strict     bool   `koanf:"strict"`
	WebMode    bool   `koanf:"web"`
	Port       int    `koanf:"port"`
	Watch      bool   `koanf:"watch"`
	JSONLogs   bool   `koanf:"json-logs"`
	Verbosity  string `koanf:"verbosity"`
	VerboseCnt int    `koanf:"verbose"`
}

// Defaults returns the lowest-priority configuration layer
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"file":      "",
		"entry":     "",
		"format":    "text",
		"strict":    false,
		"web":       false,
		"port":      8080,
		"watch":     false,
		"json-logs": false,
		"verbosity": "",
		"verbose":   0,
	}
}

// RegisterFlags declares the command-line flags that Load understands
func RegisterFlags(f *pflag.FlagSet) {
	f.StringP("file", "f", "", "File with one declaration per line (name=dep1|dep2)")
	f.StringP("entry", "e", "", "Entry point service seeded with load 1")
	f.String("format", "text", "Output format: text or json")
	f.Bool("strict", false, "Fail when the dependency graph contains cycles")
	f.Bool("web", false, "Serve results over HTTP instead of exiting")
	f.Int("port", 8080, "Port for web server (only used with --web)")
	f.Bool("watch", false, "Recompute when the declaration file changes")
	f.Bool("json-logs", false, "Emit logs as JSON")
	f.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	f.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return LoadFrom(DefaultConfigFile, f)
}

// LoadFrom is Load with an explicit config file path
func LoadFrom(configFile string, f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// A missing config file is not an error
	if configFile != "" {
		_ = k.Load(file.Provider(configFile), toml.Parser())
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that flags and env cannot constrain
func (c *Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q: want text or json", c.Format)
	}
	if c.Watch && c.File == "" {
		return fmt.Errorf("--watch requires --file")
	}
	if c.WebMode && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// mapProvider feeds a plain map into koanf
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
