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

// Config holds all configuration for the tool
type Config struct {
	Store      string `koanf:"store"`      // Path to the task collection file
	ChangeLog  string `koanf:"changelog"`  // Path to the change-log sink (JSONL)
	Checks     string `koanf:"checks"`     // Comma-separated audit checks
	AutoFix    bool   `koanf:"fix"`        // Apply mechanical fixes during audit
	WebMode    bool   `koanf:"web"`        // Serve reports over HTTP
	Port       int    `koanf:"port"`       // Port for web mode
	Watch      bool   `koanf:"watch"`      // Re-audit when the store file changes
	Verbosity  string `koanf:"verbosity"`  // Explicit level name (debug, info, warn, error)
	VerboseCnt int    `koanf:"verbose"`    // -v / -vv shorthand
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"store":     "tasks.json",
		"changelog": "task-changes.jsonl",
		"checks":    "full",
		"fix":       false,
		"web":       false,
		"port":      8080,
		"watch":     false,
		"verbosity": "",
		"verbose":   0,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - taskgraph.toml
	// Errors are ignored; the file might not exist
	_ = k.Load(file.Provider("taskgraph.toml"), toml.Parser())

	// 3. Environment Variables
	// Prefix: TASKGRAPH_ (e.g., TASKGRAPH_PORT=9090)
	if err := k.Load(env.Provider("TASKGRAPH_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "TASKGRAPH_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Helper to use map as a provider
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
