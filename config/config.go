// Package config loads teamgraph settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every teamgraph setting.
type Config struct {
	Model     ModelConfig     `mapstructure:"model" yaml:"model"`
	Graph     GraphConfig     `mapstructure:"graph" yaml:"graph"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox" yaml:"sandbox"`
	Search    SearchConfig    `mapstructure:"search" yaml:"search"`
	GitHub    GitHubConfig    `mapstructure:"github" yaml:"github"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
}

// ModelConfig selects the inference provider.
type ModelConfig struct {
	Provider     string `mapstructure:"provider" yaml:"provider"`
	Name         string `mapstructure:"name" yaml:"name"`
	TokenBudget  int    `mapstructure:"token_budget" yaml:"token_budget"`
	OpenAIKey    string `mapstructure:"openai_api_key" yaml:"-"`
	AnthropicKey string `mapstructure:"anthropic_api_key" yaml:"-"`
	GoogleKey    string `mapstructure:"google_api_key" yaml:"-"`
}

// GraphConfig bounds graph execution.
type GraphConfig struct {
	RecursionLimit int           `mapstructure:"recursion_limit" yaml:"recursion_limit"`
	NodeTimeout    time.Duration `mapstructure:"node_timeout" yaml:"node_timeout"`
}

// WorkspaceConfig locates the directory the dev team writes to.
type WorkspaceConfig struct {
	Root string `mapstructure:"root" yaml:"root"`
}

// SandboxConfig configures code execution.
type SandboxConfig struct {
	Interpreter    string        `mapstructure:"interpreter" yaml:"interpreter"`
	Extension      string        `mapstructure:"extension" yaml:"extension"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxOutputBytes int           `mapstructure:"max_output_bytes" yaml:"max_output_bytes"`
}

// SearchConfig configures web search.
type SearchConfig struct {
	APIKey     string `mapstructure:"api_key" yaml:"-"`
	Endpoint   string `mapstructure:"endpoint" yaml:"endpoint"`
	MaxResults int    `mapstructure:"max_results" yaml:"max_results"`
}

// GitHubConfig configures repository browsing.
type GitHubConfig struct {
	Token      string `mapstructure:"token" yaml:"-"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	MaxDepth   int    `mapstructure:"max_depth" yaml:"max_depth"`
	MaxEntries int    `mapstructure:"max_entries" yaml:"max_entries"`
	MaxDirs    int    `mapstructure:"max_dirs" yaml:"max_dirs"`
}

// StoreConfig selects where run state is persisted.
type StoreConfig struct {
	Driver string        `mapstructure:"driver" yaml:"driver"`
	DSN    string        `mapstructure:"dsn" yaml:"dsn"`
	TTL    time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// OutputConfig controls how the final state is printed.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
}

// Supported values.
var (
	Providers     = []string{"anthropic", "openai", "google"}
	StoreDrivers  = []string{"memory", "sqlite", "mysql", "redis"}
	OutputFormats = []string{"text", "json", "yaml"}
)

// envBindings maps config keys to the conventional variables of each service.
// TEAMGRAPH_* variables take precedence.
var envBindings = map[string]string{
	"model.openai_api_key":    "OPENAI_API_KEY",
	"model.anthropic_api_key": "ANTHROPIC_API_KEY",
	"model.google_api_key":    "GOOGLE_API_KEY",
	"github.token":            "GITHUB_TOKEN",
	"search.api_key":          "TAVILY_API_KEY",
}

// Load reads configuration.
//
// Precedence (highest to lowest):
//  1. TEAMGRAPH_* environment variables, e.g. TEAMGRAPH_GRAPH_RECURSION_LIMIT
//  2. Service variables: OPENAI_API_KEY, ANTHROPIC_API_KEY, GOOGLE_API_KEY,
//     GITHUB_TOKEN, TAVILY_API_KEY
//  3. The config file: path when given, otherwise teamgraph.yaml in the
//     current directory or the user config directory
//  4. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	} else {
		v.SetConfigName("teamgraph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(userConfigDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("TEAMGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		prefixed := "TEAMGRAPH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Model.OpenAIKey = os.ExpandEnv(cfg.Model.OpenAIKey)
	cfg.Model.AnthropicKey = os.ExpandEnv(cfg.Model.AnthropicKey)
	cfg.Model.GoogleKey = os.ExpandEnv(cfg.Model.GoogleKey)
	cfg.GitHub.Token = os.ExpandEnv(cfg.GitHub.Token)
	cfg.Search.APIKey = os.ExpandEnv(cfg.Search.APIKey)
	cfg.Store.DSN = os.ExpandEnv(cfg.Store.DSN)
	return cfg, nil
}

// Default returns the built-in defaults.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.provider", "anthropic")
	v.SetDefault("model.name", "claude-sonnet-4-5")
	v.SetDefault("model.token_budget", 100000)
	v.SetDefault("model.openai_api_key", "")
	v.SetDefault("model.anthropic_api_key", "")
	v.SetDefault("model.google_api_key", "")

	v.SetDefault("graph.recursion_limit", 25)
	v.SetDefault("graph.node_timeout", "2m")

	v.SetDefault("workspace.root", "./workspace")

	v.SetDefault("sandbox.interpreter", "python3")
	v.SetDefault("sandbox.extension", ".py")
	v.SetDefault("sandbox.timeout", "30s")
	v.SetDefault("sandbox.max_output_bytes", 64<<10)

	v.SetDefault("search.api_key", "")
	v.SetDefault("search.endpoint", "https://api.tavily.com/search")
	v.SetDefault("search.max_results", 5)

	v.SetDefault("github.token", "")
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.max_depth", 5)
	v.SetDefault("github.max_entries", 1000)
	v.SetDefault("github.max_dirs", 200)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.ttl", "0s")

	v.SetDefault("metrics.addr", "")
	v.SetDefault("output.format", "text")
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case !oneOf(c.Model.Provider, Providers):
		return fmt.Errorf("model.provider must be one of %s, got %q", strings.Join(Providers, ", "), c.Model.Provider)
	case c.Model.Name == "":
		return errors.New("model.name is required")
	case c.Model.TokenBudget <= 0:
		return fmt.Errorf("model.token_budget must be positive, got %d", c.Model.TokenBudget)
	case c.Graph.RecursionLimit <= 0:
		return fmt.Errorf("graph.recursion_limit must be positive, got %d", c.Graph.RecursionLimit)
	case c.Graph.NodeTimeout < 0:
		return fmt.Errorf("graph.node_timeout must not be negative, got %v", c.Graph.NodeTimeout)
	case c.Workspace.Root == "":
		return errors.New("workspace.root is required")
	case c.Sandbox.Interpreter == "":
		return errors.New("sandbox.interpreter is required")
	case c.Sandbox.Timeout <= 0:
		return fmt.Errorf("sandbox.timeout must be positive, got %v", c.Sandbox.Timeout)
	case c.Search.MaxResults <= 0:
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	case c.GitHub.MaxDepth <= 0 || c.GitHub.MaxEntries <= 0 || c.GitHub.MaxDirs <= 0:
		return errors.New("github.max_depth, github.max_entries and github.max_dirs must be positive")
	case !oneOf(c.Store.Driver, StoreDrivers):
		return fmt.Errorf("store.driver must be one of %s, got %q", strings.Join(StoreDrivers, ", "), c.Store.Driver)
	case (c.Store.Driver == "mysql" || c.Store.Driver == "redis") && c.Store.DSN == "":
		return fmt.Errorf("store.dsn is required for the %s driver", c.Store.Driver)
	case !oneOf(c.Output.Format, OutputFormats):
		return fmt.Errorf("output.format must be one of %s, got %q", strings.Join(OutputFormats, ", "), c.Output.Format)
	}
	return nil
}

// APIKey returns the key of the configured provider.
func (c *Config) APIKey() string {
	switch c.Model.Provider {
	case "openai":
		return c.Model.OpenAIKey
	case "google":
		return c.Model.GoogleKey
	default:
		return c.Model.AnthropicKey
	}
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

// userConfigDir returns $XDG_CONFIG_HOME/teamgraph or ~/.config/teamgraph.
func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "teamgraph")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "teamgraph")
	}
	return filepath.Join(home, ".config", "teamgraph")
}
