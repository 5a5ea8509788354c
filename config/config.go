// CLAUDE:SUMMARY siteforge configuration: YAML file (optional) overlaid by environment variables, with defaults.
// Package config loads siteforge settings. Values come from an optional YAML
// file, then environment variables, which always win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/siteforge/deploy"
	"github.com/hazyhaar/siteforge/horosafe"
	"github.com/hazyhaar/siteforge/llm"
	"github.com/hazyhaar/siteforge/shield"
	"github.com/hazyhaar/siteforge/sitegen"
)

// Deployment target kinds.
const (
	TargetAzure  = "azure"
	TargetDir    = "dir"
	TargetMemory = "memory"
)

// Config is the full siteforge configuration.
type Config struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	DataDir     string `yaml:"data_dir"`
	ProjectDir  string `yaml:"project_dir"`
	FrontendDir string `yaml:"frontend_dir"`
	AuditDB     string `yaml:"audit_db"`
	MCPEnabled  bool   `yaml:"mcp_enabled"`
	// MaxBodyBytes caps JSON request bodies. Edits carry whole files.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	Model      llm.Config           `yaml:"model"`
	Generation sitegen.Config       `yaml:"generation"`
	Deploy     DeployConfig         `yaml:"deploy"`
	RateLimits map[string]RateLimit `yaml:"rate_limits"`
}

// DeployConfig selects where Deploy publishes.
type DeployConfig struct {
	// Target is azure, dir or memory. Empty means azure when a connection
	// string is set, no deployment otherwise.
	Target           string `yaml:"target"`
	ConnectionString string `yaml:"connection_string"`
	Container        string `yaml:"container"`
	Dir              string `yaml:"dir"`
	Strategy         string `yaml:"strategy"`
	Minify           bool   `yaml:"minify"`
	PublicURL        string `yaml:"public_url"`
}

// RateLimit is one per-route limit, keyed "METHOD /path".
type RateLimit struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:         "3000",
		LogLevel:     "info",
		DataDir:      ".",
		ProjectDir:   "generated-site",
		AuditDB:      "db/audit.db",
		MCPEnabled:   true,
		MaxBodyBytes: 4 << 20,
		Model: llm.Config{
			Provider: llm.ProviderOpenAI,
			Timeout:  llm.DefaultTimeout,
		},
		Deploy: DeployConfig{
			Container: deploy.DefaultContainer,
			Strategy:  string(deploy.FullWipe),
		},
		RateLimits: map[string]RateLimit{
			"POST /intent":        {Max: 30, Window: time.Minute},
			"POST /generate-code": {Max: 10, Window: time.Minute},
			"POST /deploy":        {Max: 5, Window: time.Minute},
		},
	}
}

// Load reads path (skipped when empty), then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyModelDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	c.Port = env("PORT", c.Port)
	c.LogLevel = env("LOG_LEVEL", c.LogLevel)
	c.DataDir = env("DATA_DIR", c.DataDir)
	c.ProjectDir = env("PROJECT_DIR", c.ProjectDir)
	c.FrontendDir = env("FRONTEND_DIR", c.FrontendDir)
	c.AuditDB = env("AUDIT_DB", c.AuditDB)

	c.Model.Provider = env("MODEL_PROVIDER", c.Model.Provider)
	switch c.Model.Provider {
	case llm.ProviderGemini:
		c.Model.APIKey = env("GEMINI_API_KEY", c.Model.APIKey)
	default:
		c.Model.APIKey = env("OPENAI_API_KEY", c.Model.APIKey)
		c.Model.BaseURL = env("OPENAI_BASE_URL", c.Model.BaseURL)
	}
	c.Generation.IntentModel = env("INTENT_MODEL", c.Generation.IntentModel)
	c.Generation.CodeModel = env("CODE_MODEL", c.Generation.CodeModel)

	c.Deploy.Target = env("DEPLOY_TARGET", c.Deploy.Target)
	c.Deploy.ConnectionString = env("AZURE_STORAGE_CONNECTION_STRING", c.Deploy.ConnectionString)
	c.Deploy.Container = env("DEPLOY_CONTAINER", c.Deploy.Container)
	c.Deploy.Dir = env("DEPLOY_DIR", c.Deploy.Dir)
	c.Deploy.Strategy = env("DEPLOY_STRATEGY", c.Deploy.Strategy)
	c.Deploy.PublicURL = env("STATIC_SITE_URL", c.Deploy.PublicURL)

	var err error
	if c.Model.Timeout, err = envDuration("MODEL_TIMEOUT", c.Model.Timeout); err != nil {
		return err
	}
	if c.Deploy.Minify, err = envBool("DEPLOY_MINIFY", c.Deploy.Minify); err != nil {
		return err
	}
	if c.MCPEnabled, err = envBool("MCP_ENABLED", c.MCPEnabled); err != nil {
		return err
	}
	return nil
}

// applyModelDefaults picks per-provider model names the user left unset.
func (c *Config) applyModelDefaults() {
	if c.Model.Provider != llm.ProviderGemini {
		return
	}
	if c.Generation.IntentModel == "" {
		c.Generation.IntentModel = "gemini-2.5-flash"
	}
	if c.Generation.CodeModel == "" {
		c.Generation.CodeModel = "gemini-2.5-pro"
	}
}

// Validate checks values that would only fail later, at first use.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("config: port %q is not a number", c.Port)
	}
	switch c.Model.Provider {
	case llm.ProviderOpenAI, llm.ProviderGemini, llm.ProviderStatic:
	default:
		return fmt.Errorf("config: unknown model provider %q", c.Model.Provider)
	}
	if c.Model.BaseURL != "" {
		if err := horosafe.ValidateHTTPURL(c.Model.BaseURL); err != nil {
			return fmt.Errorf("config: model base url: %w", err)
		}
	}
	if c.Deploy.PublicURL != "" {
		if err := horosafe.ValidateHTTPURL(c.Deploy.PublicURL); err != nil {
			return fmt.Errorf("config: static site url: %w", err)
		}
	}
	switch c.DeployTarget() {
	case "", TargetAzure, TargetMemory:
	case TargetDir:
		if c.Deploy.Dir == "" {
			return fmt.Errorf("config: deploy target dir needs DEPLOY_DIR")
		}
	default:
		return fmt.Errorf("config: unknown deploy target %q", c.Deploy.Target)
	}
	if _, err := deploy.ParseStrategy(c.Deploy.Strategy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for key, rl := range c.RateLimits {
		if rl.Max <= 0 || rl.Window <= 0 {
			return fmt.Errorf("config: rate limit %q needs max and window", key)
		}
	}
	return nil
}

// DeployTarget resolves the effective deployment target kind.
func (c *Config) DeployTarget() string {
	if t := strings.ToLower(c.Deploy.Target); t != "" {
		return t
	}
	if c.Deploy.ConnectionString != "" {
		return TargetAzure
	}
	return ""
}

// Addr is the listen address.
func (c *Config) Addr() string { return ":" + c.Port }

// ProjectPath is the project directory, resolved against DataDir.
func (c *Config) ProjectPath() string { return c.resolve(c.ProjectDir) }

// AuditPath is the audit database path, resolved against DataDir. Empty
// disables auditing.
func (c *Config) AuditPath() string {
	if c.AuditDB == "" {
		return ""
	}
	return c.resolve(c.AuditDB)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// RateLimitRules converts RateLimits for shield.NewRateLimiter.
func (c *Config) RateLimitRules() map[string]shield.RateLimitConfig {
	rules := make(map[string]shield.RateLimitConfig, len(c.RateLimits))
	for key, rl := range c.RateLimits {
		rules[key] = shield.RateLimitConfig{MaxRequests: rl.Max, Window: rl.Window}
	}
	return rules
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
