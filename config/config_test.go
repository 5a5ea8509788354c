package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/siteforge/llm"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr() != ":3000" {
		t.Errorf("addr = %q", cfg.Addr())
	}
	if cfg.ProjectPath() != "generated-site" {
		t.Errorf("project path = %q", cfg.ProjectPath())
	}
	if cfg.AuditPath() != filepath.Join("db", "audit.db") {
		t.Errorf("audit path = %q", cfg.AuditPath())
	}
	if cfg.Model.Provider != llm.ProviderOpenAI || cfg.Model.Timeout != 2*time.Minute {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.DeployTarget() != "" {
		t.Errorf("deploy target = %q, want none without credentials", cfg.DeployTarget())
	}
	if !cfg.MCPEnabled {
		t.Error("mcp disabled by default")
	}
	rules := cfg.RateLimitRules()
	if rules["POST /generate-code"].MaxRequests != 10 {
		t.Errorf("rules = %+v", rules)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	// WHAT: YAML values apply, and environment variables override them.
	path := filepath.Join(t.TempDir(), "siteforge.yaml")
	yaml := `
port: "8080"
data_dir: /srv/siteforge
model:
  provider: openai
  timeout: 30s
generation:
  code_model: gpt-4.1
deploy:
  target: dir
  dir: /srv/www
  strategy: diff
rate_limits:
  "POST /deploy": {max: 1, window: 10s}
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "9090")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DEPLOY_MINIFY", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %q, env must win", cfg.Port)
	}
	if cfg.ProjectPath() != "/srv/siteforge/generated-site" {
		t.Errorf("project path = %q", cfg.ProjectPath())
	}
	if cfg.Model.Timeout != 30*time.Second || cfg.Model.APIKey != "sk-test" {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.Generation.CodeModel != "gpt-4.1" {
		t.Errorf("code model = %q", cfg.Generation.CodeModel)
	}
	if cfg.DeployTarget() != TargetDir || cfg.Deploy.Strategy != "diff" || !cfg.Deploy.Minify {
		t.Errorf("deploy = %+v", cfg.Deploy)
	}
	if rl := cfg.RateLimits["POST /deploy"]; rl.Max != 1 || rl.Window != 10*time.Second {
		t.Errorf("rate limit = %+v", rl)
	}
}

func TestLoad_GeminiDefaults(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OPENAI_API_KEY", "sk-ignored")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.APIKey != "g-key" {
		t.Errorf("api key = %q", cfg.Model.APIKey)
	}
	if cfg.Generation.IntentModel != "gemini-2.5-flash" || cfg.Generation.CodeModel != "gemini-2.5-pro" {
		t.Errorf("generation = %+v", cfg.Generation)
	}
}

func TestLoad_AzureFromConnectionString(t *testing.T) {
	t.Setenv("AZURE_STORAGE_CONNECTION_STRING", "DefaultEndpointsProtocol=https;AccountName=x;AccountKey=eA==")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DeployTarget() != TargetAzure || cfg.Deploy.Container != "$web" {
		t.Errorf("deploy = %+v", cfg.Deploy)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad timeout", "MODEL_TIMEOUT", "soon"},
		{"bad bool", "MCP_ENABLED", "maybe"},
		{"bad port", "PORT", "http"},
		{"bad provider", "MODEL_PROVIDER", "llama"},
		{"bad target", "DEPLOY_TARGET", "ftp"},
		{"dir without path", "DEPLOY_TARGET", "dir"},
		{"bad strategy", "DEPLOY_STRATEGY", "rsync"},
		{"bad base url", "OPENAI_BASE_URL", "file:///etc/passwd"},
		{"bad site url", "STATIC_SITE_URL", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(""); err == nil {
				t.Errorf("%s=%q accepted", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
