package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"opsportal/internal/domain"
	"opsportal/internal/scoring"
)

// Config models portal.yml.
type Config struct {
	Scoring struct {
		Threshold int `yaml:"threshold"`
		// Rules and Intents replace the built-in lists when non-empty.
		Rules   []scoring.Rule       `yaml:"rules,omitempty"`
		Intents []scoring.IntentRule `yaml:"intents,omitempty"`
	} `yaml:"scoring"`
	Conversion struct {
		DefaultPriority string   `yaml:"default_priority"`
		AllowedRoles    []string `yaml:"allowed_roles"`
	} `yaml:"conversion"`
	Server struct {
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Notifications struct {
		PollIntervalSeconds int             `yaml:"poll_interval_seconds"`
		Intents             []string        `yaml:"intents"`
		Webhooks            []WebhookConfig `yaml:"webhooks"`
	} `yaml:"notifications"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

var priorities = map[string]bool{"low": true, "medium": true, "high": true, "urgent": true}

var roles = map[string]bool{
	domain.RoleAdmin: true, domain.RolePM: true, domain.RoleDev: true, domain.RoleQA: true, domain.RoleViewer: true,
}

// ValidPriority reports whether p is an accepted project priority.
func ValidPriority(p string) bool {
	return priorities[p]
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Scoring.Threshold < scoring.MinScore || c.Scoring.Threshold > scoring.MaxScore {
		return fmt.Errorf("config.scoring.threshold must be within [%d,%d]", scoring.MinScore, scoring.MaxScore)
	}
	if err := c.RuleSet().Validate(); err != nil {
		return fmt.Errorf("config.scoring: %w", err)
	}
	if !ValidPriority(c.Conversion.DefaultPriority) {
		return fmt.Errorf("config.conversion.default_priority %q is not one of low, medium, high, urgent", c.Conversion.DefaultPriority)
	}
	if len(c.Conversion.AllowedRoles) == 0 {
		return fmt.Errorf("config.conversion.allowed_roles is required")
	}
	for _, r := range c.Conversion.AllowedRoles {
		if !roles[r] {
			return fmt.Errorf("config.conversion.allowed_roles contains unknown role %s", r)
		}
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Notifications.PollIntervalSeconds < 0 {
		return fmt.Errorf("config.notifications.poll_interval_seconds must not be negative")
	}
	for i, hook := range c.Notifications.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.notifications.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.notifications.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// RuleSet returns the scoring rules in effect.
func (c *Config) RuleSet() scoring.RuleSet {
	rs := scoring.DefaultRuleSet()
	if len(c.Scoring.Rules) > 0 {
		rs.Rules = c.Scoring.Rules
	}
	if len(c.Scoring.Intents) > 0 {
		rs.Intents = c.Scoring.Intents
	}
	return rs
}

func (c *Config) Policy() scoring.Policy {
	return scoring.Policy{Threshold: c.Scoring.Threshold}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "portal.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; write one with ops config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOrDefault returns the default config when the file does not exist.
func LoadOrDefault(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys left out keep
// their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `scoring:
  threshold: 70

conversion:
  default_priority: medium
  allowed_roles: [admin, pm]

server:
  base_path: /v0

notifications:
  poll_interval_seconds: 2
  intents:
    - lead.converted
    - instance.started
    - instance.completed
    - lead.scored
  webhooks: []
`
