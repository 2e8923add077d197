package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsportal/internal/config"
	"opsportal/internal/scoring"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 70, cfg.Policy().Threshold)
	assert.Equal(t, "medium", cfg.Conversion.DefaultPriority)
	assert.Equal(t, []string{"admin", "pm"}, cfg.Conversion.AllowedRoles)
	assert.Equal(t, scoring.DefaultRuleSet(), cfg.RuleSet())
}

func TestFromYAMLOverridesRules(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
scoring:
  threshold: 60
  rules:
    - category: contact
      field: email
      condition: exists
      points: 50
      reason: Email provided
    - category: engagement
      field: message
      condition: length_gt
      value: 20
      points: 20
      reason: Some detail
`))
	require.NoError(t, err)
	rs := cfg.RuleSet()
	require.Len(t, rs.Rules, 2)
	assert.Equal(t, 20, rs.Rules[1].Value)
	assert.Len(t, rs.Intents, len(scoring.DefaultRuleSet().Intents), "intents fall back to defaults")
	assert.Equal(t, 60, cfg.Policy().Threshold)
	assert.Equal(t, "medium", cfg.Conversion.DefaultPriority, "unset keys keep defaults")
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"threshold":   "scoring:\n  threshold: 120\n",
		"priority":    "conversion:\n  default_priority: someday\n",
		"role":        "conversion:\n  allowed_roles: [owner]\n",
		"base path":   "server:\n  base_path: v0\n",
		"webhook url": "notifications:\n  webhooks:\n    - events: [lead.converted]\n",
		"pattern":     "scoring:\n  intents:\n    - pattern: \"(\"\n      points: 1\n      reason: bad\n",
		"condition":   "scoring:\n  rules:\n    - category: c\n      field: email\n      condition: sometimes\n      points: 1\n      reason: r\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadOrDefault(dir)
	require.NoError(t, err)
	assert.Equal(t, 70, cfg.Scoring.Threshold)

	_, err = config.Load(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(config.Path(dir), []byte("scoring:\n  threshold: 80\n"), 0o644))
	cfg, err = config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Scoring.Threshold)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staging.yml")
	_, err := config.FromFile(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("scoring:\n  threshold: 55\n"), 0o644))
	cfg, err := config.FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 55, cfg.Scoring.Threshold)

	require.NoError(t, os.WriteFile(path, []byte("scoring:\n  threshold: 140\n"), 0o644))
	_, err = config.FromFile(path)
	assert.Error(t, err)
}
