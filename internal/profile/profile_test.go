package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"KESTREL_LLM_PROVIDER", "KESTREL_LLM_API_KEY", "KESTREL_LLM_BASE_URL",
		"KESTREL_LLM_MODEL", "KESTREL_TIER0_FLOOR", "KESTREL_TIER3_CEILING",
		"KESTREL_GROUNDING_METHOD", "KESTREL_GROUNDING_THRESHOLD",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnvVars(t)

	p := &Profile{}
	p.FromEnv()

	assert.False(t, p.AIEnabled, "AI should be disabled without an API key")
	assert.Equal(t, "deepseek", p.LLMProvider)
	assert.Equal(t, "https://api.deepseek.com", p.LLMBaseURL)
	assert.Equal(t, "deepseek-chat", p.LLMModel)
	assert.InDelta(t, 0.9, p.Tier0Floor, 1e-9)
	assert.InDelta(t, 0.6, p.Tier1Floor, 1e-9)
	assert.InDelta(t, 0.5, p.Tier2Floor, 1e-9)
	assert.InDelta(t, 0.7, p.Tier3Ceiling, 1e-9)
	assert.Equal(t, 200, p.Tier2TimeoutMs)
	assert.Equal(t, 500, p.Tier3TimeoutMs)
	assert.Equal(t, GroundingFast, p.GroundingMethod)
	assert.Equal(t, 4096, p.MaxContextTokens)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("KESTREL_LLM_PROVIDER", "ollama")
	t.Setenv("KESTREL_LLM_API_KEY", "test-key")
	t.Setenv("KESTREL_GROUNDING_METHOD", "thorough")
	t.Setenv("KESTREL_TIER3_CEILING", "0.65")

	p := &Profile{}
	p.FromEnv()

	assert.True(t, p.AIEnabled)
	assert.Equal(t, "ollama", p.LLMProvider)
	assert.Equal(t, "http://localhost:11434", p.LLMBaseURL)
	assert.Equal(t, GroundingThorough, p.GroundingMethod)
	assert.InDelta(t, 0.65, p.Tier3Ceiling, 1e-9)
}

func TestFromEnvUnknownProviderFallsBack(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("KESTREL_LLM_PROVIDER", "nonsense")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "deepseek", p.LLMProvider)
}

func TestValidateRejectsBadGrounding(t *testing.T) {
	p := &Profile{}
	p.FromEnv()
	p.Data = t.TempDir()
	p.GroundingMethod = "sometimes"

	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grounding method")
}

func TestValidateRejectsOutOfRangeThreshold(t *testing.T) {
	p := &Profile{}
	p.FromEnv()
	p.Data = t.TempDir()
	p.Tier0Floor = 1.5

	err := p.Validate()
	require.Error(t, err)
}

func TestValidateSQLiteDSNDefault(t *testing.T) {
	p := &Profile{}
	p.FromEnv()
	p.Mode = "dev"
	p.Data = t.TempDir()
	p.Driver = "sqlite"

	require.NoError(t, p.Validate())
	assert.Contains(t, p.DSN, "kestrel_dev.db")
}

func TestValidatePostgresRequiresDSN(t *testing.T) {
	p := &Profile{}
	p.FromEnv()
	p.Data = t.TempDir()
	p.Driver = "postgres"

	require.Error(t, p.Validate())
}
