package providers

import (
	"testing"

	"github.com/ZaynJarvis/vikingbot/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY",
		"DEEPSEEK_API_KEY", "ZHIPU_API_KEY", "GROQ_API_KEY", "VLLM_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestNewProviderExplicitAnthropic(t *testing.T) {
	clearProviderEnv(t)
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Provider = "anthropic"
	cfg.Providers.Anthropic.APIKey = "sk-ant-test"

	p, err := NewProvider(cfg)
	require.NoError(t, err)

	oai, ok := p.(*OpenAIProvider)
	require.True(t, ok)
	assert.Equal(t, "sk-ant-test", oai.APIKey)
	assert.Equal(t, "https://api.anthropic.com/v1", oai.APIBase)
}

func TestNewProviderHeuristicPicksAnthropic(t *testing.T) {
	clearProviderEnv(t)
	cfg := config.DefaultConfig()
	cfg.Providers.Anthropic.APIKey = "sk-ant-test"

	p, err := NewProvider(cfg)
	require.NoError(t, err)

	oai, ok := p.(*OpenAIProvider)
	require.True(t, ok)
	assert.Equal(t, "https://api.anthropic.com/v1", oai.APIBase)
}

func TestNewProviderHeuristicPrefersOpenRouter(t *testing.T) {
	clearProviderEnv(t)
	cfg := config.DefaultConfig()
	cfg.Providers.Anthropic.APIKey = "sk-ant-test"
	cfg.Providers.OpenRouter.APIKey = "sk-or-test"

	p, err := NewProvider(cfg)
	require.NoError(t, err)

	oai, ok := p.(*OpenAIProvider)
	require.True(t, ok)
	assert.Equal(t, "https://openrouter.ai/api/v1", oai.APIBase)
}

func TestNewProviderUnknownExplicit(t *testing.T) {
	clearProviderEnv(t)
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Provider = "watson"

	_, err := NewProvider(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestNewProviderNoKeyConfigured(t *testing.T) {
	clearProviderEnv(t)
	cfg := config.DefaultConfig()

	_, err := NewProvider(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key configured")
}
