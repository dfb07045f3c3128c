package providers

import (
	"fmt"
	"os"
	"strings"

	"github.com/ZaynJarvis/vikingbot/pkg/config"
)

// NewProvider creates an LLM provider from configuration: explicit
// selection when agents.defaults.provider is set, otherwise the first
// provider with a configured API key.
func NewProvider(cfg *config.Config) (LLMProvider, error) {
	defaultModel := cfg.Agents.Defaults.Model
	explicitProvider := cfg.Agents.Defaults.Provider

	checkEnv := func(cfgVal, envKey string) string {
		if cfgVal != "" {
			return cfgVal
		}
		return os.Getenv(envKey)
	}

	if explicitProvider != "" {
		switch strings.ToLower(explicitProvider) {
		case "anthropic":
			apiKey := checkEnv(cfg.Providers.Anthropic.APIKey, "ANTHROPIC_API_KEY")
			apiBase := cfg.Providers.Anthropic.APIBase
			if apiBase == "" {
				apiBase = "https://api.anthropic.com/v1"
			}
			return NewOpenAIProvider(apiKey, apiBase, defaultModel), nil
		case "openai":
			apiKey := checkEnv(cfg.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
			return NewOpenAIProvider(apiKey, cfg.Providers.OpenAI.APIBase, defaultModel), nil
		case "deepseek":
			apiKey := checkEnv(cfg.Providers.DeepSeek.APIKey, "DEEPSEEK_API_KEY")
			apiBase := cfg.Providers.DeepSeek.APIBase
			if apiBase == "" {
				apiBase = "https://api.deepseek.com"
			}
			return NewOpenAIProvider(apiKey, apiBase, defaultModel), nil
		case "openrouter":
			apiKey := checkEnv(cfg.Providers.OpenRouter.APIKey, "OPENROUTER_API_KEY")
			apiBase := cfg.Providers.OpenRouter.APIBase
			if apiBase == "" {
				apiBase = "https://openrouter.ai/api/v1"
			}
			return NewOpenAIProvider(apiKey, apiBase, defaultModel), nil
		case "zhipu":
			apiKey := checkEnv(cfg.Providers.Zhipu.APIKey, "ZHIPU_API_KEY")
			apiBase := cfg.Providers.Zhipu.APIBase
			if apiBase == "" {
				apiBase = "https://open.bigmodel.cn/api/paas/v4/"
			}
			return NewOpenAIProvider(apiKey, apiBase, defaultModel), nil
		case "groq":
			apiKey := checkEnv(cfg.Providers.Groq.APIKey, "GROQ_API_KEY")
			apiBase := cfg.Providers.Groq.APIBase
			if apiBase == "" {
				apiBase = "https://api.groq.com/openai/v1"
			}
			return NewOpenAIProvider(apiKey, apiBase, defaultModel), nil
		case "vllm":
			apiKey := checkEnv(cfg.Providers.VLLM.APIKey, "VLLM_API_KEY")
			return NewOpenAIProvider(apiKey, cfg.Providers.VLLM.APIBase, defaultModel), nil
		default:
			return nil, fmt.Errorf("unknown provider: %s", explicitProvider)
		}
	}

	// Heuristic selection, most specific providers first.
	if key := checkEnv(cfg.Providers.OpenRouter.APIKey, "OPENROUTER_API_KEY"); key != "" {
		apiBase := cfg.Providers.OpenRouter.APIBase
		if apiBase == "" {
			apiBase = "https://openrouter.ai/api/v1"
		}
		return NewOpenAIProvider(key, apiBase, defaultModel), nil
	}
	if key := checkEnv(cfg.Providers.DeepSeek.APIKey, "DEEPSEEK_API_KEY"); key != "" {
		apiBase := cfg.Providers.DeepSeek.APIBase
		if apiBase == "" {
			apiBase = "https://api.deepseek.com"
		}
		return NewOpenAIProvider(key, apiBase, defaultModel), nil
	}
	if key := checkEnv(cfg.Providers.Anthropic.APIKey, "ANTHROPIC_API_KEY"); key != "" {
		apiBase := cfg.Providers.Anthropic.APIBase
		if apiBase == "" {
			apiBase = "https://api.anthropic.com/v1"
		}
		return NewOpenAIProvider(key, apiBase, defaultModel), nil
	}
	if key := checkEnv(cfg.Providers.OpenAI.APIKey, "OPENAI_API_KEY"); key != "" {
		return NewOpenAIProvider(key, cfg.Providers.OpenAI.APIBase, defaultModel), nil
	}
	if key := checkEnv(cfg.Providers.Zhipu.APIKey, "ZHIPU_API_KEY"); key != "" {
		apiBase := cfg.Providers.Zhipu.APIBase
		if apiBase == "" {
			apiBase = "https://open.bigmodel.cn/api/paas/v4/"
		}
		return NewOpenAIProvider(key, apiBase, defaultModel), nil
	}
	if key := checkEnv(cfg.Providers.Groq.APIKey, "GROQ_API_KEY"); key != "" {
		apiBase := cfg.Providers.Groq.APIBase
		if apiBase == "" {
			apiBase = "https://api.groq.com/openai/v1"
		}
		return NewOpenAIProvider(key, apiBase, defaultModel), nil
	}
	if key := checkEnv(cfg.Providers.VLLM.APIKey, "VLLM_API_KEY"); key != "" {
		return NewOpenAIProvider(key, cfg.Providers.VLLM.APIBase, defaultModel), nil
	}

	return nil, fmt.Errorf("no API key configured for any provider")
}
