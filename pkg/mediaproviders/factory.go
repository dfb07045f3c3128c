package mediaproviders

import (
	"strings"

	"github.com/ZaynJarvis/vikingbot/pkg/config"
)

// Factory creates media providers based on configuration and model name.
type Factory struct {
	Config *config.Config
}

// NewFactory creates a new media provider factory.
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{Config: cfg}
}

// GetProvider returns a provider suitable for the given model. An
// explicit provider in tools.mediaGeneration wins; otherwise OpenAI
// models route to OpenAI and everything else to SiliconFlow.
func (f *Factory) GetProvider(model string) Provider {
	switch strings.ToLower(f.Config.Tools.MediaGen.Provider) {
	case "openai":
		return NewOpenAIProvider(f.openAIKey(), f.Config.Tools.MediaGen.APIBase)
	case "siliconflow":
		return NewSiliconFlowProvider(f.Config.Providers.SiliconFlow.APIKey)
	}

	if strings.HasPrefix(model, "dall-e") || strings.HasPrefix(model, "gpt-image") || strings.HasPrefix(model, "tts") {
		return NewOpenAIProvider(f.openAIKey(), "")
	}
	return NewSiliconFlowProvider(f.Config.Providers.SiliconFlow.APIKey)
}

func (f *Factory) openAIKey() string {
	if f.Config.Tools.MediaGen.APIKey != "" {
		return f.Config.Tools.MediaGen.APIKey
	}
	return f.Config.Providers.OpenAI.APIKey
}
