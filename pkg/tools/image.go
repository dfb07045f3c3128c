package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/config"
	"github.com/ZaynJarvis/vikingbot/pkg/mediaproviders"
)

// GenerateImageTool generates an image from a prompt and saves it into
// the session's sandbox workspace so other tools can pick it up.
type GenerateImageTool struct {
	Factory *mediaproviders.Factory
	Config  *config.Config
}

// NewGenerateImageTool creates a new GenerateImageTool.
func NewGenerateImageTool(cfg *config.Config) *GenerateImageTool {
	return &GenerateImageTool{
		Config:  cfg,
		Factory: mediaproviders.NewFactory(cfg),
	}
}

func (t *GenerateImageTool) Name() string {
	return "generate_image"
}

func (t *GenerateImageTool) Description() string {
	return "Generate an image from a text prompt. The image is saved into the workspace and its path returned."
}

func (t *GenerateImageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "Text prompt describing the image to generate",
			},
			"model": map[string]any{
				"type":        "string",
				"description": "Specific model to use (optional)",
			},
		},
		"required": []string{"prompt"},
	}
}

func (t *GenerateImageTool) Execute(ctx context.Context, tc *ToolContext, args map[string]any) (string, error) {
	prompt := args["prompt"].(string)
	model, _ := args["model"].(string)
	if model == "" {
		model = t.Config.Tools.MediaGen.Model
	}

	provider := t.Factory.GetProvider(model)
	url, err := provider.GenerateImage(ctx, prompt, model)
	if err != nil {
		return fmt.Sprintf("Error: image generation failed: %v", err), nil
	}

	backend, err := tc.Backend()
	if err != nil {
		return "", err
	}
	path := fmt.Sprintf("images/generated_%d.png", time.Now().Unix())
	if err := downloadTo(ctx, url, backend.WriteFile, path); err != nil {
		// The URL is still usable even if the local save failed.
		return fmt.Sprintf("Image generated: %s (save failed: %v)", url, err), nil
	}
	return fmt.Sprintf("Image generated and saved to %s", path), nil
}

func downloadTo(ctx context.Context, url string, write func(context.Context, string, string) error, path string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return write(ctx, path, string(data))
}
