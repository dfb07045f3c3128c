package mediaproviders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const siliconFlowBase = "https://api.siliconflow.cn/v1"

// SiliconFlowProvider implements Provider for the SiliconFlow API,
// which serves open models (Flux, Qwen, Stable Diffusion).
type SiliconFlowProvider struct {
	APIKey string
}

// NewSiliconFlowProvider creates a new SiliconFlow provider.
func NewSiliconFlowProvider(apiKey string) *SiliconFlowProvider {
	return &SiliconFlowProvider{APIKey: apiKey}
}

func (p *SiliconFlowProvider) GenerateImage(ctx context.Context, prompt, model string) (string, error) {
	return p.callImages(ctx, map[string]any{
		"model":      model,
		"prompt":     prompt,
		"image_size": "1024x1024",
		"batch_size": 1,
		"cfg":        4.5,
	})
}

func (p *SiliconFlowProvider) EditImage(ctx context.Context, prompt, imageURL, model string) (string, error) {
	return p.callImages(ctx, map[string]any{
		"model":               model,
		"prompt":              prompt,
		"image_size":          "1024x1024",
		"batch_size":          1,
		"num_inference_steps": 30,
		"cfg":                 10,
		"image":               imageURL,
	})
}

func (p *SiliconFlowProvider) GenerateAudio(ctx context.Context, input, model string) (string, error) {
	body, err := p.post(ctx, "/audio/speech", map[string]any{
		"model":           model,
		"input":           input,
		"voice":           "fishaudio/fish-speech-1.5:alex",
		"response_format": "mp3",
	})
	if err != nil {
		return "", err
	}

	filePath := filepath.Join(os.TempDir(), fmt.Sprintf("audio_%d.mp3", time.Now().Unix()))
	if err := os.WriteFile(filePath, body, 0644); err != nil {
		return "", fmt.Errorf("save audio file: %w", err)
	}
	return filePath, nil
}

func (p *SiliconFlowProvider) callImages(ctx context.Context, reqBody map[string]any) (string, error) {
	body, err := p.post(ctx, "/images/generations", reqBody)
	if err != nil {
		return "", err
	}

	var result struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(result.Images) > 0 && result.Images[0].URL != "" {
		return result.Images[0].URL, nil
	}
	if len(result.Data) > 0 && result.Data[0].URL != "" {
		return result.Data[0].URL, nil
	}
	return "", fmt.Errorf("no URL in response")
}

func (p *SiliconFlowProvider) post(ctx context.Context, path string, reqBody map[string]any) ([]byte, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", siliconFlowBase+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, body)
	}
	return body, nil
}
