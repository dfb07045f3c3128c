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
	"strings"
	"time"
)

// OpenAIProvider implements Provider against an OpenAI-compatible
// images and speech API.
type OpenAIProvider struct {
	APIKey  string
	APIBase string
}

// NewOpenAIProvider creates a new OpenAI media provider.
func NewOpenAIProvider(apiKey, apiBase string) *OpenAIProvider {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{APIKey: apiKey, APIBase: strings.TrimRight(apiBase, "/")}
}

func (p *OpenAIProvider) GenerateImage(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = "dall-e-3"
	}
	return p.callImages(ctx, map[string]any{
		"model":  model,
		"prompt": prompt,
		"size":   "1024x1024",
		"n":      1,
	})
}

func (p *OpenAIProvider) EditImage(ctx context.Context, prompt, imageURL, model string) (string, error) {
	return "", fmt.Errorf("image editing requires file upload, not supported for %s", p.APIBase)
}

func (p *OpenAIProvider) GenerateAudio(ctx context.Context, input, model string) (string, error) {
	if model == "" {
		model = "tts-1"
	}
	body, err := p.post(ctx, "/audio/speech", map[string]any{
		"model": model,
		"input": input,
		"voice": "alloy",
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

func (p *OpenAIProvider) callImages(ctx context.Context, reqBody map[string]any) (string, error) {
	body, err := p.post(ctx, "/images/generations", reqBody)
	if err != nil {
		return "", err
	}

	var result struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(result.Data) > 0 && result.Data[0].URL != "" {
		return result.Data[0].URL, nil
	}
	return "", fmt.Errorf("no URL in response")
}

func (p *OpenAIProvider) post(ctx context.Context, path string, reqBody map[string]any) ([]byte, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", p.APIBase+path, bytes.NewBuffer(jsonData))
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
