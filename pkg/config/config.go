package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type FeishuConfig struct {
	Enabled           bool     `json:"enabled"`
	AppID             string   `json:"appId"`
	AppSecret         string   `json:"appSecret"`
	EncryptKey        string   `json:"encryptKey"`
	VerificationToken string   `json:"verificationToken"`
	AllowFrom         []string `json:"allowFrom"`
}

type DingTalkConfig struct {
	Enabled   bool     `json:"enabled"`
	ClientID  string   `json:"clientId"`
	Secret    string   `json:"secret"`
	RobotCode string   `json:"robotCode"`
	AllowFrom []string `json:"allowFrom"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Feishu   FeishuConfig   `json:"feishu"`
	DingTalk DingTalkConfig `json:"dingtalk"`
}

type SubagentsConfig struct {
	MaxConcurrent     int `json:"maxConcurrent"`
	MaxToolIterations int `json:"maxToolIterations"`
}

type AgentDefaults struct {
	Workspace         string  `json:"workspace"`
	Model             string  `json:"model"`
	Provider          string  `json:"provider,omitempty"`
	MaxTokens         int     `json:"maxTokens"`
	Temperature       float64 `json:"temperature"`
	MaxToolIterations int     `json:"maxToolIterations"`
	MemoryWindow      int     `json:"memoryWindow"`
}

type AgentsConfig struct {
	Defaults  AgentDefaults   `json:"defaults"`
	Subagents SubagentsConfig `json:"subagents"`
}

type ProviderConfig struct {
	APIKey  string `json:"apiKey"`
	APIBase string `json:"apiBase,omitempty"`
}

type ProvidersConfig struct {
	Anthropic   ProviderConfig `json:"anthropic"`
	OpenAI      ProviderConfig `json:"openai"`
	OpenRouter  ProviderConfig `json:"openrouter"`
	DeepSeek    ProviderConfig `json:"deepseek"`
	Groq        ProviderConfig `json:"groq"`
	Zhipu       ProviderConfig `json:"zhipu"`
	VLLM        ProviderConfig `json:"vllm"`
	SiliconFlow ProviderConfig `json:"siliconflow"`
}

type WebSearchConfig struct {
	APIKey     string `json:"apiKey"`
	MaxResults int    `json:"maxResults"`
}

type WebToolsConfig struct {
	Search WebSearchConfig `json:"search"`
}

type ExecToolConfig struct {
	Timeout             int  `json:"timeout"`
	RestrictToWorkspace bool `json:"restrictToWorkspace"`
}

type MediaGenerationConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"apiKey"`
	APIBase  string `json:"apiBase,omitempty"`
}

type ToolsConfig struct {
	Web      WebToolsConfig        `json:"web"`
	Exec     ExecToolConfig        `json:"exec"`
	MediaGen MediaGenerationConfig `json:"mediaGeneration"`
}

type ContainerSandboxConfig struct {
	Image string `json:"image"`
}

type RemoteSandboxConfig struct {
	BaseURL string `json:"baseUrl"`
	Token   string `json:"token,omitempty"`
}

// SandboxConfig selects the execution backend and the pooling mode.
// Mode "session" gives each session key its own sandbox; "shared" pools
// every session into one.
type SandboxConfig struct {
	Enabled   bool                   `json:"enabled"`
	Mode      string                 `json:"mode"`
	Backend   string                 `json:"backend"`
	Skills    []string               `json:"skills,omitempty"`
	Container ContainerSandboxConfig `json:"container"`
	Remote    RemoteSandboxConfig    `json:"remote"`
}

type HeartbeatConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"intervalMinutes"`
}

type VikingConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"baseUrl"`
	APIKey  string `json:"apiKey"`
}

type Config struct {
	Agents    AgentsConfig    `json:"agents"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	Tools     ToolsConfig     `json:"tools"`
	Sandbox   SandboxConfig   `json:"sandbox"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Viking    VikingConfig    `json:"viking"`
}

// WorkspacePath returns the agent workspace with ~ expanded.
func (c *Config) WorkspacePath() string {
	ws := c.Agents.Defaults.Workspace
	if len(ws) >= 2 && ws[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			ws = filepath.Join(home, ws[2:])
		}
	}
	abs, err := filepath.Abs(ws)
	if err != nil {
		return ws
	}
	return abs
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				Workspace:         "~/.vikingbot/workspace",
				Model:             "deepseek-chat",
				MaxTokens:         8192,
				Temperature:       0.7,
				MaxToolIterations: 50,
				MemoryWindow:      50,
			},
			Subagents: SubagentsConfig{
				MaxConcurrent:     5,
				MaxToolIterations: 15,
			},
		},
		Tools: ToolsConfig{
			Web: WebToolsConfig{
				Search: WebSearchConfig{MaxResults: 5},
			},
			Exec: ExecToolConfig{
				Timeout:             60,
				RestrictToWorkspace: true,
			},
		},
		Sandbox: SandboxConfig{
			Enabled: true,
			Mode:    "session",
			Backend: "direct",
			Container: ContainerSandboxConfig{
				Image: "ubuntu:24.04",
			},
		},
		Heartbeat: HeartbeatConfig{
			Enabled:         true,
			IntervalMinutes: 30,
		},
	}
}

// DefaultPath is the config location used when -c is not given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".vikingbot", "config.json")
	}
	return filepath.Join(home, ".vikingbot", "config.json")
}

// LoadConfig loads the configuration file at path, falling back to
// defaults when it does not exist, then applies VIKINGBOT_* environment
// overrides.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	config := DefaultConfig()

	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else {
		defer file.Close()
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process("vikingbot", config); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	return config, nil
}

// Save writes the configuration as indented JSON.
func Save(path string, config *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
