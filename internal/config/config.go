// Package config loads voicechat configuration from a yaml file merged
// over environment variables. Environment values win, so deployments can
// override a checked-in file without editing it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DashScope DashScopeConfig `yaml:"dashscope"`
	Chat      ChatConfig      `yaml:"chat"`
	Voice     VoiceConfig     `yaml:"voice"`
	LogLevel  string          `yaml:"log_level"`
}

type DashScopeConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

type ChatConfig struct {
	// Provider selects the chat backend, "claude" or "qwen".
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
}

type VoiceConfig struct {
	// Voice is the synthesis voice id; it also selects the model family.
	Voice         string   `yaml:"voice"`
	LanguageHints []string `yaml:"language_hints"`
	// BargeInFrames is how many consecutive speech frames interrupt
	// playback; 0 disables barge-in.
	BargeInFrames int `yaml:"barge_in_frames"`
	// SpeechThreshold is the mean absolute amplitude above which a frame
	// counts as speech; 0 treats every frame as speech.
	SpeechThreshold int `yaml:"speech_threshold"`
}

// Load reads the yaml file at path when it exists and merges environment
// overrides on top. A missing file is not an error; the environment alone
// can carry a full configuration.
func Load(path string) (*Config, error) {
	config := &Config{
		Chat:     ChatConfig{Provider: "qwen"},
		Voice:    VoiceConfig{BargeInFrames: 3},
		LogLevel: "info",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnv(config)

	if config.Chat.APIKey == "" {
		// The compatible-mode endpoint takes the same key as the task
		// sessions.
		if config.Chat.Provider == "qwen" {
			config.Chat.APIKey = config.DashScope.APIKey
		}
	}

	return config, nil
}

func applyEnv(config *Config) {
	overrideString(&config.DashScope.APIKey, "DASHSCOPE_API_KEY")
	overrideString(&config.DashScope.Endpoint, "DASHSCOPE_ENDPOINT")
	overrideString(&config.Chat.Provider, "VOICECHAT_CHAT_PROVIDER")
	overrideString(&config.Chat.Model, "VOICECHAT_CHAT_MODEL")
	overrideString(&config.Chat.BaseURL, "VOICECHAT_CHAT_BASE_URL")
	if config.Chat.Provider == "claude" {
		overrideString(&config.Chat.APIKey, "ANTHROPIC_API_KEY")
	}
	overrideString(&config.Voice.Voice, "VOICECHAT_VOICE")
	overrideString(&config.LogLevel, "VOICECHAT_LOG_LEVEL")
}

func overrideString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}
