package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voicechat.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected a missing file to be fine, got %v", err)
	}
	if config.Chat.Provider != "qwen" {
		t.Fatalf("expected qwen as the default provider, got %q", config.Chat.Provider)
	}
	if config.Voice.BargeInFrames != 3 {
		t.Fatalf("expected 3 barge-in frames by default, got %d", config.Voice.BargeInFrames)
	}
	if config.LogLevel != "info" {
		t.Fatalf("expected info log level by default, got %q", config.LogLevel)
	}
}

func TestLoadFileValues(t *testing.T) {
	path := writeConfigFile(t, `
dashscope:
  api_key: sk-file
chat:
  provider: claude
  model: claude-sonnet-4-5
  api_key: sk-ant-file
voice:
  voice: longyingxiao
  language_hints: [zh, en]
  barge_in_frames: 5
log_level: debug
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("expected the file to load, got %v", err)
	}
	if config.Chat.Provider != "claude" || config.Chat.APIKey != "sk-ant-file" {
		t.Fatalf("expected chat settings from the file, got %+v", config.Chat)
	}
	if config.Voice.Voice != "longyingxiao" || config.Voice.BargeInFrames != 5 {
		t.Fatalf("expected voice settings from the file, got %+v", config.Voice)
	}
	if len(config.Voice.LanguageHints) != 2 || config.Voice.LanguageHints[0] != "zh" {
		t.Fatalf("expected language hints from the file, got %q", config.Voice.LanguageHints)
	}
	if config.LogLevel != "debug" {
		t.Fatalf("expected debug log level, got %q", config.LogLevel)
	}
}

func TestLoadEnvironmentWins(t *testing.T) {
	path := writeConfigFile(t, `
dashscope:
  api_key: sk-file
chat:
  provider: qwen
  model: qwen-plus
`)

	t.Setenv("DASHSCOPE_API_KEY", "sk-env")
	t.Setenv("VOICECHAT_CHAT_MODEL", "qwen-max")

	config, err := Load(path)
	if err != nil {
		t.Fatalf("expected the file to load, got %v", err)
	}
	if config.DashScope.APIKey != "sk-env" {
		t.Fatalf("expected the environment to win, got %q", config.DashScope.APIKey)
	}
	if config.Chat.Model != "qwen-max" {
		t.Fatalf("expected the environment model, got %q", config.Chat.Model)
	}
}

func TestLoadQwenInheritsTaskSessionKey(t *testing.T) {
	path := writeConfigFile(t, `
dashscope:
  api_key: sk-shared
chat:
  provider: qwen
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("expected the file to load, got %v", err)
	}
	if config.Chat.APIKey != "sk-shared" {
		t.Fatalf("expected qwen to inherit the task session key, got %q", config.Chat.APIKey)
	}
}

func TestLoadClaudeKeyOnlyAppliesToClaude(t *testing.T) {
	path := writeConfigFile(t, `
dashscope:
  api_key: sk-shared
chat:
  provider: qwen
`)

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")

	config, err := Load(path)
	if err != nil {
		t.Fatalf("expected the file to load, got %v", err)
	}
	if config.Chat.APIKey != "sk-shared" {
		t.Fatalf("expected the anthropic key to be ignored for qwen, got %q", config.Chat.APIKey)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeConfigFile(t, "chat: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected a parse error")
	}
}
