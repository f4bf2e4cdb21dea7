package orchestration

import (
	"fmt"

	"github.com/duplexkit/voice-core/core/llms"
	"github.com/duplexkit/voice-core/core/llms/anthropic"
	"github.com/duplexkit/voice-core/core/llms/qwen"
)

// NewChatProvider constructs the streaming backend selected by the config.
// Every backend satisfies [llms.ChatStreamProvider] and keeps its own
// history, so callers can hold one provider per role.
func NewChatProvider(config llms.ProviderConfig) (llms.ChatStreamProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chat provider config: %w", err)
	}

	switch config.Provider {
	case llms.ProviderClaude:
		opts := []anthropic.ProviderOption{}
		if config.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(config.BaseURL))
		}
		return anthropic.NewProvider(config.APIKey, config.Model, config.SystemPrompt, opts...), nil
	case llms.ProviderQwen:
		opts := []qwen.ProviderOption{}
		if config.BaseURL != "" {
			opts = append(opts, qwen.WithBaseURL(config.BaseURL))
		}
		return qwen.NewProvider(config.APIKey, config.Model, config.SystemPrompt, opts...), nil
	}
	return nil, fmt.Errorf("unknown chat provider %q", config.Provider)
}
