package llms

import "fmt"

// ProviderID selects a chat backend.
type ProviderID string

const (
	ProviderClaude ProviderID = "claude"
	ProviderQwen   ProviderID = "qwen"
)

// ProviderConfig is everything a backend needs to be constructed. Several
// providers may exist at once, e.g. one per document-generation role; each
// holds its own history.
type ProviderConfig struct {
	Provider     ProviderID
	Model        string
	SystemPrompt string
	APIKey       string
	BaseURL      string
}

func (c ProviderConfig) Validate() error {
	switch c.Provider {
	case ProviderClaude, ProviderQwen:
	default:
		return fmt.Errorf("unknown chat provider %q", c.Provider)
	}
	if c.APIKey == "" {
		return fmt.Errorf("chat provider %s requires an api key", c.Provider)
	}
	return nil
}
