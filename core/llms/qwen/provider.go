// Package qwen streams chat completions from DashScope's OpenAI-compatible
// endpoint through the go-openai client.
package qwen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/codes"

	"github.com/duplexkit/voice-core/core/llms"
)

const defaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

type Provider struct {
	client       *openai.Client
	model        string
	systemPrompt string

	historyMu sync.Mutex
	history   []llms.Message
}

type ProviderOption func(*openai.ClientConfig)

func WithBaseURL(baseURL string) ProviderOption {
	return func(c *openai.ClientConfig) { c.BaseURL = baseURL }
}

func NewProvider(apiKey, model, systemPrompt string, opts ...ProviderOption) *Provider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = defaultBaseURL
	for _, opt := range opts {
		opt(&config)
	}

	return &Provider{
		client:       openai.NewClientWithConfig(config),
		model:        model,
		systemPrompt: systemPrompt,
	}
}

func (p *Provider) SendMessage(ctx context.Context, prompt string, onChunk func(llms.ChatChunk)) error {
	ctx, span := tracer.Start(ctx, "qwen prompt with stream")
	defer span.End()

	p.historyMu.Lock()
	p.history = append(p.history, llms.Message{Role: llms.MessageRoleUser, Content: prompt})
	messages := make([]openai.ChatCompletionMessage, 0, len(p.history)+1)
	if p.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: p.systemPrompt,
		})
	}
	for _, message := range p.history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(message.Role),
			Content: message.Content,
		})
	}
	p.historyMu.Unlock()

	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			requestErr := &llms.RequestError{
				StatusCode: apiErr.HTTPStatusCode,
				Status:     fmt.Sprintf("%d", apiErr.HTTPStatusCode),
				Body:       apiErr.Message,
			}
			span.SetStatus(codes.Error, requestErr.Error())
			return requestErr
		}
		return fmt.Errorf("failed to open completion stream: %w", err)
	}
	defer stream.Close()

	fullText := strings.Builder{}
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading completion stream: %w", err)
		}

		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta != "" {
			fullText.WriteString(delta)
			onChunk(llms.ChatChunk{Text: delta})
		}
	}

	onChunk(llms.ChatChunk{Endpoint: true})
	p.historyMu.Lock()
	p.history = append(p.history, llms.Message{Role: llms.MessageRoleAssistant, Content: fullText.String()})
	p.historyMu.Unlock()
	return nil
}

func (p *Provider) History() []llms.Message {
	p.historyMu.Lock()
	defer p.historyMu.Unlock()
	history := make([]llms.Message, len(p.history))
	copy(history, p.history)
	return history
}

func (p *Provider) ClearHistory() {
	p.historyMu.Lock()
	p.history = nil
	p.historyMu.Unlock()
}
