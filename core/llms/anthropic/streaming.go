// Package anthropic streams chat completions from a Claude-compatible
// messages endpoint. The event stream is consumed line by line; delta text
// is sniffed with the shared extractors because compatible relays differ in
// the shape they emit.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"

	"github.com/duplexkit/voice-core/core/llms"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	messagesPath   = "/v1/messages"

	defaultMaxTokens = 1024
	apiVersion       = "2023-06-01"

	chunkPrefix = "data:"
	doneMarker  = "[DONE]"
)

type Provider struct {
	apiKey       string
	model        string
	systemPrompt string
	baseURL      string

	client *http.Client

	historyMu sync.Mutex
	history   []llms.Message
}

type ProviderOption func(*Provider)

func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) { p.baseURL = baseURL }
}

func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) { p.client = client }
}

func NewProvider(apiKey, model, systemPrompt string, opts ...ProviderOption) *Provider {
	p := &Provider{
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		baseURL:      defaultBaseURL,
		client:       &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type requestMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type requestBody struct {
	MaxTokens int              `json:"max_tokens"`
	System    string           `json:"system,omitempty"`
	Messages  []requestMessage `json:"messages"`
	Stream    bool             `json:"stream"`
	Model     string           `json:"model,omitempty"`
}

func (p *Provider) SendMessage(ctx context.Context, prompt string, onChunk func(llms.ChatChunk)) error {
	ctx, span := tracer.Start(ctx, "anthropic prompt with stream")
	defer span.End()

	p.historyMu.Lock()
	p.history = append(p.history, llms.Message{Role: llms.MessageRoleUser, Content: prompt})
	messages := make([]requestMessage, 0, len(p.history))
	for _, message := range p.history {
		messages = append(messages, requestMessage{
			Role:    string(message.Role),
			Content: []contentBlock{{Type: "text", Text: message.Content}},
		})
	}
	p.historyMu.Unlock()

	body := requestBody{
		MaxTokens: defaultMaxTokens,
		System:    p.systemPrompt,
		Messages:  messages,
		Stream:    true,
		Model:     strings.TrimSpace(p.model),
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error marshalling JSON: %w", err)
	}

	url := p.baseURL
	if !strings.Contains(url, messagesPath) {
		url = strings.TrimRight(url, "/") + messagesPath
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		requestErr := &llms.RequestError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(errBody)),
		}
		span.SetStatus(codes.Error, requestErr.Error())
		return requestErr
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return p.consumeSingleResponse(resp.Body, onChunk)
	}
	return p.consumeEventStream(resp.Body, onChunk)
}

// consumeSingleResponse handles backends that reply with one JSON object
// instead of an event stream.
func (p *Provider) consumeSingleResponse(body io.Reader, onChunk func(llms.ChatChunk)) error {
	var payload map[string]any
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}

	delta := llms.ExtractStreamDelta(payload)
	onChunk(llms.ChatChunk{Text: delta.Text, Endpoint: true})
	p.appendAssistantTurn(delta.Text)
	return nil
}

func (p *Provider) consumeEventStream(body io.Reader, onChunk func(llms.ChatChunk)) error {
	fullText := strings.Builder{}
	finished := false

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, chunkPrefix) {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, chunkPrefix))
		if data == "" {
			continue
		}

		if data == doneMarker {
			if !finished {
				onChunk(llms.ChatChunk{Endpoint: true})
				finished = true
			}
			continue
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			// Partial or malformed events are skipped, the stream recovers
			// on the next line.
			continue
		}

		delta := llms.ExtractStreamDelta(payload)
		if delta.Text != "" {
			fullText.WriteString(delta.Text)
			onChunk(llms.ChatChunk{Text: delta.Text})
		}
		if delta.Done && !finished {
			onChunk(llms.ChatChunk{Endpoint: true})
			finished = true
		}
	}
	if err := scanner.Err(); err != nil {
		// A cancelled context surfaces here; the assistant turn is not
		// recorded so the history holds no partial reply.
		return fmt.Errorf("error reading streamed response: %w", err)
	}

	if !finished {
		onChunk(llms.ChatChunk{Endpoint: true})
	}
	p.appendAssistantTurn(fullText.String())
	return nil
}

func (p *Provider) appendAssistantTurn(content string) {
	p.historyMu.Lock()
	p.history = append(p.history, llms.Message{Role: llms.MessageRoleAssistant, Content: content})
	p.historyMu.Unlock()
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
