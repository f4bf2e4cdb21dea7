package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/duplexkit/voice-core/core/llms"
)

func TestProviderStreamsDeltasInOrder(t *testing.T) {
	var requestBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "sk-ant-test" {
			t.Errorf("expected the api key header, got %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Errorf("expected a version header")
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &requestBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: message_start\n")
		io.WriteString(w, `data: {"type":"message_start"}`+"\n\n")
		io.WriteString(w, `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hello"}}`+"\n\n")
		io.WriteString(w, `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":", there"}}`+"\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := NewProvider("sk-ant-test", "claude-sonnet-4-5", "be brief", WithBaseURL(server.URL))

	var chunks []llms.ChatChunk
	if err := provider.SendMessage(context.Background(), "hi", func(chunk llms.ChatChunk) {
		chunks = append(chunks, chunk)
	}); err != nil {
		t.Fatalf("expected the stream to succeed, got %v", err)
	}

	if got := requestBody["system"]; got != "be brief" {
		t.Fatalf("expected the system prompt in the request, got %v", got)
	}
	if got := requestBody["stream"]; got != true {
		t.Fatalf("expected a streaming request, got %v", got)
	}

	want := []llms.ChatChunk{
		{Text: "Hello"},
		{Text: ", there"},
		{Endpoint: true},
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d (%+v)", len(want), len(chunks), chunks)
	}
	for i, chunk := range want {
		if chunks[i] != chunk {
			t.Fatalf("expected chunk %d to be %+v, got %+v", i, chunk, chunks[i])
		}
	}

	history := provider.History()
	if len(history) != 2 {
		t.Fatalf("expected user and assistant turns in history, got %+v", history)
	}
	if history[0].Role != llms.MessageRoleUser || history[0].Content != "hi" {
		t.Fatalf("expected the user turn first, got %+v", history[0])
	}
	if history[1].Role != llms.MessageRoleAssistant || history[1].Content != "Hello, there" {
		t.Fatalf("expected the assembled assistant turn, got %+v", history[1])
	}
}

func TestProviderReplaysHistoryOnFollowUp(t *testing.T) {
	var bodies []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		bodies = append(bodies, body)

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"type":"content_block_delta","delta":{"text":"ok"}}`+"\n\n")
		io.WriteString(w, `data: {"type":"message_stop"}`+"\n\n")
	}))
	defer server.Close()

	provider := NewProvider("sk-ant-test", "claude-sonnet-4-5", "", WithBaseURL(server.URL))
	discard := func(llms.ChatChunk) {}

	if err := provider.SendMessage(context.Background(), "first", discard); err != nil {
		t.Fatalf("expected the first turn to succeed, got %v", err)
	}
	if err := provider.SendMessage(context.Background(), "second", discard); err != nil {
		t.Fatalf("expected the second turn to succeed, got %v", err)
	}

	messages, _ := bodies[1]["messages"].([]any)
	if len(messages) != 3 {
		t.Fatalf("expected the second request to replay 3 messages, got %d", len(messages))
	}

	provider.ClearHistory()
	if err := provider.SendMessage(context.Background(), "fresh", discard); err != nil {
		t.Fatalf("expected the fresh turn to succeed, got %v", err)
	}
	messages, _ = bodies[2]["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("expected a cleared history to replay 1 message, got %d", len(messages))
	}
}

func TestProviderHandlesSingleJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"content":[{"type":"text","text":"whole reply"}]}`)
	}))
	defer server.Close()

	provider := NewProvider("sk-ant-test", "claude-sonnet-4-5", "", WithBaseURL(server.URL))

	var chunks []llms.ChatChunk
	if err := provider.SendMessage(context.Background(), "hi", func(chunk llms.ChatChunk) {
		chunks = append(chunks, chunk)
	}); err != nil {
		t.Fatalf("expected the request to succeed, got %v", err)
	}

	if len(chunks) != 1 || chunks[0].Text != "whole reply" || !chunks[0].Endpoint {
		t.Fatalf("expected one terminal chunk carrying the reply, got %+v", chunks)
	}
}

func TestProviderSurfacesRequestErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"type":"rate_limit_error"}}`)
	}))
	defer server.Close()

	provider := NewProvider("sk-ant-test", "claude-sonnet-4-5", "", WithBaseURL(server.URL))

	err := provider.SendMessage(context.Background(), "hi", func(llms.ChatChunk) {})
	var requestErr *llms.RequestError
	if !errors.As(err, &requestErr) {
		t.Fatalf("expected a request error, got %v", err)
	}
	if requestErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", requestErr.StatusCode)
	}
}
