package llms

import "context"

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is a single turn in a provider's conversation history.
type Message struct {
	Role    MessageRole
	Content string
}

// ChatChunk is one text delta of a streamed reply. Endpoint marks the final
// chunk of the stream; its Text may be empty.
type ChatChunk struct {
	Text     string
	Endpoint bool
}

// ChatStreamProvider streams a language model reply for a prompt given the
// provider's own conversation history. Implementations append the prompt to
// their history before the request and append the full assistant reply once
// the stream completes; a cancelled stream leaves the history without a
// partial assistant turn.
type ChatStreamProvider interface {
	// SendMessage performs one streaming request. onChunk is invoked for
	// every text delta, with a final chunk flagged Endpoint once the model
	// finishes. Cancellation happens through ctx and stops network
	// consumption promptly.
	SendMessage(ctx context.Context, prompt string, onChunk func(ChatChunk)) error
	// History returns a snapshot of the conversation so far.
	History() []Message
	// ClearHistory resets the conversation.
	ClearHistory()
}

// RequestError is a non-success response from a chat backend.
type RequestError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body != "" {
		return "chat request failed: " + e.Status + " " + e.Body
	}
	return "chat request failed: " + e.Status
}
