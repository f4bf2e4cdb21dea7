package llms

// StreamDelta is the text extracted from one streamed event, plus whether
// the event terminates the stream.
type StreamDelta struct {
	Text string
	Done bool
}

// deltaExtractors are tried in order against a decoded event payload; the
// first non-empty match wins. Backends disagree on where delta text lives,
// so each known shape gets its own pure extractor.
var deltaExtractors = []func(map[string]any) string{
	extractAnthropicDelta,
	extractCompletion,
	extractOpenAIChoiceDelta,
	extractContentBlocks,
}

// ExtractStreamDelta sniffs the shape of a streamed event from a
// heterogeneous backend and pulls out the delta text.
func ExtractStreamDelta(payload map[string]any) StreamDelta {
	if payload == nil {
		return StreamDelta{}
	}

	if eventType, _ := payload["type"].(string); eventType == "message_stop" || eventType == "content_block_stop" {
		return StreamDelta{Done: true}
	}

	for _, extract := range deltaExtractors {
		if text := extract(payload); text != "" {
			return StreamDelta{Text: text}
		}
	}
	return StreamDelta{}
}

// extractAnthropicDelta handles {delta:{text:...}} shapes, including
// content_block_delta events.
func extractAnthropicDelta(payload map[string]any) string {
	delta, ok := payload["delta"].(map[string]any)
	if !ok {
		return ""
	}
	text, _ := delta["text"].(string)
	return text
}

// extractCompletion handles legacy {completion:...} shapes.
func extractCompletion(payload map[string]any) string {
	text, _ := payload["completion"].(string)
	return text
}

// extractOpenAIChoiceDelta handles {choices:[{delta:{content:...}}]} shapes.
func extractOpenAIChoiceDelta(payload map[string]any) string {
	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return ""
	}
	delta, ok := choice["delta"].(map[string]any)
	if !ok {
		return ""
	}
	text, _ := delta["content"].(string)
	return text
}

// extractContentBlocks handles {content:[{text:...},...]} shapes as returned
// by non-streaming message responses.
func extractContentBlocks(payload map[string]any) string {
	blocks, ok := payload["content"].([]any)
	if !ok {
		return ""
	}
	text := ""
	for _, rawBlock := range blocks {
		block, ok := rawBlock.(map[string]any)
		if !ok {
			continue
		}
		if blockText, ok := block["text"].(string); ok {
			text += blockText
		}
	}
	return text
}
