package events

const (
	KindAssistantSegment       Kind = "assistant.response_segment"
	KindAssistantFinal         Kind = "assistant.response_final"
	KindAssistantSpeechFrame   Kind = "assistant.speech_frame"
	KindAssistantPlaybackEnded Kind = "assistant.playback_ended"
)

// AssistantSegmentEvent is one streamed reply delta, emitted in stream
// order.
type AssistantSegmentEvent struct {
	Base
	text string
}

func (e AssistantSegmentEvent) String() string { return e.text }
func (e AssistantSegmentEvent) Text() string   { return e.text }

func NewAssistantSegmentEvent(text string) AssistantSegmentEvent {
	return AssistantSegmentEvent{Base: NewBase(KindAssistantSegment), text: text}
}

// AssistantFinalEvent marks the end of the reply text stream and carries
// the assembled reply.
type AssistantFinalEvent struct {
	Base
	text string
}

func (e AssistantFinalEvent) String() string { return e.text }
func (e AssistantFinalEvent) Text() string   { return e.text }

func NewAssistantFinalEvent(text string) AssistantFinalEvent {
	return AssistantFinalEvent{Base: NewBase(KindAssistantFinal), text: text}
}

// AssistantSpeechFrameEvent is one synthesized PCM frame with its playback
// queue index.
type AssistantSpeechFrameEvent struct {
	Base
	frame []byte
	index int
}

func (e AssistantSpeechFrameEvent) Frame() []byte { return e.frame }
func (e AssistantSpeechFrameEvent) Index() int    { return e.index }

func NewAssistantSpeechFrameEvent(frame []byte, index int) AssistantSpeechFrameEvent {
	return AssistantSpeechFrameEvent{Base: NewBase(KindAssistantSpeechFrame), frame: frame, index: index}
}

// AssistantPlaybackEndedEvent marks drained playback of the reply.
type AssistantPlaybackEndedEvent struct {
	Base
}

func NewAssistantPlaybackEndedEvent() AssistantPlaybackEndedEvent {
	return AssistantPlaybackEndedEvent{Base: NewBase(KindAssistantPlaybackEnded)}
}
