package orchestration

import (
	"context"

	"github.com/duplexkit/voice-core/core/events"
	"github.com/duplexkit/voice-core/core/llms"
	"github.com/duplexkit/voice-core/core/speechtotext"
	"github.com/duplexkit/voice-core/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

// SpeechRecognizer is the recognition task session the orchestrator drives.
// At most one task may be active at a time; Start with an unfinished task
// must be rejected.
type SpeechRecognizer interface {
	Start(ctx context.Context, opts ...speechtotext.RecognitionOption) error
	SendAudio(frame []byte) error
	Stop(ctx context.Context) error
	Close() error
}

func WithRecognizer(client SpeechRecognizer) OrchestratorOption {
	return func(o *Orchestrator) { o.recognizer = client }
}

// SpeechSynthesizer is the synthesis task session. Text is fed
// incrementally while the language model streams; Cancel tears the task
// down mid-flight for barge-in.
type SpeechSynthesizer interface {
	Start(ctx context.Context, opts ...texttospeech.SynthesisOption) error
	SendText(text string) error
	Finish() error
	Cancel() error
	Close() error
}

func WithSynthesizer(client SpeechSynthesizer) OrchestratorOption {
	return func(o *Orchestrator) { o.synthesizer = client }
}

func WithChatProvider(provider llms.ChatStreamProvider) OrchestratorOption {
	return func(o *Orchestrator) { o.chat = provider }
}

// AudioRecorder owns the microphone. Acquiring it while held must fail
// fast, and Stop must release it on every path.
type AudioRecorder interface {
	Start(onFrame func(frame []byte)) error
	Stop() error
}

func WithRecorder(client AudioRecorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = client }
}

// AudioPlayer renders synthesized frames. Completion fires exactly once
// after the finished signal and queue drain; Clear discards buffered audio
// without waiting.
type AudioPlayer interface {
	Connect(onPlaybackComplete func()) error
	PushPCM(frame []byte) error
	SendFinishedSignal()
	Clear()
	Stop() error
	SetCallbacks(onChunk func(frame []byte, index int), onClear func())
}

func WithPlayer(client AudioPlayer) OrchestratorOption {
	return func(o *Orchestrator) { o.player = client }
}

// WithSpeechDetector replaces the voice-activity strategy deciding when
// LISTENING becomes RECORDING and when an interruption is honored.
func WithSpeechDetector(detector SpeechDetector) OrchestratorOption {
	return func(o *Orchestrator) {
		if detector == nil {
			o.detector = anyFrameDetector{}
			return
		}
		o.detector = detector
	}
}

func WithLanguageHints(hints ...string) OrchestratorOption {
	return func(o *Orchestrator) { o.languageHints = hints }
}

// WithBargeIn enables voice interruption of in-progress playback. frames is
// how many consecutive speech frames must be observed before the
// interruption is honored; values below 1 are clamped to 1.
func WithBargeIn(frames int) OrchestratorOption {
	return func(o *Orchestrator) {
		if frames < 1 {
			frames = 1
		}
		o.bargeInEnabled = true
		o.bargeInFrames = frames
	}
}

type SessionOptions struct {
	onStateChanged      func(state VoiceState)
	onPartialTranscript func(transcript string)
	onTranscript        func(transcript string)
	onAssistantChunk    func(text string, endpoint bool)
	onAudioChunk        func(frame []byte, index int)
	onStatus            func(status string)
	onError             func(err error)
	onEvent             func(event events.Event)
}

type SessionOption func(*SessionOptions)

// WithStateChangedCallback registers a callback for turn-taking state
// transitions.
func WithStateChangedCallback(callback func(state VoiceState)) SessionOption {
	return func(o *SessionOptions) { o.onStateChanged = callback }
}

// WithPartialTranscriptCallback registers a callback for interim
// recognition results. Each call supersedes the previous one for the same
// utterance.
func WithPartialTranscriptCallback(callback func(transcript string)) SessionOption {
	return func(o *SessionOptions) { o.onPartialTranscript = callback }
}

// WithTranscriptCallback registers a callback for final transcripts.
func WithTranscriptCallback(callback func(transcript string)) SessionOption {
	return func(o *SessionOptions) { o.onTranscript = callback }
}

// WithAssistantChunkCallback registers a callback for streamed reply
// deltas; endpoint is true exactly once, on the final chunk of a turn.
func WithAssistantChunkCallback(callback func(text string, endpoint bool)) SessionOption {
	return func(o *SessionOptions) { o.onAssistantChunk = callback }
}

// WithAudioChunkCallback registers the diagnostics side channel for frames
// entering the playback queue, with a monotonically increasing index.
func WithAudioChunkCallback(callback func(frame []byte, index int)) SessionOption {
	return func(o *SessionOptions) { o.onAudioChunk = callback }
}

// WithStatusCallback registers a callback for connection and task status
// lines, distinct from transcript content.
func WithStatusCallback(callback func(status string)) SessionOption {
	return func(o *SessionOptions) { o.onStatus = callback }
}

func WithErrorCallback(callback func(err error)) SessionOption {
	return func(o *SessionOptions) { o.onError = callback }
}

// WithEventCallback registers a sink receiving every typed session event.
func WithEventCallback(callback func(event events.Event)) SessionOption {
	return func(o *SessionOptions) { o.onEvent = callback }
}
