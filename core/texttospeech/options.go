package texttospeech

import "github.com/duplexkit/voice-core/core/audio"

type SynthesisOptions struct {
	// SpeechAudioCallback is called for every PCM frame the synthesizer
	// produces, in receive order. The callback must not block; it feeds the
	// playback path directly.
	SpeechAudioCallback func(frame []byte)
	// SpeechEndedCallback is called once the task reaches task-finished and
	// no more audio will arrive.
	SpeechEndedCallback func()

	// StatusCallback reports connection state changes, distinct from audio.
	StatusCallback func(status string)
	// ErrorCallback reports task and connection failures.
	ErrorCallback func(err error)

	EncodingInfo audio.EncodingInfo

	// RetainAudio keeps a copy of every produced frame for later export.
	// Retention never blocks the forwarding path.
	RetainAudio bool
}

type SynthesisOption func(*SynthesisOptions)

func WithSpeechAudioCallback(callback func(frame []byte)) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.SpeechAudioCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithStatusCallback(callback func(status string)) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.StatusCallback = callback
	}
}

func WithErrorCallback(callback func(err error)) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.ErrorCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesisOption {
	return func(o *SynthesisOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

func WithRetainedAudio() SynthesisOption {
	return func(o *SynthesisOptions) {
		o.RetainAudio = true
	}
}
