package speechtotext

import "github.com/duplexkit/voice-core/core/audio"

type RecognitionOptions struct {
	// PartialTranscriptionCallback is called for every intermediate result.
	// Each call supersedes the previous one for the same utterance.
	PartialTranscriptionCallback func(transcript string)
	// TranscriptionCallback is called exactly once per task with the final
	// transcript.
	TranscriptionCallback func(transcript string)

	// StatusCallback reports connection state changes, distinct from
	// transcript content.
	StatusCallback func(status string)
	// ErrorCallback reports task and connection failures.
	ErrorCallback func(err error)

	EncodingInfo  audio.EncodingInfo
	LanguageHints []string
}

type RecognitionOption func(*RecognitionOptions)

func WithPartialTranscriptionCallback(callback func(transcript string)) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.PartialTranscriptionCallback = callback
	}
}

func WithTranscriptionCallback(callback func(transcript string)) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithStatusCallback(callback func(status string)) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.StatusCallback = callback
	}
}

func WithErrorCallback(callback func(err error)) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.ErrorCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

func WithLanguageHints(hints ...string) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.LanguageHints = hints
	}
}
