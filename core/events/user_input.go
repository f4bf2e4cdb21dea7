package events

const (
	KindUserSpeechObserved    Kind = "user_input.speech_observed"
	KindUserTranscriptPartial Kind = "user_input.transcript_partial"
	KindUserTranscriptFinal   Kind = "user_input.transcript_final"
)

// UserSpeechObservedEvent marks the first captured speech frame of an
// utterance.
type UserSpeechObservedEvent struct {
	Base
}

func NewUserSpeechObservedEvent() UserSpeechObservedEvent {
	return UserSpeechObservedEvent{Base: NewBase(KindUserSpeechObserved)}
}

// UserTranscriptPartialEvent carries an interim recognition result. Each
// partial supersedes the previous one for the same utterance.
type UserTranscriptPartialEvent struct {
	Base
	transcript string
}

func (e UserTranscriptPartialEvent) String() string     { return e.transcript + "..." }
func (e UserTranscriptPartialEvent) Transcript() string { return e.transcript }

func NewUserTranscriptPartialEvent(transcript string) UserTranscriptPartialEvent {
	return UserTranscriptPartialEvent{Base: NewBase(KindUserTranscriptPartial), transcript: transcript}
}

// UserTranscriptFinalEvent carries the terminal transcript for the
// utterance.
type UserTranscriptFinalEvent struct {
	Base
	transcript string
}

func (e UserTranscriptFinalEvent) String() string     { return e.transcript }
func (e UserTranscriptFinalEvent) Transcript() string { return e.transcript }

func NewUserTranscriptFinalEvent(transcript string) UserTranscriptFinalEvent {
	return UserTranscriptFinalEvent{Base: NewBase(KindUserTranscriptFinal), transcript: transcript}
}
