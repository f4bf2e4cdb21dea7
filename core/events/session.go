package events

const (
	KindSessionStateChanged Kind = "session.state_changed"
	KindSessionStatus       Kind = "session.status"
	KindSessionError        Kind = "session.error"
	KindSessionBargeIn      Kind = "session.barge_in"
)

// SessionStateChangedEvent reports a turn-taking state transition.
type SessionStateChangedEvent struct {
	Base
	state string
}

func (e SessionStateChangedEvent) String() string { return e.state }
func (e SessionStateChangedEvent) State() string  { return e.state }

func NewSessionStateChangedEvent(state string) SessionStateChangedEvent {
	return SessionStateChangedEvent{Base: NewBase(KindSessionStateChanged), state: state}
}

// SessionStatusEvent carries a human-readable connection or task status
// line, separate from transcript content.
type SessionStatusEvent struct {
	Base
	message string
}

func (e SessionStatusEvent) String() string  { return e.message }
func (e SessionStatusEvent) Message() string { return e.message }

func NewSessionStatusEvent(message string) SessionStatusEvent {
	return SessionStatusEvent{Base: NewBase(KindSessionStatus), message: message}
}

// SessionErrorEvent surfaces a connection, protocol or resource failure.
type SessionErrorEvent struct {
	Base
	err error
}

func (e SessionErrorEvent) String() string { return e.err.Error() }
func (e SessionErrorEvent) Err() error     { return e.err }

func NewSessionErrorEvent(err error) SessionErrorEvent {
	return SessionErrorEvent{Base: NewBase(KindSessionError), err: err}
}

// SessionBargeInEvent marks a user interruption honored during playback.
type SessionBargeInEvent struct {
	Base
}

func NewSessionBargeInEvent() SessionBargeInEvent {
	return SessionBargeInEvent{Base: NewBase(KindSessionBargeIn)}
}
