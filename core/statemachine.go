package orchestration

import (
	"fmt"
	"sync"
)

// VoiceState is the turn-taking state of a voice session. Exactly one value
// exists per session; it is mutated only by the [Orchestrator] and read by
// frontends.
type VoiceState string

const (
	// VoiceStateIdle means no task is active and the microphone is released.
	VoiceStateIdle VoiceState = "IDLE"
	// VoiceStateListening means the microphone is open and a recognition
	// task is created and armed, waiting for speech.
	VoiceStateListening VoiceState = "LISTENING"
	// VoiceStateRecording means speech frames are actively flowing to the
	// recognizer.
	VoiceStateRecording VoiceState = "RECORDING"
	// VoiceStateProcessing means the recognizer finalized and a language
	// model or synthesis turn is in flight, including playback.
	VoiceStateProcessing VoiceState = "PROCESSING"
)

type voiceEvent string

const (
	eventStartListening   voiceEvent = "start-listening"
	eventSpeechObserved   voiceEvent = "speech-observed"
	eventUtteranceDone    voiceEvent = "utterance-done"
	eventTurnStarted      voiceEvent = "turn-started"
	eventPlaybackComplete voiceEvent = "playback-complete"
	eventBargeIn          voiceEvent = "barge-in"
	eventStop             voiceEvent = "stop"
)

// transition is the pure transition table. Unknown pairs are rejected
// instead of silently ignored.
func transition(state VoiceState, event voiceEvent) (VoiceState, error) {
	switch event {
	case eventStop:
		return VoiceStateIdle, nil
	case eventStartListening:
		if state == VoiceStateIdle {
			return VoiceStateListening, nil
		}
	case eventSpeechObserved:
		if state == VoiceStateListening {
			return VoiceStateRecording, nil
		}
	case eventUtteranceDone:
		if state == VoiceStateRecording {
			return VoiceStateProcessing, nil
		}
	case eventTurnStarted:
		if state == VoiceStateIdle || state == VoiceStateListening {
			return VoiceStateProcessing, nil
		}
	case eventPlaybackComplete:
		if state == VoiceStateProcessing {
			return VoiceStateListening, nil
		}
	case eventBargeIn:
		if state == VoiceStateProcessing {
			return VoiceStateRecording, nil
		}
	}
	return state, fmt.Errorf("invalid transition: %s on %s", event, state)
}

// stateMachine serializes transitions and publishes changes. Transitions are
// processed one at a time; a request arriving mid-transition waits on the
// mutex, it is never merged with another.
type stateMachine struct {
	mu       sync.Mutex
	state    VoiceState
	onChange func(state VoiceState)
}

func newStateMachine(onChange func(state VoiceState)) *stateMachine {
	return &stateMachine{state: VoiceStateIdle, onChange: onChange}
}

func (m *stateMachine) State() VoiceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// apply runs one transition. On rejection the state is left untouched and
// the error is returned for the caller to decide whether it matters.
func (m *stateMachine) apply(event voiceEvent) (VoiceState, error) {
	m.mu.Lock()
	next, err := transition(m.state, event)
	if err != nil {
		m.mu.Unlock()
		return next, err
	}
	changed := next != m.state
	m.state = next
	onChange := m.onChange
	m.mu.Unlock()

	if changed && onChange != nil {
		onChange(next)
	}
	return next, nil
}

// applyIf runs the transition only when the current state matches, as one
// atomic check-and-transition step.
func (m *stateMachine) applyIf(current VoiceState, event voiceEvent) bool {
	m.mu.Lock()
	if m.state != current {
		m.mu.Unlock()
		return false
	}
	next, err := transition(m.state, event)
	if err != nil {
		m.mu.Unlock()
		return false
	}
	changed := next != m.state
	m.state = next
	onChange := m.onChange
	m.mu.Unlock()

	if changed && onChange != nil {
		onChange(next)
	}
	return true
}
