package orchestration

import "testing"

func TestStateMachineFullTurnWalk(t *testing.T) {
	machine := newStateMachine(nil)

	if got := machine.State(); got != VoiceStateIdle {
		t.Fatalf("expected initial state %s, got %s", VoiceStateIdle, got)
	}

	steps := []struct {
		event voiceEvent
		want  VoiceState
	}{
		{eventStartListening, VoiceStateListening},
		{eventSpeechObserved, VoiceStateRecording},
		{eventUtteranceDone, VoiceStateProcessing},
		{eventPlaybackComplete, VoiceStateListening},
	}
	for _, step := range steps {
		got, err := machine.apply(step.event)
		if err != nil {
			t.Fatalf("expected %s to be accepted, got error: %v", step.event, err)
		}
		if got != step.want {
			t.Fatalf("expected state %s after %s, got %s", step.want, step.event, got)
		}
	}
}

func TestStateMachineStopFromAnyState(t *testing.T) {
	for _, state := range []VoiceState{VoiceStateIdle, VoiceStateListening, VoiceStateRecording, VoiceStateProcessing} {
		got, err := transition(state, eventStop)
		if err != nil {
			t.Fatalf("expected stop to be accepted from %s, got error: %v", state, err)
		}
		if got != VoiceStateIdle {
			t.Fatalf("expected stop from %s to reach %s, got %s", state, VoiceStateIdle, got)
		}
	}
}

func TestStateMachineRejectsUnknownTransitions(t *testing.T) {
	rejected := []struct {
		state VoiceState
		event voiceEvent
	}{
		{VoiceStateIdle, eventSpeechObserved},
		{VoiceStateIdle, eventUtteranceDone},
		{VoiceStateIdle, eventPlaybackComplete},
		{VoiceStateListening, eventStartListening},
		{VoiceStateListening, eventUtteranceDone},
		{VoiceStateListening, eventBargeIn},
		{VoiceStateRecording, eventStartListening},
		{VoiceStateRecording, eventSpeechObserved},
		{VoiceStateRecording, eventPlaybackComplete},
		{VoiceStateRecording, eventTurnStarted},
		{VoiceStateProcessing, eventStartListening},
		{VoiceStateProcessing, eventUtteranceDone},
	}
	for _, pair := range rejected {
		got, err := transition(pair.state, pair.event)
		if err == nil {
			t.Fatalf("expected %s on %s to be rejected", pair.event, pair.state)
		}
		if got != pair.state {
			t.Fatalf("expected rejected transition to keep state %s, got %s", pair.state, got)
		}
	}
}

func TestStateMachineBargeInGoesStraightToRecording(t *testing.T) {
	machine := newStateMachine(nil)
	machine.apply(eventStartListening)
	machine.apply(eventSpeechObserved)
	machine.apply(eventUtteranceDone)

	if !machine.applyIf(VoiceStateProcessing, eventBargeIn) {
		t.Fatalf("expected barge-in to be accepted while processing")
	}
	if got := machine.State(); got != VoiceStateRecording {
		t.Fatalf("expected state %s after barge-in, got %s", VoiceStateRecording, got)
	}
}

func TestStateMachinePublishesChanges(t *testing.T) {
	var observed []VoiceState
	machine := newStateMachine(func(state VoiceState) {
		observed = append(observed, state)
	})

	machine.apply(eventStartListening)
	machine.apply(eventSpeechObserved)
	machine.apply(eventStop)
	machine.apply(eventStop) // idle already, no change published

	want := []VoiceState{VoiceStateListening, VoiceStateRecording, VoiceStateIdle}
	if len(observed) != len(want) {
		t.Fatalf("expected %d state changes, got %d (%v)", len(want), len(observed), observed)
	}
	for i, state := range want {
		if observed[i] != state {
			t.Fatalf("expected change %d to be %s, got %s", i, state, observed[i])
		}
	}
}

func TestStateMachineApplyIfChecksCurrentState(t *testing.T) {
	machine := newStateMachine(nil)
	machine.apply(eventStartListening)

	if machine.applyIf(VoiceStateProcessing, eventBargeIn) {
		t.Fatalf("expected barge-in to be refused outside processing")
	}
	if got := machine.State(); got != VoiceStateListening {
		t.Fatalf("expected state to stay %s, got %s", VoiceStateListening, got)
	}
}
