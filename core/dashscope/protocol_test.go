package dashscope

import (
	"encoding/json"
	"testing"
)

func TestRunTaskMessageEnvelope(t *testing.T) {
	msg := NewRunTaskMessage("task-1", OutboundPayload{
		TaskGroup: TaskGroupAudio,
		Task:      "asr",
		Function:  "recognition",
		Model:     "paraformer-realtime-v2",
	})
	if msg.Header.Action != ActionRunTask {
		t.Fatalf("expected run-task action, got %q", msg.Header.Action)
	}
	if msg.Header.Streaming != StreamingDuplex {
		t.Fatalf("expected duplex streaming, got %q", msg.Header.Streaming)
	}
	if msg.Header.TaskID != "task-1" {
		t.Fatalf("expected task id to carry through, got %q", msg.Header.TaskID)
	}
}

func TestContinueTaskMessageCarriesText(t *testing.T) {
	msg := NewContinueTaskMessage("task-1", "你好")
	if msg.Header.Action != ActionContinueTask {
		t.Fatalf("expected continue-task action, got %q", msg.Header.Action)
	}
	if msg.Payload.Input.Text != "你好" {
		t.Fatalf("expected input text to carry through, got %q", msg.Payload.Input.Text)
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal continue-task: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("failed to decode continue-task: %v", err)
	}
	payload, _ := decoded["payload"].(map[string]any)
	if _, ok := payload["task_group"]; ok {
		t.Fatalf("expected continue-task to omit the task description, got %v", payload)
	}
}

func TestFinishTaskMessageEnvelope(t *testing.T) {
	msg := NewFinishTaskMessage("task-1")
	if msg.Header.Action != ActionFinishTask {
		t.Fatalf("expected finish-task action, got %q", msg.Header.Action)
	}
	if msg.Payload.Input.Text != "" {
		t.Fatalf("expected an empty payload, got %q", msg.Payload.Input.Text)
	}
}

func TestFailureDetailPrefersHeader(t *testing.T) {
	var msg InboundMessage
	msg.Header.Message = "header detail"
	msg.Payload.Message = "payload detail"
	if got := msg.FailureDetail(); got != "header detail" {
		t.Fatalf("expected the header detail, got %q", got)
	}

	msg.Header.Message = ""
	if got := msg.FailureDetail(); got != "payload detail" {
		t.Fatalf("expected the payload detail, got %q", got)
	}

	msg.Payload.Message = ""
	if got := msg.FailureDetail(); got != "unknown" {
		t.Fatalf("expected a placeholder detail, got %q", got)
	}
}

func TestSentenceDecoding(t *testing.T) {
	raw := `{"header":{"event":"result-generated","task_id":"task-1"},` +
		`"payload":{"output":{"sentence":{"begin_time":0,"end_time":1200,"text":"你好"}}}}`
	var msg InboundMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("failed to decode result-generated: %v", err)
	}
	sentence := msg.Payload.Output.Sentence
	if sentence == nil || sentence.Text != "你好" {
		t.Fatalf("expected a sentence payload, got %+v", sentence)
	}
	if sentence.EndTime == nil || *sentence.EndTime != 1200 {
		t.Fatalf("expected the sentence to be closed at 1200ms, got %+v", sentence.EndTime)
	}
}
