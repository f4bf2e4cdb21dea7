// Package dashscope implements the shared parts of the DashScope duplex task
// protocol: JSON control messages interleaved with raw binary PCM frames on a
// single persistent websocket connection.
//
// Each task follows the run-task / continue-task / finish-task lifecycle and
// is acknowledged by server events (task-started, result-generated,
// task-finished, task-failed). The recognition and synthesis gateways build
// their sessions on top of these envelope types.
package dashscope

import "encoding/json"

const (
	// DefaultEndpoint is the inference websocket endpoint.
	DefaultEndpoint = "wss://dashscope.aliyuncs.com/api-ws/v1/inference/"

	StreamingDuplex = "duplex"

	TaskGroupAudio = "audio"
)

// Client actions.
const (
	ActionRunTask      = "run-task"
	ActionContinueTask = "continue-task"
	ActionFinishTask   = "finish-task"
)

// Server events.
const (
	EventTaskStarted     = "task-started"
	EventResultGenerated = "result-generated"
	EventTaskFinished    = "task-finished"
	EventTaskFailed      = "task-failed"
)

type Header struct {
	Action    string `json:"action,omitempty"`
	Event     string `json:"event,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	Streaming string `json:"streaming,omitempty"`

	// Code and Message are only populated on task-failed events.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// OutboundMessage is a control message sent by the client.
type OutboundMessage struct {
	Header  Header          `json:"header"`
	Payload OutboundPayload `json:"payload"`
}

type OutboundPayload struct {
	TaskGroup  string `json:"task_group,omitempty"`
	Task       string `json:"task,omitempty"`
	Function   string `json:"function,omitempty"`
	Model      string `json:"model,omitempty"`
	Parameters any    `json:"parameters,omitempty"`
	Input      Input  `json:"input"`
}

type Input struct {
	Text string `json:"text,omitempty"`
}

// InboundMessage is a control message received from the server.
type InboundMessage struct {
	Header  Header         `json:"header"`
	Payload InboundPayload `json:"payload"`
}

type InboundPayload struct {
	Output Output          `json:"output"`
	Usage  json.RawMessage `json:"usage,omitempty"`

	// Message mirrors header.message on some task-failed payloads.
	Message string `json:"message,omitempty"`
}

type Output struct {
	Sentence *Sentence `json:"sentence,omitempty"`
}

// Sentence is a recognition result. Text carries the transcript so far,
// EndTime is set once the sentence is closed by the recognizer.
type Sentence struct {
	BeginTime *int64 `json:"begin_time,omitempty"`
	EndTime   *int64 `json:"end_time,omitempty"`
	Text      string `json:"text"`
}

func NewRunTaskMessage(taskID string, payload OutboundPayload) OutboundMessage {
	return OutboundMessage{
		Header: Header{
			Action:    ActionRunTask,
			TaskID:    taskID,
			Streaming: StreamingDuplex,
		},
		Payload: payload,
	}
}

func NewContinueTaskMessage(taskID, text string) OutboundMessage {
	return OutboundMessage{
		Header: Header{
			Action:    ActionContinueTask,
			TaskID:    taskID,
			Streaming: StreamingDuplex,
		},
		Payload: OutboundPayload{Input: Input{Text: text}},
	}
}

func NewFinishTaskMessage(taskID string) OutboundMessage {
	return OutboundMessage{
		Header: Header{
			Action:    ActionFinishTask,
			TaskID:    taskID,
			Streaming: StreamingDuplex,
		},
		Payload: OutboundPayload{},
	}
}

// FailureDetail extracts the server-provided error detail from a task-failed
// message, preferring the header fields.
func (m InboundMessage) FailureDetail() string {
	if m.Header.Message != "" {
		return m.Header.Message
	}
	if m.Payload.Message != "" {
		return m.Payload.Message
	}
	return "unknown"
}
