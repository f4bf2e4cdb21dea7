// Package dashscope implements streaming speech recognition over the
// DashScope duplex task protocol (paraformer realtime models).
package dashscope

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/duplexkit/voice-core/core/audio"
	"github.com/duplexkit/voice-core/core/dashscope"
	"github.com/duplexkit/voice-core/core/speechtotext"
)

const (
	defaultModel = "paraformer-realtime-v2"

	taskASR             = "asr"
	functionRecognition = "recognition"
)

type recognitionParameters struct {
	Format                   string   `json:"format"`
	SampleRate               int      `json:"sample_rate"`
	DisfluencyRemovalEnabled bool     `json:"disfluency_removal_enabled"`
	LanguageHints            []string `json:"language_hints,omitempty"`
}

// Recognizer owns one duplex recognition session at a time. It buffers audio
// frames sent before the server acknowledges the task and flushes them in
// arrival order once task-started is received.
type Recognizer struct {
	endpoint    string
	credentials *dashscope.Credentials
	model       string

	connMu sync.Mutex
	conn   *websocket.Conn

	mu          sync.Mutex
	taskID      string
	taskActive  bool
	taskStarted bool
	pending     [][]byte
	lastResult  string
	options     speechtotext.RecognitionOptions

	started  chan error
	finished chan error
}

type RecognizerOption func(*Recognizer)

func WithModel(model string) RecognizerOption {
	return func(r *Recognizer) { r.model = model }
}

func WithEndpoint(endpoint string) RecognizerOption {
	return func(r *Recognizer) { r.endpoint = endpoint }
}

func NewRecognizer(credentials *dashscope.Credentials, opts ...RecognizerOption) *Recognizer {
	r := &Recognizer{
		credentials: credentials,
		model:       defaultModel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens the connection, sends run-task and blocks until the server
// acknowledges with task-started. Audio sent concurrently while waiting is
// queued and flushed on acknowledgment.
//
// Starting while the previous task has not reached a terminal state returns
// [dashscope.ErrTaskActive].
func (r *Recognizer) Start(ctx context.Context, opts ...speechtotext.RecognitionOption) error {
	options := speechtotext.RecognitionOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}

	r.mu.Lock()
	if r.taskActive {
		r.mu.Unlock()
		return dashscope.ErrTaskActive
	}
	r.taskActive = true
	r.taskStarted = false
	r.taskID = uuid.NewString()
	r.lastResult = ""
	r.pending = nil
	r.options = options
	r.started = make(chan error, 1)
	r.finished = make(chan error, 1)
	taskID := r.taskID
	started := r.started
	r.mu.Unlock()

	r.emitStatus("connecting to recognition server")

	conn, err := dashscope.Dial(ctx, r.endpoint, r.credentials)
	if err != nil {
		r.endTask()
		return fmt.Errorf("failed to open recognition session: %w", err)
	}

	r.connMu.Lock()
	r.conn = conn
	r.connMu.Unlock()

	runTask := dashscope.NewRunTaskMessage(taskID, dashscope.OutboundPayload{
		TaskGroup: dashscope.TaskGroupAudio,
		Task:      taskASR,
		Function:  functionRecognition,
		Model:     r.model,
		Parameters: recognitionParameters{
			Format:                   options.EncodingInfo.Format.Name(),
			SampleRate:               options.EncodingInfo.SampleRate,
			DisfluencyRemovalEnabled: false,
			LanguageHints:            options.LanguageHints,
		},
	})
	if err := r.writeJSON(runTask); err != nil {
		r.teardown()
		r.endTask()
		return fmt.Errorf("failed to send run-task: %w", err)
	}

	go r.readAndProcessMessages(conn)

	select {
	case err := <-started:
		if err != nil {
			r.teardown()
			r.endTask()
			return err
		}
	case <-ctx.Done():
		r.teardown()
		r.endTask()
		return ctx.Err()
	}

	r.emitStatus("connected to recognition server")
	return nil
}

// SendAudio forwards one captured frame. Zero-length frames (e.g. a buffer
// detached by ownership transfer) are dropped with a warning, never
// forwarded.
func (r *Recognizer) SendAudio(frame []byte) error {
	if len(frame) == 0 {
		log.Println("Dropping empty audio frame, buffer may have been detached")
		return nil
	}

	r.mu.Lock()
	if !r.taskActive {
		r.mu.Unlock()
		return dashscope.ErrSessionClosed
	}
	if !r.taskStarted {
		r.pending = append(r.pending, frame)
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if err := r.writeBinary(frame); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

// Stop sends finish-task and blocks until the server emits the terminal
// event for the task. The final transcript is delivered through the
// transcription callback before Stop returns.
func (r *Recognizer) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.taskActive || !r.taskStarted {
		r.mu.Unlock()
		return nil
	}
	taskID := r.taskID
	finished := r.finished
	r.mu.Unlock()

	r.emitStatus("finishing recognition task")

	if err := r.writeJSON(dashscope.NewFinishTaskMessage(taskID)); err != nil {
		return fmt.Errorf("failed to send finish-task: %w", err)
	}

	select {
	case err := <-finished:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	r.emitStatus("recognition task finished")
	return nil
}

// Close tears the session down without waiting for a terminal event.
func (r *Recognizer) Close() error {
	r.teardown()
	r.endTask()
	return nil
}

func (r *Recognizer) readAndProcessMessages(conn *websocket.Conn) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			r.mu.Lock()
			wasStarted := r.taskStarted
			active := r.taskActive
			started, finished := r.started, r.finished
			r.mu.Unlock()

			if active {
				if !wasStarted {
					started <- dashscope.ErrClosedBeforeReady
				} else {
					select {
					case finished <- fmt.Errorf("recognition session closed: %w", err):
					default:
					}
				}
				r.endTask()
			}
			conn.Close()
			return
		}
		if msgType == websocket.BinaryMessage {
			// The recognition task never produces binary payloads.
			continue
		}
		if done := r.processMessage(msg); done {
			r.teardown()
			return
		}
	}
}

// processMessage handles one control message and reports whether the task
// reached a terminal state.
func (r *Recognizer) processMessage(msg []byte) bool {
	var parsed dashscope.InboundMessage
	if err := json.Unmarshal(msg, &parsed); err != nil {
		log.Println("Failed to unmarshal recognition message", err)
		return false
	}

	switch parsed.Header.Event {
	case dashscope.EventTaskStarted:
		r.flushPending()
		r.mu.Lock()
		started := r.started
		r.mu.Unlock()
		started <- nil

	case dashscope.EventResultGenerated:
		if parsed.Payload.Output.Sentence == nil {
			return false
		}
		transcript := parsed.Payload.Output.Sentence.Text
		r.mu.Lock()
		r.lastResult = transcript
		callback := r.options.PartialTranscriptionCallback
		r.mu.Unlock()
		if callback != nil && transcript != "" {
			callback(transcript)
		}

	case dashscope.EventTaskFinished:
		r.mu.Lock()
		transcript := r.lastResult
		if parsed.Payload.Output.Sentence != nil && parsed.Payload.Output.Sentence.Text != "" {
			transcript = parsed.Payload.Output.Sentence.Text
		}
		r.lastResult = ""
		callback := r.options.TranscriptionCallback
		finished := r.finished
		r.mu.Unlock()
		if callback != nil && transcript != "" {
			callback(transcript)
		}
		r.endTask()
		finished <- nil
		return true

	case dashscope.EventTaskFailed:
		taskErr := &dashscope.TaskError{
			TaskID: parsed.Header.TaskID,
			Code:   parsed.Header.Code,
			Detail: parsed.FailureDetail(),
		}
		r.mu.Lock()
		wasStarted := r.taskStarted
		started, finished := r.started, r.finished
		errorCallback := r.options.ErrorCallback
		r.mu.Unlock()
		if errorCallback != nil {
			errorCallback(taskErr)
		}
		r.endTask()
		if !wasStarted {
			started <- taskErr
		} else {
			select {
			case finished <- taskErr:
			default:
			}
		}
		return true
	}

	return false
}

// flushPending marks the task started and drains the queue in arrival order.
// The state lock is held across the writes so frames arriving concurrently
// cannot overtake queued ones.
func (r *Recognizer) flushPending() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.taskStarted = true
	for _, frame := range r.pending {
		if err := r.writeBinary(frame); err != nil {
			log.Println("Failed to flush buffered audio frame", err)
			break
		}
	}
	r.pending = nil
}

func (r *Recognizer) endTask() {
	r.mu.Lock()
	r.taskActive = false
	r.taskStarted = false
	r.pending = nil
	r.mu.Unlock()
}

func (r *Recognizer) teardown() {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

func (r *Recognizer) writeJSON(msg any) error {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn == nil {
		return dashscope.ErrSessionClosed
	}
	if err := r.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

func (r *Recognizer) writeBinary(frame []byte) error {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn == nil {
		return dashscope.ErrSessionClosed
	}
	if err := r.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

func (r *Recognizer) emitStatus(status string) {
	r.mu.Lock()
	callback := r.options.StatusCallback
	r.mu.Unlock()
	if callback != nil {
		callback(status)
	}
}
