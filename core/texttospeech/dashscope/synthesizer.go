// Package dashscope implements streaming speech synthesis over the DashScope
// duplex task protocol (cosyvoice models). Text is fed incrementally with
// continue-task messages while PCM frames stream back on the same
// connection.
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
	"github.com/duplexkit/voice-core/core/texttospeech"
)

const (
	taskTTS                   = "tts"
	functionSpeechSynthesizer = "SpeechSynthesizer"
)

type synthesisParameters struct {
	TextType   string  `json:"text_type"`
	Voice      string  `json:"voice"`
	Format     string  `json:"format"`
	SampleRate int     `json:"sample_rate"`
	Volume     int     `json:"volume"`
	Rate       float64 `json:"rate"`
	Pitch      float64 `json:"pitch"`
}

// Synthesizer owns one duplex synthesis session at a time.
type Synthesizer struct {
	endpoint    string
	credentials *dashscope.Credentials
	voice       string
	model       string
	volume      int
	rate        float64
	pitch       float64

	connMu sync.Mutex
	conn   *websocket.Conn

	mu          sync.Mutex
	taskID      string
	taskActive  bool
	taskStarted bool
	finishSent  bool
	retained    [][]byte
	options     texttospeech.SynthesisOptions

	started  chan error
	finished chan error
}

type SynthesizerOption func(*Synthesizer)

func WithVoice(voice string) SynthesizerOption {
	return func(s *Synthesizer) {
		s.voice = voice
		s.model = ModelForVoice(voice)
	}
}

func WithModel(model string) SynthesizerOption {
	return func(s *Synthesizer) { s.model = model }
}

func WithEndpoint(endpoint string) SynthesizerOption {
	return func(s *Synthesizer) { s.endpoint = endpoint }
}

func WithProsody(volume int, rate, pitch float64) SynthesizerOption {
	return func(s *Synthesizer) {
		s.volume = volume
		s.rate = rate
		s.pitch = pitch
	}
}

func NewSynthesizer(credentials *dashscope.Credentials, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		credentials: credentials,
		voice:       defaultVoice,
		model:       ModelForVoice(defaultVoice),
		volume:      50,
		rate:        1,
		pitch:       1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the connection, sends run-task and blocks until task-started.
// Starting while the previous task has not reached a terminal state returns
// [dashscope.ErrTaskActive].
func (s *Synthesizer) Start(ctx context.Context, opts ...texttospeech.SynthesisOption) error {
	options := texttospeech.SynthesisOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}

	s.mu.Lock()
	if s.taskActive {
		s.mu.Unlock()
		return dashscope.ErrTaskActive
	}
	s.taskActive = true
	s.taskStarted = false
	s.finishSent = false
	s.taskID = uuid.NewString()
	s.retained = nil
	s.options = options
	s.started = make(chan error, 1)
	s.finished = make(chan error, 1)
	taskID := s.taskID
	started := s.started
	s.mu.Unlock()

	s.emitStatus("connecting to synthesis server")

	conn, err := dashscope.Dial(ctx, s.endpoint, s.credentials)
	if err != nil {
		s.endTask()
		return fmt.Errorf("failed to open synthesis session: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	runTask := dashscope.NewRunTaskMessage(taskID, dashscope.OutboundPayload{
		TaskGroup: dashscope.TaskGroupAudio,
		Task:      taskTTS,
		Function:  functionSpeechSynthesizer,
		Model:     s.model,
		Parameters: synthesisParameters{
			TextType:   "PlainText",
			Voice:      s.voice,
			Format:     options.EncodingInfo.Format.Name(),
			SampleRate: options.EncodingInfo.SampleRate,
			Volume:     s.volume,
			Rate:       s.rate,
			Pitch:      s.pitch,
		},
	})
	if err := s.writeJSON(runTask); err != nil {
		s.teardown()
		s.endTask()
		return fmt.Errorf("failed to send run-task: %w", err)
	}

	go s.readAndProcessMessages(conn)

	select {
	case err := <-started:
		if err != nil {
			s.teardown()
			s.endTask()
			return err
		}
	case <-ctx.Done():
		s.teardown()
		s.endTask()
		return ctx.Err()
	}

	s.emitStatus("connected to synthesis server")
	return nil
}

// SendText feeds the next chunk of text to speak as a continue-task message.
// Chunks may arrive while the language model is still generating; speech is
// produced in send order.
func (s *Synthesizer) SendText(text string) error {
	s.mu.Lock()
	if !s.taskActive || !s.taskStarted {
		s.mu.Unlock()
		return dashscope.ErrSessionClosed
	}
	if s.finishSent {
		s.mu.Unlock()
		return fmt.Errorf("synthesis text already completed")
	}
	taskID := s.taskID
	s.mu.Unlock()

	if err := s.writeJSON(dashscope.NewContinueTaskMessage(taskID, text)); err != nil {
		return fmt.Errorf("failed to send continue-task: %w", err)
	}
	return nil
}

// Finish signals that no more text will arrive. Remaining audio keeps
// streaming; the speech-ended callback fires on the terminal event.
// Repeated calls are ignored.
func (s *Synthesizer) Finish() error {
	s.mu.Lock()
	if !s.taskActive || !s.taskStarted || s.finishSent {
		s.mu.Unlock()
		return nil
	}
	s.finishSent = true
	taskID := s.taskID
	s.mu.Unlock()

	if err := s.writeJSON(dashscope.NewFinishTaskMessage(taskID)); err != nil {
		return fmt.Errorf("failed to send finish-task: %w", err)
	}
	return nil
}

// Wait blocks until the active task reaches a terminal state.
func (s *Synthesizer) Wait(ctx context.Context) error {
	s.mu.Lock()
	if !s.taskActive {
		s.mu.Unlock()
		return nil
	}
	finished := s.finished
	s.mu.Unlock()

	select {
	case err := <-finished:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel aborts the in-flight task without waiting for remaining audio.
// Used for barge-in. Safe to call when no task is active.
func (s *Synthesizer) Cancel() error {
	s.mu.Lock()
	active := s.taskActive
	s.mu.Unlock()
	if !active {
		return nil
	}

	_ = s.Finish() // Best effort, the connection is dropped right after.
	s.teardown()
	s.endTask()
	return nil
}

// Close tears the session down unconditionally.
func (s *Synthesizer) Close() error {
	s.teardown()
	s.endTask()
	return nil
}

// RetainedAudio returns the frames kept when retention is enabled.
func (s *Synthesizer) RetainedAudio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	retained := make([][]byte, len(s.retained))
	copy(retained, s.retained)
	return retained
}

// ExportWAV wraps the retained audio in a WAV container.
func (s *Synthesizer) ExportWAV() []byte {
	s.mu.Lock()
	encodingInfo := s.options.EncodingInfo
	s.mu.Unlock()
	return audio.EncodeWAV(s.RetainedAudio(), encodingInfo)
}

func (s *Synthesizer) readAndProcessMessages(conn *websocket.Conn) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			wasStarted := s.taskStarted
			active := s.taskActive
			started, finished := s.started, s.finished
			s.mu.Unlock()

			if active {
				if !wasStarted {
					started <- dashscope.ErrClosedBeforeReady
				} else {
					select {
					case finished <- fmt.Errorf("synthesis session closed: %w", err):
					default:
					}
				}
				s.endTask()
			}
			conn.Close()
			return
		}

		if msgType == websocket.BinaryMessage {
			s.handleAudio(msg)
			continue
		}
		if done := s.processMessage(msg); done {
			s.teardown()
			return
		}
	}
}

// handleAudio forwards one PCM frame to the playback callback and retains a
// copy when retention is on. Forwarding is never blocked on retention.
func (s *Synthesizer) handleAudio(frame []byte) {
	if len(frame) == 0 {
		return
	}

	s.mu.Lock()
	callback := s.options.SpeechAudioCallback
	retain := s.options.RetainAudio
	s.mu.Unlock()

	if callback != nil {
		callback(frame)
	}
	if retain {
		s.mu.Lock()
		s.retained = append(s.retained, frame)
		s.mu.Unlock()
	}
}

func (s *Synthesizer) processMessage(msg []byte) bool {
	var parsed dashscope.InboundMessage
	if err := json.Unmarshal(msg, &parsed); err != nil {
		log.Println("Failed to unmarshal synthesis message", err)
		return false
	}

	switch parsed.Header.Event {
	case dashscope.EventTaskStarted:
		s.mu.Lock()
		s.taskStarted = true
		started := s.started
		s.mu.Unlock()
		started <- nil

	case dashscope.EventResultGenerated:
		// Synthesis results arrive as binary frames; nothing to do here.

	case dashscope.EventTaskFinished:
		s.mu.Lock()
		endedCallback := s.options.SpeechEndedCallback
		finished := s.finished
		s.mu.Unlock()
		if endedCallback != nil {
			endedCallback()
		}
		s.endTask()
		finished <- nil
		return true

	case dashscope.EventTaskFailed:
		taskErr := &dashscope.TaskError{
			TaskID: parsed.Header.TaskID,
			Code:   parsed.Header.Code,
			Detail: parsed.FailureDetail(),
		}
		s.mu.Lock()
		wasStarted := s.taskStarted
		started, finished := s.started, s.finished
		errorCallback := s.options.ErrorCallback
		s.mu.Unlock()
		if errorCallback != nil {
			errorCallback(taskErr)
		}
		s.endTask()
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

func (s *Synthesizer) endTask() {
	s.mu.Lock()
	s.taskActive = false
	s.taskStarted = false
	s.mu.Unlock()
}

func (s *Synthesizer) teardown() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Synthesizer) writeJSON(msg any) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return dashscope.ErrSessionClosed
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

func (s *Synthesizer) emitStatus(status string) {
	s.mu.Lock()
	callback := s.options.StatusCallback
	s.mu.Unlock()
	if callback != nil {
		callback(status)
	}
}
