package orchestration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/duplexkit/voice-core/core/events"
	"github.com/duplexkit/voice-core/core/llms"
	"github.com/duplexkit/voice-core/core/speechtotext"
	"github.com/duplexkit/voice-core/core/texttospeech"
)

// Orchestrator wires capture, recognition, generation, synthesis and
// playback into one conversation turn loop and owns the cancellation and
// barge-in policy. The turn-taking state is mutated only here; I/O-bound
// work runs in the clients' own goroutines and reports back through
// callbacks.
type Orchestrator struct {
	recognizer  SpeechRecognizer
	synthesizer SpeechSynthesizer
	chat        llms.ChatStreamProvider
	recorder    AudioRecorder
	player      AudioPlayer
	detector    SpeechDetector

	languageHints  []string
	bargeInEnabled bool
	bargeInFrames  int

	machine    *stateMachine
	transcript *Transcript

	baseContext    context.Context
	sessionOptions SessionOptions

	mu            sync.Mutex
	capturing     bool
	rearming      bool
	pendingFrames [][]byte
	turnCancel    context.CancelFunc
	turnBuffer    *segmentBuffer

	speechStreak atomic.Int32
	closeOnce    sync.Once
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		detector:      anyFrameDetector{},
		bargeInFrames: 1,
		transcript:    newTranscript(),
		baseContext:   context.Background(),
	}
	o.machine = newStateMachine(func(state VoiceState) {
		o.emitEvent(events.NewSessionStateChangedEvent(string(state)))
		if callback := o.sessionOptions.onStateChanged; callback != nil {
			callback(state)
		}
	})

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Orchestrate binds the session to ctx and installs the frontend callbacks.
//
// Contract: call Orchestrate at most once per orchestrator instance, before
// the first StartListening or SendTextMessage.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...SessionOption) {
	o.sessionOptions = SessionOptions{}
	for _, opt := range opts {
		opt(&o.sessionOptions)
	}
	o.baseContext = ctx
}

// Close tears the whole session down. Safe to call more than once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() { o.StopAll() })
}

// VoiceState returns the current turn-taking state.
func (o *Orchestrator) VoiceState() VoiceState { return o.machine.State() }

// Conversation returns a point-in-time snapshot of the transcript.
func (o *Orchestrator) Conversation() []TranscriptEntry { return o.transcript.Snapshot() }

// History returns the chat provider's conversation history.
func (o *Orchestrator) History() []llms.Message {
	if o.chat == nil {
		return nil
	}
	return o.chat.History()
}

// StartListening opens the microphone and arms a recognition task. Calling
// it while the session is already active is a no-op.
func (o *Orchestrator) StartListening() error {
	if o.recorder == nil || o.recognizer == nil {
		return fmt.Errorf("voice input is not configured")
	}
	if o.machine.State() != VoiceStateIdle {
		return nil
	}

	if _, err := o.machine.apply(eventStartListening); err != nil {
		return nil
	}

	if err := o.startRecognition(); err != nil {
		o.machine.apply(eventStop)
		return fmt.Errorf("failed to start recognition task: %w", err)
	}

	if err := o.recorder.Start(o.handleFrame); err != nil {
		if closeErr := o.recognizer.Close(); closeErr != nil {
			logger.Warn("failed to close recognition task after capture failure", "error", closeErr)
		}
		o.machine.apply(eventStop)
		return fmt.Errorf("failed to open microphone: %w", err)
	}

	o.mu.Lock()
	o.capturing = true
	o.mu.Unlock()

	o.emitStatus("listening")
	return nil
}

// StopListening releases the microphone and closes the recognition task. A
// turn already in flight keeps playing; once its playback completes the
// session stays idle.
func (o *Orchestrator) StopListening() {
	o.machine.apply(eventStop)

	o.mu.Lock()
	o.capturing = false
	o.mu.Unlock()

	if o.recorder != nil {
		if err := o.recorder.Stop(); err != nil {
			logger.Warn("failed to release microphone", "error", err)
		}
	}
	if o.recognizer != nil {
		if err := o.recognizer.Close(); err != nil {
			logger.Warn("failed to close recognition task", "error", err)
		}
	}
	o.emitStatus("stopped listening")
}

// StopAll cancels the in-flight turn and tears everything down, releasing
// the microphone, closing outstanding tasks and stopping the player, in
// that order. Every step is best-effort; resources that were never started
// do not cause errors.
func (o *Orchestrator) StopAll() {
	o.machine.apply(eventStop)

	o.mu.Lock()
	o.capturing = false
	o.mu.Unlock()

	o.cancelTurn()

	if o.recorder != nil {
		if err := o.recorder.Stop(); err != nil {
			logger.Warn("failed to release microphone", "error", err)
		}
	}
	if o.recognizer != nil {
		if err := o.recognizer.Close(); err != nil {
			logger.Warn("failed to close recognition task", "error", err)
		}
	}
	if o.synthesizer != nil {
		if err := o.synthesizer.Cancel(); err != nil {
			logger.Warn("failed to cancel synthesis task", "error", err)
		}
	}
	if o.player != nil {
		o.player.Clear()
		if err := o.player.Stop(); err != nil {
			logger.Warn("failed to stop audio player", "error", err)
		}
	}
	o.emitStatus("stopped")
}

// FinishUtterance finalizes the recognition task for the current utterance.
// The final transcript triggers the language-model turn.
func (o *Orchestrator) FinishUtterance() error {
	if !o.machine.applyIf(VoiceStateRecording, eventUtteranceDone) {
		return fmt.Errorf("no utterance in progress")
	}

	go func() {
		if err := o.recognizer.Stop(o.baseContext); err != nil {
			o.emitError(fmt.Errorf("failed to finish recognition task: %w", err))
			o.resumeListening()
		}
	}()
	return nil
}

// SendTextMessage runs a turn from typed text, bypassing recognition.
// isFirstTurn resets the provider's conversation history first.
func (o *Orchestrator) SendTextMessage(text string, isFirstTurn bool) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty message")
	}
	if o.chat == nil {
		return fmt.Errorf("no chat provider configured")
	}

	if _, err := o.machine.apply(eventTurnStarted); err != nil {
		return fmt.Errorf("cannot start turn: %w", err)
	}

	if isFirstTurn {
		o.chat.ClearHistory()
	}
	o.transcript.AppendUser(text)
	o.runTurn(text)
	return nil
}

// handleFrame is the capture callback. Frames within one utterance are
// forwarded in capture order; during playback they feed the barge-in
// policy instead.
func (o *Orchestrator) handleFrame(frame []byte) {
	if len(frame) == 0 {
		return
	}

	switch o.machine.State() {
	case VoiceStateListening:
		if o.detector.IsSpeech(frame) && o.machine.applyIf(VoiceStateListening, eventSpeechObserved) {
			o.emitEvent(events.NewUserSpeechObservedEvent())
		}
		if err := o.recognizer.SendAudio(frame); err != nil {
			logger.Warn("failed to forward captured frame", "error", err)
		}
	case VoiceStateRecording:
		o.mu.Lock()
		if o.rearming {
			o.pendingFrames = append(o.pendingFrames, frame)
			o.mu.Unlock()
			return
		}
		o.mu.Unlock()
		if err := o.recognizer.SendAudio(frame); err != nil {
			logger.Warn("failed to forward captured frame", "error", err)
		}
	case VoiceStateProcessing:
		if !o.bargeInEnabled {
			return
		}
		if !o.detector.IsSpeech(frame) {
			o.speechStreak.Store(0)
			return
		}
		if int(o.speechStreak.Add(1)) < o.bargeInFrames {
			return
		}
		o.speechStreak.Store(0)
		o.bargeIn(frame)
	}
}

// bargeIn interrupts the in-flight turn: the language-model stream and the
// synthesis task are cancelled, buffered playback is discarded, and the
// session switches straight into recording the new utterance. The user is
// never blocked on machine output.
func (o *Orchestrator) bargeIn(frame []byte) {
	if !o.machine.applyIf(VoiceStateProcessing, eventBargeIn) {
		return
	}
	o.emitEvent(events.NewSessionBargeInEvent())

	o.mu.Lock()
	o.rearming = true
	o.pendingFrames = [][]byte{frame}
	o.mu.Unlock()

	o.cancelTurn()

	// Teardown and the fresh recognition task involve network round trips,
	// so they must not run on the capture callback; the capture device's
	// ring buffer is far smaller than a connect round trip. Frames captured
	// meanwhile queue until the task is armed.
	go o.restartRecognition()
}

// restartRecognition finishes a barge-in off the capture thread: it cancels
// the interrupted synthesis, discards buffered playback and arms a fresh
// recognition task, then flushes the frames queued while connecting.
func (o *Orchestrator) restartRecognition() {
	if o.synthesizer != nil {
		if err := o.synthesizer.Cancel(); err != nil {
			logger.Warn("failed to cancel synthesis task", "error", err)
		}
	}
	if o.player != nil {
		o.player.Clear()
		if err := o.player.Stop(); err != nil {
			logger.Warn("failed to stop audio player", "error", err)
		}
	}

	err := o.startRecognition()

	o.mu.Lock()
	frames := o.pendingFrames
	o.pendingFrames = nil
	o.rearming = false
	stopped := o.machine.State() != VoiceStateRecording
	if err == nil && !stopped {
		// Flushing under the lock keeps the queued frames ahead of any
		// frame the capture callback delivers next.
		for _, frame := range frames {
			if sendErr := o.recognizer.SendAudio(frame); sendErr != nil {
				logger.Warn("failed to forward interrupting frame", "error", sendErr)
			}
		}
	}
	o.mu.Unlock()

	if err != nil {
		o.suspendCapture(fmt.Errorf("failed to restart recognition task: %w", err))
		return
	}
	if stopped {
		// The session was stopped while connecting; the fresh task is not
		// needed anymore.
		if closeErr := o.recognizer.Close(); closeErr != nil {
			logger.Warn("failed to close recognition task", "error", closeErr)
		}
	}
}

func (o *Orchestrator) startRecognition() error {
	opts := []speechtotext.RecognitionOption{
		speechtotext.WithPartialTranscriptionCallback(o.handlePartialTranscript),
		speechtotext.WithTranscriptionCallback(o.handleFinalTranscript),
		speechtotext.WithStatusCallback(o.emitStatus),
		speechtotext.WithErrorCallback(o.emitError),
	}
	if len(o.languageHints) > 0 {
		opts = append(opts, speechtotext.WithLanguageHints(o.languageHints...))
	}
	return o.recognizer.Start(o.baseContext, opts...)
}

func (o *Orchestrator) handlePartialTranscript(transcript string) {
	o.transcript.UpdateLastUser(transcript)
	o.emitEvent(events.NewUserTranscriptPartialEvent(transcript))
	if callback := o.sessionOptions.onPartialTranscript; callback != nil {
		callback(transcript)
	}
}

func (o *Orchestrator) handleFinalTranscript(transcript string) {
	o.emitEvent(events.NewUserTranscriptFinalEvent(transcript))
	if callback := o.sessionOptions.onTranscript; callback != nil {
		callback(transcript)
	}

	if strings.TrimSpace(transcript) == "" {
		o.resumeListening()
		return
	}

	o.transcript.UpdateLastUser(transcript)
	o.runTurn(transcript)
}

// runTurn launches the language-model turn for prompt and returns
// immediately; playback completion drives the state machine onwards.
func (o *Orchestrator) runTurn(prompt string) {
	ctx, cancel := context.WithCancel(o.baseContext)
	buffer := newSegmentBuffer()

	o.mu.Lock()
	o.turnCancel = cancel
	o.turnBuffer = buffer
	o.mu.Unlock()

	go o.processTurn(ctx, cancel, prompt, buffer)
}

func (o *Orchestrator) processTurn(ctx context.Context, cancel context.CancelFunc, prompt string, buffer *segmentBuffer) {
	ctx, span := tracer.Start(ctx, "conversation turn")
	defer span.End()
	defer cancel()

	o.player.SetCallbacks(func(frame []byte, index int) {
		o.emitEvent(events.NewAssistantSpeechFrameEvent(frame, index))
		if callback := o.sessionOptions.onAudioChunk; callback != nil {
			callback(frame, index)
		}
	}, nil)

	if err := o.player.Connect(o.handlePlaybackComplete); err != nil {
		o.failTurn(ctx, fmt.Errorf("failed to connect audio player: %w", err))
		return
	}

	if err := o.synthesizer.Start(ctx,
		texttospeech.WithSpeechAudioCallback(func(frame []byte) {
			if err := o.player.PushPCM(frame); err != nil {
				logger.Warn("failed to enqueue synthesized frame", "error", err)
			}
		}),
		texttospeech.WithSpeechEndedCallback(func() {
			o.player.SendFinishedSignal()
		}),
		texttospeech.WithStatusCallback(o.emitStatus),
		texttospeech.WithErrorCallback(func(err error) {
			o.failTurn(ctx, fmt.Errorf("synthesis task failed: %w", err))
		}),
	); err != nil {
		o.failTurn(ctx, fmt.Errorf("failed to start synthesis task: %w", err))
		return
	}

	// Completed sentences are fed to synthesis while the model is still
	// generating, pipelining synthesis against generation.
	feederDone := make(chan struct{})
	go func() {
		defer close(feederDone)
		buffer.Segments(func(segment string) bool {
			return o.synthesizer.SendText(segment) == nil
		})
		if ctx.Err() != nil {
			return
		}
		if err := o.synthesizer.Finish(); err != nil {
			logger.Warn("failed to finish synthesis task", "error", err)
		}
	}()

	err := o.chat.SendMessage(ctx, prompt, func(chunk llms.ChatChunk) {
		if chunk.Endpoint {
			buffer.TextComplete()
			o.emitEvent(events.NewAssistantFinalEvent(buffer.String()))
			if callback := o.sessionOptions.onAssistantChunk; callback != nil {
				callback("", true)
			}
			return
		}
		if chunk.Text == "" {
			return
		}
		o.transcript.AppendAssistantDelta(chunk.Text)
		buffer.AddChunk(chunk.Text)
		o.emitEvent(events.NewAssistantSegmentEvent(chunk.Text))
		if callback := o.sessionOptions.onAssistantChunk; callback != nil {
			callback(chunk.Text, false)
		}
	})
	if err != nil {
		buffer.TextComplete()
		<-feederDone
		if ctx.Err() != nil {
			// Cancellation is not an error; barge-in or stop already did
			// the teardown.
			return
		}
		o.failTurn(ctx, fmt.Errorf("chat stream failed: %w", err))
		return
	}

	<-feederDone
	// Playback completion fires handlePlaybackComplete, which returns the
	// session to listening.
}

// failTurn is the single error exit for a turn: record, surface, release
// the player so a later connect succeeds, and resume listening.
func (o *Orchestrator) failTurn(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	o.emitError(err)
	if o.synthesizer != nil {
		if cancelErr := o.synthesizer.Cancel(); cancelErr != nil {
			logger.Warn("failed to cancel synthesis task", "error", cancelErr)
		}
	}
	if o.player != nil {
		o.player.Clear()
		if stopErr := o.player.Stop(); stopErr != nil {
			logger.Warn("failed to stop audio player", "error", stopErr)
		}
	}
	o.resumeListening()
}

// handlePlaybackComplete runs when queued playback fully drains after the
// finished signal.
func (o *Orchestrator) handlePlaybackComplete() {
	o.emitEvent(events.NewAssistantPlaybackEndedEvent())
	o.resumeListening()
}

// resumeListening arms a fresh recognition task and returns the session to
// LISTENING. Text-only sessions, where the microphone was never opened, go
// back to IDLE instead.
func (o *Orchestrator) resumeListening() {
	if o.machine.State() != VoiceStateProcessing {
		return
	}

	o.mu.Lock()
	capturing := o.capturing
	o.mu.Unlock()
	if !capturing {
		o.machine.applyIf(VoiceStateProcessing, eventStop)
		return
	}

	if err := o.startRecognition(); err != nil {
		o.suspendCapture(fmt.Errorf("failed to rearm recognition task: %w", err))
		return
	}
	o.machine.applyIf(VoiceStateProcessing, eventPlaybackComplete)
}

// suspendCapture parks the session in IDLE when recognition cannot be armed.
// Leaving the microphone open without an active task would silently discard
// every captured frame, so it is released and the session must be restarted
// explicitly.
func (o *Orchestrator) suspendCapture(err error) {
	o.emitError(err)

	o.mu.Lock()
	o.capturing = false
	o.mu.Unlock()

	if o.recorder != nil {
		if stopErr := o.recorder.Stop(); stopErr != nil {
			logger.Warn("failed to release microphone", "error", stopErr)
		}
	}
	o.machine.apply(eventStop)
}

func (o *Orchestrator) cancelTurn() {
	o.mu.Lock()
	cancel := o.turnCancel
	buffer := o.turnBuffer
	o.turnCancel = nil
	o.turnBuffer = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if buffer != nil {
		buffer.Clear()
		if buffer.Consumed() == 0 {
			// Nothing reached synthesis, so nothing was spoken; the partial
			// reply would otherwise linger in the transcript.
			o.transcript.DropLastAssistant()
		}
	}
}

func (o *Orchestrator) emitEvent(event events.Event) {
	if callback := o.sessionOptions.onEvent; callback != nil {
		callback(event)
	}
}

func (o *Orchestrator) emitStatus(status string) {
	o.emitEvent(events.NewSessionStatusEvent(status))
	if callback := o.sessionOptions.onStatus; callback != nil {
		callback(status)
	}
}

func (o *Orchestrator) emitError(err error) {
	logger.Error("session error", "error", err)
	o.emitEvent(events.NewSessionErrorEvent(err))
	if callback := o.sessionOptions.onError; callback != nil {
		callback(err)
	}
}
