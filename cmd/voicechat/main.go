// Command voicechat is a terminal frontend for a spoken conversation with a
// language-model agent. It wires the microphone, the recognition and
// synthesis task sessions, the chat provider and the audio player into one
// session and renders the live transcript.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	orchestration "github.com/duplexkit/voice-core/core"
	"github.com/duplexkit/voice-core/core/audio"
	"github.com/duplexkit/voice-core/core/audio/miniaudio"
	"github.com/duplexkit/voice-core/core/audio/portaudio"
	"github.com/duplexkit/voice-core/core/dashscope"
	"github.com/duplexkit/voice-core/core/llms"
	sttdashscope "github.com/duplexkit/voice-core/core/speechtotext/dashscope"
	ttsdashscope "github.com/duplexkit/voice-core/core/texttospeech/dashscope"
	"github.com/duplexkit/voice-core/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "voicechat:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := flag.String("config", "voicechat.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	if cfg.DashScope.APIKey == "" {
		return fmt.Errorf("no dashscope api key configured (set DASHSCOPE_API_KEY)")
	}
	credentials := dashscope.StaticCredentials(cfg.DashScope.APIKey)

	recognizerOpts := []sttdashscope.RecognizerOption{}
	synthesizerOpts := []ttsdashscope.SynthesizerOption{}
	if cfg.DashScope.Endpoint != "" {
		recognizerOpts = append(recognizerOpts, sttdashscope.WithEndpoint(cfg.DashScope.Endpoint))
		synthesizerOpts = append(synthesizerOpts, ttsdashscope.WithEndpoint(cfg.DashScope.Endpoint))
	}
	if cfg.Voice.Voice != "" {
		synthesizerOpts = append(synthesizerOpts, ttsdashscope.WithVoice(cfg.Voice.Voice))
	}

	recognizer := sttdashscope.NewRecognizer(credentials, recognizerOpts...)
	synthesizer := ttsdashscope.NewSynthesizer(credentials, synthesizerOpts...)

	chat, err := orchestration.NewChatProvider(llms.ProviderConfig{
		Provider:     llms.ProviderID(cfg.Chat.Provider),
		Model:        cfg.Chat.Model,
		SystemPrompt: cfg.Chat.SystemPrompt,
		APIKey:       cfg.Chat.APIKey,
		BaseURL:      cfg.Chat.BaseURL,
	})
	if err != nil {
		return err
	}

	orchestratorOpts := []orchestration.OrchestratorOption{
		orchestration.WithRecognizer(recognizer),
		orchestration.WithSynthesizer(synthesizer),
		orchestration.WithChatProvider(chat),
	}
	if len(cfg.Voice.LanguageHints) > 0 {
		orchestratorOpts = append(orchestratorOpts, orchestration.WithLanguageHints(cfg.Voice.LanguageHints...))
	}
	if cfg.Voice.BargeInFrames > 0 {
		orchestratorOpts = append(orchestratorOpts, orchestration.WithBargeIn(cfg.Voice.BargeInFrames))
	}
	if cfg.Voice.SpeechThreshold > 0 {
		orchestratorOpts = append(orchestratorOpts,
			orchestration.WithSpeechDetector(orchestration.EnergyDetector{Threshold: cfg.Voice.SpeechThreshold}))
	}

	audioClient, err := miniaudio.NewClient()
	switch {
	case err == nil:
		defer audioClient.Close()
		orchestratorOpts = append(orchestratorOpts,
			orchestration.WithRecorder(audioClient.Recorder()),
			orchestration.WithPlayer(audioClient.Player()),
		)
	case errors.Is(err, audio.ErrUnsupported):
		// No low-latency backend; fall back to pull-mode playback. Voice
		// input is unavailable but typed turns still speak.
		slog.Warn("no low-latency audio backend, using pull-mode playback only", "error", err)
		orchestratorOpts = append(orchestratorOpts, orchestration.WithPlayer(portaudio.NewPlayer()))
	default:
		return fmt.Errorf("failed to initialize audio: %w", err)
	}

	orchestrator := orchestration.NewOrchestrator(orchestratorOpts...)
	defer orchestrator.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	program := tea.NewProgram(newModel(orchestrator), tea.WithAltScreen())

	orchestrator.Orchestrate(ctx,
		orchestration.WithStateChangedCallback(func(state orchestration.VoiceState) {
			program.Send(stateMsg(state))
		}),
		orchestration.WithPartialTranscriptCallback(func(transcript string) {
			program.Send(partialTranscriptMsg(transcript))
		}),
		orchestration.WithTranscriptCallback(func(transcript string) {
			program.Send(finalTranscriptMsg(transcript))
		}),
		orchestration.WithAssistantChunkCallback(func(text string, endpoint bool) {
			program.Send(assistantChunkMsg{text: text, endpoint: endpoint})
		}),
		orchestration.WithStatusCallback(func(status string) {
			program.Send(statusMsg(status))
		}),
		orchestration.WithErrorCallback(func(err error) {
			program.Send(sessionErrMsg{err: err})
		}),
	)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui failed: %w", err)
	}
	return nil
}

func setupLogging(level string) {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		slogLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
}
