package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	orchestration "github.com/duplexkit/voice-core/core"
	"github.com/duplexkit/voice-core/core/llms"
)

type stateMsg orchestration.VoiceState

type partialTranscriptMsg string

type finalTranscriptMsg string

type assistantChunkMsg struct {
	text     string
	endpoint bool
}

type statusMsg string

type sessionErrMsg struct {
	err error
}

var (
	badgeStyle = map[orchestration.VoiceState]lipgloss.Style{
		orchestration.VoiceStateIdle:       lipgloss.NewStyle().Background(lipgloss.Color("240")).Foreground(lipgloss.Color("255")).Padding(0, 1),
		orchestration.VoiceStateListening:  lipgloss.NewStyle().Background(lipgloss.Color("28")).Foreground(lipgloss.Color("255")).Padding(0, 1),
		orchestration.VoiceStateRecording:  lipgloss.NewStyle().Background(lipgloss.Color("160")).Foreground(lipgloss.Color("255")).Padding(0, 1),
		orchestration.VoiceStateProcessing: lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("255")).Padding(0, 1),
	}
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type model struct {
	orchestrator *orchestration.Orchestrator

	viewport viewport.Model
	input    textinput.Model

	state    orchestration.VoiceState
	status   string
	lastErr  error
	sentTurn bool
	ready    bool
}

func newModel(orchestrator *orchestration.Orchestrator) model {
	input := textinput.New()
	input.Placeholder = "Type a message, or ctrl+l to talk"
	input.Focus()

	return model{
		orchestrator: orchestrator,
		input:        input,
		state:        orchestration.VoiceStateIdle,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		inputHeight := 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - inputHeight
		}
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.orchestrator.StopAll()
			return m, tea.Quit
		case "ctrl+l":
			if m.state == orchestration.VoiceStateIdle {
				if err := m.orchestrator.StartListening(); err != nil {
					m.lastErr = err
				}
			} else {
				m.orchestrator.StopListening()
			}
			return m, nil
		case "ctrl+d":
			if err := m.orchestrator.FinishUtterance(); err != nil {
				m.status = err.Error()
			}
			return m, nil
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if err := m.orchestrator.SendTextMessage(text, !m.sentTurn); err != nil {
				m.lastErr = err
				return m, nil
			}
			m.sentTurn = true
			m.lastErr = nil
			m.input.Reset()
			m.refreshTranscript()
			return m, nil
		}

	case stateMsg:
		m.state = orchestration.VoiceState(msg)
		return m, nil

	case partialTranscriptMsg, finalTranscriptMsg, assistantChunkMsg:
		if chunk, ok := msg.(assistantChunkMsg); ok && !chunk.endpoint {
			m.sentTurn = true
		}
		m.refreshTranscript()
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case sessionErrMsg:
		m.lastErr = msg.err
		return m, nil
	}

	var inputCmd, viewportCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.viewport, viewportCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewportCmd)
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}

	badge := badgeStyle[m.state].Render(string(m.state))
	statusLine := statusStyle.Render(m.status)
	if m.lastErr != nil {
		statusLine = errorStyle.Render(m.lastErr.Error())
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, badge, " ", statusLine)

	help := helpStyle.Render("ctrl+l talk · ctrl+d end utterance · esc quit")

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, m.viewport.View(), m.input.View(), help)
}

func (m *model) refreshTranscript() {
	var b strings.Builder
	for _, entry := range m.orchestrator.Conversation() {
		label := userStyle.Render("you")
		if entry.Role == llms.MessageRoleAssistant {
			label = assistantStyle.Render("assistant")
		}
		fmt.Fprintf(&b, "%s  %s\n\n", label, entry.Content)
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}
