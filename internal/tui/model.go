// Package tui is a terminal front end for a single chat session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/beacon/internal/model/chat"
	"github.com/zhouzirui/beacon/internal/model/persona"
	chatService "github.com/zhouzirui/beacon/internal/service/chat"
)

const title = "Crisis Support Chatbot (Powered by GROQ)"

// Session is the part of the session controller the terminal client drives.
type Session interface {
	Snapshot() chat.Snapshot
	SelectPersona(ctx context.Context, personaID string) (chat.Snapshot, error)
	Clear(ctx context.Context) chat.Snapshot
	SetInput(text string) chat.Snapshot
	Submit(ctx context.Context, message string, emit chatService.Emitter) (chat.Snapshot, error)
}

type frameMsg struct {
	snap chat.Snapshot
}

type doneMsg struct {
	snap chat.Snapshot
	err  error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	session  Session
	personas []persona.Persona

	snap     chat.Snapshot
	frames   chan tea.Msg
	status   string
	width    int
	height   int
	input    textinput.Model
	viewport viewport.Model
}

// New builds the model around an existing session.
func New(ctx context.Context, session Session, personas []persona.Persona) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question"
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)

	m := Model{
		ctx:      ctx,
		session:  session,
		personas: personas,
		snap:     session.Snapshot(),
		input:    ti,
		viewport: vp,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-5, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case frameMsg:
		m.snap = msg.snap
		m.refresh()
		return m, m.waitForFrame()

	case doneMsg:
		m.frames = nil
		switch {
		case msg.err == nil:
			m.snap = msg.snap
		case errors.Is(msg.err, chatService.ErrSessionReset):
			m.snap = m.session.Snapshot()
		default:
			m.status = msg.err.Error()
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m.submit()
		case "tab":
			return m.cyclePersona(1), nil
		case "shift+tab":
			return m.cyclePersona(-1), nil
		case "ctrl+l":
			m.snap = m.session.Clear(m.ctx)
			m.status = ""
			m.refresh()
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if _, ok := msg.(tea.KeyMsg); ok {
		m.snap = m.session.SetInput(m.input.Value())
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" || m.frames != nil {
		return m, nil
	}

	frames := make(chan tea.Msg, 16)
	m.frames = frames
	m.input.SetValue("")
	m.status = ""

	go func() {
		defer close(frames)
		final, err := m.session.Submit(m.ctx, text, func(snap chat.Snapshot) {
			select {
			case frames <- frameMsg{snap: snap}:
			case <-m.ctx.Done():
			}
		})
		select {
		case frames <- doneMsg{snap: final, err: err}:
		case <-m.ctx.Done():
		}
	}()

	return m, m.waitForFrame()
}

func (m Model) waitForFrame() tea.Cmd {
	frames := m.frames
	if frames == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-frames
		if !ok {
			return doneMsg{err: context.Canceled}
		}
		return msg
	}
}

func (m Model) cyclePersona(step int) Model {
	if len(m.personas) == 0 {
		return m
	}
	current := 0
	for i, p := range m.personas {
		if p.ID == m.snap.PersonaID {
			current = i
			break
		}
	}
	next := m.personas[(current+step+len(m.personas))%len(m.personas)]

	snap, err := m.session.SelectPersona(m.ctx, next.ID)
	if err != nil {
		m.status = err.Error()
		return m
	}
	m.snap = snap
	m.status = ""
	m.refresh()
	return m
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) personaName() string {
	for _, p := range m.personas {
		if p.ID == m.snap.PersonaID {
			return p.Name
		}
	}
	return m.snap.PersonaID
}

func (m Model) renderTranscript() string {
	accent := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.snap.Theme.Background)).
		Bold(true)

	var b strings.Builder
	for i, turn := range m.snap.Transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := "You"
		if turn.Role == chat.RoleAssistant {
			label = m.snap.PersonaID
		}
		b.WriteString(accent.Render(label + ":"))
		b.WriteString(" ")
		b.WriteString(turn.Content)
	}
	return lipgloss.NewStyle().Width(m.viewport.Width).Render(b.String())
}

// View implements tea.Model.
func (m Model) View() string {
	header := lipgloss.NewStyle().
		Background(lipgloss.Color(m.snap.Theme.Background)).
		Foreground(lipgloss.Color(m.snap.Theme.Text)).
		Bold(true).
		Padding(0, 1).
		Render(fmt.Sprintf("🛡️ %s · %s", title, m.personaName()))

	footer := "tab: persona · ctrl+l: clear chat · esc: quit"
	if m.status != "" {
		footer = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Render(m.status)
	} else if m.frames != nil {
		footer = "typing…"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.input.View(),
		lipgloss.NewStyle().Faint(true).Render(footer),
	)
}
