package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"tessera/internal/rag"
	"tessera/internal/retriever"
	"tessera/internal/store"
)

type chatState int

const (
	chatIdle chatState = iota
	chatThinking
)

// Config holds what the chat screen needs from the CLI layer.
type Config struct {
	Engine  *rag.Engine
	Project store.Project
}

type chatMessage struct {
	role    string
	content string
}

// answerMsg is sent when a question completes.
type answerMsg struct {
	answer  string
	sources []retriever.Result
	err     error
}

type chatModel struct {
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	messages    []chatMessage
	engine      *rag.Engine
	project     store.Project
	state       chatState
	width       int
	height      int
	initialized bool
}

func newChatModel(cfg Config) chatModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	ti := textinput.New()
	ti.Placeholder = fmt.Sprintf("Ask a question about %s...", cfg.Project.Name)
	ti.CharLimit = 2000
	ti.Focus()

	return chatModel{
		spinner: sp,
		input:   ti,
		engine:  cfg.Engine,
		project: cfg.Project,
		state:   chatIdle,
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *chatModel) initViewport(width, height int) {
	m.width = width
	m.height = height

	vpHeight := height - 3
	if vpHeight < 5 {
		vpHeight = 5
	}
	m.viewport = viewport.New(width, vpHeight)
	m.viewport.SetContent(dimStyle.Render(
		"Ask a question about your project.\n\nCommands: /clear, /exit"))

	m.input.Width = width - 4

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err == nil {
		m.renderer = r
	}

	m.initialized = true
}

func askQuestion(engine *rag.Engine, project store.Project, question string) tea.Cmd {
	return func() tea.Msg {
		answer, sources, err := engine.Answer(context.Background(), project, question)
		if err != nil {
			return answerMsg{err: err}
		}
		return answerMsg{answer: answer, sources: sources}
	}
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case answerMsg:
		m.state = chatIdle
		if msg.err != nil {
			m.messages = append(m.messages, chatMessage{role: "error", content: msg.err.Error()})
		} else {
			m.messages = append(m.messages, chatMessage{role: "assistant", content: msg.answer})
			if cite := formatSources(msg.sources); cite != "" {
				m.messages = append(m.messages, chatMessage{role: "citation", content: cite})
			}
		}
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if m.state != chatIdle {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.viewport.SetContent(m.renderMessages())
			m.viewport.GotoBottom()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.state != chatIdle {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			question := strings.TrimSpace(m.input.Value())
			if question == "" {
				return m, nil
			}
			m.input.Reset()

			switch question {
			case "/exit", "/quit":
				return m, tea.Quit
			case "/clear":
				m.messages = nil
				m.viewport.SetContent(dimStyle.Render("Conversation cleared."))
				return m, nil
			}

			m.messages = append(m.messages, chatMessage{role: "user", content: question})
			m.state = chatThinking
			m.viewport.SetContent(m.renderMessages())
			m.viewport.GotoBottom()

			return m, tea.Batch(
				m.spinner.Tick,
				askQuestion(m.engine, m.project, question),
			)
		}
	}

	if m.state == chatIdle {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m chatModel) renderMarkdown(content string) string {
	if m.renderer == nil {
		return assistantMsgStyle.Render(content)
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return assistantMsgStyle.Render(content)
	}
	return strings.TrimRight(rendered, "\n")
}

func (m chatModel) renderMessages() string {
	var sb strings.Builder
	for _, msg := range m.messages {
		switch msg.role {
		case "user":
			sb.WriteString(userMsgStyle.Render("You: ") + msg.content + "\n\n")
		case "assistant":
			sb.WriteString(m.renderMarkdown(msg.content) + "\n\n")
		case "citation":
			sb.WriteString(citationStyle.Render(msg.content) + "\n\n")
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+msg.content) + "\n\n")
		}
	}

	if m.state != chatIdle {
		sb.WriteString(m.spinner.View() + " " + dimStyle.Render("Thinking...") + "\n")
	}

	return sb.String()
}

func formatSources(sources []retriever.Result) string {
	if len(sources) == 0 {
		return ""
	}
	var parts []string
	for _, s := range sources {
		ref := s.FileName
		if s.StartLine != nil && s.EndLine != nil {
			ref = fmt.Sprintf("%s:%d-%d", s.FileName, *s.StartLine, *s.EndLine)
		}
		parts = append(parts, ref)
	}
	return "Sources: " + strings.Join(parts, ", ")
}

func (m chatModel) View() string {
	if !m.initialized {
		return ""
	}

	statusText := "idle"
	if m.state == chatThinking {
		statusText = "thinking..."
	}
	statusBar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" tessera chat • %s • %s", m.project.Name, statusText))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		statusBar,
		m.input.View(),
	)
}

// Run starts the chat TUI.
func Run(cfg Config) error {
	p := tea.NewProgram(newChatModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
