// Package tui renders the knowledge base chat: a transcript of user and
// assistant turns over the ingestion pipeline.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kbchat/internal/domain"
)

const greeting = "Hello! How can I help you today?"

const errorReply = "Something went wrong while processing your input. Please try again."

// Ingestor is the TUI-facing subset of the pipeline.
type Ingestor interface {
	Process(raw string) (domain.Outcome, error)
}

type message struct {
	role    string // "user" or "ai"
	content string
}

// outcomeMsg carries one finished pipeline turn back into the update loop.
type outcomeMsg struct {
	outcome domain.Outcome
	err     error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	pipeline Ingestor
	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model
	messages []message
	thinking bool
	ready    bool
}

// New creates a new chat model.
func New(pipeline Ingestor) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Enter a statement or question..."
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	vp := viewport.New(0, 0)
	return Model{
		pipeline: pipeline,
		input:    ti,
		viewport: vp,
		spin:     sp,
		messages: []message{{role: "ai", content: greeting}},
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and pipeline events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, qh := inputStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved - th
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			raw := strings.TrimSpace(m.input.Value())
			if raw == "" || m.thinking {
				return m, nil
			}
			m.messages = append(m.messages, message{role: "user", content: raw})
			m.input.Reset()
			m.thinking = true
			m.viewport.SetContent(m.renderTranscript())
			m.viewport.GotoBottom()
			return m, tea.Batch(m.spin.Tick, m.processCmd(raw))
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
	case outcomeMsg:
		m.thinking = false
		reply := msg.outcome.Message
		if msg.err != nil {
			reply = errorReply
		}
		m.messages = append(m.messages, message{role: "ai", content: reply})
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	case spinner.TickMsg:
		if m.thinking {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the header, transcript, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Knowledge Base Chat")
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := ""
	if m.thinking {
		status = m.spin.View() + " thinking..."
	}
	return header + "\n" + transcript + "\n" + input + "\n" + statusStyle.Render(status)
}

func (m Model) processCmd(raw string) tea.Cmd {
	return func() tea.Msg {
		outcome, err := m.pipeline.Process(raw)
		return outcomeMsg{outcome: outcome, err: err}
	}
}

func (m Model) renderTranscript() string {
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.role {
		case "user":
			b.WriteString(userStyle.Render("you") + "  " + msg.content)
		default:
			b.WriteString(aiStyle.Render("ai") + "   " + msg.content)
		}
	}
	return b.String()
}

var (
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	aiStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
