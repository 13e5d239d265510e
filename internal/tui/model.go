package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"document-qa/internal/document"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/session"
)

// ChatPort is the TUI-facing subset of the orchestrator.
type ChatPort interface {
	Upload(ctx context.Context, s *session.Session, doc document.Document) models.Result
	Ask(ctx context.Context, s *session.Session, question string) models.Result
	Type(ctx context.Context, text string) *llmservice.Stream
}

type uploadedMsg struct{ res models.Result }

type answerMsg struct{ res models.Result }

type fragmentMsg struct {
	stream *llmservice.Stream
	text   string
}

type typingDoneMsg struct{}

type entry struct {
	role models.Role
	text string
}

// Model is the Bubble Tea model for the chat.
type Model struct {
	ctx     context.Context
	service ChatPort
	session *session.Session
	doc     document.Document

	input    textinput.Model
	viewport viewport.Model
	entries  []entry
	status   string
	busy     bool
	ready    bool
}

// New creates the chat for doc; the document is loaded when the program
// starts.
func New(ctx context.Context, service ChatPort, s *session.Session, doc document.Document) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		service:  service,
		session:  s,
		doc:      doc,
		input:    ti,
		viewport: vp,
		status:   fmt.Sprintf("Loading %s...", doc.Name),
		busy:     true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.upload())
}

func (m Model) upload() tea.Cmd {
	return func() tea.Msg {
		return uploadedMsg{res: m.service.Upload(m.ctx, m.session, m.doc)}
	}
}

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		return answerMsg{res: m.service.Ask(m.ctx, m.session, question)}
	}
}

// nextFragment blocks on the typing stream; the stream paces the words.
func nextFragment(stream *llmservice.Stream) tea.Cmd {
	return func() tea.Msg {
		if stream.Next() {
			return fragmentMsg{stream: stream, text: stream.Text()}
		}
		stream.Close()
		return typingDoneMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.refresh()
		return m, nil

	case uploadedMsg:
		m.busy = false
		m.status = msg.res.Text
		return m, nil

	case answerMsg:
		m.status = ""
		if !msg.res.OK() {
			m.status = msg.res.Failure.Kind.String()
		}
		m.entries = append(m.entries, entry{role: models.RoleAssistant})
		m.refresh()
		return m, nextFragment(m.service.Type(m.ctx, msg.res.Text))

	case fragmentMsg:
		last := &m.entries[len(m.entries)-1]
		last.text += msg.text
		m.refresh()
		return m, nextFragment(msg.stream)

	case typingDoneMsg:
		m.busy = false
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Thinking..."
			m.entries = append(m.entries, entry{role: models.RoleUser, text: q})
			m.input.SetValue("")
			m.refresh()
			return m, m.ask(q)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Document Q&A: " + m.doc.Name)
	chat := chatBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + chat + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func (m Model) render() string {
	if len(m.entries) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if e.role == models.RoleUser {
			b.WriteString(userStyle.Render("You: ") + e.text)
		} else {
			b.WriteString(assistantStyle.Render("Assistant: ") + e.text)
		}
	}
	return lipgloss.NewStyle().Width(m.viewport.Width).Render(b.String())
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// Run starts the chat on the terminal and blocks until the user quits.
func Run(ctx context.Context, service ChatPort, doc document.Document) error {
	p := tea.NewProgram(New(ctx, service, session.New(), doc), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
