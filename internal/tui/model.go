// Package tui is the terminal chat front-end: a scrollback of questions and
// answers with source citations, and an input line at the bottom.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragqa/internal/domain"
)

// AskPort is the TUI-facing subset of the question-answering service.
type AskPort interface {
	Ask(ctx context.Context, question string) (domain.Answer, error)
}

type exchange struct {
	question string
	answer   domain.Answer
	err      error
}

type answerMsg exchange

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service  AskPort
	input    textinput.Model
	viewport viewport.Model
	history  []exchange
	summary  string
	status   string
	busy     bool
	ready    bool
}

// New creates a new chat model instance.
func New(service AskPort, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "请输入维修问题，按回车提问"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{service: service, input: ti, viewport: vp, summary: summary, status: "索引已加载，输入问题开始提问。"}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, and answer events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := historyBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2 // header + summary
		totalFooterLines := 1 // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil
	case answerMsg:
		m.busy = false
		m.history = append(m.history, exchange(msg))
		if msg.err != nil {
			m.status = "错误: " + msg.err.Error()
		} else {
			m.status = "输入问题继续提问。"
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = "正在查询知识库并生成维修建议..."
				m.input.Reset()
				return m, ask(m.service, q)
			}
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the question in the background and delivers the result as a
// message, keeping the event loop responsive while the model generates.
func ask(service AskPort, question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := service.Ask(context.Background(), question)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

// View renders the TUI layout and chat history.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("维修知识问答")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	history := historyBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + history + "\n" + input + "\n" + status
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return "还没有对话。"
	}
	parts := make([]string, 0, len(m.history))
	for _, ex := range m.history {
		parts = append(parts, renderExchange(ex))
	}
	return strings.Join(parts, "\n\n")
}

func renderExchange(ex exchange) string {
	var b strings.Builder
	b.WriteString(questionStyle.Render("问: " + ex.question))
	b.WriteString("\n")
	if ex.err != nil {
		b.WriteString(errorStyle.Render("答: " + ex.err.Error()))
		return b.String()
	}
	b.WriteString("答: " + ex.answer.Text)
	if len(ex.answer.Citations) > 0 {
		b.WriteString("\n")
		b.WriteString(citationStyle.Render(renderCitations(ex.answer.Citations)))
	}
	return b.String()
}

func renderCitations(citations []domain.Citation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "参考文档 (%d 条):", len(citations))
	for i, c := range citations {
		fmt.Fprintf(&b, "\n  [%d] %s: %s", i+1, c.Source, c.Excerpt)
	}
	return b.String()
}

var (
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	citationStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
