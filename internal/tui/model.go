package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"recommender/internal/conversation"
	"recommender/internal/domain"
	"recommender/internal/service"
)

// TurnPort is the TUI-facing subset of the recommendation service.
type TurnPort interface {
	Turn(ctx context.Context, conv *conversation.Conversation, input string) (service.TurnResult, error)
}

type turnDoneMsg struct {
	conv   *conversation.Conversation
	result service.TurnResult
	err    error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service  TurnPort
	conv     *conversation.Conversation
	title    string
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	busy     bool
	status   string
	cursor   int
	ready    bool
}

// New creates a new TUI model instance for conv.
func New(svc TurnPort, conv *conversation.Conversation, title string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	m := Model{
		service:  svc,
		conv:     conv,
		title:    title,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Describe who you are shopping for.",
	}
	m.input.Placeholder = m.placeholder()
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and turn completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 + recommendationHeight // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case turnDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.conv = msg.conv
		m.cursor = 0
		m.status = turnStatus(msg.result)
		m.input.Placeholder = m.placeholder()
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			return m.send(q)
		case "f1", "f2", "f3":
			if m.busy || m.conv.Ranking == nil {
				return m, nil
			}
			idx := int(msg.String()[1] - '1')
			return m.send(conversation.FollowUps[idx].Message)
		case "ctrl+n":
			if m.busy {
				return m, nil
			}
			m.conv.Reset()
			m.cursor = 0
			m.status = "Started over."
			m.input.Placeholder = m.placeholder()
			m.refresh()
			return m, nil
		case "down":
			if n := m.matchCount(); n > 0 {
				m.cursor = (m.cursor + 1) % n
				return m, nil
			}
		case "up":
			if n := m.matchCount(); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				return m, nil
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send runs a turn on a copy of the conversation so the view never races the request.
func (m Model) send(text string) (tea.Model, tea.Cmd) {
	m.busy = true
	m.status = "Thinking..."
	conv := m.conv.Clone()
	svc, timeout := m.service, m.timeout
	turn := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := svc.Turn(ctx, conv, text)
		return turnDoneMsg{conv: conv, result: res, err: err}
	}
	return m, tea.Batch(turn, m.spinner.Tick)
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render(m.title)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	rec := recommendationStyle.Render(m.renderRecommendation())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + transcript + "\n" + rec + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderTranscript(m.conv, m.viewport.Width))
}

func (m Model) placeholder() string {
	if m.conv.AwaitingAnswer() {
		return "Your answer"
	}
	if len(m.conv.Messages) == 0 {
		return "Describe the person you're gifting to"
	}
	return "Ask for a refinement or start a new request"
}

func (m Model) matchCount() int {
	if m.conv.Ranking == nil || !m.conv.Ranking.HasMatch() {
		return 0
	}
	return len(m.conv.Ranking.Matches)
}

func (m Model) renderRecommendation() string {
	r := m.conv.Ranking
	if r == nil {
		return mutedStyle.Render("No recommendations yet.")
	}
	if !r.HasMatch() {
		return mutedStyle.Render("No catalog item matches " + strings.Join(m.conv.Tags, ", ") + ".")
	}
	cur := r.Matches[m.cursor]
	title := fmt.Sprintf("Recommendation %d/%d  score=%.3f", m.cursor+1, len(r.Matches), cur.Score)
	body := renderItem(cur.Item)
	var keys []string
	for i, f := range conversation.FollowUps {
		keys = append(keys, fmt.Sprintf("F%d %s", i+1, f.Label))
	}
	return title + "\n" + body + "\n" + mutedStyle.Render(strings.Join(keys, " · "))
}

func renderItem(it domain.CatalogItem) string {
	line := highlightStyle.Render(it.Name)
	if it.Brand != "" {
		line += " by " + it.Brand
	}
	out := line + "\nMain accords: " + it.AccordSummary()
	if it.ReferenceURL != "" {
		out += "\n" + it.ReferenceURL
	}
	return out
}

func renderTranscript(conv *conversation.Conversation, width int) string {
	if len(conv.Messages) == 0 {
		return mutedStyle.Render("No messages yet.")
	}
	wrap := lipgloss.NewStyle().Width(max(10, width-2))
	var b strings.Builder
	for i, msg := range conv.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		who := userStyle.Render("you")
		if msg.Role == domain.RoleAssistant {
			who = assistantStyle.Render("assistant")
		}
		b.WriteString(who + "\n" + wrap.Render(msg.Content))
	}
	return b.String()
}

func turnStatus(res service.TurnResult) string {
	switch {
	case res.Ranking == nil:
		return "Ready."
	case res.Ranking.HasMatch():
		return fmt.Sprintf("Matched on %s. Use ↑/↓ to browse.", strings.Join(res.Tags, ", "))
	default:
		return "No meaningful catalog match."
	}
}

const recommendationHeight = 6

var (
	headerStyle         = lipgloss.NewStyle().Bold(true)
	statusStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	highlightStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	transcriptBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	recommendationStyle = lipgloss.NewStyle().Padding(0, 1)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
