package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"iacrag/internal/domain"
)

// RetrievalPort is the TUI-facing subset of the retriever.
type RetrievalPort interface {
	Retrieve(ctx context.Context, query string, k int) (domain.FormattedContext, error)
}

// queryTimeout bounds a single retrieval started from the shell.
const queryTimeout = 2 * time.Minute

// resultMsg carries a finished retrieval back into Update.
type resultMsg struct {
	query string
	ctx   domain.FormattedContext
	err   error
}

// Model is the Bubble Tea model for the retrieval shell.
type Model struct {
	port      RetrievalPort
	k         int
	input     textinput.Model
	viewport  viewport.Model
	context   domain.FormattedContext
	summary   string
	status    string
	cursor    int
	showFull  bool
	busy      bool
	ready     bool
	lastQuery string
}

// New creates a shell that retrieves k chunks per query. summary is shown
// under the title.
func New(port RetrievalPort, k int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the infrastructure and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		port:     port,
		k:        k,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Indexed. Type to search; Tab toggles the full context.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) retrieve(q string) tea.Cmd {
	port, k := m.port, m.k
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		fc, err := port.Retrieve(ctx, q, k)
		return resultMsg{query: q, ctx: fc, err: err}
	}
}

// Update handles key, window and retrieval events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.render())
		return m, nil

	case resultMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.context = domain.FormattedContext{}
		} else {
			m.context = msg.ctx
			m.cursor = 0
			m.lastQuery = msg.query
			if msg.ctx.Empty {
				m.status = fmt.Sprintf("No context for %q: %v", msg.query, msg.ctx.Reason)
			} else {
				m.status = fmt.Sprintf("%d result(s) for %q", len(msg.ctx.Results), msg.query)
			}
		}
		m.viewport.SetContent(m.render())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = fmt.Sprintf("Retrieving %q...", q)
				return m, m.retrieve(q)
			}
		case "tab":
			m.showFull = !m.showFull
			m.viewport.SetContent(m.render())
			return m, nil
		case "down":
			if n := len(m.context.Results); n > 0 && !m.showFull {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.render())
				return m, nil
			}
		case "up":
			if n := len(m.context.Results); n > 0 && !m.showFull {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.render())
				return m, nil
			}
		case "pgdown":
			m.viewport.HalfViewDown()
			return m, nil
		case "pgup":
			m.viewport.HalfViewUp()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("iacrag shell")
	summary := mutedStyle.Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) render() string {
	if m.context.Empty {
		return m.context.Text
	}
	if len(m.context.Results) == 0 {
		return "No results yet."
	}
	if m.showFull {
		return m.context.Text + "\n\n" + renderCitations(m.context.Citations)
	}
	r := m.context.Results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  %s#%d  %s  score=%.3f",
		m.cursor+1, len(m.context.Results), r.Chunk.Source, r.Chunk.Index, r.Chunk.Kind, r.Score)
	return titleStyle.Render(title) + "\n\n" + highlightBestLine(r.Chunk.Text, m.lastQuery)
}

func renderCitations(citations []domain.Citation) string {
	var b strings.Builder
	b.WriteString(mutedStyle.Render("Sources:"))
	for i, c := range citations {
		fmt.Fprintf(&b, "\n  [%d] %s#%d (%s) %.3f", i+1, c.Source, c.ChunkIndex, c.Kind, c.Score)
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	titleStyle     = lipgloss.NewStyle().Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	wordRe         = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

// highlightBestLine emphasises the line sharing the most words with query.
func highlightBestLine(text, query string) string {
	qTokens := toTokenSet(query)
	lines := strings.Split(text, "\n")
	if len(qTokens) == 0 {
		return text
	}
	bestIdx, bestScore := -1, 0
	for i, line := range lines {
		if score := tokenOverlapScore(qTokens, line); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx >= 0 {
		lines[bestIdx] = highlightStyle.Render(lines[bestIdx])
	}
	return strings.Join(lines, "\n")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, line string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range wordRe.FindAllString(strings.ToLower(line), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
