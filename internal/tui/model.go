package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"imgsearch/internal/domain"
)

// SearchPort is the TUI-facing subset of the search service.
type SearchPort interface {
	SearchImage(ctx context.Context, raw []byte, k int) ([]domain.Result, error)
	SearchURL(ctx context.Context, url string, k int) ([]domain.Result, error)
}

// queryTimeout bounds one search started from the TUI.
const queryTimeout = 30 * time.Second

type searchDoneMsg struct {
	query   string
	results []domain.Result
	err     error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service  SearchPort
	input    textinput.Model
	viewport viewport.Model
	results  []domain.Result
	summary  string
	status   string
	topK     int
	cursor   int
	ready    bool
	busy     bool
}

// New creates a new TUI model instance. summary is shown under the header.
func New(service SearchPort, summary string, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Image path or URL, then Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{service: service, input: ti, viewport: vp, summary: summary, topK: topK, status: "Loaded. Enter an image to search."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderResults())
		return m, nil
	case searchDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error [%s]: %v", domain.ErrorKind(msg.err), msg.err)
			m.results = nil
		} else {
			m.status = fmt.Sprintf("%d results for %s", len(msg.results), msg.query)
			m.results = msg.results
			m.cursor = 0
		}
		m.viewport.SetContent(m.renderResults())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = "Searching " + q + " ..."
				return m, m.search(q)
			}
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderResults())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderResults())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// search runs the query off the UI goroutine. Inputs starting with http://
// or https:// are fetched, anything else is read as a local file.
func (m Model) search(q string) tea.Cmd {
	svc, k := m.service, m.topK
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()

		lower := strings.ToLower(q)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			res, err := svc.SearchURL(ctx, q, k)
			return searchDoneMsg{query: q, results: res, err: err}
		}
		raw, err := os.ReadFile(q)
		if err != nil {
			return searchDoneMsg{query: q, err: err}
		}
		res, err := svc.SearchImage(ctx, raw, k)
		return searchDoneMsg{query: q, results: res, err: err}
	}
}

// View renders the TUI layout and current results.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Image Similarity Search")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderResults() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	var b strings.Builder
	for i, r := range m.results {
		line := fmt.Sprintf("%2d. %-32s %-14s %9.2f  score=%.3f", i+1, clip(r.Name, 32), clip(r.Category, 14), r.Price, r.Score)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	sel := m.results[m.cursor]
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("id %d  %s", sel.ID, sel.ImageSrc))
	return b.String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
