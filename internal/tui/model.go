// Package tui is an interactive terminal for nearest-neighbor queries
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/truongthanh96/Word2Vec/internal/inspect"
	"github.com/truongthanh96/Word2Vec/pkg/types"
)

// QueryPort is the TUI-facing subset of the inspection service
type QueryPort interface {
	SimilarBy(word string, topK int) ([]types.Neighbor, error)
}

// Model is the Bubble Tea model for the query terminal
type Model struct {
	service   QueryPort
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	results   []types.Neighbor
	summary   string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a model answering queries with topK neighbors by default
func New(service QueryPort, summary string, topK int) Model {
	if topK <= 0 {
		topK = inspect.DefaultTopK
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a word (optionally followed by a count) and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		topK:     topK,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Loaded. Type a word to list its neighbors.",
	}
}

// Init starts the cursor blink
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderResults())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if q := strings.TrimSpace(m.input.Value()); q != "" {
				m = m.query(q)
				m.input.SetValue("")
				return m, nil
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
		case "tab":
			// Follow the selected neighbor
			if len(m.results) > 0 {
				m = m.query(m.results[m.cursor].Word)
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// query runs "word" or "word n" against the service
func (m Model) query(q string) Model {
	word, topK, err := parseQuery(q, m.topK)
	if err != nil {
		m.status = "Error: " + err.Error()
		return m
	}

	res, err := m.service.SimilarBy(word, topK)
	if err != nil {
		m.status = "Error: " + err.Error()
		m.results = nil
	} else {
		m.status = fmt.Sprintf("%d neighbors of %q", len(res), word)
		m.results = res
		m.cursor = 0
		m.lastQuery = word
	}
	m.viewport.SetContent(m.renderResults())
	return m
}

// View renders the layout
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Word2Vec Neighbors")
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
	b.WriteString(inspect.Format(m.lastQuery, m.results))
	b.WriteString("\n\n")
	for i, n := range m.results {
		line := fmt.Sprintf("%2d. %-20s %7.4f %s", n.Rank, n.Word, n.Similarity, bar(n.Similarity, 20))
		if i == m.cursor {
			line = highlightStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// parseQuery splits "word [n]"
func parseQuery(q string, defaultK int) (string, int, error) {
	fields := strings.Fields(q)
	switch len(fields) {
	case 1:
		return fields[0], defaultK, nil
	case 2:
		k, err := strconv.Atoi(fields[1])
		if err != nil || k <= 0 {
			return "", 0, fmt.Errorf("invalid neighbor count %q", fields[1])
		}
		return fields[0], k, nil
	}
	return "", 0, fmt.Errorf("expected a word and an optional count")
}

// bar draws a similarity in [-1, 1] as a bar of up to width cells
func bar(sim float64, width int) string {
	n := int((sim + 1) / 2 * float64(width))
	n = min(max(n, 0), width)
	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
