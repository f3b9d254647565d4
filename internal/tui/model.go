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

	"ragapi/internal/client"
	"ragapi/internal/service"
)

// RAGPort is the TUI-facing subset of the API client.
type RAGPort interface {
	Add(ctx context.Context, text string, metadata map[string]any) (string, error)
	Query(ctx context.Context, q string, opts client.QueryOptions) (*service.QueryResult, error)
	Delete(ctx context.Context, id string) error
}

const requestTimeout = 3 * time.Minute

type queryDoneMsg struct {
	query string
	res   *service.QueryResult
	err   error
}

type addDoneMsg struct {
	id  string
	err error
}

type deleteDoneMsg struct {
	id  string
	err error
}

// Model is the Bubble Tea model for the console.
type Model struct {
	api       RAGPort
	opts      client.QueryOptions
	input     textinput.Model
	viewport  viewport.Model
	answer    string
	results   []service.ResultItem
	subtitle  string
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a new TUI model instance. Queries always request scores so
// results can be browsed.
func New(api RAGPort, server string, opts client.QueryOptions) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or :add <text>, :del <id>"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	opts.IncludeScores = true
	return Model{
		api:      api,
		opts:     opts,
		input:    ti,
		viewport: vp,
		subtitle: fmt.Sprintf("%s  n=%d  best_only=%t", server, max(1, opts.NResults), opts.UseBestOnly),
		status:   "Connected. Type to ask.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and API response events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + subtitle
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case queryDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer, m.results = "", nil
		} else {
			m.status = fmt.Sprintf("Answer for %q (%d result(s))", msg.query, msg.res.ResultsCount)
			m.answer = msg.res.Answer
			m.results = msg.res.Results
			m.cursor = 0
			m.lastQuery = msg.query
		}
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case addDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = "Added document " + msg.id
		}
		return m, nil
	case deleteDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = "Deleted document " + msg.id
		}
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			cmd, status := m.command(line)
			m.status = status
			return m, cmd
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// command turns an input line into an API call.
func (m Model) command(line string) (tea.Cmd, string) {
	api, opts := m.api, m.opts
	switch {
	case strings.HasPrefix(line, ":add "):
		text := strings.TrimSpace(strings.TrimPrefix(line, ":add "))
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			id, err := api.Add(ctx, text, nil)
			return addDoneMsg{id: id, err: err}
		}, "Adding..."
	case strings.HasPrefix(line, ":del "):
		id := strings.TrimSpace(strings.TrimPrefix(line, ":del "))
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			return deleteDoneMsg{id: id, err: api.Delete(ctx, id)}
		}, "Deleting..."
	default:
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			res, err := api.Query(ctx, line, opts)
			return queryDoneMsg{query: line, res: res, err: err}
		}, "Thinking..."
	}
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG API Console")
	subtitle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.subtitle)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + subtitle + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if m.answer == "" && len(m.results) == 0 {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(answerStyle.Render(strings.TrimSpace(m.answer)))
	if len(m.results) == 0 {
		return b.String()
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  id=%s", m.cursor+1, len(m.results), r.ID)
	if r.RelevanceScore != nil && r.Distance != nil {
		title += fmt.Sprintf("  score=%.4f  distance=%.4f", *r.RelevanceScore, *r.Distance)
	}
	b.WriteString("\n\n" + title + "\n\n")
	b.WriteString(highlightBestSentence(r.Text, m.lastQuery))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasises the sentence sharing most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
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
