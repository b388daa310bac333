// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/kbase/internal/core/domain"
)

// linesPerResult is the height of one collapsed result.
const linesPerResult = 2

// ResultList displays ranked retrieval hits. The selected hit can be
// expanded to show its full chunk text.
type ResultList struct {
	results  []domain.SearchResult
	selected int
	expanded bool
	styles   *styles.Styles
	width    int
	height   int
}

// NewResultList creates an empty result list.
func NewResultList(s *styles.Styles) *ResultList {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &ResultList{styles: s, width: 80, height: 10}
}

// Init initialises the result list.
func (r *ResultList) Init() tea.Cmd {
	return nil
}

// Update handles navigation keys.
func (r *ResultList) Update(msg tea.Msg) (*ResultList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			r.MoveUp()
		case "down", "j":
			r.MoveDown()
		}
	}
	return r, nil
}

// View renders the visible window of results.
func (r *ResultList) View() string {
	if len(r.results) == 0 {
		return r.styles.Muted.Render("No passages above the similarity threshold")
	}

	lines := []string{r.styles.Subtitle.Render(fmt.Sprintf("Results (%d)", len(r.results))), ""}

	if r.expanded {
		if res := r.SelectedResult(); res != nil {
			lines = append(lines, r.renderHeader(r.selected, res), r.renderFull(res))
			return strings.Join(lines, "\n")
		}
	}

	visible := max((r.height-2)/linesPerResult, 1)
	start := 0
	if r.selected >= visible {
		start = r.selected - visible + 1
	}
	end := min(start+visible, len(r.results))

	for i := start; i < end; i++ {
		res := &r.results[i]
		lines = append(lines, r.renderHeader(i, res), r.styles.Muted.Render("    "+truncate(oneLine(res.Text), r.width-6)))
	}
	return strings.Join(lines, "\n")
}

// renderHeader formats "> [rank] file #chunk  similarity".
func (r *ResultList) renderHeader(index int, res *domain.SearchResult) string {
	indicator := "  "
	if index == r.selected {
		indicator = "> "
	}

	name := res.FileName
	if name == "" {
		name = res.DocumentID
	}
	title := truncate(fmt.Sprintf("[%d] %s #%d", res.Rank, name, res.ChunkIndex), max(r.width-12, 10))
	score := fmt.Sprintf("%.3f", res.Similarity)

	if index == r.selected {
		return r.styles.Selected.Render(indicator+title) + "  " + r.styles.Similarity(res.Similarity).Render(score)
	}
	return r.styles.Normal.Render(indicator+title) + "  " + r.styles.Similarity(res.Similarity).Render(score)
}

func (r *ResultList) renderFull(res *domain.SearchResult) string {
	return r.styles.Border.
		Width(max(r.width-4, 20)).
		Padding(0, 1).
		Render(res.Text)
}

// SetResults replaces the results and resets selection.
func (r *ResultList) SetResults(results []domain.SearchResult) {
	r.results = results
	r.selected = 0
	r.expanded = false
}

// Results returns the current results.
func (r *ResultList) Results() []domain.SearchResult {
	return r.results
}

// Selected returns the index of the selected result.
func (r *ResultList) Selected() int {
	return r.selected
}

// SelectedResult returns the selected result, or nil if there is none.
func (r *ResultList) SelectedResult() *domain.SearchResult {
	if r.selected < 0 || r.selected >= len(r.results) {
		return nil
	}
	return &r.results[r.selected]
}

// ToggleExpanded switches between the list and the selected result's full text.
func (r *ResultList) ToggleExpanded() {
	if len(r.results) > 0 {
		r.expanded = !r.expanded
	}
}

// Expanded reports whether the full text is shown.
func (r *ResultList) Expanded() bool {
	return r.expanded
}

// MoveUp moves selection up.
func (r *ResultList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

// MoveDown moves selection down.
func (r *ResultList) MoveDown() {
	if r.selected < len(r.results)-1 {
		r.selected++
	}
}

// SetDimensions sets the component dimensions.
func (r *ResultList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}

// Count returns the number of results.
func (r *ResultList) Count() int {
	return len(r.results)
}

// truncate shortens s to at most n display columns.
func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+3 > n {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
