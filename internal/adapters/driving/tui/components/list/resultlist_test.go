package list

import (
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func sampleResults(n int) []domain.SearchResult {
	out := make([]domain.SearchResult, n)
	for i := range out {
		out[i] = domain.SearchResult{
			Text:       fmt.Sprintf("passage %d\nabout office safety", i),
			DocumentID: fmt.Sprintf("doc-%d", i),
			ChunkIndex: i,
			Similarity: 0.9 - float64(i)*0.01,
			Rank:       i + 1,
			FileName:   fmt.Sprintf("file-%d.md", i),
		}
	}
	return out
}

func TestNewResultList(t *testing.T) {
	r := NewResultList(nil)

	require.NotNil(t, r.styles)
	assert.Equal(t, 0, r.Count())
	assert.Nil(t, r.SelectedResult())
	assert.Nil(t, r.Init())
}

func TestResultList_EmptyView(t *testing.T) {
	r := NewResultList(nil)

	assert.Contains(t, r.View(), "No passages")
}

func TestResultList_View(t *testing.T) {
	r := NewResultList(nil)
	r.SetResults(sampleResults(2))

	view := r.View()

	assert.Contains(t, view, "Results (2)")
	assert.Contains(t, view, "[1] file-0.md #0")
	assert.Contains(t, view, "0.900")
	assert.Contains(t, view, "passage 0 about office safety")
}

func TestResultList_FallsBackToDocumentID(t *testing.T) {
	r := NewResultList(nil)
	r.SetResults([]domain.SearchResult{{DocumentID: "doc-x", Rank: 1, Text: "t"}})

	assert.Contains(t, r.View(), "doc-x")
}

func TestResultList_Navigation(t *testing.T) {
	r := NewResultList(nil)
	r.SetResults(sampleResults(3))

	r.MoveUp()
	assert.Equal(t, 0, r.Selected())

	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyDown})
	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	assert.Equal(t, 2, r.Selected())

	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	assert.Equal(t, 1, r.Selected())
	assert.Equal(t, "doc-1", r.SelectedResult().DocumentID)
}

func TestResultList_ScrollsToSelection(t *testing.T) {
	r := NewResultList(nil)
	r.SetDimensions(80, 6)
	r.SetResults(sampleResults(10))

	for i := 0; i < 7; i++ {
		r.MoveDown()
	}
	view := r.View()

	assert.Contains(t, view, "file-7.md")
	assert.NotContains(t, view, "file-0.md")
}

func TestResultList_Expand(t *testing.T) {
	r := NewResultList(nil)

	r.ToggleExpanded()
	assert.False(t, r.Expanded(), "nothing to expand")

	r.SetResults(sampleResults(3))
	r.MoveDown()
	r.ToggleExpanded()
	require.True(t, r.Expanded())

	view := r.View()
	assert.Contains(t, view, "file-1.md")
	assert.Contains(t, view, "about office safety")
	assert.NotContains(t, view, "file-2.md")

	r.SetResults(sampleResults(1))
	assert.False(t, r.Expanded(), "new results collapse the view")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))

	cjk := truncate(strings.Repeat("安", 20), 11)
	assert.LessOrEqual(t, lipgloss.Width(cjk), 11)
	assert.True(t, strings.HasSuffix(cjk, "..."))
}
