// Package progress renders live ingestion progress for one or more
// documents until each reaches a terminal status.
package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// DefaultInterval is how often statuses are polled.
const DefaultInterval = 250 * time.Millisecond

// StatusSource reports a document's current status.
type StatusSource interface {
	Status(ctx context.Context, documentID string) (*driving.DocumentStatus, error)
}

// Item is one document to follow.
type Item struct {
	DocumentID string
	Label      string
}

type row struct {
	item   Item
	status *driving.DocumentStatus
	err    error
}

func (r *row) done() bool {
	return r.err != nil || (r.status != nil && r.status.Status.IsTerminal())
}

type pollMsg struct{}

type statusMsg struct {
	index  int
	status *driving.DocumentStatus
	err    error
}

// Model is the bubbletea model behind Run.
type Model struct {
	ctx      context.Context
	source   StatusSource
	styles   *styles.Styles
	spinner  spinner.Model
	rows     []row
	interval time.Duration
	pending  int
}

// NewModel creates a progress model following items.
func NewModel(ctx context.Context, source StatusSource, items []Item) *Model {
	s := styles.DefaultStyles()
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(s.Spinner))
	rows := make([]row, len(items))
	for i, it := range items {
		rows[i] = row{item: it}
	}
	return &Model{
		ctx:      ctx,
		source:   source,
		styles:   s,
		spinner:  sp,
		rows:     rows,
		interval: DefaultInterval,
	}
}

// WithInterval overrides the poll interval.
func (m *Model) WithInterval(d time.Duration) *Model {
	if d > 0 {
		m.interval = d
	}
	return m
}

// Init starts the spinner and the first poll.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m *Model) poll() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(m.rows))
	for i := range m.rows {
		if m.rows[i].done() {
			continue
		}
		idx, id := i, m.rows[i].item.DocumentID
		src, ctx := m.source, m.ctx
		cmds = append(cmds, func() tea.Msg {
			st, err := src.Status(ctx, id)
			return statusMsg{index: idx, status: st, err: err}
		})
	}
	m.pending = len(cmds)
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMsg:
		r := &m.rows[msg.index]
		r.status, r.err = msg.status, msg.err
		m.pending--
		if m.Done() {
			return m, tea.Quit
		}
		if m.pending > 0 {
			return m, nil
		}
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg { return pollMsg{} })

	case pollMsg:
		if m.ctx.Err() != nil {
			return m, tea.Quit
		}
		return m, m.poll()
	}
	return m, nil
}

// View renders one line per document.
func (m *Model) View() string {
	var b strings.Builder
	for i := range m.rows {
		b.WriteString(m.renderRow(&m.rows[i]))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderRow(r *row) string {
	label := r.item.Label
	if label == "" {
		label = r.item.DocumentID
	}
	switch {
	case r.err != nil:
		return m.styles.Error.Render("✗ ") + label + "  " + m.styles.Error.Render(r.err.Error())
	case r.status == nil:
		return m.spinner.View() + " " + label + "  " + m.styles.Muted.Render("queued")
	case r.status.Status == domain.StatusCompleted:
		return m.styles.Success.Render("✓ ") + label + "  " +
			m.styles.Muted.Render(fmt.Sprintf("%d chunks", chunkCount(r.status)))
	case r.status.Status == domain.StatusFailed:
		return m.styles.Error.Render("✗ ") + label + "  " +
			m.styles.Error.Render(r.status.FailedStage+": "+r.status.Error)
	default:
		return m.spinner.View() + " " + label + "  " + m.styles.Status(r.status.Status).Render(r.status.Status.String())
	}
}

func chunkCount(st *driving.DocumentStatus) int {
	d := domain.Document{Metadata: st.Metadata}
	return d.MetadataInt(domain.MetaChunkCount)
}

// Done reports whether every document is terminal or unreadable.
func (m *Model) Done() bool {
	for i := range m.rows {
		if !m.rows[i].done() {
			return false
		}
	}
	return true
}

// Results returns the last status seen per document, in item order.
// Entries are nil where the status could not be read.
func (m *Model) Results() []*driving.DocumentStatus {
	out := make([]*driving.DocumentStatus, len(m.rows))
	for i := range m.rows {
		out[i] = m.rows[i].status
	}
	return out
}

// Run shows the progress view on out until all items are terminal or
// ctx is cancelled. in is the terminal input.
func Run(ctx context.Context, in io.Reader, out io.Writer, source StatusSource, items []Item) ([]*driving.DocumentStatus, error) {
	m := NewModel(ctx, source, items)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil {
		return m.Results(), fmt.Errorf("progress view: %w", err)
	}
	return m.Results(), nil
}
