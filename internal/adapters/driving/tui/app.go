package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/views/documents"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/views/search"
	"github.com/custodia-labs/kbase/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	searchView    *search.View
	documentsView *documents.View

	currentView messages.ViewType
	stats       *domain.KnowledgeBaseStats
	err         error

	width  int
	height int
	ready  bool
}

var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	app := &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		searchView:  search.NewView(s, km, ports.Retrieval),
		currentView: messages.ViewSearch,
	}
	if ports.Documents != nil {
		app.documentsView = documents.NewView(s, km, ports.Documents, ports.Ingestion)
	}
	return app, nil
}

// WithContext sets the context for service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.searchView.WithContext(ctx)
	if a.documentsView != nil {
		a.documentsView.WithContext(ctx)
	}
	return a
}

// WithSearchOptions sets the top-k and document filter for queries.
func (a *App) WithSearchOptions(opts domain.SearchOptions) *App {
	a.searchView.WithOptions(opts)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("kbase"),
		a.searchView.Init(),
		a.loadStats(),
	)
}

func (a *App) loadStats() tea.Cmd {
	if a.ports.Documents == nil {
		return nil
	}
	svc, ctx := a.ports.Documents, a.ctx
	return func() tea.Msg {
		stats, err := svc.Stats(ctx)
		return messages.StatsLoaded{Stats: stats, Err: err}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case messages.SearchCompleted:
		a.searchView, cmd = a.searchView.Update(msg)
		return a, cmd

	case messages.DocumentsLoaded:
		if a.documentsView != nil {
			a.documentsView, cmd = a.documentsView.Update(msg)
		}
		return a, cmd

	case messages.DocumentActionDone:
		if a.documentsView != nil {
			a.documentsView, cmd = a.documentsView.Update(msg)
		}
		return a, tea.Batch(cmd, a.loadStats())

	case messages.StatsLoaded:
		if msg.Err != nil {
			a.err = msg.Err
		} else {
			a.stats = msg.Stats
		}
		return a, nil

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.ErrorOccurred:
		a.err = msg.Err
		return a, nil
	}
	return a, nil
}

func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return a, tea.Quit
	}
	typing := a.currentView == messages.ViewSearch && a.searchView.InputFocused()
	if !typing && keymap.Matches(key, a.keymap.Quit) {
		return a, tea.Quit
	}
	if keymap.Matches(key, a.keymap.SwitchView) {
		return a, a.switchTo(a.currentView.Next())
	}

	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewSearch:
		a.searchView, cmd = a.searchView.Update(msg)
	case messages.ViewDocuments:
		a.documentsView, cmd = a.documentsView.Update(msg)
	}
	return a, cmd
}

// switchTo activates a view. The documents view reloads on entry.
func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	switch view {
	case messages.ViewDocuments:
		if a.documentsView == nil {
			return nil
		}
		a.currentView = view
		return tea.Batch(a.documentsView.Load(), a.loadStats())
	case messages.ViewSearch:
		a.currentView = view
		return a.searchView.Init()
	}
	return nil
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	body := a.searchView.View()
	if a.currentView == messages.ViewDocuments {
		body = lipgloss.JoinVertical(lipgloss.Left,
			a.documentsView.View(), "", a.renderHelp(a.keymap.DocumentsHelp()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, a.renderHeader(), "", body)
}

// renderHeader shows the product name and knowledge base totals.
func (a *App) renderHeader() string {
	header := a.styles.Title.Render("kbase")
	if a.stats != nil {
		header += "  " + a.styles.Subtitle.Render(fmt.Sprintf("%d documents · %d vectors · %s",
			a.stats.TotalDocuments, a.stats.TotalVectors, a.stats.EmbeddingModel))
	}
	if a.err != nil {
		header += "  " + a.styles.Error.Render(a.err.Error())
	}
	return header
}

func (a *App) renderHelp(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return a.styles.Help.Render(strings.Join(parts, "  "))
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the active view.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Stats returns the last loaded header totals.
func (a *App) Stats() *domain.KnowledgeBaseStats {
	return a.stats
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has received its dimensions.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.searchView.SetDimensions(width, height-2)
	if a.documentsView != nil {
		a.documentsView.SetDimensions(width, height-4)
	}
}
