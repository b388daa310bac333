// Package documents provides the documents list view for the TUI.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kbase/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// Actions reported in DocumentActionDone.
const (
	ActionRegenerate = "regenerate"
	ActionDelete     = "delete"
)

// ErrNoIngestion is reported when an action needs the ingestion orchestrator.
var ErrNoIngestion = errors.New("ingestion is not available in this session")

// reservedLines is the height taken by the title, footer and padding.
const reservedLines = 7

// View lists documents with their ingestion status.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	documents driving.DocumentService
	ingestion driving.IngestionOrchestrator
	ctx       context.Context

	docs          []domain.Document
	selected      int
	scrollOffset  int
	width         int
	height        int
	loading       bool
	err           error
	notice        string
	confirmDelete bool
}

// NewView creates a documents view. ingestion may be nil, which disables
// regenerate and delete.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	documents driving.DocumentService,
	ingestion driving.IngestionOrchestrator,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:    s,
		keymap:    km,
		documents: documents,
		ingestion: ingestion,
		ctx:       context.Background(),
		width:     80,
		height:    24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the listing.
func (v *View) Init() tea.Cmd {
	return v.Load()
}

// Load returns a command that fetches the listing.
func (v *View) Load() tea.Cmd {
	v.loading = true
	svc, ctx := v.documents, v.ctx
	return func() tea.Msg {
		docs, err := svc.List(ctx, domain.ListOptions{})
		return messages.DocumentsLoaded{Documents: docs, Err: err}
	}
}

// Update handles messages for the documents view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.DocumentsLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.docs = msg.Documents
			if v.selected >= len(v.docs) {
				v.selected = max(len(v.docs)-1, 0)
			}
			v.adjustScroll()
		}
		return v, nil

	case messages.DocumentActionDone:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.notice = fmt.Sprintf("%s: %s", msg.Action, msg.DocumentID)
		return v, v.Load()
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	key := msg.String()

	if v.confirmDelete {
		v.confirmDelete = false
		if keymap.Matches(key, v.keymap.Delete) {
			if doc := v.SelectedDocument(); doc != nil {
				return v, v.runAction(ActionDelete, doc.ID)
			}
		}
		v.notice = ""
		return v, nil
	}

	switch {
	case keymap.Matches(key, v.keymap.Up):
		if v.selected > 0 {
			v.selected--
			v.adjustScroll()
		}
	case keymap.Matches(key, v.keymap.Down):
		if v.selected < len(v.docs)-1 {
			v.selected++
			v.adjustScroll()
		}
	case keymap.Matches(key, v.keymap.Reload):
		v.notice = ""
		return v, v.Load()
	case keymap.Matches(key, v.keymap.Regenerate):
		if doc := v.SelectedDocument(); doc != nil {
			return v, v.runAction(ActionRegenerate, doc.ID)
		}
	case keymap.Matches(key, v.keymap.Delete):
		if doc := v.SelectedDocument(); doc != nil {
			v.confirmDelete = true
			v.notice = fmt.Sprintf("Press d again to delete %s", doc.FileName)
		}
	}
	return v, nil
}

func (v *View) runAction(action, id string) tea.Cmd {
	ingestion, ctx := v.ingestion, v.ctx
	return func() tea.Msg {
		if ingestion == nil {
			return messages.DocumentActionDone{Action: action, DocumentID: id, Err: ErrNoIngestion}
		}
		var err error
		switch action {
		case ActionRegenerate:
			err = ingestion.Regenerate(ctx, id)
		case ActionDelete:
			err = ingestion.Delete(ctx, id)
		}
		return messages.DocumentActionDone{Action: action, DocumentID: id, Err: err}
	}
}

func (v *View) adjustScroll() {
	visible := v.visibleItemCount()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+visible {
		v.scrollOffset = v.selected - visible + 1
	}
}

func (v *View) visibleItemCount() int {
	return max(v.height-reservedLines, 1)
}

// View renders the documents view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Documents (%d)", len(v.docs))))
	b.WriteString("\n\n")

	switch {
	case v.loading && len(v.docs) == 0:
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.docs) == 0:
		b.WriteString(v.styles.Muted.Render("No documents yet. Upload one with 'kbase upload <file>'."))
	default:
		visible := v.visibleItemCount()
		end := min(v.scrollOffset+visible, len(v.docs))
		for i := v.scrollOffset; i < end; i++ {
			b.WriteString(v.renderDocument(i, &v.docs[i]))
			b.WriteString("\n")
		}
		if len(v.docs) > visible {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", v.scrollOffset+1, end, len(v.docs))))
		}
	}

	if v.notice != "" {
		b.WriteString("\n")
		b.WriteString(v.styles.Warning.Render(v.notice))
	}
	return b.String()
}

// renderDocument renders "> name  status  N chunks  reason".
func (v *View) renderDocument(index int, doc *domain.Document) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	nameWidth := max(v.width/2-4, 12)
	name := doc.FileName
	if r := []rune(name); len(r) > nameWidth {
		name = string(r[:nameWidth-3]) + "..."
	}
	name = fmt.Sprintf("%s%-*s", indicator, nameWidth, name)

	detail := ""
	switch doc.Status {
	case domain.StatusCompleted:
		detail = fmt.Sprintf("%d chunks", doc.MetadataInt(domain.MetaChunkCount))
	case domain.StatusFailed:
		detail = doc.FailedStage + ": " + doc.Error
	}

	nameStyle := v.styles.Normal
	if index == v.selected {
		nameStyle = v.styles.Selected
	}
	return nameStyle.Render(name) + "  " +
		v.styles.Status(doc.Status).Render(fmt.Sprintf("%-10s", doc.Status)) + "  " +
		v.styles.Muted.Render(detail)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.adjustScroll()
}

// Documents returns the listed documents.
func (v *View) Documents() []domain.Document {
	return v.docs
}

// SelectedDocument returns the highlighted document, or nil.
func (v *View) SelectedDocument() *domain.Document {
	if v.selected < 0 || v.selected >= len(v.docs) {
		return nil
	}
	return &v.docs[v.selected]
}

// ConfirmingDelete reports whether a delete is awaiting confirmation.
func (v *View) ConfirmingDelete() bool {
	return v.confirmDelete
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
