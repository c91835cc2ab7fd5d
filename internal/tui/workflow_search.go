package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chazuruo/clickflow/internal/workflows/store"
)

// WorkflowSearchModel is the TUI model for picking a saved workflow.
// Typing narrows the list by name.
type WorkflowSearchModel struct {
	refs         []store.WorkflowRef
	query        string
	results      []store.WorkflowRef
	selected     int
	quit         bool
	confirmed    bool
	width        int
	height       int
	scrollOffset int
}

// NewWorkflowSearch creates a new workflow search TUI.
func NewWorkflowSearch(refs []store.WorkflowRef, initialQuery string) WorkflowSearchModel {
	m := WorkflowSearchModel{
		refs:   refs,
		query:  initialQuery,
		width:  80,
		height: 24,
	}
	m.filter()
	return m
}

func (m *WorkflowSearchModel) filter() {
	q := strings.ToLower(m.query)
	m.results = nil
	for _, ref := range m.refs {
		if q == "" || strings.Contains(strings.ToLower(ref.Name), q) || strings.Contains(ref.Slug, q) {
			m.results = append(m.results, ref)
		}
	}
	m.selected = 0
	m.scrollOffset = 0
}

// Init initializes the workflow search model.
func (m WorkflowSearchModel) Init() tea.Cmd {
	return nil
}

// Update updates the workflow search model.
func (m WorkflowSearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			m.quit = true
			return m, tea.Quit

		case tea.KeyEnter:
			if len(m.results) > 0 && m.selected >= 0 && m.selected < len(m.results) {
				m.confirmed = true
			}
			return m, tea.Quit

		case tea.KeyUp:
			if m.selected > 0 {
				m.selected--
				m.updateScrollOffset()
			}

		case tea.KeyDown:
			if m.selected < len(m.results)-1 {
				m.selected++
				m.updateScrollOffset()
			}

		case tea.KeyHome:
			m.selected = 0
			m.scrollOffset = 0

		case tea.KeyEnd:
			m.selected = max(len(m.results)-1, 0)
			m.updateScrollOffset()

		case tea.KeyBackspace:
			if r := []rune(m.query); len(r) > 0 {
				m.query = string(r[:len(r)-1])
				m.filter()
			}

		case tea.KeyRunes:
			m.query += string(msg.Runes)
			m.filter()

		case tea.KeySpace:
			m.query += " "
			m.filter()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateScrollOffset()
	}

	return m, nil
}

// updateScrollOffset updates the scroll offset to keep the selected item visible.
func (m *WorkflowSearchModel) updateScrollOffset() {
	maxVisible := m.maxVisibleItems()
	if m.selected < m.scrollOffset {
		m.scrollOffset = m.selected
	} else if m.selected >= m.scrollOffset+maxVisible {
		m.scrollOffset = m.selected - maxVisible + 1
	}
}

// maxVisibleItems returns the maximum number of visible items.
func (m *WorkflowSearchModel) maxVisibleItems() int {
	// header (2), search bar (2), footer (2), padding (2)
	return max(m.height-8, 1)
}

// View renders the workflow search model.
func (m WorkflowSearchModel) View() string {
	var b strings.Builder

	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("86")).
		Bold(true).
		Render("Workflows")
	b.WriteString(title)
	b.WriteString("\n\n")

	b.WriteString(m.renderSearchBar())
	b.WriteString("\n\n")

	b.WriteString(m.renderResults())
	b.WriteString("\n")

	b.WriteString(m.renderFooter())

	return b.String()
}

// renderSearchBar renders the search input bar.
func (m WorkflowSearchModel) renderSearchBar() string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	searchBar := style.Render("/" + m.query)

	info := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(fmt.Sprintf("%d of %d", len(m.results), len(m.refs)))

	width := max(m.width-lipgloss.Width(searchBar)-lipgloss.Width(info)-2, 0)
	middle := lipgloss.NewStyle().Width(width).Render(" ")
	return lipgloss.JoinHorizontal(lipgloss.Top, searchBar, middle, info)
}

// renderResults renders the results list.
func (m WorkflowSearchModel) renderResults() string {
	if len(m.results) == 0 {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
		return style.Render("No workflows found.")
	}

	start := m.scrollOffset
	end := min(start+m.maxVisibleItems(), len(m.results))

	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(m.renderItem(m.results[i], i == m.selected))
		b.WriteString("\n")
	}
	return b.String()
}

// renderItem renders a single result item.
func (m WorkflowSearchModel) renderItem(ref store.WorkflowRef, selected bool) string {
	style := lipgloss.NewStyle()
	if selected {
		style = style.
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("59")).
			Padding(0, 1)
	} else {
		style = style.
			Foreground(lipgloss.Color("242"))
	}

	meta := lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf("%d steps", ref.Steps))
	return style.Render(ref.Name + "  " + meta)
}

// renderFooter renders the help footer.
func (m WorkflowSearchModel) renderFooter() string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))
	return style.Render("type to filter • ↑/↓: move • enter: select • esc: quit")
}

// Query returns the current filter text.
func (m WorkflowSearchModel) Query() string {
	return m.query
}

// DidQuit returns true if the user quit without selecting.
func (m WorkflowSearchModel) DidQuit() bool {
	return m.quit
}

// DidConfirm returns true if the user confirmed a selection.
func (m WorkflowSearchModel) DidConfirm() bool {
	return m.confirmed
}

// GetSelected returns the selected workflow.
func (m WorkflowSearchModel) GetSelected() *store.WorkflowRef {
	if len(m.results) == 0 || m.selected < 0 || m.selected >= len(m.results) {
		return nil
	}
	return &m.results[m.selected]
}

// PickWorkflow shows the picker and returns the chosen ref, or nil if the
// user quit.
func PickWorkflow(refs []store.WorkflowRef, query string, opts ...tea.ProgramOption) (*store.WorkflowRef, error) {
	final, err := tea.NewProgram(NewWorkflowSearch(refs, query), opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run workflow picker: %w", err)
	}
	m, ok := final.(WorkflowSearchModel)
	if !ok || !m.DidConfirm() {
		return nil, nil
	}
	return m.GetSelected(), nil
}
