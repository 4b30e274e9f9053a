package cli

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/framegraph/pkg/graph"
	"github.com/matzehuels/framegraph/pkg/project"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ViewerPickerModel - Interactive viewer selection
// =============================================================================

// viewerItem is one row of the picker.
type viewerItem struct {
	Name     string
	Upstream []string // document names of the nodes feeding the viewer
}

// ViewerPickerModel is the bubbletea model for choosing which viewers to
// render.
type ViewerPickerModel struct {
	Items    []viewerItem
	Cursor   int
	Marked   map[int]bool
	Chosen   []string // set when the user confirms
	Canceled bool
	Height   int
	Offset   int
}

// NewViewerPickerModel lists the given viewers with their direct inputs.
func NewViewerPickerModel(snap *graph.Snapshot, ix project.Index, viewers []string) ViewerPickerModel {
	items := make([]viewerItem, len(viewers))
	for i, name := range viewers {
		item := viewerItem{Name: name}
		for _, id := range snap.Upstream(ix[name]) {
			up, ok := ix.Name(id)
			if !ok {
				up = id
			}
			item.Upstream = append(item.Upstream, up)
		}
		items[i] = item
	}
	return ViewerPickerModel{
		Items:  items,
		Marked: make(map[int]bool),
		Height: 15,
	}
}

func (m ViewerPickerModel) Init() tea.Cmd {
	return nil
}

func (m ViewerPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Canceled = true
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Items)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "space", "x":
			m.Marked[m.Cursor] = !m.Marked[m.Cursor]
		case "a":
			all := len(m.marked()) < len(m.Items)
			for i := range m.Items {
				m.Marked[i] = all
			}
		case "enter":
			if len(m.Items) == 0 {
				m.Canceled = true
				return m, tea.Quit
			}
			m.Chosen = m.marked()
			if len(m.Chosen) == 0 {
				m.Chosen = []string{m.Items[m.Cursor].Name}
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

// marked returns the names of the marked items in list order.
func (m ViewerPickerModel) marked() []string {
	var names []string
	for i, item := range m.Items {
		if m.Marked[i] {
			names = append(names, item.Name)
		}
	}
	return names
}

func (m ViewerPickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Viewers"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space mark  a all  ⏎ render  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Items))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		item := m.Items[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		mark := "[ ]"
		if m.Marked[i] {
			mark = "[x]"
		}
		inputs := "-"
		if len(item.Upstream) > 0 {
			inputs = strings.Join(item.Upstream, ", ")
		}
		rows = append(rows, []string{cursor, mark, item.Name, inputs})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "", "Viewer", "Inputs").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			idx := m.Offset + row
			switch {
			case idx == m.Cursor:
				return listSelectedStyle
			case col == 3:
				return listDimStyle
			}
			return listNormalStyle
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d] %d marked", m.Cursor+1, len(m.Items), len(m.marked()))))

	return b.String()
}

// pickViewers runs the picker on in/out and returns the chosen viewer
// names, or nil if the user quit.
func pickViewers(m ViewerPickerModel, in io.Reader, out io.Writer) ([]string, error) {
	final, err := tea.NewProgram(m, tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return nil, fmt.Errorf("viewer picker: %w", err)
	}
	picked := final.(ViewerPickerModel)
	if picked.Canceled {
		return nil, nil
	}
	return picked.Chosen, nil
}
