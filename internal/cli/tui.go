package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/commitcanvas/pkg/diffpointer"
	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/graph"
)

// List styles
var (
	listDimStyle  = lipgloss.NewStyle().Foreground(colorDim)
	listErrStyle  = lipgloss.NewStyle().Foreground(colorRed)
	listHeadStyle = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// =============================================================================
// CommitListModel - Interactive diff source and target selection
// =============================================================================

// CommitListModel is the bubbletea model for picking a diff pair. The
// first enter arms the pointer on a source commit and the second selects
// the target; esc disarms, or quits when nothing is armed.
type CommitListModel struct {
	Nodes    []graph.Node
	Pointer  *diffpointer.Pointer
	Cursor   int
	Height   int
	Offset   int
	Selected *diffpointer.Selection
	Err      string
}

// NewCommitListModel creates a commit list over the commit nodes of a
// snapshot. pointer may already be armed.
func NewCommitListModel(nodes []graph.Node, pointer *diffpointer.Pointer) CommitListModel {
	commits := make([]graph.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Commit != nil {
			commits = append(commits, n)
		}
	}
	return CommitListModel{
		Nodes:   commits,
		Pointer: pointer,
		Height:  15,
	}
}

func (m CommitListModel) Init() tea.Cmd {
	return nil
}

func (m CommitListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.Pointer.State() == diffpointer.Armed {
				m.Pointer.Cancel()
				m.Err = ""
				return m, nil
			}
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
			m.follow()
		case "down", "j":
			if m.Cursor < len(m.Nodes)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
			m.follow()
		case "enter":
			if len(m.Nodes) == 0 {
				return m, nil
			}
			return m.pick()
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 7
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

// pick arms the pointer on the highlighted commit or selects it as the
// target. Rejections are shown and leave the state unchanged.
func (m CommitListModel) pick() (tea.Model, tea.Cmd) {
	n := m.Nodes[m.Cursor]
	if m.Pointer.State() != diffpointer.Armed {
		if err := m.Pointer.Start(n.ID, n.Position); err != nil {
			m.Err = errors.UserMessage(err)
			return m, nil
		}
		m.Err = ""
		return m, nil
	}
	sel, err := m.Pointer.Select(n.ID)
	if err != nil {
		m.Err = errors.UserMessage(err)
		return m, nil
	}
	m.Selected = &sel
	return m, tea.Quit
}

// follow drags the virtual node along with the highlighted row.
func (m CommitListModel) follow() {
	if len(m.Nodes) == 0 {
		return
	}
	p := m.Nodes[m.Cursor].Position
	m.Pointer.UpdateCursor(p.X, p.Y)
}

func (m CommitListModel) View() string {
	var b strings.Builder

	if m.Pointer.State() == diffpointer.Armed {
		b.WriteString(StyleTitle.Render("Select Target"))
		b.WriteString(listDimStyle.Render("  from " + shortID(m.Pointer.Source())))
	} else {
		b.WriteString(StyleTitle.Render("Select Source"))
	}
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  esc back  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Nodes) {
		end = len(m.Nodes)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		n := m.Nodes[i]

		cursor := "  "
		switch {
		case i == m.Cursor:
			cursor = "▸ "
		case n.ID == m.Pointer.Source():
			cursor = "● "
		}

		refs := strings.Join(n.Commit.Refs, ", ")
		if n.Commit.IsSynthetic() {
			refs = n.Commit.Uncommitted.String()
		}
		rows = append(rows, []string{
			cursor,
			shortID(n.ID),
			summary(n.Commit.Message, 48),
			refs,
			n.Commit.Author,
			formatRelativeTime(n.Commit.Timestamp),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Commit", "Message", "Refs", "Author", "When").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return listHeadStyle
			}

			idx := m.Offset + row
			if idx >= len(m.Nodes) {
				return lipgloss.NewStyle()
			}
			n := m.Nodes[idx]
			isCurrent := idx == m.Cursor

			base := lipgloss.NewStyle()
			if col == 4 || col == 5 {
				base = base.Foreground(colorDim)
			}
			switch {
			case n.Commit.IsSynthetic():
				return base.Foreground(colorDim).Bold(isCurrent)
			case n.ID == m.Pointer.Source():
				return base.Foreground(colorYellow).Bold(isCurrent)
			case isCurrent:
				if col == 4 || col == 5 {
					return base.Foreground(colorGray).Bold(true)
				}
				return base.Foreground(colorGreen).Bold(true)
			case col == 3:
				return base.Foreground(colorCyan)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	if m.Err != "" {
		b.WriteString(listErrStyle.Render("  " + iconError + " " + m.Err))
		b.WriteString("\n")
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Nodes))))

	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

func formatRelativeTime(unix int64) string {
	if unix == 0 {
		return "—"
	}
	t := time.Unix(unix, 0)
	diff := time.Since(t)

	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
