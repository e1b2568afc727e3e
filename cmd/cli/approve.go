package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sevigo/patch-warden/internal/core"
)

var (
	approveTitleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	approveCursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	approveSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	approveDimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	approveHelpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type approveModel struct {
	fixes    []core.Fix
	selected map[int]bool
	cursor   int
	done     bool
	aborted  bool
}

func newApproveModel(fixes []core.Fix) *approveModel {
	return &approveModel{
		fixes:    fixes,
		selected: make(map[int]bool, len(fixes)),
	}
}

func (m *approveModel) Init() tea.Cmd { return nil }

func (m *approveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c", "q", "esc":
		m.aborted = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.fixes)-1 {
			m.cursor++
		}
	case " ":
		m.selected[m.cursor] = !m.selected[m.cursor]
	case "a":
		all := len(m.selected) < len(m.fixes)
		for i := range m.fixes {
			m.selected[i] = all
		}
		if !all {
			m.selected = make(map[int]bool, len(m.fixes))
		}
	case "enter":
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *approveModel) View() string {
	var b strings.Builder
	b.WriteString(approveTitleStyle.Render(fmt.Sprintf("%d fix(es) held for approval", len(m.fixes))))
	b.WriteString("\n\n")

	for i, fix := range m.fixes {
		cursor := "  "
		if i == m.cursor {
			cursor = approveCursorStyle.Render("> ")
		}
		mark := "[ ]"
		line := fmt.Sprintf("%s %s (confidence %.2f)", fix.Location.Path, fix.IssueID, fix.Confidence)
		if m.selected[i] {
			mark = approveSelectedStyle.Render("[x]")
			line = approveSelectedStyle.Render(line)
		} else {
			line = approveDimStyle.Render(line)
		}
		b.WriteString(fmt.Sprintf("%s%s %s\n", cursor, mark, line))
	}

	b.WriteString(approveHelpStyle.Render("space: toggle  a: all  enter: apply selected  q: abort"))
	return b.String()
}

// runApprovalTUI shows the held fixes and returns the ones the operator
// picked. An aborted session approves nothing.
func runApprovalTUI(fixes []core.Fix) ([]core.Fix, error) {
	model := newApproveModel(fixes)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return nil, fmt.Errorf("approval UI failed: %w", err)
	}
	if model.aborted {
		return nil, nil
	}

	var approved []core.Fix
	for i, fix := range fixes {
		if model.selected[i] {
			approved = append(approved, fix)
		}
	}
	return approved, nil
}
