package tui

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/sphere2bin/cli/reader"
	"github.com/justapithecus/sphere2bin/types"
)

// defaultHexLines is the hex dump height when the window size is unknown.
const defaultHexLines = 16

// InspectModel is a Bubble Tea model for browsing decoded blocks.
type InspectModel struct {
	viewType string
	data     *reader.InspectResponse
	cursor   int
	showHex  bool
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model. data must be a
// *reader.InspectResponse; anything else renders an error view.
func NewInspectModel(viewType string, data any) InspectModel {
	resp, _ := data.(*reader.InspectResponse)
	return InspectModel{
		viewType: viewType,
		data:     resp,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.data != nil && m.cursor < len(m.data.Blocks)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Hex):
			m.showHex = !m.showHex
		}
	}

	return m, nil
}

// Selected returns the block under the cursor, or nil.
func (m InspectModel) Selected() *types.BlockRecord {
	if m.data == nil || m.cursor >= len(m.data.Blocks) {
		return nil
	}
	return m.data.Blocks[m.cursor]
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch {
	case m.viewType != ViewInspectBlocks:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	case m.data == nil:
		content = "Invalid data type for " + ViewInspectBlocks
	default:
		content = m.renderBlocks()
	}

	help := HelpStyle.Render("↑/↓ select • enter hex dump • q quit")
	return content + "\n" + help
}

func (m InspectModel) renderBlocks() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Blocks in " + m.data.Input))
	b.WriteString("\n")

	if len(m.data.Blocks) == 0 {
		b.WriteString(ValueStyle.Render("No blocks found."))
		return BoxStyle.Render(b.String())
	}

	for i, rec := range m.data.Blocks {
		marker := "  "
		if i == m.cursor {
			marker = CursorStyle.Render("> ")
		}
		row := fmt.Sprintf("%-4d %-4s %-7d %-7s", rec.Ordinal, rec.PrintableName(), rec.Length, rec.Kind)
		if i == m.cursor {
			row = CursorStyle.Render(row)
		} else {
			row = ValueStyle.Render(row)
		}
		b.WriteString(marker + row)
		if rec.HasError() {
			b.WriteString(" " + StateStyle(rec.Error).Render(rec.Error))
		}
		b.WriteString("\n")
	}

	list := BoxStyle.Render(b.String())
	detail := m.renderDetail(m.Selected())
	return lipgloss.JoinVertical(lipgloss.Left, list, detail)
}

func (m InspectModel) renderDetail(rec *types.BlockRecord) string {
	if rec == nil {
		return ""
	}

	errLabel := rec.Error
	if errLabel == "" {
		errLabel = "ok"
	}

	var b strings.Builder
	rows := [][]string{
		{"Ordinal", fmt.Sprintf("%d", rec.Ordinal)},
		{"Name", fmt.Sprintf("%s (%s)", rec.PrintableName(), hex.EncodeToString(rec.NameBytes[:]))},
		{"Length", fmt.Sprintf("%d", rec.Length)},
		{"Kind", rec.Kind},
		{"Checksum", fmt.Sprintf("0x%02X", rec.Checksum)},
	}
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(row[0]+":"), ValueStyle.Render(row[1])))
	}
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Error:"), StateStyle(rec.Error).Render(errLabel)))

	if m.showHex {
		b.WriteString("\n")
		for _, line := range m.hexLines(rec.Data) {
			b.WriteString(HexStyle.Render(line) + "\n")
		}
	}

	return BoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// hexLines returns the dump of data, cut to fit the window.
func (m InspectModel) hexLines(data []byte) []string {
	lines := strings.Split(strings.TrimRight(hex.Dump(data), "\n"), "\n")
	limit := defaultHexLines
	if m.height > 0 {
		limit = max(m.height-len(m.data.Blocks)-16, 4)
	}
	if len(lines) > limit {
		more := len(lines) - limit
		lines = append(lines[:limit], fmt.Sprintf("... %d more line(s)", more))
	}
	return lines
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
	Up   key.Binding
	Down key.Binding
	Hex  key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "previous block"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "next block"),
	),
	Hex: key.NewBinding(
		key.WithKeys("enter", "x"),
		key.WithHelp("enter", "toggle hex dump"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
