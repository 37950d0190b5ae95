package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/sphere2bin/cli/reader"
	"github.com/justapithecus/sphere2bin/types"
)

// StatsModel is a Bubble Tea model for the scan summary view.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStatsScan:
		content = m.renderStatsScan()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsScan() string {
	data, ok := m.data.(*reader.InspectResponse)
	if !ok {
		return "Invalid data type for " + ViewStatsScan
	}

	var text, object int
	for _, rec := range data.Blocks {
		if rec.Kind == types.KindObject {
			object++
		} else {
			text++
		}
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Scan of " + data.Input))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n\n",
		LabelStyle.Render("Outcome:"),
		StateStyle(string(data.Outcome)).Render(string(data.Outcome))))

	blocks := []string{
		m.renderStatBox("Blocks", int64(len(data.Blocks)), highlightColor),
		m.renderStatBox("Text", int64(text), successColor),
		m.renderStatBox("Object", int64(object), primaryColor),
		m.renderStatBox("Errors", int64(data.ErrorCount), errorColor),
	}
	input := []string{
		m.renderStatBox("Bytes read", data.BytesRead, highlightColor),
		m.renderStatBox("Noise bytes", data.NoiseBytes, mutedColor),
		m.renderStatBox("Headers", data.Headers, successColor),
		m.renderStatBox("Desyncs", data.Desyncs, warningColor),
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, blocks...))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, input...))

	if data.PartialBlock {
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render("Input ended inside a block; it was discarded."))
	}

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
