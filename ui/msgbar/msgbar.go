// Package msgbar renders the scrolling gateway event log.
package msgbar

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"loraigate/gateway"
)

// Height is the total height of the component including its border.
const Height = 7

var kindColors = map[gateway.EventKind]lipgloss.Color{
	gateway.EventRX:          lipgloss.Color("51"),
	gateway.EventForwarded:   lipgloss.Color("42"),
	gateway.EventDropped:     lipgloss.Color("244"),
	gateway.EventStatus:      lipgloss.Color("141"),
	gateway.EventPosition:    lipgloss.Color("141"),
	gateway.EventReconnect:   lipgloss.Color("214"),
	gateway.EventFatal:       lipgloss.Color("9"),
	gateway.EventConfigError: lipgloss.Color("9"),
}

type Model struct {
	width  int
	height int
	lines  []string // newest first, plain text
	kinds  []gateway.EventKind
}

func New() Model {
	return Model{width: 80, height: Height}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Format renders one event as a single log line.
func Format(ev gateway.Event) string {
	line := fmt.Sprintf("%s %-10s %s", ev.Time.Format("15:04:05"), ev.Kind, ev.Line)
	if ev.Err != nil {
		line += " " + ev.Err.Error()
	}
	return strings.TrimRight(line, " ")
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = Height

	case gateway.Event:
		m.lines = append([]string{Format(msg)}, m.lines...)
		m.kinds = append([]gateway.EventKind{msg.Kind}, m.kinds...)
		if limit := Height - 2; len(m.lines) > limit {
			m.lines = m.lines[:limit]
			m.kinds = m.kinds[:limit]
		}
	}
	return m, nil
}

// Lines returns the visible lines, oldest first.
func (m Model) Lines() []string {
	out := make([]string, 0, len(m.lines))
	for i := len(m.lines) - 1; i >= 0; i-- {
		out = append(out, m.lines[i])
	}
	return out
}

func (m Model) View() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Width(m.width - 2).
		Height(m.height - 2).
		Padding(0, 1)

	contentWidth := max(m.width-2-2, 0)
	rows := max(m.height-2, 0)

	var b strings.Builder
	for i := 0; i < rows; i++ {
		// oldest at the top
		if j := len(m.lines) - 1 - i; j >= 0 {
			line := m.lines[j]
			if r := []rune(line); len(r) > contentWidth {
				line = string(r[:contentWidth])
			}
			b.WriteString(lipgloss.NewStyle().Foreground(kindColors[m.kinds[j]]).Render(line))
		}
		if i < rows-1 {
			b.WriteRune('\n')
		}
	}
	return style.Render(b.String())
}
