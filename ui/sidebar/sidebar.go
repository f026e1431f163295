package sidebar

import (
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Counters are the running totals shown under the heard list.
type Counters struct {
	Received  int
	Forwarded int
	Dropped   int
	Beacons   int
}

// Model lists recently heard stations, most recent first.
type Model struct {
	width    int
	height   int
	heard    []string
	counters Counters
}

func New() Model {
	return Model{width: 20, height: 24}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// counterRows is the space taken by the counters block, separator included.
const counterRows = 5

func (m Model) maxHeard() int {
	// borders, header line, counters
	return max(m.height-2-1-counterRows, 1)
}

// Heard moves callsign to the top of the list.
func (m *Model) Heard(callsign string) {
	if i := slices.Index(m.heard, callsign); i >= 0 {
		m.heard = slices.Delete(m.heard, i, i+1)
	}
	m.heard = append([]string{callsign}, m.heard...)
	if n := m.maxHeard(); len(m.heard) > n {
		m.heard = m.heard[:n]
	}
}

func (m *Model) Count(f func(*Counters)) { f(&m.counters) }

func (m Model) Counters() Counters { return m.counters }

func (m Model) Stations() []string { return slices.Clone(m.heard) }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if n := m.maxHeard(); len(m.heard) > n {
			m.heard = m.heard[:n]
		}
	}
	return m, nil
}

func (m Model) View() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Width(m.width - 2).
		Height(m.height - 2).
		Padding(0, 1)

	inner := m.width - 2 - 2
	header := lipgloss.NewStyle().Bold(true).Underline(true).Width(inner).Render("Heard")

	var b strings.Builder
	b.WriteString(header)
	room := m.height - 2 - 1 - counterRows
	for i, call := range m.heard {
		if i >= room {
			break
		}
		b.WriteRune('\n')
		b.WriteString(fmt.Sprintf("%.*s", inner, call))
	}
	for i := len(m.heard); i < room; i++ {
		b.WriteRune('\n')
	}

	c := m.counters
	b.WriteString("\n" + strings.Repeat("─", max(inner, 0)))
	b.WriteString(fmt.Sprintf("\n%.*s", inner, fmt.Sprintf("rx   %d", c.Received)))
	b.WriteString(fmt.Sprintf("\n%.*s", inner, fmt.Sprintf("fwd  %d", c.Forwarded)))
	b.WriteString(fmt.Sprintf("\n%.*s", inner, fmt.Sprintf("drop %d", c.Dropped)))
	b.WriteString(fmt.Sprintf("\n%.*s", inner, fmt.Sprintf("bcn  %d", c.Beacons)))
	return style.Render(b.String())
}
