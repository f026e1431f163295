package header

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Uplink is the APRS-IS state shown in the header.
type Uplink int

const (
	Connecting Uplink = iota
	Online
	Halted
	Resetting
)

func (u Uplink) String() string {
	switch u {
	case Online:
		return "online"
	case Halted:
		return "halted: config error"
	case Resetting:
		return "resetting"
	default:
		return "connecting"
	}
}

// Model holds the header's state
type Model struct {
	width      int
	title      string
	server     string
	uplink     Uplink
	reconnects int
}

func New(callsign, server string) Model {
	return Model{
		width:  80,
		title:  fmt.Sprintf("LoRa APRS iGate %s", callsign),
		server: server,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m *Model) SetUplink(u Uplink) { m.uplink = u }

func (m *Model) AddReconnect() { m.reconnects++ }

func (m Model) Uplink() Uplink { return m.uplink }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

func (m Model) View() string {
	badge := lipgloss.Color("214") // amber
	switch m.uplink {
	case Online:
		badge = lipgloss.Color("42")
	case Halted, Resetting:
		badge = lipgloss.Color("9")
	}

	state := lipgloss.NewStyle().
		Bold(true).
		Foreground(badge).
		Background(lipgloss.Color("63")).
		Render(m.uplink.String())

	text := fmt.Sprintf("%s  |  %s ", m.title, m.server)
	if m.reconnects > 0 {
		state += lipgloss.NewStyle().Background(lipgloss.Color("63")).
			Render(fmt.Sprintf(" (%d reconnects)", m.reconnects))
	}

	style := lipgloss.NewStyle().
		Bold(true).
		Background(lipgloss.Color("63")).
		Foreground(lipgloss.Color("255")).
		Width(m.width).
		Align(lipgloss.Center)

	return style.Render(text + state)
}
