package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"loraigate/aprs"
	"loraigate/config"
	"loraigate/gateway"
	"loraigate/packet"
	"loraigate/ui/header"
	mapview "loraigate/ui/map"
	"loraigate/ui/msgbar"
	"loraigate/ui/sidebar"
)

const sidebarWidth = 20

// gatewayDoneMsg tells the monitor the engine has stopped.
type gatewayDoneMsg struct{}

// monitor is the -monitor dashboard, fed by the gateway's event stream.
type monitor struct {
	width  int
	height int

	headerModel  header.Model
	mapModel     mapview.Model
	msgbarModel  msgbar.Model
	sidebarModel sidebar.Model

	events <-chan gateway.Event
}

func newMonitor(conf config.Config, events <-chan gateway.Event) (monitor, error) {
	mapMod, err := mapview.New(conf.Monitor.Shapefile, conf.Station.Latitude, conf.Station.Longitude, conf.Monitor.Zoom)
	m := monitor{
		width:        80,
		height:       24,
		headerModel:  header.New(conf.Station.Callsign, conf.Server.Addr()),
		mapModel:     mapMod,
		msgbarModel:  msgbar.New(),
		sidebarModel: sidebar.New(),
		events:       events,
	}
	return m, err
}

func (m monitor) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return gatewayDoneMsg{}
		}
		return ev
	}
}

func (m monitor) Init() tea.Cmd {
	return m.waitForEvent()
}

// apply folds one gateway event into the dashboard.
func (m monitor) apply(ev gateway.Event) monitor {
	m.msgbarModel, _ = m.msgbarModel.Update(ev)

	switch ev.Kind {
	case gateway.EventConnected:
		m.headerModel.SetUplink(header.Online)
	case gateway.EventReconnect:
		m.headerModel.AddReconnect()
	case gateway.EventFatal:
		m.headerModel.SetUplink(header.Resetting)
	case gateway.EventConfigError:
		m.headerModel.SetUplink(header.Halted)
	case gateway.EventForwarded:
		m.sidebarModel.Count(func(c *sidebar.Counters) { c.Forwarded++ })
	case gateway.EventDropped:
		m.sidebarModel.Count(func(c *sidebar.Counters) { c.Dropped++ })
	case gateway.EventPosition:
		m.sidebarModel.Count(func(c *sidebar.Counters) { c.Beacons++ })
	case gateway.EventRX:
		m.sidebarModel.Count(func(c *sidebar.Counters) { c.Received++ })
		// display only; the gateway forwards the text verbatim either way
		pkt, err := aprs.Parse(ev.Line)
		if err != nil {
			break
		}
		m.sidebarModel.Heard(pkt.Callsign)
		if pkt.Type == packet.TypePosition {
			m.mapModel, _ = m.mapModel.Update(mapview.Station{Callsign: pkt.Callsign, Lat: pkt.Lat, Lon: pkt.Lon})
		}
	}
	return m
}

func (m monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		headerCmd  tea.Cmd
		mapCmd     tea.Cmd
		msgbarCmd  tea.Cmd
		sidebarCmd tea.Cmd
		cmds       []tea.Cmd
	)

	switch msg := msg.(type) {
	case gateway.Event:
		m = m.apply(msg)
		cmds = append(cmds, m.waitForEvent())

	case gatewayDoneMsg:
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 1
		mainHeight := max(m.height-headerHeight-msgbar.Height, 1)
		mapWidth := m.width - sidebarWidth

		m.headerModel, headerCmd = m.headerModel.Update(tea.WindowSizeMsg{Width: m.width, Height: headerHeight})
		m.sidebarModel, sidebarCmd = m.sidebarModel.Update(tea.WindowSizeMsg{Width: sidebarWidth, Height: mainHeight})
		m.mapModel, mapCmd = m.mapModel.Update(tea.WindowSizeMsg{Width: mapWidth, Height: mainHeight})
		m.msgbarModel, msgbarCmd = m.msgbarModel.Update(tea.WindowSizeMsg{Width: m.width, Height: msgbar.Height})
		cmds = append(cmds, headerCmd, sidebarCmd, mapCmd, msgbarCmd)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		default:
			m.mapModel, mapCmd = m.mapModel.Update(msg)
			cmds = append(cmds, mapCmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m monitor) View() string {
	middle := lipgloss.JoinHorizontal(lipgloss.Top,
		m.sidebarModel.View(),
		m.mapModel.View(),
	)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerModel.View(),
		middle,
		m.msgbarModel.View(),
	)
}
