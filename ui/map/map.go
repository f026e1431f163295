// Package mapview draws the coverage map: the gateway's own position and the
// stations it has heard, over an optional shapefile outline.
package mapview

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonas-p/go-shp"
)

const (
	panFactor  = 0.1
	zoomFactor = 1.2

	// half-size in degrees of the default view when there is no shapefile
	defaultSpan = 2.0
)

// Station is a heard station with a known position.
type Station struct {
	Callsign string
	Lat, Lon float64
}

type Model struct {
	width  int
	height int

	outlines   []*shp.Polygon
	fullBounds shp.Box
	view       shp.Box

	homeLat, homeLon float64
	stations         []Station
}

// loadOutlines reads every polygon in the shapefile and their overall bounds.
func loadOutlines(path string) ([]*shp.Polygon, shp.Box, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, shp.Box{}, fmt.Errorf("open shapefile: %w", err)
	}
	defer r.Close()

	var polygons []*shp.Polygon
	var bounds shp.Box
	for r.Next() {
		_, shape := r.Shape()
		polygon, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		if len(polygons) == 0 {
			bounds = polygon.BBox()
		} else {
			bounds.Extend(polygon.BBox())
		}
		polygons = append(polygons, polygon)
	}
	if err := r.Err(); err != nil {
		return nil, shp.Box{}, fmt.Errorf("read shapefile: %w", err)
	}
	if len(polygons) == 0 {
		return nil, shp.Box{}, fmt.Errorf("no polygons found in %s", path)
	}
	return polygons, bounds, nil
}

// New centres the map on the gateway. Without a shapefile the map shows a
// few degrees around home with stations only.
func New(shapefile string, homeLat, homeLon, zoom float64) (Model, error) {
	m := Model{
		width:   80,
		height:  23,
		homeLat: homeLat,
		homeLon: homeLon,
		fullBounds: shp.Box{
			MinX: homeLon - 2*defaultSpan, MaxX: homeLon + 2*defaultSpan,
			MinY: homeLat - defaultSpan, MaxY: homeLat + defaultSpan,
		},
	}
	if shapefile != "" {
		outlines, bounds, err := loadOutlines(shapefile)
		if err != nil {
			return m, err
		}
		m.outlines, m.fullBounds = outlines, bounds
	}
	m.view = m.fullBounds
	if zoom > 1 {
		m.centerOn(homeLon, homeLat, zoom)
	}
	return m, nil
}

func (m Model) Init() tea.Cmd { return nil }

func (m *Model) centerOn(lon, lat, zoom float64) {
	w := (m.fullBounds.MaxX - m.fullBounds.MinX) / zoom
	h := (m.fullBounds.MaxY - m.fullBounds.MinY) / zoom
	m.view = shp.Box{MinX: lon - w/2, MaxX: lon + w/2, MinY: lat - h/2, MaxY: lat + h/2}
}

func (m *Model) zoomBy(factor float64) {
	cx := (m.view.MinX + m.view.MaxX) / 2
	cy := (m.view.MinY + m.view.MaxY) / 2
	w := (m.view.MaxX - m.view.MinX) * factor
	h := (m.view.MaxY - m.view.MinY) * factor
	if w > m.fullBounds.MaxX-m.fullBounds.MinX || h > m.fullBounds.MaxY-m.fullBounds.MinY {
		m.view = m.fullBounds
		return
	}
	m.view = shp.Box{MinX: cx - w/2, MaxX: cx + w/2, MinY: cy - h/2, MaxY: cy + h/2}
}

func (m *Model) pan(dx, dy float64) {
	px := (m.view.MaxX - m.view.MinX) * dx
	py := (m.view.MaxY - m.view.MinY) * dy
	m.view.MinX += px
	m.view.MaxX += px
	m.view.MinY += py
	m.view.MaxY += py
}

// Zoom is the magnification relative to the full map.
func (m Model) Zoom() float64 {
	if m.view.MaxX == m.view.MinX {
		return 1
	}
	return (m.fullBounds.MaxX - m.fullBounds.MinX) / (m.view.MaxX - m.view.MinX)
}

func (m Model) Stations() []Station {
	return append([]Station(nil), m.stations...)
}

// Plot records or moves a heard station.
func (m *Model) Plot(s Station) {
	for i := range m.stations {
		if m.stations[i].Callsign == s.Callsign {
			m.stations[i] = s
			return
		}
	}
	m.stations = append(m.stations, s)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case Station:
		m.Plot(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "k", "up":
			m.pan(0, panFactor)
		case "l", "down":
			m.pan(0, -panFactor)
		case "j", "left":
			m.pan(-panFactor, 0)
		case ";", "right":
			m.pan(panFactor, 0)
		case "K", "+":
			m.zoomBy(1 / zoomFactor)
		case "L", "-":
			m.zoomBy(zoomFactor)
		case "r":
			m.view = m.fullBounds
		case "h":
			m.centerOn(m.homeLon, m.homeLat, m.Zoom())
		}
	}
	return m, nil
}

// project maps lon/lat to a cell; ok is false outside the viewport.
func (m Model) project(lon, lat float64, w, h int) (x, y int, ok bool) {
	spanX := m.view.MaxX - m.view.MinX
	spanY := m.view.MaxY - m.view.MinY
	if spanX <= 0 || spanY <= 0 {
		return 0, 0, false
	}
	fx := (lon - m.view.MinX) / spanX
	fy := (m.view.MaxY - lat) / spanY // screen rows grow downwards
	x, y = int(fx*float64(w)), int(fy*float64(h))
	return x, y, x >= 0 && x < w && y >= 0 && y < h
}

func (m Model) render(w, h int) string {
	w, h = max(w, 1), max(h, 1)
	grid := make([][]rune, h)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", w))
	}

	for _, polygon := range m.outlines {
		bb := polygon.BBox()
		if bb.MaxX < m.view.MinX || bb.MinX > m.view.MaxX || bb.MaxY < m.view.MinY || bb.MinY > m.view.MaxY {
			continue
		}
		for _, p := range polygon.Points {
			if x, y, ok := m.project(p.X, p.Y, w, h); ok {
				grid[y][x] = '.'
			}
		}
	}

	for _, s := range m.stations {
		x, y, ok := m.project(s.Lon, s.Lat, w, h)
		if !ok {
			continue
		}
		grid[y][x] = '*'
		if y+1 >= h {
			continue
		}
		// label under the marker where there is room
		call := []rune(s.Callsign)
		start := x - len(call)/2
		for i, r := range call {
			if px := start + i; px >= 0 && px < w && grid[y+1][px] == ' ' {
				grid[y+1][px] = r
			}
		}
	}

	if x, y, ok := m.project(m.homeLon, m.homeLat, w, h); ok {
		grid[y][x] = 'H'
	}

	rows := make([]string, h)
	for i, row := range grid {
		rows[i] = string(row)
	}
	return strings.Join(rows, "\n")
}

func (m Model) View() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Width(m.width - 2).
		Height(m.height - 2)

	w := style.GetWidth() - style.GetHorizontalPadding()
	h := style.GetHeight() - style.GetVerticalPadding()
	return style.Render(m.render(w, h))
}
