package main

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// SkyView plots the tracked aircraft on an alt/az chart centred on the
// observer's zenith.
type SkyView struct {
	*tview.Box
	app *App
}

// NewSkyView creates the sky chart.
func NewSkyView(app *App) *SkyView {
	sv := &SkyView{
		Box: tview.NewBox(),
		app: app,
	}
	sv.SetBorder(true).SetTitle(" Sky View - Alt/Az ")
	return sv
}

// project maps an elevation/azimuth pair onto the chart using a stereographic
// projection. It returns offsets from the centre and false for targets below
// the horizon.
func project(elevation, azimuth float64, radius int) (dx, dy int, ok bool) {
	if elevation < 0 {
		return 0, 0, false
	}
	zenithAngle := (90.0 - elevation) * math.Pi / 180.0
	r := float64(radius) * math.Tan(zenithAngle/2.0)
	az := azimuth * math.Pi / 180.0
	return int(math.Round(r * math.Sin(az))), -int(math.Round(r * math.Cos(az))), true
}

// Draw renders the grid and the aircraft.
func (sv *SkyView) Draw(screen tcell.Screen) {
	sv.Box.DrawForSubclass(screen, sv)

	x, y, width, height := sv.GetInnerRect()
	centerX := x + width/2
	centerY := y + height/2
	radius := width / 2
	if height < width {
		radius = height / 2
	}

	sv.app.mu.RLock()
	zoom := sv.app.zoom
	rows := sv.app.rows
	sv.app.mu.RUnlock()

	radius = int(float64(radius) * zoom)
	if radius < 2 {
		return
	}

	gridStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	horizonStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	zenithStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)

	inside := func(px, py int) bool {
		return px >= x && px < x+width && py >= y && py < y+height
	}
	put := func(px, py int, ch rune, style tcell.Style) {
		if inside(px, py) {
			screen.SetContent(px, py, ch, nil, style)
		}
	}

	// Elevation rings
	for _, elevation := range []float64{30, 60} {
		_, dy, _ := project(elevation, 0, radius)
		ring := -dy
		if ring <= 0 || ring >= radius {
			continue
		}
		drawCircle(put, centerX, centerY, ring, '·', gridStyle)
		label := fmt.Sprintf("%.0f°", elevation)
		for i, ch := range label {
			put(centerX+i-len(label)/2, centerY-ring-1, ch, gridStyle)
		}
	}
	put(centerX, centerY, '+', zenithStyle)

	drawCircle(put, centerX, centerY, radius-1, '○', horizonStyle)

	azimuths := []struct {
		angle float64
		label string
	}{
		{0, "N"}, {45, "NE"}, {90, "E"}, {135, "SE"},
		{180, "S"}, {225, "SW"}, {270, "W"}, {315, "NW"},
	}
	for _, az := range azimuths {
		angle := az.angle * math.Pi / 180.0
		endX := centerX + int(float64(radius)*math.Sin(angle))
		endY := centerY - int(float64(radius)*math.Cos(angle))
		drawLine(put, centerX, centerY, endX, endY, '·', gridStyle)

		labelX := centerX + int(float64(radius+1)*math.Sin(angle))
		labelY := centerY - int(float64(radius+1)*math.Cos(angle))
		for i, ch := range az.label {
			put(labelX+i-len(az.label)/2, labelY, ch, horizonStyle)
		}
	}

	selected := sv.app.selection.ICAO24()
	cursor := sv.app.list.GetCurrentItem()

	for i, row := range rows {
		if !row.hasPos {
			continue
		}
		dx, dy, ok := project(row.look.Elevation, row.look.Azimuth, radius)
		if !ok {
			continue
		}
		px, py := centerX+dx, centerY+dy

		var symbol rune
		var style tcell.Style
		switch {
		case row.icao24 == selected:
			symbol = '◉'
			style = tcell.StyleDefault.Foreground(tcell.ColorGreen)
		case i == cursor:
			symbol = '●'
			style = tcell.StyleDefault.Foreground(tcell.ColorYellow)
		default:
			symbol = '○'
			style = tcell.StyleDefault.Foreground(tcell.ColorLightBlue)
		}
		put(px, py, symbol, style)

		if row.icao24 == selected || i == cursor {
			for j, ch := range row.label() {
				put(px+j+2, py, ch, style)
			}
		}
	}
}

type plotFunc func(x, y int, ch rune, style tcell.Style)

// drawCircle draws a circle using Bresenham's circle algorithm
func drawCircle(put plotFunc, cx, cy, radius int, char rune, style tcell.Style) {
	x := 0
	y := radius
	d := 3 - 2*radius

	for x <= y {
		put(cx+x, cy+y, char, style)
		put(cx-x, cy+y, char, style)
		put(cx+x, cy-y, char, style)
		put(cx-x, cy-y, char, style)
		put(cx+y, cy+x, char, style)
		put(cx-y, cy+x, char, style)
		put(cx+y, cy-x, char, style)
		put(cx-y, cy-x, char, style)

		x++
		if d > 0 {
			y--
			d = d + 4*(x-y) + 10
		} else {
			d = d + 4*x + 6
		}
	}
}

// drawLine draws a line using Bresenham's line algorithm
func drawLine(put plotFunc, x0, y0, x1, y1 int, char rune, style tcell.Style) {
	dx := abs(x1 - x0)
	dy := abs(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		put(x0, y0, char, style)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
