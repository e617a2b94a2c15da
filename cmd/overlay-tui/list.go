package main

import (
	"fmt"

	"github.com/unklstewy/opensky-overlay/internal/overlay"
	"github.com/unklstewy/opensky-overlay/pkg/coordinates"
	"github.com/unklstewy/opensky-overlay/pkg/flightstatus"
	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

// trackRow is one line of the aircraft list.
type trackRow struct {
	track  *opensky.Track
	header *overlay.Header
	look   coordinates.LookAngle
	hasPos bool
}

func buildRows(list []*opensky.Track, observer coordinates.Geographic) []trackRow {
	rows := make([]trackRow, 0, len(list))
	for _, t := range list {
		row := trackRow{track: t}
		if sv := t.StateVector; sv != nil {
			h := overlay.BuildHeader(sv)
			row.header = &h
			if pos, ok := coordinates.FromStateVector(sv, h.Altitude); ok {
				row.look = coordinates.Look(observer, pos)
				row.hasPos = true
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func (r trackRow) format(cursor, selected bool) string {
	prefix := "  "
	if cursor {
		prefix = "→ "
	}
	mark := ""
	if selected {
		mark = " ◉"
	}

	if r.header == nil {
		return fmt.Sprintf("%s%-8s  waiting for data%s", prefix, r.track.ICAO24, mark)
	}

	callsign := r.header.Callsign
	if callsign == "" {
		callsign = r.track.ICAO24
	}
	feet := r.header.Altitude * flightstatus.MetersToFeet

	if !r.hasPos {
		return fmt.Sprintf("%s%s %-8s %6.0f ft  no position%s", prefix, r.header.Glyph, callsign, feet, mark)
	}
	return fmt.Sprintf("%s%s %-8s %6.0f ft %5.1f nm Az:%3.0f° El:%3.0f°%s",
		prefix, r.header.Glyph, callsign, feet, r.look.RangeNM, r.look.Azimuth, r.look.Elevation, mark)
}
