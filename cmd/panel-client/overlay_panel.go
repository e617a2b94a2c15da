package main

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/unklstewy/opensky-overlay/internal/overlay"
)

// closeRegion is the tview region id of the overlay's close button.
const closeRegion = "close"

const labelWidth = 25

// renderOverlay formats a snapshot as tview markup.
func renderOverlay(snap overlay.Snapshot) string {
	if !snap.Present {
		return "\n[gray]⠋ Waiting for aircraft selection[-]"
	}

	h := snap.Header
	var s strings.Builder
	fmt.Fprintf(&s, "[::b][aqua]%s %s %s[-:-:-]  [gray]%s[-]   [\"%s\"][red::b][x][-:-:-][\"\"]\n",
		h.Glyph, h.Arrow, tview.Escape(h.Callsign), tview.Escape(h.OriginCountry), closeRegion)
	s.WriteString("[gray]" + strings.Repeat("─", 50) + "[-]\n")

	for _, f := range snap.Fields {
		fmt.Fprintf(&s, "[dodgerblue]%-*s[-] [white]%s[-]\n", labelWidth, f.Label, tview.Escape(f.Value))
	}
	return s.String()
}
