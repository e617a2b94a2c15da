package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// LogView mirrors log output into a scrolling text view. It is handed to
// logging.New as an extra writer, so Write is called from any goroutine; lines
// are queued and appended by a single pump goroutine.
type LogView struct {
	textView *tview.TextView
	lines    chan string
	done     chan struct{}
}

// NewLogView creates the log panel.
func NewLogView(maxLines int) *LogView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(maxLines).
		ScrollToEnd()
	textView.SetBorder(true).SetTitle(" Logs ")

	return &LogView{
		textView: textView,
		lines:    make(chan string, 256),
		done:     make(chan struct{}),
	}
}

// View returns the tview component.
func (lv *LogView) View() tview.Primitive {
	return lv.textView
}

// Write queues one formatted log event. Events are dropped when the panel
// falls behind; the log file still has them.
func (lv *LogView) Write(p []byte) (int, error) {
	line := colorize(string(bytes.TrimRight(p, "\n")))
	select {
	case lv.lines <- line:
	default:
	}
	return len(p), nil
}

// Run appends queued lines until Stop. redraw is called after each batch;
// TextView writes are safe off the UI goroutine, so Application.Draw fits.
func (lv *LogView) Run(redraw func()) {
	for {
		select {
		case <-lv.done:
			return
		case line := <-lv.lines:
			fmt.Fprintln(lv.textView, line)
			// Drain whatever else is queued before redrawing
			for more := true; more; {
				select {
				case line := <-lv.lines:
					fmt.Fprintln(lv.textView, line)
				default:
					more = false
				}
			}
			redraw()
		}
	}
}

// Stop ends Run.
func (lv *LogView) Stop() {
	close(lv.done)
}

// colorize adds tview colour tags by level. Console lines look like
// "15:04:05 INF message key=value".
func colorize(line string) string {
	line = tview.Escape(line)
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 3 {
		return line
	}

	var color string
	switch fields[1] {
	case "ERR", "FTL", "PNC":
		color = "red"
	case "WRN":
		color = "yellow"
	case "DBG", "TRC":
		color = "gray"
	default:
		color = "white"
	}
	return fmt.Sprintf("[gray]%s[-] [%s]%s[-] %s", fields[0], color, fields[1], fields[2])
}
