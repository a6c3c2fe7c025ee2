// Package hud is the terminal front end of the client: delivery prompts go
// to the log, lap times to a table, key commands come from text lines.
package hud

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"snackrun/internal/track"
)

// RenderLaps writes the lap history as a table, marking the best lap.
func RenderLaps(w io.Writer, laps []track.LapResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Lap", "Time", ""})

	best := -1
	for i, l := range laps {
		if best < 0 || l.Time < laps[best].Time {
			best = i
		}
	}
	for i, l := range laps {
		mark := ""
		if i == best {
			mark = "best"
		}
		t.AppendRow(table.Row{l.Number, FormatLapTime(l.Time), mark})
	}
	if len(laps) == 0 {
		t.AppendRow(table.Row{"-", "no laps yet", ""})
	}
	t.Render()
}

// FormatLapTime renders d as m:ss.mmm.
func FormatLapTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}
