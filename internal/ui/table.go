package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/muurk/ssdpd/internal/registry"
)

// Advertisement table columns
var tableHeaders = []string{"PROTOCOL", "SERVICE TYPE", "ID", "LOCATION", "AGE"}

// RenderAdvertisementTable renders advertisements as a bordered table.
// Long service types and IDs are shortened to fit width.
func RenderAdvertisementTable(ads []registry.Advertisement, width int, now time.Time) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	if len(ads) == 0 {
		return MutedStyle.Render("  No advertisements found.")
	}

	// Space left for the three free-text columns after protocol, age and borders
	free := width - 8 - 8 - 16
	typeWidth := free / 4
	idWidth := free * 2 / 5
	locWidth := free - typeWidth - idWidth

	rows := make([][]string, 0, len(ads))
	for _, ad := range ads {
		rows = append(rows, []string{
			ad.Protocol,
			Truncate(ad.ServiceType, typeWidth),
			Truncate(ad.ID, idWidth),
			Truncate(ad.URI, locWidth),
			FormatAge(now.Sub(ad.LastSeen)),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(MutedColor)).
		Headers(tableHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := TableCellStyle.Padding(0, 1)
			if row == table.HeaderRow {
				return TableHeaderStyle.Padding(0, 1)
			}
			if col == 0 && row >= 0 && row < len(rows) {
				return ProtocolStyle(rows[row][0]).Padding(0, 1)
			}
			return style
		})

	return t.Render()
}

// RenderEventLine renders a single publish as one line, for non-terminal output
func RenderEventLine(ev registry.Event, now time.Time) string {
	marker := SeenMarker
	if ev.New {
		marker = NewMarker
	}
	ad := ev.Advertisement
	return fmt.Sprintf("%s %s %s %s %s %s",
		now.Format(time.RFC3339),
		marker,
		ad.Protocol,
		orDash(ad.ServiceType),
		ad.ID,
		orDash(ad.URI),
	)
}

// Truncate shortens s to at most n runes, ending with an ellipsis when cut
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// FormatAge renders a duration as a compact age ("5s", "3m", "2h")
func FormatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "0s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
