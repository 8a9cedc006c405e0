package ui

import (
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette. Each color has a light- and dark-background variant.
var (
	PrimaryColor = lipgloss.AdaptiveColor{Light: "#3A5BA0", Dark: "#7AA2F7"}
	SuccessColor = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#9ECE6A"}
	ErrorColor   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#F7768E"}
	WarningColor = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#E0AF68"}
	MutedColor   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#565F89"}
	TextColor    = lipgloss.AdaptiveColor{Light: "#1A1B26", Dark: "#C0CAF5"}
	SSDPColor    = lipgloss.AdaptiveColor{Light: "#00838F", Dark: "#7DCFFF"}
	MDNSColor    = lipgloss.AdaptiveColor{Light: "#8E24AA", Dark: "#BB9AF7"}
)

const (
	MinTerminalWidth = 60
	MaxContentWidth  = 120

	fallbackHeight = 24
)

func fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func indented(c lipgloss.TerminalColor) lipgloss.Style {
	return fg(c).PaddingLeft(2)
}

var (
	HeaderTitleStyle      = indented(TextColor).Bold(true)
	HeaderCommandStyle    = indented(MutedColor).Italic(true)
	HeaderParamKeyStyle   = indented(MutedColor)
	HeaderParamValueStyle = fg(TextColor)
	ProgressLabelStyle    = indented(TextColor)

	SuccessTitleStyle = fg(SuccessColor).Bold(true)
	ErrorTitleStyle   = fg(ErrorColor).Bold(true)
	WarningTitleStyle = fg(WarningColor).Bold(true)
	ErrorMessageStyle = fg(ErrorColor)

	// ResultKeyStyle aligns detail values in result boxes
	ResultKeyStyle   = fg(MutedColor).Width(16)
	ResultValueStyle = fg(TextColor)

	TroubleshootingTitleStyle = fg(MutedColor).Bold(true)
	TroubleshootingItemStyle  = fg(MutedColor)

	TableHeaderStyle = fg(PrimaryColor).Bold(true)
	TableCellStyle   = fg(TextColor)
	MutedStyle       = fg(MutedColor)
)

// Markers used in result titles and event lines
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	WarningMarker = "!"
	NewMarker     = "+"
	SeenMarker    = "·"
)

// ProtocolStyle colors a protocol column by discovery protocol
func ProtocolStyle(protocol string) lipgloss.Style {
	switch strings.ToLower(protocol) {
	case "ssdp":
		return fg(SSDPColor).Bold(true)
	case "mdns":
		return fg(MDNSColor).Bold(true)
	}
	return MutedStyle
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// GetTerminalWidth returns the stdout width clamped to the supported range
func GetTerminalWidth() int {
	w, _ := GetTerminalSize()
	return w
}

// GetTerminalSize returns the stdout size, width clamped to the supported
// range. Non-terminals get the minimum width and 24 rows.
func GetTerminalSize() (int, int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth, fallbackHeight
	}
	return clampWidth(w), h
}

func clampWidth(w int) int {
	return min(max(w, MinTerminalWidth), MaxContentWidth)
}

func box(border lipgloss.Border, c lipgloss.TerminalColor, width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(border).
		BorderForeground(c).
		Width(width - 2)
}

func HeaderBorderStyle(width int) lipgloss.Style {
	return box(lipgloss.RoundedBorder(), PrimaryColor, width)
}

func SuccessBoxStyle(width int) lipgloss.Style {
	return box(lipgloss.ThickBorder(), SuccessColor, width).Padding(0, 2)
}

func ErrorBoxStyle(width int) lipgloss.Style {
	return box(lipgloss.ThickBorder(), ErrorColor, width).Padding(0, 2)
}

func WarningBoxStyle(width int) lipgloss.Style {
	return box(lipgloss.ThickBorder(), WarningColor, width).Padding(0, 2)
}

// TroubleshootingBoxStyle is nested inside an error box, so it is narrower
// and indented
func TroubleshootingBoxStyle(width int) lipgloss.Style {
	return box(lipgloss.NormalBorder(), MutedColor, max(width-10, 42)).
		Padding(0, 1).
		MarginLeft(2)
}

// RenderHorizontalDivider draws a width-long rule of char
func RenderHorizontalDivider(width int, char string) string {
	return fg(PrimaryColor).Render(strings.Repeat(char, width))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
