package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header is the banner printed before a scan: the operation, the command line
// that started it and the parameters in effect (interface, timeout).
type Header struct {
	Title   string
	Command string
	Params  map[string]string
	Width   int
}

func NewHeader(title, command string, params map[string]string) *Header {
	return &Header{Title: title, Command: command, Params: params, Width: GetTerminalWidth()}
}

func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render draws the banner. Params are listed in key order under a rule.
func (h *Header) Render() string {
	width := max(h.Width, MinTerminalWidth)

	sections := []string{
		HeaderTitleStyle.Render(strings.ToUpper(h.Title)),
		HeaderCommandStyle.Render(h.Command),
	}
	if len(h.Params) > 0 {
		rule := RenderHorizontalDivider(max(width-6, 10), "─")
		sections = append(sections, lipgloss.NewStyle().PaddingLeft(2).Render(rule))
		for _, k := range sortedKeys(h.Params) {
			sections = append(sections, HeaderParamKeyStyle.Render(k+":")+" "+HeaderParamValueStyle.Render(h.Params[k]))
		}
	}

	return HeaderBorderStyle(width).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (h *Header) String() string {
	return h.Render()
}
