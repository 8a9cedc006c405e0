package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType selects the color and wording of a result box
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

type resultVariant struct {
	marker string
	label  string
	title  lipgloss.Style
	box    func(width int) lipgloss.Style
}

var resultVariants = map[ResultType]resultVariant{
	ResultSuccess: {SuccessMarker, "SUCCESS", SuccessTitleStyle, SuccessBoxStyle},
	ResultFailure: {FailureMarker, "FAILED", ErrorTitleStyle, ErrorBoxStyle},
	ResultWarning: {WarningMarker, "WARNING", WarningTitleStyle, WarningBoxStyle},
}

// Result is a boxed outcome printed at the end of a command. Failures show
// the error and troubleshooting tips; other types show sorted details.
type Result struct {
	Type            ResultType
	Title           string
	Details         map[string]string
	Error           error
	Troubleshooting []string
	Width           int
}

func NewSuccessResult(title string, details map[string]string) *Result {
	return &Result{Type: ResultSuccess, Title: title, Details: details, Width: GetTerminalWidth()}
}

func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{Type: ResultFailure, Title: title, Error: err, Troubleshooting: troubleshooting, Width: GetTerminalWidth()}
}

func NewWarningResult(title string, details map[string]string) *Result {
	return &Result{Type: ResultWarning, Title: title, Details: details, Width: GetTerminalWidth()}
}

func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail sets one detail row
func (r *Result) AddDetail(key, value string) *Result {
	if r.Details == nil {
		r.Details = make(map[string]string)
	}
	r.Details[key] = value
	return r
}

func (r *Result) variant() resultVariant {
	if v, ok := resultVariants[r.Type]; ok {
		return v
	}
	return resultVariants[ResultSuccess]
}

// Render draws the box
func (r *Result) Render() string {
	width := max(r.Width, MinTerminalWidth)
	v := r.variant()

	body := []string{"", r.titleLine(), ""}
	if r.Type == ResultFailure {
		body = append(body, r.failureBody(width)...)
	} else {
		for _, k := range sortedKeys(r.Details) {
			body = append(body, ResultKeyStyle.Render(" "+k+":")+" "+ResultValueStyle.Render(r.Details[k]))
		}
		body = append(body, "")
	}

	return v.box(width).Render(strings.Join(body, "\n"))
}

func (r *Result) titleLine() string {
	v := r.variant()
	return v.title.Render(fmt.Sprintf(" %s %s: %s", v.marker, v.label, r.Title))
}

func (r *Result) failureBody(width int) []string {
	var out []string
	if r.Error != nil {
		out = append(out, ErrorMessageStyle.Render(" "+r.Error.Error()), "")
	}
	if len(r.Troubleshooting) == 0 {
		return out
	}

	tips := []string{TroubleshootingTitleStyle.Render("Troubleshooting")}
	for _, tip := range r.Troubleshooting {
		tips = append(tips, TroubleshootingItemStyle.Render("- "+tip))
	}
	return append(out, TroubleshootingBoxStyle(width).Render(strings.Join(tips, "\n")), "")
}

func (r *Result) String() string {
	return r.Render()
}
