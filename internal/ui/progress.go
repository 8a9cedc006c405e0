package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// scanTickInterval is how often the scan progress bar redraws
const scanTickInterval = 100 * time.Millisecond

type scanTickMsg time.Time

// ScanProgress is a Bubble Tea model showing a countdown bar while a scan
// collects advertisements. It quits on its own once the duration elapses.
type ScanProgress struct {
	Label    string
	Duration time.Duration

	count   func() int
	started time.Time
	elapsed time.Duration
	bar     progress.Model
	width   int
	aborted bool
}

// NewScanProgress creates a progress model. count reports how many
// advertisements have been found so far.
func NewScanProgress(label string, duration time.Duration, count func() int) ScanProgress {
	p := ScanProgress{
		Label:    label,
		Duration: duration,
		count:    count,
		started:  time.Now(),
	}
	p.SetWidth(GetTerminalWidth())
	return p
}

// SetWidth sets the terminal width for responsive rendering
func (p *ScanProgress) SetWidth(width int) {
	p.width = width
	barWidth := width - 30 // Leave room for percentage and count
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
}

// Percent returns the fraction of the scan duration elapsed
func (p ScanProgress) Percent() float64 {
	if p.Duration <= 0 {
		return 1
	}
	pct := float64(p.elapsed) / float64(p.Duration)
	if pct > 1 {
		return 1
	}
	return pct
}

// Aborted reports whether the user cancelled the scan
func (p ScanProgress) Aborted() bool {
	return p.aborted
}

func scanTick() tea.Cmd {
	return tea.Tick(scanTickInterval, func(t time.Time) tea.Msg {
		return scanTickMsg(t)
	})
}

// Init implements tea.Model
func (p ScanProgress) Init() tea.Cmd {
	return scanTick()
}

// Update implements tea.Model
func (p ScanProgress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			p.aborted = true
			return p, tea.Quit
		}
	case tea.WindowSizeMsg:
		p.SetWidth(msg.Width)
	case scanTickMsg:
		p.elapsed = time.Time(msg).Sub(p.started)
		if p.elapsed >= p.Duration {
			p.elapsed = p.Duration
			return p, tea.Quit
		}
		return p, scanTick()
	}
	return p, nil
}

// View implements tea.Model
func (p ScanProgress) View() string {
	var b strings.Builder

	if p.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(p.Label))
		b.WriteString("\n\n")
	}

	found := 0
	if p.count != nil {
		found = p.count()
	}
	b.WriteString(lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%  [%d found]", p.bar.ViewAs(p.Percent()), p.Percent()*100, found)))
	b.WriteString("\n")
	return b.String()
}

// RunScanProgress shows the progress bar until duration elapses.
// It returns true when the user aborted early.
func RunScanProgress(label string, duration time.Duration, count func() int) (bool, error) {
	final, err := tea.NewProgram(NewScanProgress(label, duration, count)).Run()
	if err != nil {
		return false, err
	}
	return final.(ScanProgress).Aborted(), nil
}
