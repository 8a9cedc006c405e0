package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/ssdpd/internal/registry"
)

// EventMsg carries one registry publish into the watch model
type EventMsg registry.Event

// eventsClosedMsg is sent when the event channel is closed
type eventsClosedMsg struct{}

// WatchModel is a Bubble Tea model showing a live table of advertisements
type WatchModel struct {
	events  <-chan registry.Event
	ads     map[string]registry.Advertisement
	table   table.Model
	spinner spinner.Model
	status  string
	width   int
	height  int
	now     func() time.Time
	done    bool
}

// NewWatchModel creates a watch model seeded with initial advertisements.
// status is shown next to the spinner (e.g., the interface being listened on).
func NewWatchModel(events <-chan registry.Event, initial []registry.Advertisement, status string) WatchModel {
	width, height := GetTerminalSize()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	t := table.New(
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(MutedColor).
		BorderBottom(true).
		Foreground(PrimaryColor).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(TextColor).
		Background(PrimaryColor)
	t.SetStyles(styles)

	m := WatchModel{
		events:  events,
		ads:     make(map[string]registry.Advertisement),
		table:   t,
		spinner: sp,
		status:  status,
		now:     time.Now,
	}
	for _, ad := range initial {
		m.ads[key(ad)] = ad
	}
	m.resize(width, height)
	return m
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// waitForEvent blocks on the next publish
func waitForEvent(events <-chan registry.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg(ev)
	}
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.done = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case EventMsg:
		ad := msg.Advertisement
		m.ads[key(ad)] = ad
		m.refresh()
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(HeaderTitleStyle.Render("SSDP WATCH"))
	b.WriteString("\n")
	status := fmt.Sprintf("%s Listening %s  %d advertisement(s)", m.spinner.View(), m.status, len(m.ads))
	if m.done {
		status = fmt.Sprintf("%s Stopped  %d advertisement(s)", FailureMarker, len(m.ads))
	}
	b.WriteString(ProgressLabelStyle.Render(status))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render("  ↑/↓ scroll • q quit"))
	b.WriteString("\n")
	return b.String()
}

// Count returns the number of advertisements shown
func (m WatchModel) Count() int {
	return len(m.ads)
}

// Rows returns the table rows currently shown
func (m WatchModel) Rows() []table.Row {
	return m.table.Rows()
}

func (m *WatchModel) resize(width, height int) {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	m.width = width
	m.height = height

	free := width - 8 - 6 - 10
	typeWidth := free / 4
	idWidth := free * 2 / 5
	locWidth := free - typeWidth - idWidth

	m.table.SetColumns([]table.Column{
		{Title: "PROTO", Width: 6},
		{Title: "SERVICE TYPE", Width: typeWidth},
		{Title: "ID", Width: idWidth},
		{Title: "LOCATION", Width: locWidth},
		{Title: "AGE", Width: 5},
	})

	tableHeight := height - 7
	if tableHeight < 5 {
		tableHeight = 5
	}
	m.table.SetHeight(tableHeight)
	m.table.SetWidth(width)
	m.refresh()
}

// refresh rebuilds rows sorted by protocol then ID
func (m *WatchModel) refresh() {
	ads := make([]registry.Advertisement, 0, len(m.ads))
	for _, ad := range m.ads {
		ads = append(ads, ad)
	}
	sort.Slice(ads, func(i, j int) bool {
		if ads[i].Protocol != ads[j].Protocol {
			return ads[i].Protocol < ads[j].Protocol
		}
		return ads[i].ID < ads[j].ID
	})

	now := m.now()
	rows := make([]table.Row, 0, len(ads))
	for _, ad := range ads {
		rows = append(rows, table.Row{
			ad.Protocol,
			ad.ServiceType,
			ad.ID,
			ad.URI,
			FormatAge(now.Sub(ad.LastSeen)),
		})
	}
	m.table.SetRows(rows)
}

func key(ad registry.Advertisement) string {
	return ad.Protocol + "|" + ad.ID
}

// RunWatch runs the watch model until the user quits, events is closed or
// ctx is cancelled
func RunWatch(ctx context.Context, events <-chan registry.Event, initial []registry.Advertisement, status string) error {
	p := tea.NewProgram(NewWatchModel(events, initial, status), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
