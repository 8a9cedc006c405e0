package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muurk/ssdpd/internal/registry"
)

// Printer renders the non-interactive output of ssdpd commands to one writer
type Printer struct {
	out   io.Writer
	width int
	now   func() time.Time
}

// NewPrinter writes to w, or stdout when w is nil, at the terminal's width
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth(), now: time.Now}
}

func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

func (p *Printer) PrintHeader(title, command string, params map[string]string) {
	p.Println(NewHeader(title, command, params).SetWidth(p.width).Render())
}

func (p *Printer) PrintSuccess(title string, details map[string]string) {
	p.Println(NewSuccessResult(title, details).SetWidth(p.width).Render())
}

func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintAdvertisements prints the table and, when non-empty, a count line
func (p *Printer) PrintAdvertisements(ads []registry.Advertisement) {
	p.Println(RenderAdvertisementTable(ads, p.width, p.now()))
	if len(ads) > 0 {
		p.Println(MutedStyle.Render(fmt.Sprintf("  %d advertisement(s)", len(ads))))
	}
}

// PrintEvent prints one publish as a plain line, for non-terminal output
func (p *Printer) PrintEvent(ev registry.Event) {
	p.Println(RenderEventLine(ev, p.now()))
}
