package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirm displays a warning box with details and asks a yes/no question.
// Only "y" or "yes" (any case) confirms; EOF or anything else declines.
func Confirm(in io.Reader, out io.Writer, title string, details map[string]string, question string) bool {
	_, _ = fmt.Fprintln(out, NewWarningResult(title, details).Render())
	_, _ = fmt.Fprint(out, WarningTitleStyle.Render(question+" [y/N]: "))

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		_, _ = fmt.Fprintln(out)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}

	_, _ = fmt.Fprintln(out, MutedStyle.Render("  Operation cancelled."))
	return false
}
