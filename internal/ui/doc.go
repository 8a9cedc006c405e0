// Package ui provides terminal UI components for the ssdpd CLI.
//
// This package uses Bubble Tea, Bubbles and Lipgloss to render styled
// terminal output. Most components follow a "render once and print"
// pattern; the watch view is the only long-running interactive model.
//
// # Components
//
//   - Header: Command banner showing operation name and parameters
//   - Result: Success/failure/warning boxes with styled information
//   - Advertisement table: lipgloss table of discovered services
//   - ScanProgress: countdown bar shown while a scan collects results
//   - WatchModel: live table updated on every registry publish
//   - Confirm: yes/no prompt for destructive config edits
//
// # Non-terminal Output
//
// When stdout is not a terminal (see IsTerminal), commands skip the Bubble
// Tea programs and print plain lines with Printer.PrintEvent instead.
//
// # Logging Integration
//
// This package expects logging to be controlled via the SSDPD_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the curated UI output to be displayed cleanly.
package ui
