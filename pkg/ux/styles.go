// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the TalentFlow CLI.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// TalentFlow palette - warm ambers over graphite
var (
	ColorAmber    = lipgloss.Color("#F5A623") // primary brand color
	ColorGold     = lipgloss.Color("#FFD166") // highlights
	ColorSuccess  = lipgloss.Color("#06D6A0")
	ColorWarning  = lipgloss.Color("#F4D03F")
	ColorError    = lipgloss.Color("#EF476F")
	ColorMuted    = lipgloss.Color("#6C757D")
	ColorGraphite = lipgloss.Color("#343A40")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Box       lipgloss.Style
	WarnBox   lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorAmber),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorGold),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorMuted),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorGold).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorGraphite).
		Padding(0, 1),
	WarnBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
}

// Plain reports whether output should skip styling (piped or dumb
// terminals).
func Plain() bool {
	return !isatty.IsTerminal(os.Stdout.Fd())
}

// Title prints a section title.
func Title(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if Plain() {
		fmt.Println(line)
		return
	}
	fmt.Println(Styles.Title.Render(line))
}

// Success prints a success line with a check mark.
func Success(format string, args ...any) {
	statusLine("✓", Styles.Success, format, args...)
}

// Warn prints a warning line.
func Warn(format string, args ...any) {
	statusLine("⚠", Styles.Warning, format, args...)
}

// Fail prints an error line.
func Fail(format string, args ...any) {
	statusLine("✗", Styles.Error, format, args...)
}

// Info prints a muted detail line.
func Info(format string, args ...any) {
	statusLine("•", Styles.Muted, format, args...)
}

func statusLine(icon string, style lipgloss.Style, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if Plain() {
		fmt.Printf("%s %s\n", icon, line)
		return
	}
	fmt.Printf("%s %s\n", style.Render(icon), line)
}
