package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Palette for inspect output. Colors drop out when out is not a terminal.
var (
	accent = lipgloss.Color("#8BC34A")
	muted  = lipgloss.Color("#8A94A6")
	warn   = lipgloss.Color("#E0A43A")
)

type styles struct {
	header     lipgloss.Style
	bone       lipgloss.Style
	constraint lipgloss.Style
	flag       lipgloss.Style
	chain      lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		header:     r.NewStyle().Bold(true),
		bone:       r.NewStyle(),
		constraint: r.NewStyle().Foreground(muted),
		flag:       r.NewStyle().Foreground(warn),
		chain:      r.NewStyle().Foreground(accent),
	}
}
