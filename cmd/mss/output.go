package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	ok    lipgloss.Style
	bad   lipgloss.Style
	warn  lipgloss.Style
	label lipgloss.Style
	dim   lipgloss.Style
}

// newStyles renders for w; a non-terminal writer gets plain text.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		ok:    r.NewStyle().Foreground(lipgloss.Color("2")),
		bad:   r.NewStyle().Foreground(lipgloss.Color("1")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("3")),
		label: r.NewStyle().Bold(true).Width(14),
		dim:   r.NewStyle().Faint(true),
	}
}

func (s styles) check(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, s.ok.Render("✓")+" "+fmt.Sprintf(format, args...))
}

func (s styles) row(w io.Writer, label string, good bool, format string, args ...any) {
	mark := s.ok.Render("✓")
	if !good {
		mark = s.bad.Render("✗")
	}
	fmt.Fprintln(w, s.label.Render(label+":")+mark+" "+fmt.Sprintf(format, args...))
}
