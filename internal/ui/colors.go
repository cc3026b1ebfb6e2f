package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles is the default palette.
var Styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// interface Painter defines coloring text with [lipgloss] styles
type Painter interface {
	On(string, lipgloss.Color) string // Sets background color
	As(string, lipgloss.Color) string // Sets foreground color
}

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title  lipgloss.Style
	header lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	help   lipgloss.Style
	accent lipgloss.Color
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:  NewBold(t).MarginBottom(1),
		header: NewBold(t),
		ok:     NewBold(s),
		err:    NewBold(e),
		warn:   NewStyle(w),
		help:   NewEm(h),
		accent: lipgloss.Color(t),
	}
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) Header(s string) string { return p.header.Render(s) }
func (p *Palette) OK(s string) string { return p.ok.Render(s) }
func (p *Palette) Err(s string) string { return p.err.Render(s) }
func (p *Palette) Warn(s string) string { return p.warn.Render(s) }
func (p *Palette) Help(s string) string { return p.help.Render(s) }

// Accent is the color used for table borders and bars.
func (p *Palette) Accent() lipgloss.Color { return p.accent }

func (p *Palette) On(s string, c lipgloss.Color) string {
	return lipgloss.NewStyle().Background(c).Render(s)
}

func (p *Palette) As(s string, c lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(c).Render(s)
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
