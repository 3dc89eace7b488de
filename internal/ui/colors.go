package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/tasks"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
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

// Title, Success, Warning, Error and Muted render s with the shared palette for CLI output.
func Title(s string) string   { return styles.title.Render(s) }
func Success(s string) string { return styles.ok.Render(s) }
func Warning(s string) string { return styles.warn.Render(s) }
func Error(s string) string   { return styles.err.Render(s) }
func Muted(s string) string   { return styles.help.Render(s) }

// Event renders a progress event as one coloured line.
func Event(ev tasks.Event) string {
	line := tasks.FormatEvent(ev)
	switch ev.Type {
	case tasks.EventSuccess, tasks.EventComplete:
		return styles.ok.Render(line)
	case tasks.EventWarning:
		return styles.warn.Render(line)
	case tasks.EventError:
		return styles.err.Render(line)
	default:
		return line
	}
}

// Status renders a migration status with its colour.
func Status(s models.PlaylistStatus) string {
	switch s {
	case models.PlaylistCompleted:
		return styles.ok.Render(string(s))
	case models.PlaylistInProgress:
		return styles.warn.Render(string(s))
	case models.PlaylistFailed:
		return styles.err.Render(string(s))
	default:
		return styles.help.Render(string(s))
	}
}
