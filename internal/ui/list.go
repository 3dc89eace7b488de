package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/plmigrate/internal/tasks"
)

var _ list.Item = playlistItem{}

// playlistItem wraps [tasks.PlaylistView] to implement [list.Item].
type playlistItem struct {
	playlist tasks.PlaylistView
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks • %s", i.playlist.TrackCount, Status(i.playlist.Status))
	if i.playlist.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Description)
	}
	return desc
}
