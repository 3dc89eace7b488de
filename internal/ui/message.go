package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plmigrate/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgMigrationStarted
	MsgEvent
	MsgMigrationDone
	MsgReset
)

type playlistsResult struct {
	playlists []tasks.PlaylistView
	err       error
}

type startResult struct {
	run *tasks.Run
	err error
}

type runEvent struct {
	run *tasks.Run
	ev  tasks.Event
}

type doneResult struct {
	run     *tasks.Run
	summary *tasks.Summary
	err     error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []tasks.PlaylistView, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsResult{playlists, err}}
}

// migrationStartedMsg is the constructor for [MsgMigrationStarted]
func migrationStartedMsg(run *tasks.Run, err error) Msg {
	return Msg{kind: MsgMigrationStarted, data: startResult{run, err}}
}

// eventMsg is the constructor for [MsgEvent]
func eventMsg(run *tasks.Run, ev tasks.Event) Msg {
	return Msg{kind: MsgEvent, data: runEvent{run, ev}}
}

// migrationDoneMsg is the constructor for [MsgMigrationDone]
func migrationDoneMsg(run *tasks.Run, summary *tasks.Summary, err error) Msg {
	return Msg{kind: MsgMigrationDone, data: doneResult{run, summary, err}}
}

// resetMsg is the constructor for [MsgReset]
func resetMsg(err error) Msg {
	return Msg{kind: MsgReset, data: err}
}
