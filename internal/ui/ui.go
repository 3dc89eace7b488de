package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plmigrate/internal/tasks"
)

// maxEvents bounds the event log kept for the migration view.
const maxEvents = 200

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	ConfirmView
	MigrateView
	ResultView
)

// Engine is the part of [tasks.Controller] the TUI drives.
type Engine interface {
	SourcePlaylists(ctx context.Context) ([]tasks.PlaylistView, error)
	StartMigration(ctx context.Context, playlistID string) (*tasks.Run, error)
	ResetMigration(playlistID string) error
}

var _ Engine = (*tasks.Controller)(nil)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	engine       Engine
	width        int
	height       int
	playlistList list.Model
	selected     *tasks.PlaylistView
	run          *tasks.Run
	events       []tasks.Event
	counts       map[tasks.EventType]int
	summary      *tasks.Summary
	runErr       error
	notice       string
	err          error
	spinner      spinner.Model
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model driving engine. Migrations run under ctx.
func NewModel(ctx context.Context, engine Engine) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		engine:       engine,
		playlistList: newPlaylistList(nil),
		counts:       make(map[tasks.EventType]int),
		spinner:      s,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

func newPlaylistList(items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Spotify Playlists"
	return l
}

// Init initializes the TUI by fetching playlists from Spotify.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchPlaylists(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case MigrateView:
			return m.handleMigrateKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsResult)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		items := make([]list.Item, len(data.playlists))
		for i, pl := range data.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		cmd := m.playlistList.SetItems(items)
		return m, cmd

	case MsgMigrationStarted:
		data := msg.data.(startResult)
		if data.err != nil {
			m.notice = data.err.Error()
			m.view = ConfirmView
			return m, nil
		}
		if m.view != MigrateView {
			data.run.Close()
			return m, nil
		}
		m.run = data.run
		return m, m.waitForEvent(data.run)

	case MsgEvent:
		data := msg.data.(runEvent)
		if data.run != m.run {
			return m, nil
		}
		m.counts[data.ev.Type]++
		m.events = append(m.events, data.ev)
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
		return m, m.waitForEvent(m.run)

	case MsgMigrationDone:
		data := msg.data.(doneResult)
		if data.run != m.run {
			return m, nil
		}
		m.summary, m.runErr = data.summary, data.err
		m.run = nil
		m.view = ResultView
		return m, nil

	case MsgReset:
		if err, _ := msg.data.(error); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.notice = "Migration state cleared."
		m.view = PlaylistListView
		return m, m.fetchPlaylists()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == PlaylistListView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case ConfirmView:
		return m.renderConfirm()
	case MigrateView:
		return m.renderMigrate()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.SettingFilter() {
		return m.updateList(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case m.err != nil && key.Matches(msg, m.keys.restart):
		return m, m.fetchPlaylists()
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			selected := pl.playlist
			m.selected = &selected
			m.notice = ""
			m.view = ConfirmView
		}
		return m, nil
	}
	return m.updateList(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.events = nil
		m.counts = make(map[tasks.EventType]int)
		m.summary, m.runErr, m.notice = nil, nil, ""
		m.view = MigrateView
		return m, m.startMigration(m.selected.ID)
	case key.Matches(msg, m.keys.reset):
		return m, m.resetMigration(m.selected.ID)
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = PlaylistListView
		m.notice = ""
		return m, nil
	}
	return m, nil
}

func (m *Model) handleMigrateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		if m.run != nil {
			m.run.Close()
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.detach):
		if m.run != nil {
			m.run.Close()
			m.run = nil
		}
		m.notice = "Stopped watching; the migration continues in the background."
		m.view = PlaylistListView
		return m, m.fetchPlaylists()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = PlaylistListView
		m.selected = nil
		m.summary, m.runErr = nil, nil
		return m, m.fetchPlaylists()
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.view == PlaylistListView {
		m.playlistList, cmd = m.playlistList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.engine.SourcePlaylists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) startMigration(id string) tea.Cmd {
	return func() tea.Msg {
		run, err := m.engine.StartMigration(m.ctx, id)
		return migrationStartedMsg(run, err)
	}
}

func (m *Model) resetMigration(id string) tea.Cmd {
	return func() tea.Msg {
		return resetMsg(m.engine.ResetMigration(id))
	}
}

// waitForEvent receives the next event of run; once the stream closes it reports the run's outcome.
func (m *Model) waitForEvent(run *tasks.Run) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-run.Events()
		if !ok {
			summary, err := run.Wait()
			return migrationDoneMsg(run, summary, err)
		}
		return eventMsg(run, ev)
	}
}

func (m *Model) renderPlaylistList() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	out := fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
	if m.notice != "" {
		out = styles.help.Render(m.notice) + "\n" + out
	}
	return out
}

func (m *Model) renderConfirm() string {
	p := m.selected
	title := styles.title.Render(fmt.Sprintf("Migrate '%s' to YouTube?", p.Name))
	info := fmt.Sprintf("Playlist: %s\nTracks: %d\nStatus: %s\n", p.Name, p.TrackCount, Status(p.Status))
	if p.TargetPlaylistID != "" {
		info += fmt.Sprintf("YouTube playlist: %s\n", p.TargetPlaylistID)
	}
	if m.notice != "" {
		info += "\n" + styles.warn.Render(m.notice) + "\n"
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.reset, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderMigrate() string {
	title := styles.title.Render(fmt.Sprintf("Migrating '%s'", m.selected.Name))
	status := fmt.Sprintf("%s added %d • warnings %d • errors %d",
		m.spinner.View(), m.counts[tasks.EventSuccess], m.counts[tasks.EventWarning], m.counts[tasks.EventError])
	if m.run == nil {
		status = m.spinner.View() + " starting..."
	}

	visible := m.events
	if limit := max(m.height-10, 5); len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}
	lines := make([]string, len(visible))
	for i, ev := range visible {
		lines[i] = Event(ev)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.detach, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, status, strings.Join(lines, "\n"), helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.runErr != nil {
		msg := fmt.Sprintf("Migration stopped: %v", m.runErr)
		if m.summary != nil {
			msg += fmt.Sprintf("\n\nMigrated: %d, Skipped: %d, Failed: %d", m.summary.Migrated, m.summary.Skipped, m.summary.Failed)
		}
		return fmt.Sprintf("%s\n\nProgress is saved; run it again to resume.\n\n%s", styles.err.Render(msg), helpView)
	}
	if m.summary == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	s := m.summary
	title := styles.ok.Render("✓ Migration Complete!")
	info := fmt.Sprintf("\nSource: %s\nDestination: %s\nMigrated: %d\nSkipped: %d\nFailed: %d",
		s.Name, s.TargetPlaylistID, s.Migrated, s.Skipped, s.Failed)
	if s.Invalid > 0 {
		info += fmt.Sprintf("\nUnavailable: %d", s.Invalid)
	}

	var warnings string
	for _, ev := range m.events {
		if ev.Type == tasks.EventWarning || ev.Type == tasks.EventError {
			warnings += "\n  • " + strings.TrimSpace(ev.Message)
		}
	}
	if warnings != "" {
		warnings = "\n\n" + styles.warn.Render("Needs attention:") + warnings
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, warnings, helpView)
}
