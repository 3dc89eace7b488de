// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for playlist migration:
//  1. [PlaylistListView] : Browse Spotify playlists with their migration status
//  2. [ConfirmView] : Start or reset the migration of the selected playlist
//  3. [MigrateView] : Watch the run's progress events as they arrive
//  4. [ResultView] : Show the run summary and the tracks that need attention
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Events are read one at a time from the run's channel by a command, so rendering never blocks the migration.
// Leaving the migration view only detaches from the run; it keeps going and its progress is saved.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n/x, q) with contextual help displayed via charmbracelet/bubbles/help.
//
// The package also exports the palette helpers ([Success], [Warning], [Error], [Event], [Status]) the CLI uses for coloured output.
package ui
