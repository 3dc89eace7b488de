// Package repositories persists migration state, credentials and settings.
//
// Contracts:
//   - [Store] : playlist and track migration records, last write wins
//   - [TokenStore] : one credential row per catalog service
//   - [ConfigStore] : the match threshold, validated to [0,1]
//
// Backends, selected by [Open] from the database driver setting:
//   - [SQLStore] : database/sql over SQLite with the embedded migrations from package shared
//   - [GormStore] : gorm over SQLite or Postgres, schema by AutoMigrate
//
// Track records are keyed by (source playlist, source track), so one track may appear in several
// migrated playlists. A target id may appear once per playlist; a second write surfaces as [ErrConflict].
package repositories
