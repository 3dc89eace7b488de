// Package tasks runs resumable playlist migrations and exposes the control surface used by the CLI,
// the HTTP server and the TUI.
//
// # Migration
//
// [Migrator.Migrate] drives one source playlist through not_started, in_progress and then completed
// or failed. Every state change is written to the store before its [Event] is emitted, so an
// interrupted run resumes where it stopped:
//
//  1. A completed playlist is reported from stored counts without any remote call.
//  2. Credentials for both services and the match threshold are resolved once, up front.
//  3. The target playlist is created unless the record already names one.
//  4. Each source track is searched, scored with the matcher package and added when its best score
//     is above the threshold. Tracks resolved by earlier runs are counted and passed over.
//  5. Per-track failures are recorded and the loop continues, except for quota exhaustion, which fails
//     the playlist and ends the run.
//
// # Progress Reporting
//
// Events go to a [Sink]. [ChanSink] is the single-producer, single-consumer channel behind a [Run];
// a consumer that stops reading calls [Run.Close], which detaches it without cancelling the run.
// Send failures are logged and never affect the migration.
//
// # Concurrency
//
// Runs for the same playlist are serialized by [Locks]; a second attempt fails fast with
// shared.ErrMigrationInProgress. Different playlists may run at the same time.
//
// # Scheduling
//
// [Resumer] retries failed playlists on a cron schedule, sequentially.
package tasks
