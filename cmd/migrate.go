package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/desertthunder/plmigrate/internal/formatter"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/desertthunder/plmigrate/internal/ui"
	"github.com/urfave/cli/v3"
)

func playlistArg(cmd *cli.Command) (string, error) {
	id := cmd.StringArg("playlist")
	if id == "" {
		return "", fmt.Errorf("%w: playlist id is required", shared.ErrMissingArgument)
	}
	return id, nil
}

// Playlists lists source playlists with their migration status, or the target playlists with --target.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.wire()
	if err != nil {
		return err
	}

	if cmd.Bool("target") {
		playlists, err := controller.TargetPlaylists(ctx)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(playlists, cmd.Bool("pretty"))
		}

		r.writePlainHeader(fmt.Sprintf("YouTube playlists (%d)", len(playlists)))
		for _, p := range playlists {
			r.writePlain("%-36s %5d  %s\n", p.ID, p.TrackCount, p.Name)
		}
		return nil
	}

	views, err := controller.SourcePlaylists(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Spotify playlists (%d)", len(views)))
	for _, v := range views {
		r.writePlain("%-24s %5d  %-12s %s\n", v.ID, v.TrackCount, ui.Status(v.Status), v.Name)
	}
	return nil
}

// Migrate runs one playlist migration in the foreground, printing each progress event.
//
// Interrupting the command leaves the playlist in progress; running it again resumes.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	id, err := playlistArg(cmd)
	if err != nil {
		return err
	}
	controller, err := r.wire()
	if err != nil {
		return err
	}

	if cmd.Bool("reset") {
		if err := controller.ResetMigration(id); err != nil {
			return err
		}
		r.logger.Info("recorded progress discarded", "playlist", id)
	}

	run, err := controller.StartMigration(ctx, id)
	if err != nil {
		return err
	}

	asJSON := cmd.Bool("json")
	for ev := range run.Events() {
		if asJSON {
			r.writeJSON(ev, false)
		} else {
			r.writePlain("%s\n", ui.Event(ev))
		}
	}

	summary, err := run.Wait()
	if err != nil {
		return err
	}
	if asJSON {
		return nil
	}

	r.writePlainln("")
	r.writePlainHeader(fmt.Sprintf("%s: %s", summary.Name, ui.Status(summary.Status)))
	r.writePlain("Migrated: %d\nSkipped:  %d\nFailed:   %d\nInvalid:  %d\n",
		summary.Migrated, summary.Skipped, summary.Failed, summary.Invalid)
	if summary.TargetPlaylistID != "" {
		r.writePlain("YouTube:  https://www.youtube.com/playlist?list=%s\n", summary.TargetPlaylistID)
	}
	return r.writePlain("Duration: %s\n", summary.Duration.Round(time.Millisecond))
}

// Status prints the recorded status of every playlist, running ones included.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.wire()
	if err != nil {
		return err
	}

	statuses, err := controller.StatusMap()
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(statuses, true)
	}
	if len(statuses) == 0 {
		return r.writePlain("No migrations recorded\n")
	}

	ids := make([]string, 0, len(statuses))
	for id := range statuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	r.writePlainHeader("Migration status")
	for _, id := range ids {
		r.writePlain("%-24s %s\n", id, ui.Status(statuses[id]))
	}
	return nil
}

// Sync links source playlists to same-named target playlists.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.wire()
	if err != nil {
		return err
	}

	result, err := controller.SyncPlaylists(ctx)
	if err != nil {
		return err
	}

	for _, id := range result.Linked {
		r.writePlain("✓ linked %s\n", id)
	}
	for _, id := range result.Skipped {
		r.writePlain("- skipped %s (migration running)\n", id)
	}
	return r.writePlain("Linked %d playlist(s)\n", len(result.Linked))
}

// Reset deletes the recorded progress of a playlist.
func (r *Runner) Reset(ctx context.Context, cmd *cli.Command) error {
	id, err := playlistArg(cmd)
	if err != nil {
		return err
	}
	controller, err := r.wire()
	if err != nil {
		return err
	}

	if err := controller.ResetMigration(id); err != nil {
		return err
	}
	return r.writePlain("✓ reset %s\n", id)
}

// Threshold prints the match threshold, or sets it when a value is given.
func (r *Runner) Threshold(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.wire()
	if err != nil {
		return err
	}

	raw := cmd.StringArg("value")
	if raw == "" {
		v, err := controller.MatchThreshold()
		if err != nil {
			return err
		}
		return r.writePlain("%g\n", v)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%w: threshold %q is not a number", shared.ErrInvalidArgument, raw)
	}
	if err := controller.SetMatchThreshold(v); err != nil {
		return err
	}
	return r.writePlain("✓ match threshold set to %g\n", v)
}

// Report exports the per-track outcome of a playlist to a file or stdout.
func (r *Runner) Report(ctx context.Context, cmd *cli.Command) error {
	id, err := playlistArg(cmd)
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	controller, err := r.wire()
	if err != nil {
		return err
	}

	rec, tracks, err := controller.Tracks(id)
	if err != nil {
		return err
	}
	report := formatter.NewReport(*rec, tracks, time.Now())

	if cmd.String("output") == "-" {
		data, err := formatter.Export(report, format)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	path, err := formatter.WriteExport(report, format, cmd.String("output"))
	if err != nil {
		return err
	}
	r.logger.Info("report written", "playlist", id, "format", format, "path", path)
	return r.writePlain("✓ report written to %s\n", path)
}
