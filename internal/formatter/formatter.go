// package formatter renders migration reports as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// Formats lists the supported formats in the order they are offered to users.
var Formats = []Format{FormatCSV, FormatMarkdown, FormatText, FormatJSON}

// ParseFormat accepts a format name, with "markdown" and "text" as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q (want csv, md, txt or json)", shared.ErrInvalidArgument, s)
	}
}

// Report is the stored state of one playlist migration.
type Report struct {
	Playlist    models.PlaylistRecord `json:"playlist"`
	Counts      models.TrackCounts    `json:"counts"`
	Tracks      []models.TrackRecord  `json:"tracks"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// NewReport builds a report from a playlist record and its track records.
func NewReport(rec models.PlaylistRecord, tracks []models.TrackRecord, now time.Time) *Report {
	r := &Report{Playlist: rec, Tracks: tracks, GeneratedAt: now.UTC()}
	if r.Tracks == nil {
		r.Tracks = []models.TrackRecord{}
	}
	for _, t := range tracks {
		r.Counts.Add(t.Status)
	}
	return r
}

func formatScore(s *float64) string {
	if s == nil {
		return ""
	}
	return strconv.FormatFloat(*s, 'f', 2, 64)
}

// ExportToCSV writes one row per track: Source ID, Title, Artists, Status, Target ID, Score, Updated.
func ExportToCSV(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Source ID", "Title", "Artists", "Status", "Target ID", "Score", "Updated"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, t := range r.Tracks {
		record := []string{
			t.SourceTrackID,
			t.Title,
			t.Artists,
			string(t.Status),
			t.TargetTrackID,
			formatScore(t.Score),
			t.LastUpdated.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func summaryLine(c models.TrackCounts) string {
	return fmt.Sprintf("Migrated: %d, Skipped: %d, Failed: %d, Pending: %d", c.Migrated, c.Skipped, c.Failed, c.Pending)
}

// ExportToMarkdown renders a heading, a status summary and a track table.
func ExportToMarkdown(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	p := r.Playlist

	fmt.Fprintf(&buf, "# %s\n\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", p.Description)
	}
	fmt.Fprintf(&buf, "**Status**: %s\n", p.Status)
	if p.TargetPlaylistID != "" {
		fmt.Fprintf(&buf, "**YouTube playlist**: [%s](https://www.youtube.com/playlist?list=%s)\n", p.TargetPlaylistID, p.TargetPlaylistID)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d (%s)\n\n", r.Counts.Total(), summaryLine(r.Counts))

	buf.WriteString("## Tracks\n\n")
	if len(r.Tracks) == 0 {
		buf.WriteString("_No tracks recorded._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Title | Artists | Status | Match | Score |\n")
	buf.WriteString("|---|---|---|---|---|---|\n")
	for i, t := range r.Tracks {
		match := ""
		if t.TargetTrackID != "" {
			match = fmt.Sprintf("[%s](https://www.youtube.com/watch?v=%s)", t.TargetTrackID, t.TargetTrackID)
		}
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s | %s |\n",
			i+1, escapeCell(t.Title), escapeCell(t.Artists), t.Status, match, formatScore(t.Score))
	}
	return buf.Bytes(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// ExportToText renders the report for terminals and plain text files.
func ExportToText(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	p := r.Playlist

	fmt.Fprintf(&buf, "Playlist: %s (%s)\n", p.Name, p.SourcePlaylistID)
	fmt.Fprintf(&buf, "Status: %s\n", p.Status)
	if p.TargetPlaylistID != "" {
		fmt.Fprintf(&buf, "Target: %s\n", p.TargetPlaylistID)
	}
	fmt.Fprintf(&buf, "%s\n\n", summaryLine(r.Counts))

	for i, t := range r.Tracks {
		fmt.Fprintf(&buf, "%d. [%s] %s - %s", i+1, t.Status, t.Artists, t.Title)
		if t.TargetTrackID != "" {
			fmt.Fprintf(&buf, " -> %s", t.TargetTrackID)
		}
		if t.Score != nil {
			fmt.Fprintf(&buf, " (score %s)", formatScore(t.Score))
		}
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// ExportToJSON renders the whole report as indented JSON.
func ExportToJSON(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// Export renders r in format f.
func Export(r *Report, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ExportToCSV(r)
	case FormatMarkdown:
		return ExportToMarkdown(r)
	case FormatText:
		return ExportToText(r)
	case FormatJSON:
		return ExportToJSON(r)
	default:
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, f)
	}
}

// WriteExport renders r and writes it to path.
//
// Defaults to {source playlist id}_report.{format} when path is empty.
func WriteExport(r *Report, f Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_report.%s", r.Playlist.SourcePlaylistID, f)
	}

	data, err := Export(r, f)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
