package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plmigrate/internal/models"
)

// ErrSinkClosed is returned by [ChanSink.Send] once the consumer has detached.
var ErrSinkClosed = errors.New("event sink closed")

// EventType classifies a progress [Event].
type EventType string

const (
	EventInfo     EventType = "info"
	EventWarning  EventType = "warning"
	EventSuccess  EventType = "success"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// Event is one progress notification of a migration run.
//
// On the wire details is optional text: the JSON encoding of Track for per-track events, or of Summary
// for the terminal complete event. Track and Summary carry the same payload typed for Go consumers.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`

	Track   *TrackDetails `json:"-"`
	Summary *Summary      `json:"-"`
}

// TrackDetails identifies the track an event is about.
type TrackDetails struct {
	TrackID  string   `json:"track_id"`
	Title    string   `json:"title"`
	TargetID string   `json:"target_id,omitempty"`
	Score    *float64 `json:"score,omitempty"`
}

// Sink receives progress events. Send errors never affect the run.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(Event) error

func (f SinkFunc) Send(ev Event) error { return f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) error { return nil })

// ChanSink is a single-producer, single-consumer channel sink.
//
// The producer closes the channel with finish after its last Send. The consumer may call Close at any
// time to stop receiving; later sends fail with [ErrSinkClosed] instead of blocking.
type ChanSink struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewChanSink creates a sink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{ch: make(chan Event, buffer), done: make(chan struct{})}
}

// Send delivers ev, blocking while the buffer is full and the consumer is still attached.
func (s *ChanSink) Send(ev Event) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	select {
	case s.ch <- ev:
		return nil
	case <-s.done:
		return ErrSinkClosed
	}
}

// Events is the receive side. It is closed when the run finishes.
func (s *ChanSink) Events() <-chan Event { return s.ch }

// Close detaches the consumer. It does not cancel the run.
func (s *ChanSink) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *ChanSink) finish() { close(s.ch) }

func info(format string, args ...any) Event {
	return Event{Type: EventInfo, Message: fmt.Sprintf(format, args...)}
}

func warning(format string, args ...any) Event {
	return Event{Type: EventWarning, Message: fmt.Sprintf(format, args...)}
}

func trackDetails(t models.Track, rec *models.TrackRecord) *TrackDetails {
	d := &TrackDetails{TrackID: t.ID, Title: t.Name}
	if rec != nil {
		d.TargetID = rec.TargetTrackID
		d.Score = rec.Score
	}
	return d
}

func detailsText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func (ev Event) withTrack(d *TrackDetails) Event {
	ev.Track = d
	ev.Details = detailsText(d)
	return ev
}

func resumingEvent(rec *models.PlaylistRecord) Event {
	return info("Resuming migration for playlist: %s (status: %s)", rec.Name, rec.Status)
}

func startingEvent(name string) Event {
	return info("Starting new migration for playlist: %s", name)
}

func alreadyCompletedEvent(rec *models.PlaylistRecord) Event {
	return info("Playlist %s was already migrated", rec.Name)
}

func createdPlaylistEvent(name, id string) Event {
	return Event{Type: EventSuccess, Message: fmt.Sprintf("Created YouTube playlist: %s (ID: %s)", name, id)}
}

func fetchedTracksEvent(n int) Event {
	return info("Fetched %d tracks from Spotify", n)
}

func invalidTrackEvent(pos int) Event {
	return warning("Skipping invalid track item at position %d", pos)
}

func alreadyProcessedEvent(t models.Track, rec *models.TrackRecord) Event {
	ev := info("Skipping already processed track: %s (status: %s)", t.Name, rec.Status)
	return ev.withTrack(trackDetails(t, rec))
}

func searchingEvent(query string) Event {
	return info("Searching for: %s", query)
}

func notFoundEvent(t models.Track) Event {
	ev := warning("Could not find %s on YouTube", t.Name)
	return ev.withTrack(trackDetails(t, nil))
}

func poorMatchEvent(t models.Track, rec *models.TrackRecord, threshold float64) Event {
	ev := warning("No match for %s above threshold %.2f (best: %.2f)", t.Name, threshold, deref(rec.Score))
	return ev.withTrack(trackDetails(t, rec))
}

func foundEvent(t models.Track, title string, score float64) Event {
	ev := info("Found: %s (score: %.2f)", title, score)
	return ev.withTrack(&TrackDetails{TrackID: t.ID, Title: t.Name, Score: &score})
}

func duplicateTargetEvent(t models.Track, targetID, owner string) Event {
	ev := warning("%s matched %s, which is already mapped to track %s in this playlist", t.Name, targetID, owner)
	return ev.withTrack(trackDetails(t, nil))
}

func addedEvent(t models.Track, rec *models.TrackRecord) Event {
	ev := Event{Type: EventSuccess, Message: fmt.Sprintf("Added %s to playlist", t.Name)}
	return ev.withTrack(trackDetails(t, rec))
}

func trackErrorEvent(t models.Track, err error) Event {
	ev := Event{Type: EventError, Message: fmt.Sprintf("Error processing track %s: %v", t.Name, err)}
	return ev.withTrack(trackDetails(t, nil))
}

func fatalEvent(stage string, err error) Event {
	return Event{Type: EventError, Message: fmt.Sprintf("Migration failed while %s: %v", stage, err)}
}

func completeEvent(s *Summary) Event {
	msg := fmt.Sprintf("Migration complete for %s! Migrated: %d, Skipped: %d, Failed: %d", s.Name, s.Migrated, s.Skipped, s.Failed)
	if s.Invalid > 0 {
		msg += fmt.Sprintf(", Invalid: %d", s.Invalid)
	}
	return Event{Type: EventComplete, Message: msg, Details: detailsText(s), Summary: s}
}

// FormatEvent renders an event as a single log line, e.g. for terminal output.
func FormatEvent(ev Event) string {
	var prefix string
	switch ev.Type {
	case EventWarning:
		prefix = "!"
	case EventSuccess:
		prefix = "✓"
	case EventError:
		prefix = "✗"
	case EventComplete:
		prefix = "■"
	default:
		prefix = "·"
	}
	return prefix + " " + strings.TrimSpace(ev.Message)
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// LogSink writes every event to l, mapping event types to log levels.
func LogSink(l *log.Logger) Sink {
	return SinkFunc(func(ev Event) error {
		switch ev.Type {
		case EventWarning:
			l.Warn(ev.Message)
		case EventError:
			l.Error(ev.Message)
		default:
			l.Info(ev.Message)
		}
		return nil
	})
}
