package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
)

func testMigrationConfig() shared.MigrationConfig {
	return shared.MigrationConfig{CallTimeout: 2 * time.Second, SearchLimit: 5, RequestsPerSecond: 1000}
}

func newTestSpotify(t *testing.T, h http.HandlerFunc) *SpotifyService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewSpotifyService(shared.ServiceConfig{APIBaseURL: srv.URL}, testMigrationConfig())
}

func TestSpotifyService(t *testing.T) {
	ctx := context.Background()
	creds := models.Bearer("sp-token")

	t.Run("Name", func(t *testing.T) {
		svc := NewSpotifyService(shared.ServiceConfig{}, testMigrationConfig())
		if svc.Name() != models.ServiceSpotify {
			t.Errorf("expected %q, got %q", models.ServiceSpotify, svc.Name())
		}
	})

	t.Run("Playlists follows pagination", func(t *testing.T) {
		svc := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me/playlists" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer sp-token" {
				t.Errorf("expected bearer header, got %q", got)
			}

			switch r.URL.Query().Get("offset") {
			case "0":
				fmt.Fprint(w, `{"items":[{"id":"p1","name":"One","tracks":{"total":3},"images":[{"url":"http://img/1"}]}],"next":"more"}`)
			case "50":
				fmt.Fprint(w, `{"items":[{"id":"p2","name":"Two","public":true,"tracks":{"total":1}}],"next":null}`)
			default:
				t.Errorf("unexpected offset %s", r.URL.Query().Get("offset"))
			}
		})

		playlists, err := svc.Playlists(ctx, creds)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}
		if playlists[0].ImageURL != "http://img/1" || playlists[0].TrackCount != 3 {
			t.Errorf("unexpected first playlist %+v", playlists[0])
		}
		if !playlists[1].Public {
			t.Error("expected second playlist to be public")
		}
	})

	t.Run("Playlist", func(t *testing.T) {
		svc := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlists/abc" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			fmt.Fprint(w, `{"id":"abc","name":"Road Trip","description":"loud","tracks":{"total":42}}`)
		})

		p, err := svc.Playlist(ctx, creds, "abc")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.Name != "Road Trip" || p.Description != "loud" || p.TrackCount != 42 {
			t.Errorf("unexpected playlist %+v", p)
		}
	})

	t.Run("Playlist not found", func(t *testing.T) {
		svc := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"status":404,"message":"Not found."}}`)
		})

		_, err := svc.Playlist(ctx, creds, "missing")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if KindOf(err) != KindNotFound {
			t.Errorf("expected NotFound kind, got %v", KindOf(err))
		}
	})

	t.Run("Tracks maps items and keeps unavailable ones", func(t *testing.T) {
		svc := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlists/abc/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("limit") != "100" {
				t.Errorf("expected limit 100, got %s", r.URL.Query().Get("limit"))
			}

			switch r.URL.Query().Get("offset") {
			case "0":
				fmt.Fprint(w, `{"items":[
					{"track":{"id":"t1","name":"Song","artists":[{"name":"A"},{"name":"B"}],"album":{"name":"LP"},"duration_ms":200000,"external_ids":{"isrc":"US123"}}},
					{"track":null}
				],"next":"page2"}`)
			case "100":
				fmt.Fprint(w, `{"items":[
					{"track":{"id":null,"name":"Local","is_local":true}},
					{"track":{"id":"t2","name":"Other","artists":[{"name":"C"}],"duration_ms":1000}}
				],"next":null}`)
			}
		})

		tracks, err := svc.Tracks(ctx, creds, "abc")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 4 {
			t.Fatalf("expected 4 tracks, got %d", len(tracks))
		}

		first := tracks[0]
		if first.ID != "t1" || first.Album != "LP" || first.ISRC != "US123" || first.DurationMS != 200000 {
			t.Errorf("unexpected first track %+v", first)
		}
		if first.Query() != "Song A B LP" {
			t.Errorf("unexpected query %q", first.Query())
		}
		if tracks[1].ID != "" || tracks[2].ID != "" {
			t.Error("expected removed and local items to have no id")
		}
		if tracks[3].ID != "t2" {
			t.Errorf("expected catalog order to be kept, got %q", tracks[3].ID)
		}
	})

	t.Run("Malformed body", func(t *testing.T) {
		svc := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"items":[`)
		})

		_, err := svc.Tracks(ctx, creds, "abc")
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("expected FormatError, got %T %v", err, err)
		}
		if fe.Op != "fetch_tracks" {
			t.Errorf("expected op fetch_tracks, got %s", fe.Op)
		}
	})
}
