package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
)

func newTestYouTube(t *testing.T, h http.HandlerFunc) *YouTubeService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewYouTubeService(shared.ServiceConfig{APIBaseURL: srv.URL}, testMigrationConfig())
}

func TestYouTubeService(t *testing.T) {
	ctx := context.Background()
	creds := models.Bearer("yt-token")

	t.Run("Name", func(t *testing.T) {
		svc := NewYouTubeService(shared.ServiceConfig{}, testMigrationConfig())
		if svc.Name() != models.ServiceYouTube {
			t.Errorf("expected %q, got %q", models.ServiceYouTube, svc.Name())
		}
	})

	t.Run("SearchCandidates", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if r.URL.Path != "/search" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if q.Get("type") != "video" || q.Get("videoCategoryId") != "10" || q.Get("maxResults") != "3" {
				t.Errorf("unexpected query %v", q)
			}
			if q.Get("q") != "Song Artist Album" {
				t.Errorf("unexpected search term %q", q.Get("q"))
			}
			fmt.Fprint(w, `{"items":[{"id":{"videoId":"v1"}},{"id":{"kind":"youtube#channel"}},{"id":{"videoId":"v2"}}]}`)
		})

		ids, err := svc.SearchCandidates(ctx, creds, "Song Artist Album", 3)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if strings.Join(ids, ",") != "v1,v2" {
			t.Errorf("unexpected ids %v", ids)
		}
	})

	t.Run("CandidateDetails", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("id") != "v1,v2" {
				t.Errorf("expected joined ids, got %q", r.URL.Query().Get("id"))
			}
			if r.URL.Query().Get("part") != "contentDetails,snippet" {
				t.Errorf("unexpected part %q", r.URL.Query().Get("part"))
			}
			fmt.Fprint(w, `{"items":[
				{"id":"v1","snippet":{"title":"Song","channelTitle":"Artist - Topic"},"contentDetails":{"duration":"PT3M20S"}},
				{"id":"v2","snippet":{"title":"Song (live)","channelTitle":"fan"},"contentDetails":{"duration":"PT1H"}}
			]}`)
		})

		cands, err := svc.CandidateDetails(ctx, creds, []string{"v1", "v2"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(cands) != 2 {
			t.Fatalf("expected 2 candidates, got %d", len(cands))
		}
		if cands[0].DurationMS != 200000 || cands[0].ChannelTitle != "Artist - Topic" {
			t.Errorf("unexpected first candidate %+v", cands[0])
		}
		if cands[1].DurationMS != 3600000 {
			t.Errorf("expected 1h in ms, got %d", cands[1].DurationMS)
		}
	})

	t.Run("CandidateDetails with no ids makes no request", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request")
		})

		cands, err := svc.CandidateDetails(ctx, creds, nil)
		if err != nil || cands != nil {
			t.Errorf("expected nil, nil; got %v, %v", cands, err)
		}
	})

	t.Run("CreatePlaylist is private", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/playlists" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}

			var body struct {
				Snippet struct{ Title, Description string }
				Status  struct {
					PrivacyStatus string `json:"privacyStatus"`
				}
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("bad body: %v", err)
			}
			if body.Snippet.Title != "Road Trip" || body.Status.PrivacyStatus != "private" {
				t.Errorf("unexpected body %+v", body)
			}
			fmt.Fprint(w, `{"id":"PLnew"}`)
		})

		id, err := svc.CreatePlaylist(ctx, creds, "Road Trip", "from spotify")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "PLnew" {
			t.Errorf("expected PLnew, got %s", id)
		}
	})

	t.Run("CreatePlaylist without id", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		})

		_, err := svc.CreatePlaylist(ctx, creds, "x", "")
		if !errors.Is(err, shared.ErrMalformedResponse) {
			t.Fatalf("expected malformed response, got %v", err)
		}
	})

	t.Run("AddTrack", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("bad body: %v", err)
			}
			snippet := body["snippet"]
			resource, _ := snippet["resourceId"].(map[string]any)
			if snippet["playlistId"] != "PL1" || resource["kind"] != "youtube#video" || resource["videoId"] != "v9" {
				t.Errorf("unexpected body %v", body)
			}
			fmt.Fprint(w, `{"id":"item"}`)
		})

		if err := svc.AddTrack(ctx, creds, "PL1", "v9"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Quota exceeded", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded"}]}}`)
		})

		_, err := svc.SearchCandidates(ctx, creds, "x", 5)
		if !errors.Is(err, shared.ErrQuotaExceeded) {
			t.Fatalf("expected quota error, got %v", err)
		}
	})

	t.Run("Session headers are applied", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Cookie") != "SID=abc" || r.Header.Get("X-Goog-AuthUser") != "0" {
				t.Errorf("expected session headers, got %v", r.Header)
			}
			if r.Header.Get("Authorization") != "" {
				t.Error("expected no bearer header")
			}
			fmt.Fprint(w, `{"items":[]}`)
		})

		bundle := models.HeaderBundle{"Cookie": "SID=abc", "X-Goog-AuthUser": "0"}
		if _, err := svc.Playlists(ctx, bundle); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Playlists follows page tokens", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("mine") != "true" {
				t.Error("expected mine=true")
			}
			switch r.URL.Query().Get("pageToken") {
			case "":
				fmt.Fprint(w, `{"items":[{"id":"PL1","snippet":{"title":"A"},"contentDetails":{"itemCount":2}}],"nextPageToken":"tok"}`)
			case "tok":
				fmt.Fprint(w, `{"items":[{"id":"PL2","snippet":{"title":"B"},"status":{"privacyStatus":"public"}}]}`)
			}
		})

		playlists, err := svc.Playlists(ctx, creds)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 2 || playlists[0].TrackCount != 2 || !playlists[1].Public {
			t.Errorf("unexpected playlists %+v", playlists)
		}
	})
}
