// YouTube Data API v3 implementation of [TargetCatalog]
//
// Works with either an OAuth bearer token or a captured session header bundle.
package services

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/plmigrate/internal/matcher"
	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
)

// musicCategory is the YouTube video category for music.
const musicCategory = "10"

// YouTubeThumbnail represents a thumbnail image.
type YouTubeThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type youtubeSnippet struct {
	Title        string                      `json:"title"`
	Description  string                      `json:"description"`
	ChannelTitle string                      `json:"channelTitle"`
	Thumbnails   map[string]YouTubeThumbnail `json:"thumbnails"`
}

// YouTubeVideo is a videos.list item with the parts the scorer needs.
type YouTubeVideo struct {
	ID             string         `json:"id"`
	Snippet        youtubeSnippet `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

// YouTubeSearchResult is a search.list item.
type YouTubeSearchResult struct {
	ID struct {
		Kind    string `json:"kind"`
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet youtubeSnippet `json:"snippet"`
}

// YouTubePlaylist is a playlists.list item.
type YouTubePlaylist struct {
	ID      string         `json:"id"`
	Snippet youtubeSnippet `json:"snippet"`
	Status  struct {
		PrivacyStatus string `json:"privacyStatus"`
	} `json:"status"`
	ContentDetails struct {
		ItemCount int `json:"itemCount"`
	} `json:"contentDetails"`
}

// YouTubeList is a paginated list response.
type YouTubeList[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// YouTubeService implements [TargetCatalog] over the YouTube Data API.
type YouTubeService struct {
	client *Client
}

// NewYouTubeService creates a YouTube catalog client from the service and migration settings.
func NewYouTubeService(cfg shared.ServiceConfig, mc shared.MigrationConfig, opts ...ClientOption) *YouTubeService {
	return &YouTubeService{client: NewClient(models.ServiceYouTube, cfg.APIBaseURL, mc, opts...)}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return models.ServiceYouTube
}

// Playlists retrieves every playlist owned by the authenticated channel.
func (y *YouTubeService) Playlists(ctx context.Context, creds models.Credentials) ([]models.Playlist, error) {
	var playlists []models.Playlist
	pageToken := ""

	for {
		query := map[string]string{"part": "snippet,status,contentDetails", "mine": "true", "maxResults": "50"}
		if pageToken != "" {
			query["pageToken"] = pageToken
		}

		var page YouTubeList[YouTubePlaylist]
		err := y.client.do(ctx, creds, call{
			op:     "list_playlists",
			method: http.MethodGet,
			path:   "/playlists",
			query:  query,
			out:    &page,
		})
		if err != nil {
			return nil, err
		}

		for _, yp := range page.Items {
			p := models.Playlist{
				ID:          yp.ID,
				Name:        yp.Snippet.Title,
				Description: yp.Snippet.Description,
				TrackCount:  yp.ContentDetails.ItemCount,
				Public:      yp.Status.PrivacyStatus == "public",
			}
			if thumb, ok := yp.Snippet.Thumbnails["default"]; ok {
				p.ImageURL = thumb.URL
			}
			playlists = append(playlists, p)
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return playlists, nil
}

// CreatePlaylist creates a private playlist.
func (y *YouTubeService) CreatePlaylist(ctx context.Context, creds models.Credentials, name, description string) (string, error) {
	body := map[string]any{
		"snippet": map[string]string{"title": name, "description": description},
		"status":  map[string]string{"privacyStatus": "private"},
	}

	var created YouTubePlaylist
	err := y.client.do(ctx, creds, call{
		op:     "create_playlist",
		method: http.MethodPost,
		path:   "/playlists",
		query:  map[string]string{"part": "snippet,status"},
		body:   body,
		out:    &created,
	})
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &FormatError{Service: y.Name(), Op: "create_playlist", Err: errMissingField("id")}
	}
	return created.ID, nil
}

// SearchCandidates searches music videos for query.
func (y *YouTubeService) SearchCandidates(ctx context.Context, creds models.Credentials, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}

	var page YouTubeList[YouTubeSearchResult]
	err := y.client.do(ctx, creds, call{
		op:     "search",
		method: http.MethodGet,
		path:   "/search",
		query: map[string]string{
			"part":            "snippet",
			"q":               query,
			"type":            "video",
			"videoCategoryId": musicCategory,
			"maxResults":      strconv.Itoa(limit),
		},
		out: &page,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	return ids, nil
}

// CandidateDetails fetches title, channel and duration for each video id.
func (y *YouTubeService) CandidateDetails(ctx context.Context, creds models.Credentials, ids []string) ([]models.Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var page YouTubeList[YouTubeVideo]
	err := y.client.do(ctx, creds, call{
		op:     "video_details",
		method: http.MethodGet,
		path:   "/videos",
		query:  map[string]string{"part": "contentDetails,snippet", "id": strings.Join(ids, ",")},
		out:    &page,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(page.Items))
	for _, v := range page.Items {
		candidates = append(candidates, models.Candidate{
			ID:           v.ID,
			Title:        v.Snippet.Title,
			ChannelTitle: v.Snippet.ChannelTitle,
			DurationMS:   int(matcher.ParseISODuration(v.ContentDetails.Duration).Milliseconds()),
		})
	}
	return candidates, nil
}

// AddTrack appends a video to a playlist.
func (y *YouTubeService) AddTrack(ctx context.Context, creds models.Credentials, playlistID, trackID string) error {
	body := map[string]any{
		"snippet": map[string]any{
			"playlistId": playlistID,
			"resourceId": map[string]string{"kind": "youtube#video", "videoId": trackID},
		},
	}

	return y.client.do(ctx, creds, call{
		op:     "add_track",
		method: http.MethodPost,
		path:   "/playlistItems",
		query:  map[string]string{"part": "snippet"},
		body:   body,
	})
}

type errMissingField string

func (e errMissingField) Error() string { return "missing field " + string(e) }
