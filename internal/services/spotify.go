// Spotify Web API implementation of [SourceCatalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
)

const (
	spotifyPageSize         = 100
	spotifyPlaylistPageSize = 50
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyTrack represents a Spotify track. ID is null for local files.
type SpotifyTrack struct {
	ID          *string         `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	ExternalIDs externalIDs     `json:"external_ids"`
	IsLocal     bool            `json:"is_local"`
}

// SpotifyPlaylistTrack is one playlist entry. Track is null for removed items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

type trackTotal struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a playlist object.
type SpotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Public      bool           `json:"public"`
	Tracks      trackTotal     `json:"tracks"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyPage is a paginated response.
type SpotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// SpotifyService implements [SourceCatalog] over the Spotify Web API.
type SpotifyService struct {
	client *Client
}

// NewSpotifyService creates a Spotify catalog client from the service and migration settings.
func NewSpotifyService(cfg shared.ServiceConfig, mc shared.MigrationConfig, opts ...ClientOption) *SpotifyService {
	return &SpotifyService{client: NewClient(models.ServiceSpotify, cfg.APIBaseURL, mc, opts...)}
}

func (s *SpotifyService) Name() string {
	return models.ServiceSpotify
}

// Playlists retrieves every playlist of the current user.
func (s *SpotifyService) Playlists(ctx context.Context, creds models.Credentials) ([]models.Playlist, error) {
	var playlists []models.Playlist

	for offset := 0; ; offset += spotifyPlaylistPageSize {
		var page SpotifyPage[SpotifyPlaylist]
		err := s.client.do(ctx, creds, call{
			op:     "list_playlists",
			method: http.MethodGet,
			path:   "/me/playlists",
			query:  pageQuery(spotifyPlaylistPageSize, offset),
			out:    &page,
		})
		if err != nil {
			return nil, err
		}

		for _, sp := range page.Items {
			playlists = append(playlists, sp.toModel())
		}
		if page.Next == nil || len(page.Items) == 0 {
			break
		}
	}
	return playlists, nil
}

// Playlist retrieves a playlist by ID.
func (s *SpotifyService) Playlist(ctx context.Context, creds models.Credentials, id string) (*models.Playlist, error) {
	var sp SpotifyPlaylist
	err := s.client.do(ctx, creds, call{
		op:     "fetch_playlist",
		method: http.MethodGet,
		path:   "/playlists/" + url.PathEscape(id),
		query:  map[string]string{"fields": "id,name,description,public,images,tracks.total"},
		out:    &sp,
	})
	if err != nil {
		return nil, err
	}

	p := sp.toModel()
	return &p, nil
}

// Tracks retrieves every item of a playlist, 100 per page.
func (s *SpotifyService) Tracks(ctx context.Context, creds models.Credentials, playlistID string) ([]models.Track, error) {
	var tracks []models.Track

	for offset := 0; ; offset += spotifyPageSize {
		var page SpotifyPage[SpotifyPlaylistTrack]
		err := s.client.do(ctx, creds, call{
			op:     "fetch_tracks",
			method: http.MethodGet,
			path:   fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID)),
			query:  pageQuery(spotifyPageSize, offset),
			out:    &page,
		})
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			tracks = append(tracks, item.toModel())
		}
		if page.Next == nil || len(page.Items) == 0 {
			break
		}
	}
	return tracks, nil
}

func (sp SpotifyPlaylist) toModel() models.Playlist {
	p := models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		TrackCount:  sp.Tracks.Total,
		Public:      sp.Public,
	}
	if len(sp.Images) > 0 {
		p.ImageURL = sp.Images[0].URL
	}
	return p
}

func (item SpotifyPlaylistTrack) toModel() models.Track {
	if item.Track == nil {
		return models.Track{}
	}

	t := item.Track
	track := models.Track{
		Name:       t.Name,
		Album:      t.Album.Name,
		DurationMS: t.DurationMS,
		ISRC:       t.ExternalIDs.ISRC,
	}
	if t.ID != nil && !t.IsLocal {
		track.ID = *t.ID
	}
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, a.Name)
	}
	return track
}

func pageQuery(limit, offset int) map[string]string {
	return map[string]string{"limit": strconv.Itoa(limit), "offset": strconv.Itoa(offset)}
}
