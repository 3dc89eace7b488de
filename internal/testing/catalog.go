package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/services"
	"github.com/desertthunder/plmigrate/internal/shared"
)

// FakeSource is an in-memory [services.SourceCatalog].
type FakeSource struct {
	mu sync.Mutex

	Lists     []models.Playlist
	Meta      map[string]models.Playlist
	TrackList map[string][]models.Track

	PlaylistErr error
	TracksErr   error
	ListErr     error

	calls int
}

var _ services.SourceCatalog = (*FakeSource)(nil)

// NewFakeSource creates a source holding one playlist.
func NewFakeSource(p models.Playlist, tracks ...models.Track) *FakeSource {
	return &FakeSource{
		Lists:     []models.Playlist{p},
		Meta:      map[string]models.Playlist{p.ID: p},
		TrackList: map[string][]models.Track{p.ID: tracks},
	}
}

func (f *FakeSource) Name() string { return models.ServiceSpotify }

func (f *FakeSource) Playlists(ctx context.Context, creds models.Credentials) ([]models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]models.Playlist(nil), f.Lists...), nil
}

func (f *FakeSource) Playlist(ctx context.Context, creds models.Credentials, id string) (*models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.PlaylistErr != nil {
		return nil, f.PlaylistErr
	}
	p, ok := f.Meta[id]
	if !ok {
		return nil, &services.CatalogError{Service: f.Name(), Op: "fetch_playlist", Kind: services.KindNotFound, Status: 404}
	}
	return &p, nil
}

func (f *FakeSource) Tracks(ctx context.Context, creds models.Credentials, playlistID string) ([]models.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.TracksErr != nil {
		return nil, f.TracksErr
	}
	return append([]models.Track(nil), f.TrackList[playlistID]...), nil
}

// Calls is the number of catalog calls made so far.
func (f *FakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeTarget is an in-memory [services.TargetCatalog].
//
// Search results are keyed by the exact query string. Errors keyed by query or video id are returned
// from every matching call.
type FakeTarget struct {
	mu sync.Mutex

	CreatedID   string
	CreateErr   error
	DetailsErr  error
	Lists       []models.Playlist
	SearchErrs  map[string]error
	AddErrs     map[string]error
	BeforeAdd   func(ctx context.Context, videoID string)
	BeforeQuery func(ctx context.Context, query string)

	results    map[string][]string
	candidates map[string]models.Candidate
	created    []string
	added      []string
	searched   []string
	calls      int
}

var _ services.TargetCatalog = (*FakeTarget)(nil)

// NewFakeTarget creates a target whose first new playlist gets createdID; later ones get a numeric suffix.
func NewFakeTarget(createdID string) *FakeTarget {
	return &FakeTarget{
		CreatedID:  createdID,
		SearchErrs: make(map[string]error),
		AddErrs:    make(map[string]error),
		results:    make(map[string][]string),
		candidates: make(map[string]models.Candidate),
	}
}

// AddResult registers candidates returned, in order, for query.
func (f *FakeTarget) AddResult(query string, cands ...models.Candidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range cands {
		f.results[query] = append(f.results[query], c.ID)
		f.candidates[c.ID] = c
	}
}

func (f *FakeTarget) Name() string { return models.ServiceYouTube }

func (f *FakeTarget) Playlists(ctx context.Context, creds models.Credentials) ([]models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]models.Playlist(nil), f.Lists...), nil
}

func (f *FakeTarget) CreatePlaylist(ctx context.Context, creds models.Credentials, name, description string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	id := f.CreatedID
	if n := len(f.created); n > 0 {
		id = fmt.Sprintf("%s-%d", f.CreatedID, n)
	}
	f.created = append(f.created, name)
	return id, nil
}

func (f *FakeTarget) SearchCandidates(ctx context.Context, creds models.Credentials, query string, limit int) ([]string, error) {
	if f.BeforeQuery != nil {
		f.BeforeQuery(ctx, query)
	}
	if err := ctx.Err(); err != nil {
		return nil, &services.CatalogError{Service: f.Name(), Op: "search", Kind: services.KindTransientNetwork, Err: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.searched = append(f.searched, query)
	if err := f.SearchErrs[query]; err != nil {
		return nil, err
	}

	ids := f.results[query]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return append([]string(nil), ids...), nil
}

func (f *FakeTarget) CandidateDetails(ctx context.Context, creds models.Credentials, ids []string) ([]models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.DetailsErr != nil {
		return nil, f.DetailsErr
	}

	out := make([]models.Candidate, 0, len(ids))
	for _, id := range ids {
		if c, ok := f.candidates[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *FakeTarget) AddTrack(ctx context.Context, creds models.Credentials, playlistID, trackID string) error {
	if f.BeforeAdd != nil {
		f.BeforeAdd(ctx, trackID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.AddErrs[trackID]; err != nil {
		return err
	}
	f.added = append(f.added, trackID)
	return nil
}

// Calls is the number of catalog calls made so far.
func (f *FakeTarget) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Added lists the video ids added, in order.
func (f *FakeTarget) Added() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.added...)
}

// Created lists the names of created playlists.
func (f *FakeTarget) Created() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.created...)
}

// Searched lists the queries searched, in order.
func (f *FakeTarget) Searched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searched...)
}

// QuotaError is the error YouTube returns once the daily quota is spent.
func QuotaError() error {
	return &services.CatalogError{Service: models.ServiceYouTube, Op: "add_track", Kind: services.KindQuotaExceeded, Status: 403, Message: "quota exceeded"}
}

// AuthError is a rejected-credentials error.
func AuthError() error {
	return &services.CatalogError{Service: models.ServiceYouTube, Op: "search", Kind: services.KindAuth, Status: 401}
}

// StaticCredentials resolves every service to a fixed bearer token unless Err is set.
type StaticCredentials struct {
	mu    sync.Mutex
	Err   map[string]error
	calls int
}

// NewStaticCredentials creates a credential source that always succeeds.
func NewStaticCredentials() *StaticCredentials {
	return &StaticCredentials{Err: make(map[string]error)}
}

func (s *StaticCredentials) Credentials(ctx context.Context, service string) (models.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.Err[service]; err != nil {
		return nil, err
	}
	return models.Bearer(fmt.Sprintf("%s-token", service)), nil
}

// Calls is the number of resolutions so far.
func (s *StaticCredentials) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// RequireAuth makes service resolve to [shared.ErrAuthenticationRequired].
func (s *StaticCredentials) RequireAuth(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err[service] = fmt.Errorf("%w: %s", shared.ErrAuthenticationRequired, service)
}
