// Spotify Web API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackstats/internal/batch"
	"github.com/desertthunder/trackstats/internal/shared"
	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	playlistPageSize = 50
	maxPageSize      = 50
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SimpleArtist is the artist stub embedded in tracks and albums.
type SimpleArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SimpleAlbum is the album stub embedded in tracks.
type SimpleAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// Track represents a Spotify track.
type Track struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Artists     []SimpleArtist `json:"artists"`
	Album       SimpleAlbum    `json:"album"`
	DurationMS  int            `json:"duration_ms"`
	Explicit    bool           `json:"explicit"`
	ExternalIDs externalIDs    `json:"external_ids"`
	Popularity  int            `json:"popularity"`
	IsLocal     bool           `json:"is_local"`
	URI         string         `json:"uri"`
}

type followers struct {
	Total int `json:"total"`
}

// Artist represents a full Spotify artist.
type Artist struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Genres     []string       `json:"genres"`
	Popularity int            `json:"popularity"`
	Followers  followers      `json:"followers"`
	Images     []SpotifyImage `json:"images"`
	URI        string         `json:"uri"`
}

// AudioFeatures holds the acoustic analysis summary of a track.
type AudioFeatures struct {
	ID               string  `json:"id"`
	AnalysisURL      string  `json:"analysis_url"`
	TrackHref        string  `json:"track_href"`
	DurationMS       int     `json:"duration_ms"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Valence          float64 `json:"valence"`
	Speechiness      float64 `json:"speechiness"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    int     `json:"time_signature"`
}

// Owner identifies the user that owns a playlist.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type simplePlaylistTracks struct {
	Total int `json:"total"`
}

// SimplePlaylist represents a simplified playlist object (used in lists).
type SimplePlaylist struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Owner       Owner                `json:"owner"`
	Public      bool                 `json:"public"`
	Tracks      simplePlaylistTracks `json:"tracks"`
	URI         string               `json:"uri"`
}

// PlaylistItem represents a track within a playlist context.
//
// Track is nil for removed tracks and for podcast episodes.
type PlaylistItem struct {
	AddedAt string `json:"added_at"`
	Track   *Track `json:"track"`
}

// Page is Spotify's offset-based paging envelope.
type Page[T any] struct {
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// HasNext reports whether another page follows.
func (p *Page[T]) HasNext() bool {
	return p != nil && p.Next != nil && *p.Next != ""
}

type spotifyError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyOpts configures a [SpotifyService].
type SpotifyOpts struct {
	ClientID          string
	ClientSecret      string
	BaseURL           string        // Defaults to the public Web API
	TokenURL          string        // Defaults to the accounts service token endpoint
	RequestsPerSecond float64       // Default: 10
	MaxRetries        int           // Retries for 429 responses
	RetryWait         time.Duration // Minimum wait between retries (default: 1s)
	Timeout           time.Duration // Per-request timeout (default: 30s)
	HTTPClient        *http.Client  // Base client for token and API requests
	Logger            *log.Logger
}

// SpotifyOptsFromConfig builds [SpotifyOpts] from the application config.
func SpotifyOptsFromConfig(config *shared.Config, logger *log.Logger) SpotifyOpts {
	return SpotifyOpts{
		ClientID:          config.Credentials.Spotify.ClientID,
		ClientSecret:      config.Credentials.Spotify.ClientSecret,
		BaseURL:           config.Spotify.BaseURL,
		TokenURL:          config.Spotify.TokenURL,
		RequestsPerSecond: config.Spotify.RequestsPerSecond,
		MaxRetries:        config.Spotify.MaxRetries,
		Timeout:           time.Duration(config.Spotify.TimeoutSeconds) * time.Second,
		Logger:            logger,
	}
}

// SpotifyService implements [Service] against the Spotify Web API.
type SpotifyService struct {
	client  *resty.Client
	limiter *rate.Limiter
	logger  *log.Logger
	baseURL string
}

// NewSpotifyService creates a Spotify client authenticated with the client-credentials grant.
func NewSpotifyService(opts SpotifyOpts) (*SpotifyService, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}

	creds := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
	}

	tokenCtx := context.Background()
	if opts.HTTPClient != nil {
		tokenCtx = context.WithValue(tokenCtx, oauth2.HTTPClient, opts.HTTPClient)
	}

	s := &SpotifyService{
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:  opts.Logger,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}

	s.client = resty.NewWithClient(creds.Client(tokenCtx)).
		SetBaseURL(s.baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.MaxRetries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(time.Minute).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() == http.StatusTooManyRequests
		}).
		SetRetryAfter(retryAfter).
		OnBeforeRequest(func(c *resty.Client, r *resty.Request) error {
			return s.limiter.Wait(r.Context())
		})

	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// retryAfter honors the Retry-After header Spotify sends with 429 responses.
// Returning zero lets resty fall back to its jittered backoff.
func retryAfter(c *resty.Client, r *resty.Response) (time.Duration, error) {
	header := r.Header().Get("Retry-After")
	if header == "" {
		return 0, nil
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0, nil
	}
	return time.Duration(seconds) * time.Second, nil
}

// get performs an authenticated GET and decodes the JSON body into result.
func (s *SpotifyService) get(ctx context.Context, path string, params map[string]string, pathParams map[string]string, result any) error {
	var apiErr spotifyError

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetPathParams(pathParams).
		SetResult(result).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: token request failed: %v", shared.ErrNotAuthenticated, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	s.logger.Debug("spotify request", "path", path, "status", resp.StatusCode(), "elapsed", resp.Time())

	if resp.IsError() {
		return statusError(resp.StatusCode(), apiErr.Error.Message)
	}
	return nil
}

func statusError(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify API status %d: %s", shared.ErrNotAuthenticated, status, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: spotify API status %d: %s", shared.ErrNotFound, status, message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: spotify API status %d: %s", shared.ErrRateLimited, status, message)
	default:
		return fmt.Errorf("%w: spotify API status %d: %s", shared.ErrAPIRequest, status, message)
	}
}

func pageParams(limit, offset int) map[string]string {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return map[string]string{
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(max(offset, 0)),
	}
}

func checkIDs(kind EntityKind, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no %s IDs provided", shared.ErrInvalidArgument, kind)
	}
	if len(ids) > kind.MaxIDs() {
		return fmt.Errorf("%w: maximum %d %s IDs allowed, got %d", shared.ErrInvalidArgument, kind.MaxIDs(), kind, len(ids))
	}
	return nil
}

// compact drops null entries from a batch response.
func compact[T any](in []*T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// SeveralArtists retrieves multiple artists by their IDs (up to 50).
func (s *SpotifyService) SeveralArtists(ctx context.Context, ids []string) ([]Artist, error) {
	if err := checkIDs(KindArtist, ids); err != nil {
		return nil, err
	}

	var response struct {
		Artists []*Artist `json:"artists"`
	}
	params := map[string]string{"ids": strings.Join(ids, ",")}
	if err := s.get(ctx, "/artists", params, nil, &response); err != nil {
		return nil, err
	}
	return compact(response.Artists), nil
}

// AudioFeatures retrieves audio features for multiple tracks (up to 100).
func (s *SpotifyService) AudioFeatures(ctx context.Context, ids []string) ([]AudioFeatures, error) {
	if err := checkIDs(KindAudioFeatures, ids); err != nil {
		return nil, err
	}

	var response struct {
		AudioFeatures []*AudioFeatures `json:"audio_features"`
	}
	params := map[string]string{"ids": strings.Join(ids, ",")}
	if err := s.get(ctx, "/audio-features", params, nil, &response); err != nil {
		return nil, err
	}
	return compact(response.AudioFeatures), nil
}

// UserPlaylists retrieves one page of a user's public playlists.
func (s *SpotifyService) UserPlaylists(ctx context.Context, user string, limit, offset int) (*Page[SimplePlaylist], error) {
	if user == "" {
		return nil, fmt.Errorf("%w: user is required", shared.ErrMissingArgument)
	}

	var page Page[SimplePlaylist]
	if err := s.get(ctx, "/users/{user}/playlists", pageParams(limit, offset), map[string]string{"user": user}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// PlaylistTracks retrieves one page of playlist items.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*Page[PlaylistItem], error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist ID is required", shared.ErrMissingArgument)
	}

	var page Page[PlaylistItem]
	if err := s.get(ctx, "/playlists/{id}/tracks", pageParams(limit, offset), map[string]string{"id": playlistID}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SearchTracks runs a track search, e.g. `genre:"k-indie"`.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit, offset int) (*Page[Track], error) {
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", shared.ErrMissingArgument)
	}

	params := pageParams(limit, offset)
	params["q"] = query
	params["type"] = "track"

	var response struct {
		Tracks Page[Track] `json:"tracks"`
	}
	if err := s.get(ctx, "/search", params, nil, &response); err != nil {
		return nil, err
	}
	return &response.Tracks, nil
}

// AllUserPlaylists pages through every public playlist of user.
func (s *SpotifyService) AllUserPlaylists(ctx context.Context, user string) ([]SimplePlaylist, error) {
	return batch.Paginate(ctx, playlistPageSize, 0, func(ctx context.Context, limit, offset int) ([]SimplePlaylist, bool, error) {
		page, err := s.UserPlaylists(ctx, user, limit, offset)
		if err != nil {
			return nil, false, err
		}
		return page.Items, page.HasNext(), nil
	})
}

// FindPlaylist returns the first of user's playlists named name.
func (s *SpotifyService) FindPlaylist(ctx context.Context, user, name string) (*SimplePlaylist, error) {
	playlists, err := s.AllUserPlaylists(ctx, user)
	if err != nil {
		return nil, err
	}

	for _, p := range playlists {
		if p.Name == name {
			return &p, nil
		}
	}

	return nil, fmt.Errorf("%w: %q for user %s", shared.ErrPlaylistNotFound, name, user)
}
