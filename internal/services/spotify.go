// Spotify API implementation of [CatalogAClient]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/sputnik/internal/models"
	"github.com/desertthunder/sputnik/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	Explicit    bool            `json:"explicit"`
	ExternalIDs externalIDs     `json:"external_ids"`
	Popularity  int             `json:"popularity"`
	URI         string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Genres []string       `json:"genres"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

// Owner identifies a playlist's owning user.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTrackPage struct {
	Total int                    `json:"total"`
	Items []SpotifyPlaylistTrack `json:"items"`
	Next  *string                `json:"next"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Owner       Owner             `json:"owner"`
	Public      bool              `json:"public"`
	SnapshotID  string            `json:"snapshot_id"`
	Tracks      playlistTrackPage `json:"tracks"`
	Images      []SpotifyImage    `json:"images"`
	URI         string            `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks.
type SpotifyPaginatedTracks struct {
	Items    []SpotifySavedTrack `json:"items"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items    []SpotifySimplePlaylist `json:"items"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
	Next     *string                 `json:"next"`
	Previous *string                 `json:"previous"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Owner       Owner               `json:"owner"`
	Public      bool                `json:"public"`
	SnapshotID  string              `json:"snapshot_id"`
	Tracks      simplePlaylistTrack `json:"tracks"`
	Images      []SpotifyImage      `json:"images"`
	URI         string              `json:"uri"`
}

// SpotifyClient implements [CatalogAClient] for Spotify API interactions.
// Uses [oauth2] for authentication and provides methods for playlist and
// track operations.
type SpotifyClient struct {
	config      *oauth2.Config
	token       *oauth2.Token
	httpClient  *http.Client
	credentials map[string]string
	authOnce    sync.Once
	authErr     error
	baseURL     string // defaults to spotifyBaseURL; overridable in tests
}

var (
	spotifySingleton     *SpotifyClient
	spotifySingletonOnce sync.Once
)

// NewSpotifyClient creates a new Spotify catalog client with the given OAuth2
// credentials.
func NewSpotifyClient(credentials map[string]string) (*SpotifyClient, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("missing client_id in credentials")
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("missing client_secret in credentials")
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"playlist-read-private",
			"playlist-read-collaborative",
			"user-library-read",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyClient{
		config:      config,
		httpClient:  http.DefaultClient,
		credentials: credentials,
		baseURL:     spotifyBaseURL,
	}, nil
}

// SharedSpotifyClient returns the process-wide [SpotifyClient], constructing
// it from credentials on first call and ignoring credentials on subsequent
// calls. Ingestion callers across goroutines share one OAuth token exchange
// instead of racing to authenticate independently.
func SharedSpotifyClient(credentials map[string]string) (*SpotifyClient, error) {
	var err error
	spotifySingletonOnce.Do(func() {
		spotifySingleton, err = NewSpotifyClient(credentials)
	})
	if err != nil {
		return nil, err
	}
	return spotifySingleton, nil
}

// Authenticate performs OAuth2 authentication with Spotify, idempotently:
// once a token exchange succeeds, later calls are no-ops. Expects either an
// "access_token" or "auth_code" in credentials.
func (s *SpotifyClient) Authenticate(ctx context.Context, credentials map[string]string) error {
	s.authOnce.Do(func() {
		s.authErr = s.exchange(ctx, credentials)
	})
	return s.authErr
}

func (s *SpotifyClient) exchange(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.token = &oauth2.Token{AccessToken: accessToken}
		s.httpClient = s.config.Client(ctx, s.token)
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return shared.NewCatalogAError("exchange", err, true)
		}
		s.token = token
		s.httpClient = s.config.Client(ctx, s.token)
		return nil
	}

	return shared.NewCatalogAError("authenticate", shared.ErrMissingCredentials, true)
}

// Name returns the catalog's display name.
func (s *SpotifyClient) Name() string { return "Spotify" }

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyClient) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Config returns the underlying OAuth2 config, so a caller driving the
// browser handshake (the auth command's callback server) can hand it to
// an [server.OAuthHandler] without this package importing the server package.
func (s *SpotifyClient) Config() *oauth2.Config {
	return s.config
}

// doRequest performs an authenticated HTTP GET against the Spotify API.
func (s *SpotifyClient) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.token == nil {
		return shared.NewCatalogAError("request", shared.ErrNotAuthenticated, false)
	}

	apiURL := s.baseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return shared.NewCatalogAError("request", fmt.Errorf("build request: %w", err), false)
	}

	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return shared.NewCatalogAError("request", fmt.Errorf("%s: %w", endpoint, err), false)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return shared.NewCatalogAError("request", fmt.Errorf("%w: status %d", shared.ErrTokenExpired, resp.StatusCode), true)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return shared.NewCatalogAError("request", fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode), false)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return shared.NewCatalogAError("decode", err, false)
		}
	}

	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyClient) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RawTrack retrieves a single track by ID in its native Spotify shape.
func (s *SpotifyClient) RawTrack(ctx context.Context, trackID string) (*SpotifyTrack, error) {
	var track SpotifyTrack
	endpoint := fmt.Sprintf("/tracks/%s", trackID)
	if err := s.doRequest(ctx, endpoint, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// SavedTracksPage retrieves one page of the user's saved tracks.
func (s *SpotifyClient) SavedTracksPage(ctx context.Context, limit, offset int) (*SpotifyPaginatedTracks, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// UserPlaylistsPage retrieves one page of the current user's playlists.
func (s *SpotifyClient) UserPlaylistsPage(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// RawPlaylist retrieves a playlist's first page of tracks by ID.
func (s *SpotifyClient) RawPlaylist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	endpoint := fmt.Sprintf("/playlists/%s", playlistID)

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, endpoint, &playlist); err != nil {
		return nil, err
	}

	return &playlist, nil
}

// playlistTracksPage fetches one page of a playlist's tracks directly via
// the paging cursor Spotify returns, used once RawPlaylist's first page's
// Next is non-nil.
func (s *SpotifyClient) playlistTracksPage(ctx context.Context, playlistID string, offset int) (*playlistTrackPage, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=100&offset=%d", playlistID, offset)

	var page playlistTrackPage
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}

	return &page, nil
}

func spotifyTrackToModel(st SpotifyTrack) models.Track {
	track := models.Track{
		ID:       st.ID,
		Title:    st.Name,
		Duration: st.DurationMS / 1000,
		ISRC:     st.ExternalIDs.ISRC,
	}

	if len(st.Artists) > 0 {
		track.Artist = st.Artists[0].Name
	}
	if st.Album.Name != "" {
		track.Album = st.Album.Name
	}

	return track
}

// CatalogAClient interface implementation

// Playlist retrieves a single playlist's metadata by catalog ID.
func (s *SpotifyClient) Playlist(ctx context.Context, playlistID string) (models.PlaylistDTO, error) {
	sp, err := s.RawPlaylist(ctx, playlistID)
	if err != nil {
		return models.PlaylistDTO{}, err
	}

	return models.PlaylistDTO{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		TrackCount:  sp.Tracks.Total,
		SnapshotID:  sp.SnapshotID,
	}, nil
}

// AllPlaylistItems retrieves every track in a playlist, following Spotify's
// cursor-based pagination until Next is nil.
func (s *SpotifyClient) AllPlaylistItems(ctx context.Context, playlistID string) ([]models.Track, error) {
	sp, err := s.RawPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, sp.Tracks.Total)
	for _, item := range sp.Tracks.Items {
		tracks = append(tracks, spotifyTrackToModel(item.Track))
	}

	offset := len(sp.Tracks.Items)
	next := sp.Tracks.Next
	for next != nil {
		page, err := s.playlistTracksPage(ctx, playlistID, offset)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			tracks = append(tracks, spotifyTrackToModel(item.Track))
		}
		offset += len(page.Items)
		next = page.Next
	}

	return tracks, nil
}

// AllSavedItems retrieves every track in the user's saved-tracks library,
// following pagination until Next is nil.
func (s *SpotifyClient) AllSavedItems(ctx context.Context) ([]models.Track, error) {
	var tracks []models.Track
	limit := 50
	offset := 0

	for {
		page, err := s.SavedTracksPage(ctx, limit, offset)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			tracks = append(tracks, spotifyTrackToModel(item.Track))
		}

		if page.Next == nil {
			break
		}
		offset += limit
	}

	return tracks, nil
}

// Track retrieves a single track's metadata by catalog ID.
func (s *SpotifyClient) Track(ctx context.Context, trackID string) (models.Track, error) {
	st, err := s.RawTrack(ctx, trackID)
	if err != nil {
		return models.Track{}, err
	}
	return spotifyTrackToModel(*st), nil
}

// Artist retrieves an artist's display name by catalog ID.
func (s *SpotifyClient) Artist(ctx context.Context, artistID string) (string, error) {
	var artist SpotifyArtist
	endpoint := fmt.Sprintf("/artists/%s", artistID)
	if err := s.doRequest(ctx, endpoint, &artist); err != nil {
		return "", err
	}
	return artist.Name, nil
}

// Album retrieves an album's display name by catalog ID.
func (s *SpotifyClient) Album(ctx context.Context, albumID string) (string, error) {
	var album SpotifyAlbum
	endpoint := fmt.Sprintf("/albums/%s", albumID)
	if err := s.doRequest(ctx, endpoint, &album); err != nil {
		return "", err
	}
	return album.Name, nil
}
