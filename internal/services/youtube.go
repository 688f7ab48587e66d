// YouTube Music API [CatalogBClient] implementation
//
// Communicates with the FastAPI proxy server (music/) running on port 8080.
// The proxy wraps the ytmusicapi Python library for YouTube Music operations.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/sputnik/internal/models"
	"github.com/desertthunder/sputnik/internal/shared"
)

const defaultYTBaseURL string = "http://localhost:8080"

// YouTubeImage represents an image/thumbnail from YouTube Music.
type YouTubeImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type youtubeAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a track/video in YouTube Music responses.
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Album       *youtubeAlbum   `json:"album"`
	Duration    string          `json:"duration"`
	DurationSec int             `json:"duration_seconds"`
	Thumbnails  []YouTubeImage  `json:"thumbnails"`
	ISRC        string          `json:"isrc,omitempty"`
	IsOfficial  bool            `json:"is_official,omitempty"`
	Views       int64           `json:"views,omitempty"`
}

// YouTubeClient implements [CatalogBClient] for YouTube Music via proxy.
type YouTubeClient struct {
	baseURL    string
	authFile   string
	httpClient *http.Client
}

// NewYouTubeClient creates a new YouTube Music catalog client instance.
func NewYouTubeClient(baseURL string) *YouTubeClient {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}

	return &YouTubeClient{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

// Name returns the catalog's display name.
func (y *YouTubeClient) Name() string { return "YouTube Music" }

// Authenticate stores the authentication file path for subsequent requests.
//
// Expects credentials["auth_file"] to contain the path to browser.json or oauth.json.
func (y *YouTubeClient) Authenticate(ctx context.Context, credentials map[string]string) error {
	authFile, ok := credentials["auth_file"]
	if !ok || authFile == "" {
		return shared.NewCatalogBError("authenticate", shared.ErrMissingCredentials)
	}

	y.authFile = authFile
	return nil
}

func (y *YouTubeClient) doRequest(ctx context.Context, endpoint string, result any) error {
	apiURL := y.baseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return shared.NewCatalogBError("request", fmt.Errorf("build request: %w", err))
	}

	if y.authFile != "" {
		req.Header.Set("X-Auth-File", y.authFile)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return shared.NewCatalogBError("request", fmt.Errorf("%s: %w", endpoint, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return shared.NewCatalogBError("request", fmt.Errorf("status %d: %s", resp.StatusCode, errResp.Detail))
		}
		return shared.NewCatalogBError("request", fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return shared.NewCatalogBError("decode", err)
		}
	}

	return nil
}

func youtubeTrackToModel(yt YouTubeTrack) models.Track {
	track := models.Track{
		ID:       yt.VideoID,
		Title:    yt.Title,
		Duration: yt.DurationSec,
		ISRC:     yt.ISRC,
		URL:      "https://music.youtube.com/watch?v=" + yt.VideoID,
		Verified: yt.IsOfficial,
		Views:    yt.Views,
	}

	if len(yt.Artists) > 0 {
		track.Artist = yt.Artists[0].Name
	}
	if yt.Album != nil {
		track.Album = yt.Album.Name
	}

	return track
}

// Search returns every plausible candidate for a title/artist query, in the
// proxy's own relevance order, leaving ranking to the Matcher.
//
// Calls GET /api/search?q={title} {artist}&filter=songs on the proxy.
func (y *YouTubeClient) Search(ctx context.Context, title, artist string) ([]models.Track, error) {
	query := title
	if artist != "" {
		query = title + " " + artist
	}
	endpoint := fmt.Sprintf("/api/search?q=%s&filter=songs", url.QueryEscape(query))

	var results []YouTubeTrack
	if err := y.doRequest(ctx, endpoint, &results); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, len(results))
	for i, yt := range results {
		tracks[i] = youtubeTrackToModel(yt)
	}

	return tracks, nil
}

// SearchByISRC returns candidates matching an ISRC directly, bypassing
// fuzzy title/artist matching entirely.
//
// Calls GET /api/search?isrc={isrc} on the proxy.
func (y *YouTubeClient) SearchByISRC(ctx context.Context, isrc string) ([]models.Track, error) {
	if isrc == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("/api/search?isrc=%s", url.QueryEscape(isrc))

	var results []YouTubeTrack
	if err := y.doRequest(ctx, endpoint, &results); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, len(results))
	for i, yt := range results {
		tracks[i] = youtubeTrackToModel(yt)
	}

	return tracks, nil
}
