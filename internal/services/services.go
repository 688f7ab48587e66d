// package services defines the catalog client interfaces for interacting
// with the upstream catalogs (the Spotify-like source and YouTube-Music-like
// destination, via proxy) and their concrete HTTP implementations.
package services

import (
	"context"

	"github.com/desertthunder/sputnik/internal/models"
)

// CatalogAClient is the read-only ingestion source catalog (Spotify-like).
// [SharedSpotifyClient] returns one process-wide client built under a
// [sync.Once], and [SpotifyClient.Authenticate] performs its token exchange at
// most once, so callers sharing that client share a single token exchange.
type CatalogAClient interface {
	// Authenticate performs the OAuth flow or token exchange with the catalog.
	Authenticate(ctx context.Context, credentials map[string]string) error
	// Playlist retrieves a single playlist's metadata by catalog ID.
	Playlist(ctx context.Context, playlistID string) (models.PlaylistDTO, error)
	// AllPlaylistItems retrieves every track in a playlist, following pagination.
	AllPlaylistItems(ctx context.Context, playlistID string) ([]models.Track, error)
	// AllSavedItems retrieves every track in the user's saved-tracks library,
	// following pagination, for ingestion runs that include the library as a
	// virtual playlist.
	AllSavedItems(ctx context.Context) ([]models.Track, error)
	// Track retrieves a single track's metadata by catalog ID.
	Track(ctx context.Context, trackID string) (models.Track, error)
	// Artist retrieves an artist's display name by catalog ID.
	Artist(ctx context.Context, artistID string) (string, error)
	// Album retrieves album metadata by catalog ID.
	Album(ctx context.Context, albumID string) (string, error)
	// Name returns the catalog's display name (e.g. "Spotify").
	Name() string
}

// CatalogBClient is the acquisition-target catalog (YouTube-Music-like),
// searched during the resolution phase for the candidates the Matcher scores
// against each CanonicalTrack.
type CatalogBClient interface {
	// Authenticate attaches credentials (e.g. a browser/oauth auth file) used
	// by subsequent requests.
	Authenticate(ctx context.Context, credentials map[string]string) error
	// Search returns every plausible candidate for a title/artist query, in
	// the catalog's own relevance order. The Matcher scores and ranks these;
	// Search never itself picks a "best" result.
	Search(ctx context.Context, title, artist string) ([]models.Track, error)
	// SearchByISRC returns candidates matching an ISRC directly, when the
	// catalog supports it, bypassing fuzzy title/artist matching entirely.
	SearchByISRC(ctx context.Context, isrc string) ([]models.Track, error)
	// Name returns the catalog's display name (e.g. "YouTube Music").
	Name() string
}
