// Package services defines the [CatalogAClient] and [CatalogBClient]
// interfaces for the two catalogs the pipeline talks to, and implements them
// for Spotify and YouTube Music respectively.
//
// # Catalog A (ingestion source)
//
// [SpotifyClient] uses OAuth2 for authentication. [SharedSpotifyClient] guards
// construction with a [sync.Once] so every ingestion goroutine in a run
// shares one token exchange.
//
// # Catalog B (acquisition target)
//
// [YouTubeClient] communicates with the FastAPI proxy server (music/)
// wrapping ytmusicapi. The proxy handles YouTube Music authentication
// complexities; the auth_file path is sent via the X-Auth-File header on
// each request. All YouTube operations are synchronous HTTP calls to the
// proxy endpoints. [APIService] exposes the proxy's raw setup/auth endpoints
// for the CLI's browser-auth bootstrap flow.
//
// # Error Handling
//
// Both clients wrap failures in the shared package's typed kinds:
//   - [shared.CatalogAError] : Spotify request/auth failures, IsAuthError
//     distinguishing a failed token exchange from a per-request failure
//   - [shared.CatalogBError] : YouTube Music proxy request failures
//
// # API Mappings
//
// Both clients convert provider-specific JSON responses to [models.Track]
// and [models.PlaylistDTO]:
//   - Spotify: maps [SpotifyTrack] -> [models.Track] with ISRC from external_ids
//   - YouTube: maps [YouTubeTrack] -> [models.Track] with ISRC from search results,
//     Verified from is_official, Views for the Matcher's tiebreak
package services
