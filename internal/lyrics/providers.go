package lyrics

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/desertthunder/sputnik/internal/shared"
)

// Provider names, matching the fixed order config.yaml's lyrics.providers
// list is expected to carry: synced lyrics first, then plain-text fallbacks.
const (
	ProviderSynced = "synced"
	ProviderPlainA = "plain-a"
	ProviderPlainB = "plain-b"
)

// syncedResponse models a synced-lyrics API's JSON shape: a plain field plus
// a separately carried LRC-style timestamped field.
type syncedResponse struct {
	PlainLyrics  string `json:"plainLyrics"`
	SyncedLyrics string `json:"syncedLyrics"`
}

// plainResponse models a single "lyrics" field plain-text API shape, the
// shape both fallback providers share.
type plainResponse struct {
	Lyrics string `json:"lyrics"`
}

// BuildProviderChain constructs the providers named in order, skipping any
// name it doesn't recognize rather than failing the whole chain — an
// operator typo in lyrics.providers degrades to fewer providers, not a
// config error.
func BuildProviderChain(names []string) []Provider {
	chain := make([]Provider, 0, len(names))
	for _, name := range names {
		switch name {
		case ProviderSynced:
			chain = append(chain, NewSyncedProvider("https://lrclib.net/api"))
		case ProviderPlainA:
			chain = append(chain, NewPlainProviderA("https://api.lyrics.ovh/v1"))
		case ProviderPlainB:
			chain = append(chain, NewPlainProviderB("https://some-lyrics.example.com/api"))
		}
	}
	return chain
}

// NewSyncedProvider builds the synced-lyrics provider. Prefers the LRC
// timestamped field; falls back to the plain field so a hit still counts
// even when the source track has no synced variant.
func NewSyncedProvider(baseURL string) *HTTPProvider {
	return NewHTTPProvider(ProviderSynced, true, baseURL,
		func(base, title, artist string) string {
			return fmt.Sprintf("%s/get?track_name=%s&artist_name=%s", base, url.QueryEscape(title), url.QueryEscape(artist))
		},
		func(body []byte) (string, error) {
			var resp syncedResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", err
			}
			if resp.SyncedLyrics != "" {
				return resp.SyncedLyrics, nil
			}
			return resp.PlainLyrics, nil
		},
	)
}

// NewPlainProviderA builds the first plain-text fallback provider.
func NewPlainProviderA(baseURL string) *HTTPProvider {
	return newPlainProvider(ProviderPlainA, baseURL)
}

// NewPlainProviderB builds the second plain-text fallback provider.
func NewPlainProviderB(baseURL string) *HTTPProvider {
	return newPlainProvider(ProviderPlainB, baseURL)
}

func newPlainProvider(name, baseURL string) *HTTPProvider {
	return NewHTTPProvider(name, false, baseURL,
		func(base, title, artist string) string {
			return fmt.Sprintf("%s/%s/%s", base, url.PathEscape(artist), url.PathEscape(title))
		},
		func(body []byte) (string, error) {
			var resp plainResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", shared.NewLyricsError("", err)
			}
			return resp.Lyrics, nil
		},
	)
}
