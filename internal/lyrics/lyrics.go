// package lyrics implements phase 4 of the pipeline: an ordered provider
// chain tried until one returns non-empty text, in the shape of the
// services package's doRequest/JSON-decode pattern (SpotifyClient,
// YouTubeClient) generalized to arbitrary lyrics HTTP APIs.
package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/sputnik/internal/models"
	"github.com/desertthunder/sputnik/internal/shared"
)

const defaultWorkers = 4

// Result is what a Provider returns on a hit: timestamped text when synced
// is true, plain text otherwise.
type Result struct {
	Text   string
	Synced bool
	Source string
}

// Provider fetches lyrics for one track. An error or an empty Text both
// mean "try the next provider in the chain" — the Resolver does not
// distinguish a network failure from a confirmed no-lyrics response.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, title, artist string) (Result, error)
}

// HTTPProvider is a small *http.Client-based Provider, the shape every
// corpus catalog client follows: build a request, decode JSON, map fields.
type HTTPProvider struct {
	name     string
	synced   bool
	baseURL  string
	client   *http.Client
	buildURL func(baseURL, title, artist string) string
	extract  func(body []byte) (text string, err error)
}

// NewHTTPProvider builds an HTTPProvider. buildURL constructs the request
// URL from title/artist; extract pulls the lyrics text out of the decoded
// response body.
func NewHTTPProvider(name string, synced bool, baseURL string, buildURL func(baseURL, title, artist string) string, extract func([]byte) (string, error)) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		synced:   synced,
		baseURL:  baseURL,
		client:   http.DefaultClient,
		buildURL: buildURL,
		extract:  extract,
	}
}

func (p *HTTPProvider) Name() string { return p.name }

// Fetch issues the GET request and extracts the lyrics text. A non-2xx
// response or an extraction failure both surface as an error for the
// Resolver to log and move past.
func (p *HTTPProvider) Fetch(ctx context.Context, title, artist string) (Result, error) {
	url := p.buildURL(p.baseURL, title, artist)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, shared.NewLyricsError("", fmt.Errorf("%s: %w", p.name, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, shared.NewLyricsError("", fmt.Errorf("%s: status %d", p.name, resp.StatusCode))
	}

	decoder := json.NewDecoder(resp.Body)
	var raw json.RawMessage
	if err := decoder.Decode(&raw); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	text, err := p.extract(raw)
	if err != nil {
		return Result{}, fmt.Errorf("extract lyrics: %w", err)
	}
	if text == "" {
		return Result{}, fmt.Errorf("%s: empty lyrics", p.name)
	}

	return Result{Text: text, Synced: p.synced, Source: p.name}, nil
}

// TrackStore is the slice of the Registry the Resolver needs.
type TrackStore interface {
	ListEligibleForEnrichment() ([]*models.CanonicalTrack, error)
	Update(track *models.CanonicalTrack) error
}

// Resolver runs the provider chain against every eligible track, calling
// SetLyrics(found=true, ...) on the first hit or SetLyrics(found=false, ...)
// once every provider has been exhausted, so the track is never retried
// within the same run.
type Resolver struct {
	providers []Provider
	tracks    TrackStore
	workers   int
}

// New builds a Resolver trying providers in order. workers <= 0 defaults to 4.
func New(providers []Provider, tracks TrackStore, workers int) *Resolver {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Resolver{providers: providers, tracks: tracks, workers: workers}
}

// Stats summarizes one Run invocation.
type Stats struct {
	Found    int
	NotFound int
}

// Run processes every track the Registry reports eligible for enrichment
// (invariant I3), each worker handling one track end-to-end through the
// full provider chain.
func (r *Resolver) Run(ctx context.Context, dryRun bool) (Stats, error) {
	eligible, err := r.tracks.ListEligibleForEnrichment()
	if err != nil {
		return Stats{}, fmt.Errorf("list eligible tracks: %w", err)
	}

	if dryRun {
		for _, t := range eligible {
			shared.Infof(ctx, "[DRY-RUN] would resolve lyrics for %q by %q", t.Title(), t.Artist())
		}
		return Stats{}, nil
	}

	var (
		stats     Stats
		statsMu   sync.Mutex
		semaphore = make(chan struct{}, r.workers)
		wg        sync.WaitGroup
	)

	for _, track := range eligible {
		select {
		case <-ctx.Done():
			wg.Wait()
			return stats, ctx.Err()
		default:
		}

		wg.Add(1)
		go func(t *models.CanonicalTrack) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			found := r.ResolveTrack(shared.WithTrackID(ctx, t.ID()), t)

			statsMu.Lock()
			if found {
				stats.Found++
			} else {
				stats.NotFound++
			}
			statsMu.Unlock()
		}(track)
	}

	wg.Wait()

	return stats, nil
}

// ResolveTrack tries every provider in order until one returns non-empty
// text. Each failure is caught and logged; control passes to the next
// provider. SetLyrics is always called, even on total failure, so
// EligibleForEnrichment never selects this track again.
func (r *Resolver) ResolveTrack(ctx context.Context, track *models.CanonicalTrack) bool {
	for _, provider := range r.providers {
		result, err := provider.Fetch(ctx, track.Title(), track.Artist())
		if err != nil {
			shared.WarnKV(ctx, "lyrics provider failed", "provider", provider.Name(), "error", err.Error())
			continue
		}

		track.SetLyrics(true, result.Text, result.Synced, result.Source)
		if err := r.tracks.Update(track); err != nil {
			shared.ErrorKV(ctx, "failed to persist lyrics", "error", err.Error())
		}

		return true
	}

	track.SetLyrics(false, "", false, "")
	shared.LogLyricsFailure(ctx, "every lyrics provider exhausted", "title", track.Title(), "artist", track.Artist())
	if err := r.tracks.Update(track); err != nil {
		shared.ErrorKV(ctx, "failed to persist lyrics-not-found state", "error", err.Error())
	}

	return false
}
