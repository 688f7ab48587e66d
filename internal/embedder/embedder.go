// package embedder implements phase 5 of the pipeline: read-modify-write of
// container-level tags and lyrics into the canonical audio file (the default
// MP4Tagger writes no cover art), grounded
// on zvuk-grabber's tag_processor.go (TagProcessor interface, per-quality
// tag-key mapping tables, image-then-tags-then-save ordering) generalized
// from FLAC/MP3 to the MP4/M4A container Acquirer produces.
package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/desertthunder/sputnik/internal/models"
	"github.com/desertthunder/sputnik/internal/shared"
)

const defaultWorkers = 4

// WriteTagsRequest mirrors zvuk-grabber's WriteTagsRequest: the file to
// modify, an optional cover image already on disk, the flat tag map, and the
// lyrics payload to embed verbatim (no synced/plain split at this layer —
// timestamped text is just text, per the container-level tag contract).
type WriteTagsRequest struct {
	TrackPath string
	CoverPath string
	Tags      map[string]string
	Lyrics    string
}

// Tagger writes container-level tags into an audio file in place.
type Tagger interface {
	WriteTags(ctx context.Context, req WriteTagsRequest) error
}

// CoverFetcher retrieves cover art for a track into a local file, returning
// its path and a cleanup func. A failure here is non-fatal to embedding: the
// track is still tagged without a cover.
type CoverFetcher interface {
	Fetch(ctx context.Context, track *models.CanonicalTrack) (path string, cleanup func(), err error)
}

// NoCoverFetcher never supplies cover art. It is the default when no catalog
// image URL is available to fetch from.
type NoCoverFetcher struct{}

func (NoCoverFetcher) Fetch(ctx context.Context, track *models.CanonicalTrack) (string, func(), error) {
	return "", func() {}, nil
}

// TrackStore is the slice of the Registry the Embedder needs.
type TrackStore interface {
	ListEligibleForFinalization() ([]*models.CanonicalTrack, error)
	Update(track *models.CanonicalTrack) error
}

// Embedder runs finalization (phase 5): tagging every track eligible per I4.
type Embedder struct {
	tagger  Tagger
	cover   CoverFetcher
	tracks  TrackStore
	workers int
}

// New builds an Embedder. cover may be nil, defaulting to [NoCoverFetcher].
// workers <= 0 defaults to 4.
func New(tagger Tagger, cover CoverFetcher, tracks TrackStore, workers int) *Embedder {
	if cover == nil {
		cover = NoCoverFetcher{}
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Embedder{tagger: tagger, cover: cover, tracks: tracks, workers: workers}
}

// Stats summarizes one Run invocation.
type Stats struct {
	Embedded int
	Failed   int
}

// Run processes every track the Registry reports eligible for finalization
// (invariant I4) through a bounded worker pool, the same semaphore-channel
// shape Acquirer and the lyrics Resolver use.
func (e *Embedder) Run(ctx context.Context, dryRun bool) (Stats, error) {
	eligible, err := e.tracks.ListEligibleForFinalization()
	if err != nil {
		return Stats{}, fmt.Errorf("list eligible tracks: %w", err)
	}

	if dryRun {
		for _, t := range eligible {
			shared.Infof(ctx, "[DRY-RUN] would embed tags for %q by %q", t.Title(), t.Artist())
		}
		return Stats{}, nil
	}

	var (
		stats     Stats
		statsMu   sync.Mutex
		semaphore = make(chan struct{}, e.workers)
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

			trackCtx := shared.WithTrackID(ctx, t.ID())
			statsMu.Lock()
			defer statsMu.Unlock()
			if err := e.EmbedTrack(trackCtx, t); err != nil {
				shared.ErrorKV(trackCtx, "failed to embed track", "error", err.Error())
				stats.Failed++
				return
			}
			stats.Embedded++
		}(track)
	}

	wg.Wait()

	return stats, nil
}

// EmbedTrack implements the per-track finalization algorithm: open check,
// build the tag map from catalog-A metadata, best-effort cover fetch, write
// lyrics if present, save, and record MarkMetadataEmbedded and, if lyrics
// were written, MarkLyricsEmbedded.
func (e *Embedder) EmbedTrack(ctx context.Context, track *models.CanonicalTrack) error {
	if _, err := os.Stat(track.CanonicalPath()); err != nil {
		return shared.NewEmbeddingError(track.ID(), fmt.Errorf("open canonical file: %w", err))
	}

	coverPath, cleanup, err := e.cover.Fetch(ctx, track)
	if err != nil {
		shared.WarnKV(ctx, "cover art fetch failed, embedding without cover", "error", err.Error())
		coverPath = ""
	}
	defer cleanup()

	req := WriteTagsRequest{
		TrackPath: track.CanonicalPath(),
		CoverPath: coverPath,
		Tags:      buildTagMap(track),
	}

	lyricsWritten := track.LyricsFound() && track.LyricsText() != ""
	if lyricsWritten {
		req.Lyrics = track.LyricsText()
	}

	if err := e.tagger.WriteTags(ctx, req); err != nil {
		return shared.NewEmbeddingError(track.ID(), err)
	}

	now := time.Now()
	track.MarkMetadataEmbedded(now)
	if lyricsWritten {
		track.MarkLyricsEmbedded(now)
	}
	if err := e.tracks.Update(track); err != nil {
		return fmt.Errorf("persist embedded state: %w", err)
	}

	return nil
}

// buildTagMap flattens the available catalog-A metadata into the flat
// string-keyed map Tagger implementations consume, the same shape
// addFLACTags/addMP3Tags build from req.TrackTags.
func buildTagMap(track *models.CanonicalTrack) map[string]string {
	tags := map[string]string{
		"title":     track.Title(),
		"artist":    track.Artist(),
		"album":     track.Album(),
		"isrc":      track.ISRC(),
		"catalogID": track.CatalogID(),
	}
	if track.Duration() > 0 {
		tags["duration"] = strconv.Itoa(track.Duration())
	}
	return tags
}
