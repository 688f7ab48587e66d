// package orchestrator wires the five pipeline phases — ingestion,
// resolution, acquisition, enrichment, finalization — into a single run.
//
// The phase ordering and non-blocking progress channel are grounded on the
// teacher's internal/tasks (PlaylistEngine.Run, sendProgress); checkpoint-free
// sequential batching and the end-of-run summary banner are grounded on
// PlaylistPorter's internal/orchestrator (reportSessionResults,
// reportFinalResults). Acquisition, enrichment, and finalization already own
// their worker pools (Acquirer.Run, lyrics.Resolver.Run, embedder.Embedder.Run);
// this package only owns ingestion and resolution dispatch, which have no
// pool of their own because catalog-A/catalog-B rate limits make sequential
// dispatch the safer default.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/sputnik/internal/acquirer"
	"github.com/desertthunder/sputnik/internal/embedder"
	"github.com/desertthunder/sputnik/internal/lyrics"
	"github.com/desertthunder/sputnik/internal/matcher"
	"github.com/desertthunder/sputnik/internal/models"
	"github.com/desertthunder/sputnik/internal/repositories"
	"github.com/desertthunder/sputnik/internal/services"
	"github.com/desertthunder/sputnik/internal/shared"
)

// Orchestrator bundles the catalog clients, the Registry repositories, and
// the already-built phase components into a single entry point for a run.
type Orchestrator struct {
	catalogA services.CatalogAClient
	catalogB services.CatalogBClient

	playlists *repositories.PlaylistRepository
	tracks    *repositories.TrackRepository
	dedup     *repositories.TrackDedup
	links     *repositories.LinkRepository

	acquirer *acquirer.Acquirer
	lyrics   *lyrics.Resolver
	embedder *embedder.Embedder
}

// New builds an Orchestrator from its wired dependencies. cmd is responsible
// for constructing the concrete catalog clients, repositories, and phase
// components and assembling them here.
func New(
	catalogA services.CatalogAClient,
	catalogB services.CatalogBClient,
	playlists *repositories.PlaylistRepository,
	tracks *repositories.TrackRepository,
	dedup *repositories.TrackDedup,
	links *repositories.LinkRepository,
	acq *acquirer.Acquirer,
	lyr *lyrics.Resolver,
	emb *embedder.Embedder,
) *Orchestrator {
	return &Orchestrator{
		catalogA:  catalogA,
		catalogB:  catalogB,
		playlists: playlists,
		tracks:    tracks,
		dedup:     dedup,
		links:     links,
		acquirer:  acq,
		lyrics:    lyr,
		embedder:  emb,
	}
}

// RunOptions parameterizes a single end-to-end run.
type RunOptions struct {
	PlaylistIDs  []string // catalog-A playlist ids to ingest this run
	IncludeSaved bool     // also ingest the saved-tracks library
	DryRun       bool     // log what every phase would do without mutating state

	Sync         bool // sync mode: remove links for tracks no longer in the source
	SyncAll      bool // sync-all mode: ignore PlaylistIDs, iterate every registry playlist
	NoLiked      bool // sync-all mode: skip the LIKED pseudo-playlist
	ForceRematch bool // reset previously-failed matches before resolving
}

// RunResult summarizes everything a run did, across all five phases, for the
// end-of-run summary banner.
type RunResult struct {
	PlaylistsIngested int
	TracksIngested    int

	Resolved         int
	ResolutionFailed int

	Acquired       int
	AcquireFailed  int

	LyricsFound    int
	LyricsNotFound int

	Embedded       int
	EmbedFailed    int

	Duration time.Duration
}

// Run executes all five phases in order, each gated on the previous one
// having persisted its state: resolution only sees tracks ingestion wrote,
// acquisition only sees tracks resolution marked eligible (I2), and so on.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions, progress chan<- ProgressUpdate) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{}

	if opts.SyncAll {
		existing, err := o.playlists.List(nil)
		if err != nil {
			return result, fmt.Errorf("list registry playlists: %w", err)
		}

		for i, playlist := range existing {
			if playlist.CatalogID() == models.LikedPlaylistCatalogID {
				continue
			}
			sendProgress(progress, ingestionUpdate(i+1, len(existing), fmt.Sprintf("syncing playlist %s", playlist.Name())))
			n, err := o.IngestPlaylist(ctx, playlist.CatalogID(), true)
			if err != nil {
				shared.WarnKV(ctx, "sync-all: skipping playlist after error", "playlist", playlist.CatalogID(), "error", err.Error())
				continue
			}
			result.PlaylistsIngested++
			result.TracksIngested += n
		}

		if !opts.NoLiked {
			n, err := o.IngestSaved(ctx, true)
			if err != nil {
				shared.WarnKV(ctx, "sync-all: skipping saved tracks after error", "error", err.Error())
			} else {
				result.PlaylistsIngested++
				result.TracksIngested += n
			}
		}
	} else {
		for i, playlistID := range opts.PlaylistIDs {
			sendProgress(progress, ingestionUpdate(i+1, len(opts.PlaylistIDs), fmt.Sprintf("ingesting playlist %s", playlistID)))
			n, err := o.IngestPlaylist(ctx, playlistID, opts.Sync)
			if err != nil {
				return result, fmt.Errorf("ingest playlist %s: %w", playlistID, err)
			}
			result.PlaylistsIngested++
			result.TracksIngested += n
		}

		if opts.IncludeSaved {
			sendProgress(progress, ingestionUpdate(len(opts.PlaylistIDs)+1, len(opts.PlaylistIDs)+1, "ingesting saved tracks"))
			n, err := o.IngestSaved(ctx, opts.Sync)
			if err != nil {
				return result, fmt.Errorf("ingest saved tracks: %w", err)
			}
			result.PlaylistsIngested++
			result.TracksIngested += n
		}
	}

	if opts.ForceRematch {
		reset, err := o.tracks.ResetFailedMatches("")
		if err != nil {
			return result, fmt.Errorf("force-rematch: reset failed matches: %w", err)
		}
		shared.InfoKV(ctx, "force-rematch: reset previously-failed matches", "count", reset)
	}

	resolved, failed, err := o.ResolveTracks(ctx, opts.DryRun, progress)
	if err != nil {
		return result, fmt.Errorf("resolution phase: %w", err)
	}
	result.Resolved, result.ResolutionFailed = resolved, failed

	acqStats, err := o.acquirer.Run(ctx, opts.DryRun)
	if err != nil {
		return result, fmt.Errorf("acquisition phase: %w", err)
	}
	result.Acquired, result.AcquireFailed = acqStats.Acquired, acqStats.Failed

	lyricsStats, err := o.lyrics.Run(ctx, opts.DryRun)
	if err != nil {
		return result, fmt.Errorf("enrichment phase: %w", err)
	}
	result.LyricsFound, result.LyricsNotFound = lyricsStats.Found, lyricsStats.NotFound

	embedStats, err := o.embedder.Run(ctx, opts.DryRun)
	if err != nil {
		return result, fmt.Errorf("finalization phase: %w", err)
	}
	result.Embedded, result.EmbedFailed = embedStats.Embedded, embedStats.Failed

	result.Duration = time.Since(start)

	return result, nil
}

// IngestPlaylist fetches a single catalog-A playlist and every item in it,
// deduplicating tracks via TrackDedup and recording playlist membership.
// When sync is true, links for tracks no longer present in the playlist are
// removed after ingestion (spec.md 4.4 step 7).
func (o *Orchestrator) IngestPlaylist(ctx context.Context, playlistID string, sync bool) (int, error) {
	dto, err := o.catalogA.Playlist(ctx, playlistID)
	if err != nil {
		return 0, shared.NewCatalogAError("fetch playlist", err, false)
	}

	playlist, err := o.playlists.UpsertPlaylist(dto)
	if err != nil {
		return 0, err
	}

	items, err := o.catalogA.AllPlaylistItems(ctx, playlistID)
	if err != nil {
		return 0, shared.NewCatalogAError("fetch playlist items", err, false)
	}

	return o.ingestItems(ctx, playlist, items, sync)
}

// IngestSaved fetches the user's saved-tracks library and ingests it as a
// single virtual playlist, so it participates in the same link-view
// machinery FileManager uses for real playlists.
func (o *Orchestrator) IngestSaved(ctx context.Context, sync bool) (int, error) {
	playlist, err := o.playlists.EnsureLikedPlaylist()
	if err != nil {
		return 0, err
	}

	items, err := o.catalogA.AllSavedItems(ctx)
	if err != nil {
		return 0, shared.NewCatalogAError("fetch saved items", err, false)
	}

	return o.ingestItems(ctx, playlist, items, sync)
}

// ingestItems dedupes every item into a CanonicalTrack and upserts its
// playlist-track link at the item's position, so re-running ingestion on a
// playlist that has been reordered converges rather than duplicating links.
// When sync is true, any existing link whose track id is not among this
// run's items is removed (spec.md's SyncPlaylistTracks, Testable Property P4).
func (o *Orchestrator) ingestItems(ctx context.Context, playlist *models.Playlist, items []models.Track, sync bool) (int, error) {
	existingLinks, err := o.links.ListByPlaylist(playlist.ID())
	if err != nil {
		return 0, fmt.Errorf("list existing links: %w", err)
	}
	linkByTrackID := make(map[string]*models.PlaylistTrackLink, len(existingLinks))
	for _, link := range existingLinks {
		linkByTrackID[link.TrackID()] = link
	}

	ingested := 0
	currentTrackIDs := make([]string, 0, len(items))
	for position, item := range items {
		track, err := o.dedup.GetOrCreate(playlist.CatalogID(), item)
		if err != nil {
			return ingested, fmt.Errorf("dedup track %q: %w", item.Title, err)
		}
		currentTrackIDs = append(currentTrackIDs, track.ID())

		if existing, ok := linkByTrackID[track.ID()]; ok {
			if existing.Position() != position {
				existing.SetPosition(position)
				if err := o.links.Update(existing); err != nil {
					return ingested, fmt.Errorf("update link position: %w", err)
				}
			}
		} else {
			link := models.NewPlaylistTrackLink(0, playlist.ID(), track.ID(), position)
			if err := o.links.Create(link); err != nil {
				return ingested, fmt.Errorf("create playlist link: %w", err)
			}
		}

		ingested++
	}

	if sync {
		removed, err := o.links.SyncPlaylistTracks(playlist.ID(), currentTrackIDs)
		if err != nil {
			return ingested, fmt.Errorf("sync playlist tracks: %w", err)
		}
		if removed > 0 {
			shared.InfoKV(ctx, "sync: removed departed links", "playlist", playlist.Name(), "count", removed)
		}
	}

	return ingested, nil
}

// ResolveTracks runs phase 2 sequentially: every track awaiting resolution
// is searched on catalog B (by ISRC first, falling back to title/artist),
// scored by matcher.Resolve, and persisted either as a resolved catalog-B
// URL or the MATCH_FAILED sentinel (invariant I2's exclusion of unmatched
// tracks from acquisition).
func (o *Orchestrator) ResolveTracks(ctx context.Context, dryRun bool, progress chan<- ProgressUpdate) (resolved, failed int, err error) {
	pending, err := o.tracks.ListPendingResolution()
	if err != nil {
		return 0, 0, fmt.Errorf("list pending resolution: %w", err)
	}

	if dryRun {
		for _, t := range pending {
			shared.Infof(ctx, "[DRY-RUN] would resolve %q by %q", t.Title(), t.Artist())
		}
		return 0, 0, nil
	}

	for i, track := range pending {
		select {
		case <-ctx.Done():
			return resolved, failed, ctx.Err()
		default:
		}

		trackCtx := shared.WithTrackID(ctx, track.ID())
		sendProgress(progress, resolutionUpdate(i+1, len(pending), fmt.Sprintf("resolving %q", track.Title())))

		candidates, searchErr := o.searchCandidates(trackCtx, track)
		if searchErr != nil {
			shared.WarnKV(trackCtx, "catalog B search failed, leaving track unresolved", "error", searchErr.Error())
			continue
		}

		result := matcher.Resolve(track.ToTrack(), candidates)
		if result.Best != nil {
			track.SetResolution(result.Best.Track.URL, result.Best.Score, result.Ambiguous)
			resolved++

			if result.Ambiguous && result.RunnerUp != nil {
				shared.LogMatchCloseAlternative(trackCtx, "ambiguous match, close alternative found",
					"title", track.Title(), "artist", track.Artist(),
					"selected_url", result.Best.Track.URL, "selected_score", result.Best.Score,
					"alternative_url", result.RunnerUp.Track.URL, "alternative_score", result.RunnerUp.Score)
			}
		} else {
			track.SetResolution(models.MatchFailedSentinel, 0, false)
			failed++
		}

		if err := o.tracks.Update(track); err != nil {
			return resolved, failed, fmt.Errorf("persist resolution: %w", err)
		}
	}

	return resolved, failed, nil
}

// searchCandidates tries an ISRC lookup first, since it bypasses fuzzy
// matching entirely, falling back to a title/artist search when the track
// has no ISRC or the catalog returns nothing for it.
func (o *Orchestrator) searchCandidates(ctx context.Context, track *models.CanonicalTrack) ([]models.Track, error) {
	if track.ISRC() != "" {
		candidates, err := o.catalogB.SearchByISRC(ctx, track.ISRC())
		if err == nil && len(candidates) > 0 {
			return candidates, nil
		}
	}

	return o.catalogB.Search(ctx, track.Title(), track.Artist())
}

// PrintSummary prints the end-of-run banner, grounded on PlaylistPorter's
// reportFinalResults: one block per phase, with a total wall-clock duration.
func PrintSummary(result *RunResult) {
	fmt.Printf("\nPIPELINE SUMMARY\n")
	fmt.Printf("================\n")
	fmt.Printf("Ingestion:    %d playlists, %d tracks\n", result.PlaylistsIngested, result.TracksIngested)
	fmt.Printf("Resolution:   %d resolved, %d unmatched\n", result.Resolved, result.ResolutionFailed)
	fmt.Printf("Acquisition:  %d acquired, %d failed\n", result.Acquired, result.AcquireFailed)
	fmt.Printf("Enrichment:   %d with lyrics, %d without\n", result.LyricsFound, result.LyricsNotFound)
	fmt.Printf("Finalization: %d embedded, %d failed\n", result.Embedded, result.EmbedFailed)
	fmt.Printf("Duration:     %s\n", result.Duration.Round(time.Millisecond))
}
