// package acquirer implements phase 3 of the pipeline: per-track audio
// fetch, container conversion, and placement into the FileManager's
// canonical store.
//
// Grounded on oshokin-zvuk-grabber/internal/service/zvuk/track.go's
// semaphore-channel worker pool (downloadTracksConcurrently) and
// download_context.go's per-track value object (TrackDownloadContext),
// generalized here to a catalog-B URL instead of a Zvuk stream URL, and to
// an external yt-dlp subprocess (os/exec, grounded on the Zvuk repo's
// own ffmpeg-wrapping peers in the corpus) instead of a direct HTTP stream.
// file.go's explicit os.O_CREATE|os.O_EXCL vs os.O_TRUNC file-option
// selection reappears here as the temp-file-then-rename pattern in
// moveToCanonicalPath.
package acquirer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/sputnik/internal/filemanager"
	"github.com/desertthunder/sputnik/internal/models"
	"github.com/desertthunder/sputnik/internal/repositories"
	"github.com/desertthunder/sputnik/internal/shared"
)

const (
	extractorRetries         = 3
	extractorFragmentRetries = 3
	targetExtension          = "m4a"
	defaultWorkers           = 4
)

// TrackStore is the slice of the Registry the Acquirer needs: the
// acquisition-eligibility query (invariant I2) and a way to persist the
// outcome.
type TrackStore interface {
	ListEligibleForAcquisition() ([]*models.CanonicalTrack, error)
	Update(track *models.CanonicalTrack) error
}

// LinkStore resolves which playlists a track belongs to, so the Acquirer
// can refresh every view link after a download completes.
type LinkStore interface {
	ListMembershipsForTrack(trackID string) ([]repositories.TrackMembership, error)
}

// ExtractRequest parameterizes a single extractor invocation.
type ExtractRequest struct {
	URL              string
	OutputDir        string
	FormatPreference string
	CookieFile       string
}

// Extractor abstracts the external audio-fetch tool so tests can substitute
// a fake instead of shelling out to yt-dlp.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (outputPath string, err error)
}

// CommandExtractor invokes yt-dlp as a subprocess, in the os/exec.CommandContext
// style the corpus's media-syncing services use to wrap ffmpeg.
type CommandExtractor struct {
	// Binary overrides the executable name, defaulting to "yt-dlp". Tests
	// point this at a stub script.
	Binary string
}

// Extract runs yt-dlp against req.URL, writing into req.OutputDir with
// format preference "best audio in target container, else best audio
// re-encoded", 3 download retries, 3 fragment retries, quiet/no-progress
// output, and an ffmpeg postprocessor pass to targetExtension. Returns the
// path of the produced file within req.OutputDir.
func (e *CommandExtractor) Extract(ctx context.Context, req ExtractRequest) (string, error) {
	binary := e.Binary
	if binary == "" {
		binary = "yt-dlp"
	}

	format := req.FormatPreference
	if format == "" {
		format = fmt.Sprintf("bestaudio[ext=%s]/bestaudio/best", targetExtension)
	}

	args := []string{
		req.URL,
		"-f", format,
		"--retries", fmt.Sprintf("%d", extractorRetries),
		"--fragment-retries", fmt.Sprintf("%d", extractorFragmentRetries),
		"--quiet", "--no-progress",
		"-x", "--audio-format", targetExtension,
		"-o", filepath.Join(req.OutputDir, "%(id)s.%(ext)s"),
	}

	if req.CookieFile != "" {
		args = append(args, "--cookies", req.CookieFile)
	}

	cmd := exec.CommandContext(ctx, binary, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w: %s", err, string(output))
	}

	return locateExtractedFile(req.OutputDir)
}

// locateExtractedFile finds the extractor's output within dir, preferring
// the target extension but accepting any regular file as a fallback (step 4
// of the acquisition algorithm).
func locateExtractedFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read output directory: %w", err)
	}

	var fallback string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if filepath.Ext(path) == "."+targetExtension {
			return path, nil
		}
		if fallback == "" {
			fallback = path
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", errors.New("extractor produced no output file")
}

// Acquirer downloads catalog-B audio for resolved tracks and places it in
// the FileManager's canonical store, per spec section 4.6.
type Acquirer struct {
	fm               *filemanager.Manager
	extractor        Extractor
	tracks           TrackStore
	links            LinkStore
	workers          int
	formatPreference string
	cookieFile       string
}

// New creates an Acquirer. workers <= 0 defaults to 4, matching
// oshokin-zvuk-grabber's MaxConcurrentDownloads default.
func New(fm *filemanager.Manager, extractor Extractor, tracks TrackStore, links LinkStore, workers int, formatPreference, cookieFile string) *Acquirer {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Acquirer{
		fm:               fm,
		extractor:        extractor,
		tracks:           tracks,
		links:            links,
		workers:          workers,
		formatPreference: formatPreference,
		cookieFile:       cookieFile,
	}
}

// Stats summarizes one Run invocation.
type Stats struct {
	Acquired int
	Skipped  int
	Failed   int
}

// Run acquires every track the Registry reports eligible (invariant I2),
// using a semaphore-channel worker pool sized by a.workers, grounded on
// downloadTracksConcurrently's goroutine-per-track-with-semaphore shape.
// dryRun performs the eligibility query and logs what would happen without
// touching the Registry or the filesystem.
func (a *Acquirer) Run(ctx context.Context, dryRun bool) (Stats, error) {
	eligible, err := a.tracks.ListEligibleForAcquisition()
	if err != nil {
		return Stats{}, fmt.Errorf("list eligible tracks: %w", err)
	}

	if dryRun {
		for _, t := range eligible {
			shared.Infof(ctx, "[DRY-RUN] would acquire %q by %q", t.Title(), t.Artist())
		}
		return Stats{}, nil
	}

	var (
		stats     Stats
		statsMu   sync.Mutex
		semaphore = make(chan struct{}, a.workers)
		wg        sync.WaitGroup
	)

	record := func(f func(*Stats)) {
		statsMu.Lock()
		f(&stats)
		statsMu.Unlock()
	}

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

			skipped, err := a.AcquireTrack(shared.WithTrackID(ctx, t.ID()), t)
			switch {
			case err != nil:
				record(func(s *Stats) { s.Failed++ })
			case skipped:
				record(func(s *Stats) { s.Skipped++ })
			default:
				record(func(s *Stats) { s.Acquired++ })
			}
		}(track)
	}

	wg.Wait()

	return stats, nil
}

// AcquireTrack runs the per-track algorithm of spec section 4.6 steps 1-9
// for a single track, persisting the outcome via TrackStore and refreshing
// every playlist link via LinkStore/FileManager. skipped is true when the
// canonical file already existed (cache hit).
func (a *Acquirer) AcquireTrack(ctx context.Context, track *models.CanonicalTrack) (skipped bool, err error) {
	canonicalPath := a.fm.CanonicalPath(track.Artist(), track.Title())

	if _, statErr := os.Stat(canonicalPath); statErr == nil {
		if err := a.finalizeAcquisition(track, canonicalPath, time.Now()); err != nil {
			return false, err
		}
		return true, nil
	}

	tempDir, err := os.MkdirTemp("", "sputnik-acquire-*")
	if err != nil {
		return false, shared.NewAcquisitionError(track.ID(), fmt.Errorf("create temp directory: %w", err))
	}
	defer os.RemoveAll(tempDir)

	req := ExtractRequest{
		URL:              track.CatalogBURL(),
		OutputDir:        tempDir,
		FormatPreference: a.formatPreference,
		CookieFile:       a.cookieFile,
	}

	extracted, err := a.extractor.Extract(ctx, req)
	if err != nil {
		shared.ErrorKV(ctx, "acquisition failed", "catalog_id", track.CatalogID(), "error", err.Error())
		shared.LogDownloadFailure(ctx, "acquisition failed",
			"title", track.Title(), "artist", track.Artist(), "catalog_b_url", track.CatalogBURL(), "error", err.Error())
		return false, shared.NewAcquisitionError(track.ID(), err)
	}

	if err := moveToCanonicalPath(extracted, canonicalPath); err != nil {
		return false, shared.NewAcquisitionError(track.ID(), fmt.Errorf("move to canonical path: %w", err))
	}

	if err := a.finalizeAcquisition(track, canonicalPath, time.Now()); err != nil {
		return false, err
	}

	return false, nil
}

// Replace re-acquires fresh audio for an already-acquired track, swapping
// the file at its canonical path in place and resetting embedding flags so
// the next finalization pass re-applies canonical tags. Registry-independent
// otherwise, matching the supplemented --replace CLI path.
func (a *Acquirer) Replace(ctx context.Context, track *models.CanonicalTrack, catalogBURL string) error {
	canonicalPath := track.CanonicalPath()
	if canonicalPath == "" {
		canonicalPath = a.fm.CanonicalPath(track.Artist(), track.Title())
	}

	tempDir, err := os.MkdirTemp("", "sputnik-replace-*")
	if err != nil {
		return shared.NewAcquisitionError(track.ID(), fmt.Errorf("create temp directory: %w", err))
	}
	defer os.RemoveAll(tempDir)

	req := ExtractRequest{
		URL:              catalogBURL,
		OutputDir:        tempDir,
		FormatPreference: a.formatPreference,
		CookieFile:       a.cookieFile,
	}

	extracted, err := a.extractor.Extract(ctx, req)
	if err != nil {
		return shared.NewAcquisitionError(track.ID(), err)
	}

	if err := moveToCanonicalPath(extracted, canonicalPath); err != nil {
		return shared.NewAcquisitionError(track.ID(), fmt.Errorf("move to canonical path: %w", err))
	}

	track.SetResolution(catalogBURL, track.MatchScore(), track.MatchAmbiguous())
	track.SetAcquired(canonicalPath, time.Now())
	track.ResetEmbeddingFlags()

	if err := a.tracks.Update(track); err != nil {
		return fmt.Errorf("persist replacement: %w", err)
	}

	return a.refreshLinks(track, canonicalPath)
}

// finalizeAcquisition marks track acquired in the Registry and refreshes
// every playlist link pointing at it (steps 6-7).
func (a *Acquirer) finalizeAcquisition(track *models.CanonicalTrack, canonicalPath string, at time.Time) error {
	track.SetAcquired(canonicalPath, at)

	if err := a.tracks.Update(track); err != nil {
		return fmt.Errorf("persist acquisition: %w", err)
	}

	return a.refreshLinks(track, canonicalPath)
}

func (a *Acquirer) refreshLinks(track *models.CanonicalTrack, canonicalPath string) error {
	memberships, err := a.links.ListMembershipsForTrack(track.ID())
	if err != nil {
		return fmt.Errorf("list playlist memberships: %w", err)
	}

	refs := make([]filemanager.PlaylistRef, 0, len(memberships))
	for _, m := range memberships {
		refs = append(refs, filemanager.PlaylistRef{Name: m.PlaylistName, Position: m.Position})
	}

	// Best-effort: one playlist's link failure does not abort acquisition.
	a.fm.UpdateAllPlaylistLinks(canonicalPath, track.Title(), track.Artist(), refs)

	return nil
}

// moveToCanonicalPath renames src to dst, falling back to copy-then-unlink
// when the rename crosses filesystem boundaries (step 5).
func moveToCanonicalPath(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create canonical directory: %w", err)
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open extracted file: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create canonical file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy extracted file: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close canonical file: %w", err)
	}

	return os.Remove(src)
}
