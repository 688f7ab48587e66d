package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/sputnik/internal/models"
	"github.com/desertthunder/sputnik/internal/shared"
)

// TrackRepository implements [models.Repository] for [models.CanonicalTrack] persistence.
//
// Exposes phase-eligibility queries (invariants I2-I4) as SQL filters so the
// orchestrator never has to load the full table to find pending work.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

const trackColumns = `
	id, sequence, catalog_id, title, artist, album, duration, isrc,
	catalog_b_url, match_score, match_ambiguous,
	acquired, acquired_at, canonical_path,
	lyrics_attempted, lyrics_found, lyrics_text, lyrics_synced, lyrics_source, lyrics_embedded, lyrics_embedded_at,
	metadata_embedded, embedded_at,
	created_at, updated_at, deleted_at
`

// Create inserts a new canonical track into the database with generated ID and sequence
func (r *TrackRepository) Create(track *models.CanonicalTrack) error {
	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	track.SetID(id)

	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO tracks (
			id, sequence, catalog_id, title, artist, album, duration, isrc,
			catalog_b_url, match_score, match_ambiguous,
			acquired, acquired_at, canonical_path,
			lyrics_attempted, lyrics_found, lyrics_text, lyrics_synced, lyrics_source, lyrics_embedded, lyrics_embedded_at,
			metadata_embedded, embedded_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id, sequence, track.CatalogID(), track.Title(), track.Artist(), track.Album(), track.Duration(), track.ISRC(),
		track.CatalogBURL(), track.MatchScore(), track.MatchAmbiguous(),
		track.Acquired(), nullTime(track.AcquiredAt()), track.CanonicalPath(),
		track.LyricsAttempted(), track.LyricsFound(), track.LyricsText(), track.LyricsSynced(), track.LyricsSource(), track.LyricsEmbedded(), nullTime(track.LyricsEmbeddedAt()),
		track.MetadataEmbedded(), nullTime(track.EmbeddedAt()),
		track.CreatedAt(), track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.CanonicalTrack, error) {
	query := "SELECT" + trackColumns + "FROM tracks WHERE id = ? AND deleted_at IS NULL"
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByISRC retrieves a track by ISRC code
func (r *TrackRepository) GetByISRC(isrc string) (*models.CanonicalTrack, error) {
	if isrc == "" {
		return nil, fmt.Errorf("track not found")
	}
	query := "SELECT" + trackColumns + "FROM tracks WHERE isrc = ? AND deleted_at IS NULL LIMIT 1"
	return r.scanOne(r.db.QueryRow(query, isrc))
}

// GetByTitleArtist retrieves a track by its normalized title/artist key, used
// as the ingestion dedup fallback when a track has no ISRC.
func (r *TrackRepository) GetByTitleArtist(title, artist string) (*models.CanonicalTrack, error) {
	query := "SELECT" + trackColumns + "FROM tracks WHERE lower(title) = lower(?) AND lower(artist) = lower(?) AND deleted_at IS NULL LIMIT 1"
	return r.scanOne(r.db.QueryRow(query, title, artist))
}

// ListPendingResolution returns every track that has not yet been through
// the Matcher: an empty catalog_b_url is the "never resolved" state,
// distinct from the match-failed sentinel ListEligibleForAcquisition
// excludes, so a permanently unmatched track is not retried every run.
func (r *TrackRepository) ListPendingResolution() ([]*models.CanonicalTrack, error) {
	query := "SELECT" + trackColumns + `FROM tracks
		WHERE deleted_at IS NULL AND catalog_b_url = ''
		ORDER BY sequence ASC`
	return r.listQuery(query)
}

// ListEligibleForAcquisition implements invariant I2 as a SQL filter: a
// resolved catalog-B URL that is neither empty nor the match-failed sentinel,
// and not yet acquired.
func (r *TrackRepository) ListEligibleForAcquisition() ([]*models.CanonicalTrack, error) {
	query := "SELECT" + trackColumns + `FROM tracks
		WHERE deleted_at IS NULL
		AND catalog_b_url != '' AND catalog_b_url != ?
		AND acquired = 0
		ORDER BY sequence ASC`
	return r.listQuery(query, models.MatchFailedSentinel)
}

// ListEligibleForEnrichment implements invariant I3.
func (r *TrackRepository) ListEligibleForEnrichment() ([]*models.CanonicalTrack, error) {
	query := "SELECT" + trackColumns + `FROM tracks
		WHERE deleted_at IS NULL AND acquired = 1 AND lyrics_attempted = 0
		ORDER BY sequence ASC`
	return r.listQuery(query)
}

// ListEligibleForFinalization implements invariant I4: acquired, and either
// metadata has never been embedded or lyrics arrived after the last embed.
func (r *TrackRepository) ListEligibleForFinalization() ([]*models.CanonicalTrack, error) {
	query := "SELECT" + trackColumns + `FROM tracks
		WHERE deleted_at IS NULL AND acquired = 1
		AND (metadata_embedded = 0 OR (lyrics_attempted = 1 AND lyrics_text != '' AND lyrics_embedded = 0))
		ORDER BY sequence ASC`
	return r.listQuery(query)
}

// ResetFailedMatches clears the match-failed sentinel back to an empty
// catalog-B URL so those tracks are retried on the next resolution pass,
// used by force-rematch mode. scope == "" resets every failed track
// globally; otherwise scope is a playlist's internal id and only tracks
// linked to it are reset. Returns the number of tracks reset.
func (r *TrackRepository) ResetFailedMatches(scope string) (int, error) {
	var (
		result sql.Result
		err    error
	)

	if scope == "" {
		result, err = r.db.Exec(
			"UPDATE tracks SET catalog_b_url = '', match_score = 0, updated_at = ? WHERE deleted_at IS NULL AND catalog_b_url = ?",
			time.Now(), models.MatchFailedSentinel,
		)
	} else {
		result, err = r.db.Exec(`
			UPDATE tracks SET catalog_b_url = '', match_score = 0, updated_at = ?
			WHERE deleted_at IS NULL AND catalog_b_url = ?
			AND id IN (SELECT track_id FROM playlist_tracks WHERE playlist_id = ? AND deleted_at IS NULL)
		`, time.Now(), models.MatchFailedSentinel, scope)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to reset failed matches: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(rows), nil
}

// Statistics summarizes the track table for CLI reporting.
func (r *TrackRepository) Statistics() (models.TrackStatistics, error) {
	var stats models.TrackStatistics

	row := r.db.QueryRow(`
		SELECT
			COUNT(*),
			SUM(CASE WHEN catalog_b_url != '' AND catalog_b_url != ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN acquired = 1 THEN 1 ELSE 0 END),
			SUM(CASE WHEN lyrics_found = 1 THEN 1 ELSE 0 END),
			SUM(CASE WHEN catalog_b_url = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN catalog_b_url = '' THEN 1 ELSE 0 END),
			SUM(CASE WHEN catalog_b_url != '' AND catalog_b_url != ? AND acquired = 0 THEN 1 ELSE 0 END)
		FROM tracks WHERE deleted_at IS NULL
	`, models.MatchFailedSentinel, models.MatchFailedSentinel, models.MatchFailedSentinel)

	if err := row.Scan(
		&stats.TotalTracks, &stats.Matched, &stats.Acquired, &stats.WithLyrics,
		&stats.FailedMatch, &stats.PendingMatch, &stats.PendingAcquisition,
	); err != nil {
		return models.TrackStatistics{}, fmt.Errorf("failed to compute statistics: %w", err)
	}

	return stats, nil
}

// Update persists every mutable field of track, including phase state.
// Callers performing metadata-only edits should use UpdateMetadata instead
// so invariant I1 holds even under concurrent phase workers.
func (r *TrackRepository) Update(track *models.CanonicalTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)

	query := `
		UPDATE tracks SET
			title = ?, artist = ?, album = ?, duration = ?, isrc = ?,
			catalog_b_url = ?, match_score = ?, match_ambiguous = ?,
			acquired = ?, acquired_at = ?, canonical_path = ?,
			lyrics_attempted = ?, lyrics_found = ?, lyrics_text = ?, lyrics_synced = ?, lyrics_source = ?, lyrics_embedded = ?, lyrics_embedded_at = ?,
			metadata_embedded = ?, embedded_at = ?,
			updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		track.Title(), track.Artist(), track.Album(), track.Duration(), track.ISRC(),
		track.CatalogBURL(), track.MatchScore(), track.MatchAmbiguous(),
		track.Acquired(), nullTime(track.AcquiredAt()), track.CanonicalPath(),
		track.LyricsAttempted(), track.LyricsFound(), track.LyricsText(), track.LyricsSynced(), track.LyricsSource(), track.LyricsEmbedded(), nullTime(track.LyricsEmbeddedAt()),
		track.MetadataEmbedded(), nullTime(track.EmbeddedAt()),
		now, track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("track not found or already deleted: %s", track.ID())
	}

	return nil
}

// UpdateMetadata updates only title/artist/album/isrc/duration, per invariant I1.
func (r *TrackRepository) UpdateMetadata(track *models.CanonicalTrack) error {
	now := time.Now()
	track.SetUpdatedAt(now)

	query := `
		UPDATE tracks SET title = ?, artist = ?, album = ?, duration = ?, isrc = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, track.Title(), track.Artist(), track.Album(), track.Duration(), track.ISRC(), now, track.ID())
	if err != nil {
		return fmt.Errorf("failed to update track metadata: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("track not found or already deleted: %s", track.ID())
	}

	return nil
}

// Delete soft-deletes a track by ID
func (r *TrackRepository) Delete(id string) error {
	now := time.Now()

	result, err := r.db.Exec("UPDATE tracks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", now, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("track not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all tracks matching the given criteria, excluding soft-deleted tracks
func (r *TrackRepository) List(criteria map[string]any) ([]*models.CanonicalTrack, error) {
	query := "SELECT" + trackColumns + "FROM tracks WHERE deleted_at IS NULL"
	args := []any{}

	if isrc, ok := criteria["isrc"].(string); ok && isrc != "" {
		query += " AND isrc = ?"
		args = append(args, isrc)
	}

	query += " ORDER BY sequence ASC"

	return r.listQuery(query, args...)
}

func (r *TrackRepository) listQuery(query string, args ...any) ([]*models.CanonicalTrack, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.CanonicalTrack
	for rows.Next() {
		track, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// trackScanDest holds scan destinations shared between scanOne and scanRow.
type trackScanDest struct {
	id, catalogID, title, artist, album, isrc, catalogBURL, canonicalPath, lyricsText, lyricsSource string
	sequence                                                                          int
	duration                                                                          int
	matchScore                                                                        float64
	matchAmbiguous, acquired, lyricsAttempted, lyricsFound, lyricsSynced, lyricsEmbedded, metadataEmbedded bool
	acquiredAt, embeddedAt, lyricsEmbeddedAt                                          sql.NullTime
	createdAt, updatedAt                                                               time.Time
	deletedAt                                                                          sql.NullTime
}

func (r *TrackRepository) scanOne(row *sql.Row) (*models.CanonicalTrack, error) {
	var d trackScanDest
	err := row.Scan(
		&d.id, &d.sequence, &d.catalogID, &d.title, &d.artist, &d.album, &d.duration, &d.isrc,
		&d.catalogBURL, &d.matchScore, &d.matchAmbiguous,
		&d.acquired, &d.acquiredAt, &d.canonicalPath,
		&d.lyricsAttempted, &d.lyricsFound, &d.lyricsText, &d.lyricsSynced, &d.lyricsSource, &d.lyricsEmbedded, &d.lyricsEmbeddedAt,
		&d.metadataEmbedded, &d.embeddedAt,
		&d.createdAt, &d.updatedAt, &d.deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("track not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	return hydrateTrack(d), nil
}

func (r *TrackRepository) scanRow(rows *sql.Rows) (*models.CanonicalTrack, error) {
	var d trackScanDest
	err := rows.Scan(
		&d.id, &d.sequence, &d.catalogID, &d.title, &d.artist, &d.album, &d.duration, &d.isrc,
		&d.catalogBURL, &d.matchScore, &d.matchAmbiguous,
		&d.acquired, &d.acquiredAt, &d.canonicalPath,
		&d.lyricsAttempted, &d.lyricsFound, &d.lyricsText, &d.lyricsSynced, &d.lyricsSource, &d.lyricsEmbedded, &d.lyricsEmbeddedAt,
		&d.metadataEmbedded, &d.embeddedAt,
		&d.createdAt, &d.updatedAt, &d.deletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	return hydrateTrack(d), nil
}

// hydrateTrack rebuilds a [models.CanonicalTrack] from scanned columns by
// round-tripping through its constructor and mutators, matching the pattern
// [models.NewCanonicalTrack] establishes for in-memory construction.
func hydrateTrack(d trackScanDest) *models.CanonicalTrack {
	track := models.NewCanonicalTrack(d.sequence, d.catalogID, models.Track{
		Title:    d.title,
		Artist:   d.artist,
		Album:    d.album,
		Duration: d.duration,
		ISRC:     d.isrc,
	})
	track.SetID(d.id)
	track.SetMetadata(d.title, d.artist, d.album, d.isrc, d.duration)
	track.SetResolution(d.catalogBURL, d.matchScore, d.matchAmbiguous)
	if d.acquired {
		at := d.createdAt
		if d.acquiredAt.Valid {
			at = d.acquiredAt.Time
		}
		track.SetAcquired(d.canonicalPath, at)
	}
	if d.lyricsAttempted {
		track.SetLyrics(d.lyricsFound, d.lyricsText, d.lyricsSynced, d.lyricsSource)
	}
	if d.metadataEmbedded {
		at := d.createdAt
		if d.embeddedAt.Valid {
			at = d.embeddedAt.Time
		}
		track.MarkMetadataEmbedded(at)
	}
	if d.lyricsEmbedded {
		at := d.createdAt
		if d.lyricsEmbeddedAt.Valid {
			at = d.lyricsEmbeddedAt.Time
		}
		track.MarkLyricsEmbedded(at)
	}
	track.SetUpdatedAt(d.updatedAt)
	if d.deletedAt.Valid {
		track.SetDeletedAt(&d.deletedAt.Time)
	}
	return track
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
