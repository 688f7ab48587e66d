package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/sputnik/internal/models"
	"github.com/desertthunder/sputnik/internal/shared"
)

// LinkRepository implements [models.Repository] for [models.PlaylistTrackLink]
// junction records, plus the view-path bookkeeping FileManager needs to know
// which hardlinks/symlinks already exist for a playlist.
type LinkRepository struct {
	db *sql.DB
}

// NewLinkRepository creates a new LinkRepository with the given database connection
func NewLinkRepository(db *sql.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Create inserts a new playlist-track link with generated ID and sequence
func (r *LinkRepository) Create(link *models.PlaylistTrackLink) error {
	sequence, err := NextSequence(r.db, "playlist_tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	link.SetID(id)

	if err := link.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO playlist_tracks (id, sequence, playlist_id, track_id, position, link_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, link.PlaylistID(), link.TrackID(), link.Position(), link.LinkPath(), link.CreatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert playlist-track link: %w", err)
	}

	return nil
}

// Get retrieves a link by ID
func (r *LinkRepository) Get(id string) (*models.PlaylistTrackLink, error) {
	query := `
		SELECT id, sequence, playlist_id, track_id, position, link_path, created_at, deleted_at
		FROM playlist_tracks WHERE id = ? AND deleted_at IS NULL
	`
	return r.scanOne(r.db.QueryRow(query, id))
}

// ListByPlaylist returns every link for a playlist, ordered by position, for
// FileManager's view materialization pass.
func (r *LinkRepository) ListByPlaylist(playlistID string) ([]*models.PlaylistTrackLink, error) {
	query := `
		SELECT id, sequence, playlist_id, track_id, position, link_path, created_at, deleted_at
		FROM playlist_tracks
		WHERE playlist_id = ? AND deleted_at IS NULL
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist links: %w", err)
	}
	defer rows.Close()

	var links []*models.PlaylistTrackLink
	for rows.Next() {
		link, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return links, nil
}

// Update persists a link's position and materialized view path
func (r *LinkRepository) Update(link *models.PlaylistTrackLink) error {
	if err := link.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := r.db.Exec(
		"UPDATE playlist_tracks SET position = ?, link_path = ? WHERE id = ? AND deleted_at IS NULL",
		link.Position(), link.LinkPath(), link.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist-track link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("link not found or already deleted: %s", link.ID())
	}

	return nil
}

// Delete soft-deletes a link by ID
func (r *LinkRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE playlist_tracks SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL", id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist-track link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("link not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all links matching the given criteria
func (r *LinkRepository) List(criteria map[string]any) ([]*models.PlaylistTrackLink, error) {
	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		return r.ListByPlaylist(playlistID)
	}

	query := `
		SELECT id, sequence, playlist_id, track_id, position, link_path, created_at, deleted_at
		FROM playlist_tracks WHERE deleted_at IS NULL ORDER BY sequence ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist links: %w", err)
	}
	defer rows.Close()

	var links []*models.PlaylistTrackLink
	for rows.Next() {
		link, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	return links, rows.Err()
}

// TrackIDsForPlaylist returns every non-deleted track id linked to a
// playlist, the Registry's GetPlaylistTrackIds contract.
func (r *LinkRepository) TrackIDsForPlaylist(playlistID string) ([]string, error) {
	rows, err := r.db.Query("SELECT track_id FROM playlist_tracks WHERE playlist_id = ? AND deleted_at IS NULL", playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist track ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// SyncPlaylistTracks soft-deletes every link in playlistID whose track id is
// not in keepTrackIDs, returning the number removed. Sync-mode ingestion
// calls this after storing the current item set, to drop links for tracks
// that disappeared from the external playlist.
func (r *LinkRepository) SyncPlaylistTracks(playlistID string, keepTrackIDs []string) (int, error) {
	existing, err := r.ListByPlaylist(playlistID)
	if err != nil {
		return 0, fmt.Errorf("list existing links: %w", err)
	}

	keep := make(map[string]struct{}, len(keepTrackIDs))
	for _, id := range keepTrackIDs {
		keep[id] = struct{}{}
	}

	removed := 0
	for _, link := range existing {
		if _, ok := keep[link.TrackID()]; ok {
			continue
		}
		if err := r.Delete(link.ID()); err != nil {
			return removed, fmt.Errorf("delete stale link: %w", err)
		}
		removed++
	}

	return removed, nil
}

// TrackMembership names a playlist and the position a track occupies in it,
// the shape Acquirer needs to refresh FileManager links after acquisition
// without depending on the full PlaylistTrackLink entity.
type TrackMembership struct {
	PlaylistName string
	Position     int
}

// ListMembershipsForTrack returns every non-deleted playlist a track
// currently belongs to, joined against the playlist name, ordered by
// position.
func (r *LinkRepository) ListMembershipsForTrack(trackID string) ([]TrackMembership, error) {
	query := `
		SELECT p.name, pt.position
		FROM playlist_tracks pt
		JOIN playlists p ON p.id = pt.playlist_id AND p.deleted_at IS NULL
		WHERE pt.track_id = ? AND pt.deleted_at IS NULL
		ORDER BY pt.position ASC
	`

	rows, err := r.db.Query(query, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to query track memberships: %w", err)
	}
	defer rows.Close()

	var memberships []TrackMembership
	for rows.Next() {
		var m TrackMembership
		if err := rows.Scan(&m.PlaylistName, &m.Position); err != nil {
			return nil, fmt.Errorf("failed to scan track membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

func (r *LinkRepository) scanOne(row *sql.Row) (*models.PlaylistTrackLink, error) {
	var (
		id, playlistID, trackID, linkPath string
		sequence, position                int
		createdAt                         sql.NullTime
		deletedAt                         sql.NullTime
	)

	err := row.Scan(&id, &sequence, &playlistID, &trackID, &position, &linkPath, &createdAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("playlist-track link not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist-track link: %w", err)
	}

	link := models.NewPlaylistTrackLink(sequence, playlistID, trackID, position)
	link.SetID(id)
	link.SetLinkPath(linkPath)
	if deletedAt.Valid {
		link.SetDeletedAt(&deletedAt.Time)
	}

	return link, nil
}

func (r *LinkRepository) scanRow(rows *sql.Rows) (*models.PlaylistTrackLink, error) {
	var (
		id, playlistID, trackID, linkPath string
		sequence, position                int
		createdAt                         sql.NullTime
		deletedAt                         sql.NullTime
	)

	err := rows.Scan(&id, &sequence, &playlistID, &trackID, &position, &linkPath, &createdAt, &deletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist-track link: %w", err)
	}

	link := models.NewPlaylistTrackLink(sequence, playlistID, trackID, position)
	link.SetID(id)
	link.SetLinkPath(linkPath)
	if deletedAt.Valid {
		link.SetDeletedAt(&deletedAt.Time)
	}

	return link, nil
}
