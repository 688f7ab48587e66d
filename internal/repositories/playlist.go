package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/sputnik/internal/models"
	"github.com/desertthunder/sputnik/internal/shared"
)

// PlaylistRepository implements [models.Repository] for [models.Playlist] persistence.
//
// Handles playlist CRUD operations with soft delete support and catalog-id lookups.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist into the database with generated ID and sequence
func (r *PlaylistRepository) Create(playlist *models.Playlist) error {
	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	playlist.SetID(id)

	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO playlists (id, sequence, catalog_id, name, description, track_count, snapshot_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		playlist.CatalogID(),
		playlist.Name(),
		playlist.Description(),
		playlist.TrackCount(),
		playlist.SnapshotID(),
		playlist.CreatedAt(),
		playlist.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// UpsertPlaylist updates name/description/track-count/snapshot for an
// existing catalog-A playlist, or creates it if absent.
func (r *PlaylistRepository) UpsertPlaylist(dto models.PlaylistDTO) (*models.Playlist, error) {
	existing, err := r.GetByCatalogID(dto.ID)
	if err == nil {
		existing.SetName(dto.Name)
		existing.SetDescription(dto.Description)
		existing.SetTrackCount(dto.TrackCount)
		existing.SetSnapshotID(dto.SnapshotID)
		if updErr := r.Update(existing); updErr != nil {
			return nil, fmt.Errorf("update playlist: %w", updErr)
		}
		return existing, nil
	}

	created := models.NewPlaylist(0, dto.ID, dto)
	if err := r.Create(created); err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}

	return created, nil
}

// EnsureLikedPlaylist idempotently upserts the LIKED sentinel playlist used
// for the user's saved-tracks library.
func (r *PlaylistRepository) EnsureLikedPlaylist() (*models.Playlist, error) {
	return r.UpsertPlaylist(models.PlaylistDTO{ID: models.LikedPlaylistCatalogID, Name: models.LikedPlaylistName})
}

// Get retrieves a playlist by ID, excluding soft-deleted playlists
func (r *PlaylistRepository) Get(id string) (*models.Playlist, error) {
	query := `
		SELECT id, sequence, catalog_id, name, description, track_count, snapshot_id, created_at, updated_at, deleted_at
		FROM playlists
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByCatalogID retrieves a playlist by its catalog-A identifier
func (r *PlaylistRepository) GetByCatalogID(catalogID string) (*models.Playlist, error) {
	query := `
		SELECT id, sequence, catalog_id, name, description, track_count, snapshot_id, created_at, updated_at, deleted_at
		FROM playlists
		WHERE catalog_id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, catalogID))
}

// Update modifies an existing playlist in the database
func (r *PlaylistRepository) Update(playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	playlist.SetUpdatedAt(now)

	query := `
		UPDATE playlists
		SET name = ?, description = ?, track_count = ?, snapshot_id = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		playlist.Name(),
		playlist.Description(),
		playlist.TrackCount(),
		playlist.SnapshotID(),
		now,
		playlist.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("playlist not found or already deleted: %s", playlist.ID())
	}

	return nil
}

// Delete soft-deletes a playlist by ID
func (r *PlaylistRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE playlists
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("playlist not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all playlists matching the given criteria, excluding soft-deleted playlists
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.Playlist, error) {
	query := `
		SELECT id, sequence, catalog_id, name, description, track_count, snapshot_id, created_at, updated_at, deleted_at
		FROM playlists
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if catalogID, ok := criteria["catalog_id"].(string); ok && catalogID != "" {
		query += " AND catalog_id = ?"
		args = append(args, catalogID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		playlist, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// scanOne scans a single row into a [models.Playlist]
func (r *PlaylistRepository) scanOne(row *sql.Row) (*models.Playlist, error) {
	var (
		id          string
		sequence    int
		catalogID   string
		name        string
		description string
		trackCount  int
		snapshotID  string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &catalogID, &name, &description, &trackCount, &snapshotID, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("playlist not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	playlist := models.NewPlaylist(sequence, catalogID, models.PlaylistDTO{
		ID:          catalogID,
		Name:        name,
		Description: description,
		TrackCount:  trackCount,
		SnapshotID:  snapshotID,
	})
	playlist.SetID(id)
	playlist.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		playlist.SetDeletedAt(&deletedAt.Time)
	}

	return playlist, nil
}

// scanRow scans a row from [sql.Rows] into a [models.Playlist]
func (r *PlaylistRepository) scanRow(rows *sql.Rows) (*models.Playlist, error) {
	var (
		id          string
		sequence    int
		catalogID   string
		name        string
		description string
		trackCount  int
		snapshotID  string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := rows.Scan(&id, &sequence, &catalogID, &name, &description, &trackCount, &snapshotID, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	playlist := models.NewPlaylist(sequence, catalogID, models.PlaylistDTO{
		ID:          catalogID,
		Name:        name,
		Description: description,
		TrackCount:  trackCount,
		SnapshotID:  snapshotID,
	})
	playlist.SetID(id)
	playlist.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		playlist.SetDeletedAt(&deletedAt.Time)
	}

	return playlist, nil
}
