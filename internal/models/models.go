// package models defines the persisted entities and DTOs for the acquisition pipeline.
package models

import (
	"fmt"
	"time"
)

// MatchFailedSentinel marks a CanonicalTrack whose resolution phase exhausted every
// candidate without clearing the acceptance floor. It is written to catalogBURL in
// place of a real URL so acquisition eligibility (I2) can exclude it with a single
// comparison instead of a separate boolean column.
const MatchFailedSentinel = "MATCH_FAILED"

// LikedPlaylistCatalogID/LikedPlaylistName identify the synthetic playlist
// ingestion uses for the user's saved-tracks library, the "LIKED" sentinel
// playlist referenced by spec.md's Registry and sync-all semantics.
const (
	LikedPlaylistCatalogID = "saved-tracks"
	LikedPlaylistName      = "Liked Songs"
)

// TrackStatistics summarizes the Registry's track table for CLI reporting
// and the pipeline summary banner.
type TrackStatistics struct {
	TotalTracks        int
	Matched            int
	Acquired           int
	WithLyrics         int
	FailedMatch        int
	PendingMatch       int
	PendingAcquisition int
}

// Model defines the base interface for all persistent entities in the pipeline.
type Model interface {
	ID() string           // ID returns the unique identifier for this entity
	CreatedAt() time.Time // CreatedAt returns when this entity was created
	UpdatedAt() time.Time // UpdatedAt returns when this entity was last updated
	Validate() error      // Validate checks if the entity's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new entity into the database
	Get(id string) (T, error)                  // Get retrieves an entity by its ID
	Update(model T) error                      // Update modifies an existing entity in the database
	Delete(id string) error                    // Delete removes an entity from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all entities matching the given criteria
}

// Track is the catalog-agnostic DTO produced by ingestion and by catalog B search
// results, carried between components before it is persisted as a CanonicalTrack.
type Track struct {
	ID       string // catalog-specific identifier
	Title    string
	Artist   string
	Album    string
	Duration int    // seconds
	ISRC     string
	URL      string // populated on catalog B search results, empty on catalog A tracks
	Verified bool   // catalog B "officially released" flag, when available
	Views    int64  // catalog B view count, used as a matcher tiebreak
}

// PlaylistDTO is the catalog-agnostic playlist shape returned by ingestion.
type PlaylistDTO struct {
	ID          string
	Name        string
	Description string
	TrackCount  int
	SnapshotID  string
}

// Playlist represents a catalog-A playlist tracked across pipeline runs.
type Playlist struct {
	id          string
	sequence    int
	catalogID   string
	name        string
	description string
	trackCount  int
	snapshotID  string
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

func (p *Playlist) ID() string           { return p.id }
func (p *Playlist) CreatedAt() time.Time { return p.createdAt }
func (p *Playlist) UpdatedAt() time.Time { return p.updatedAt }

// Validate checks if the playlist's data is valid
func (p *Playlist) Validate() error {
	if p.id == "" {
		return ErrInvalidModel
	}
	if p.catalogID == "" {
		return ErrInvalidModel
	}
	if p.name == "" {
		return ErrInvalidModel
	}
	return nil
}

// NewPlaylist creates a new Playlist from a PlaylistDTO
func NewPlaylist(sequence int, catalogID string, dto PlaylistDTO) *Playlist {
	now := time.Now()
	return &Playlist{
		sequence:    sequence,
		catalogID:   catalogID,
		name:        dto.Name,
		description: dto.Description,
		trackCount:  dto.TrackCount,
		snapshotID:  dto.SnapshotID,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (p *Playlist) CatalogID() string    { return p.catalogID }
func (p *Playlist) Name() string         { return p.name }
func (p *Playlist) Description() string  { return p.description }
func (p *Playlist) TrackCount() int      { return p.trackCount }
func (p *Playlist) SnapshotID() string   { return p.snapshotID }
func (p *Playlist) Sequence() int        { return p.sequence }
func (p *Playlist) DeletedAt() *time.Time { return p.deletedAt }

func (p *Playlist) SetID(id string)            { p.id = id }
func (p *Playlist) SetUpdatedAt(t time.Time)   { p.updatedAt = t }
func (p *Playlist) SetDeletedAt(t *time.Time)  { p.deletedAt = t }
func (p *Playlist) SetName(name string)        { p.name = name }
func (p *Playlist) SetDescription(d string)    { p.description = d }
func (p *Playlist) SetTrackCount(n int)        { p.trackCount = n }
func (p *Playlist) SetSnapshotID(s string)     { p.snapshotID = s }

// ToDTO converts a Playlist to a PlaylistDTO
func (p *Playlist) ToDTO() PlaylistDTO {
	return PlaylistDTO{
		ID:          p.catalogID,
		Name:        p.name,
		Description: p.description,
		TrackCount:  p.trackCount,
		SnapshotID:  p.snapshotID,
	}
}

// CanonicalTrack represents a single track as it moves through resolution,
// acquisition, enrichment, and finalization. One row exists per distinct
// track (matched by ISRC, else by case-insensitive title and artist)
// regardless of how many playlists reference it;
// playlist membership and ordering live in PlaylistTrackLink.
//
// Invariant I1: metadata-only updates (title/artist/album/isrc) never touch
// catalogBURL, acquired*, lyrics*, or embedded* fields.
type CanonicalTrack struct {
	id        string
	sequence  int
	catalogID string // catalog A track id this entry was first ingested from
	title     string
	artist    string
	album     string
	duration  int
	isrc      string

	catalogBURL    string
	matchScore     float64
	matchAmbiguous bool

	acquired      bool
	acquiredAt    *time.Time
	canonicalPath string

	lyricsAttempted bool
	lyricsFound     bool
	lyricsText      string
	lyricsSynced    bool
	lyricsSource    string
	lyricsEmbedded  bool
	lyricsEmbeddedAt *time.Time

	metadataEmbedded bool
	embeddedAt       *time.Time

	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

func (t *CanonicalTrack) ID() string           { return t.id }
func (t *CanonicalTrack) CreatedAt() time.Time { return t.createdAt }
func (t *CanonicalTrack) UpdatedAt() time.Time { return t.updatedAt }

// Validate checks if the track's data is valid
func (t *CanonicalTrack) Validate() error {
	if t.id == "" {
		return ErrInvalidModel
	}
	if t.title == "" || t.artist == "" {
		return ErrInvalidModel
	}
	return nil
}

// NewCanonicalTrack creates a new CanonicalTrack from an ingested Track DTO
func NewCanonicalTrack(sequence int, catalogID string, track Track) *CanonicalTrack {
	now := time.Now()
	return &CanonicalTrack{
		sequence:  sequence,
		catalogID: catalogID,
		title:     track.Title,
		artist:    track.Artist,
		album:     track.Album,
		duration:  track.Duration,
		isrc:      track.ISRC,
		createdAt: now,
		updatedAt: now,
	}
}

func (t *CanonicalTrack) CatalogID() string { return t.catalogID }
func (t *CanonicalTrack) Title() string     { return t.title }
func (t *CanonicalTrack) Artist() string    { return t.artist }
func (t *CanonicalTrack) Album() string     { return t.album }
func (t *CanonicalTrack) Duration() int     { return t.duration }
func (t *CanonicalTrack) ISRC() string      { return t.isrc }
func (t *CanonicalTrack) Sequence() int     { return t.sequence }

func (t *CanonicalTrack) CatalogBURL() string    { return t.catalogBURL }
func (t *CanonicalTrack) MatchScore() float64    { return t.matchScore }
func (t *CanonicalTrack) MatchAmbiguous() bool    { return t.matchAmbiguous }
func (t *CanonicalTrack) MatchFailed() bool {
	return t.catalogBURL == MatchFailedSentinel
}

func (t *CanonicalTrack) Acquired() bool           { return t.acquired }
func (t *CanonicalTrack) AcquiredAt() *time.Time    { return t.acquiredAt }
func (t *CanonicalTrack) CanonicalPath() string    { return t.canonicalPath }

func (t *CanonicalTrack) LyricsAttempted() bool { return t.lyricsAttempted }
func (t *CanonicalTrack) LyricsFound() bool     { return t.lyricsFound }
func (t *CanonicalTrack) LyricsText() string    { return t.lyricsText }
func (t *CanonicalTrack) LyricsSynced() bool    { return t.lyricsSynced }
func (t *CanonicalTrack) LyricsSource() string  { return t.lyricsSource }
func (t *CanonicalTrack) LyricsEmbedded() bool  { return t.lyricsEmbedded }
func (t *CanonicalTrack) LyricsEmbeddedAt() *time.Time { return t.lyricsEmbeddedAt }

func (t *CanonicalTrack) MetadataEmbedded() bool  { return t.metadataEmbedded }
func (t *CanonicalTrack) EmbeddedAt() *time.Time   { return t.embeddedAt }
func (t *CanonicalTrack) DeletedAt() *time.Time    { return t.deletedAt }

func (t *CanonicalTrack) SetID(id string)          { t.id = id }
func (t *CanonicalTrack) SetUpdatedAt(tm time.Time) { t.updatedAt = tm }
func (t *CanonicalTrack) SetDeletedAt(tm *time.Time) { t.deletedAt = tm }

// SetMetadata updates title/artist/album/isrc only (I1: resolution, acquisition,
// enrichment and finalization state is left untouched).
func (t *CanonicalTrack) SetMetadata(title, artist, album, isrc string, duration int) {
	t.title = title
	t.artist = artist
	t.album = album
	t.isrc = isrc
	t.duration = duration
}

// SetResolution records the outcome of the matcher for this track. Pass
// [MatchFailedSentinel] as url when no candidate cleared the acceptance floor.
func (t *CanonicalTrack) SetResolution(url string, score float64, ambiguous bool) {
	t.catalogBURL = url
	t.matchScore = score
	t.matchAmbiguous = ambiguous
}

// EligibleForAcquisition implements invariant I2.
func (t *CanonicalTrack) EligibleForAcquisition() bool {
	return t.catalogBURL != "" && t.catalogBURL != MatchFailedSentinel && !t.acquired
}

// SetAcquired records a completed download into the canonical store.
func (t *CanonicalTrack) SetAcquired(path string, at time.Time) {
	t.acquired = true
	t.acquiredAt = &at
	t.canonicalPath = path
}

// EligibleForEnrichment implements invariant I3.
func (t *CanonicalTrack) EligibleForEnrichment() bool {
	return t.acquired && !t.lyricsAttempted
}

// SetLyrics records the outcome of the lyrics resolver, always marking the
// track as attempted even when found is false. source names the provider
// that supplied the text (spec.md's lyrics-source tag), empty on a miss.
func (t *CanonicalTrack) SetLyrics(found bool, text string, synced bool, source string) {
	t.lyricsAttempted = true
	t.lyricsFound = found
	t.lyricsText = text
	t.lyricsSynced = synced
	t.lyricsSource = source
}

// EligibleForFinalization implements invariant I4: acquired, and either
// metadata has never been embedded or lyrics arrived after the last embed
// (attempted, non-empty text, not yet embedded).
func (t *CanonicalTrack) EligibleForFinalization() bool {
	if !t.acquired {
		return false
	}
	lyricsReadyNotEmbedded := t.lyricsAttempted && t.lyricsText != "" && !t.lyricsEmbedded
	return !t.metadataEmbedded || lyricsReadyNotEmbedded
}

// MarkMetadataEmbedded records that title/artist/album/isrc tags were
// written into the canonical file.
func (t *CanonicalTrack) MarkMetadataEmbedded(at time.Time) {
	t.metadataEmbedded = true
	t.embeddedAt = &at
}

// MarkLyricsEmbedded records that lyrics text was written into the
// canonical file, distinct from MarkMetadataEmbedded so a track whose
// lyrics arrive after its first embed is re-eligible for finalization.
func (t *CanonicalTrack) MarkLyricsEmbedded(at time.Time) {
	t.lyricsEmbedded = true
	t.lyricsEmbeddedAt = &at
}

// ResetEmbeddingFlags clears the metadata and lyrics embedding flags so a replaced file
// is re-embedded on the next finalization pass. Used by Acquirer.Replace.
func (t *CanonicalTrack) ResetEmbeddingFlags() {
	t.metadataEmbedded = false
	t.embeddedAt = nil
	t.lyricsEmbedded = false
	t.lyricsEmbeddedAt = nil
}

// ToTrack converts a CanonicalTrack to its Track DTO
func (t *CanonicalTrack) ToTrack() Track {
	return Track{
		ID:       t.catalogID,
		Title:    t.title,
		Artist:   t.artist,
		Album:    t.album,
		Duration: t.duration,
		ISRC:     t.isrc,
		URL:      t.catalogBURL,
	}
}

// PlaylistTrackLink joins a Playlist to a CanonicalTrack at a given position,
// and records the path of the per-playlist view (hardlink or symlink) once
// materialized by FileManager.
type PlaylistTrackLink struct {
	id         string
	sequence   int
	playlistID string
	trackID    string
	position   int
	linkPath   string
	createdAt  time.Time
	deletedAt  *time.Time
}

func (l *PlaylistTrackLink) ID() string           { return l.id }
func (l *PlaylistTrackLink) CreatedAt() time.Time { return l.createdAt }
func (l *PlaylistTrackLink) UpdatedAt() time.Time { return l.createdAt }

// Validate checks if the link's data is valid
func (l *PlaylistTrackLink) Validate() error {
	if l.id == "" {
		return ErrInvalidModel
	}
	if l.playlistID == "" || l.trackID == "" {
		return ErrInvalidModel
	}
	return nil
}

// NewPlaylistTrackLink creates a new PlaylistTrackLink junction record
func NewPlaylistTrackLink(sequence int, playlistID, trackID string, position int) *PlaylistTrackLink {
	return &PlaylistTrackLink{
		sequence:   sequence,
		playlistID: playlistID,
		trackID:    trackID,
		position:   position,
		createdAt:  time.Now(),
	}
}

func (l *PlaylistTrackLink) PlaylistID() string { return l.playlistID }
func (l *PlaylistTrackLink) TrackID() string    { return l.trackID }
func (l *PlaylistTrackLink) Position() int      { return l.position }
func (l *PlaylistTrackLink) LinkPath() string   { return l.linkPath }
func (l *PlaylistTrackLink) Sequence() int      { return l.sequence }
func (l *PlaylistTrackLink) DeletedAt() *time.Time { return l.deletedAt }

func (l *PlaylistTrackLink) SetID(id string)           { l.id = id }
func (l *PlaylistTrackLink) SetPosition(p int)         { l.position = p }
func (l *PlaylistTrackLink) SetLinkPath(p string)      { l.linkPath = p }
func (l *PlaylistTrackLink) SetDeletedAt(t *time.Time) { l.deletedAt = t }

// ErrInvalidModel is returned when an entity fails validation
var ErrInvalidModel = fmt.Errorf("invalid model")
