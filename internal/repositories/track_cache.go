package repositories

import (
	"fmt"
	"strings"

	"github.com/desertthunder/sputnik/internal/models"
)

// TrackDedup wraps [TrackRepository] to give ingestion a single canonical row
// per distinct track even when it appears in many playlists. ISRC is tried
// first since it is catalog-agnostic; the normalized title/artist pair is the
// fallback for catalog-A tracks lacking one.
type TrackDedup struct {
	repo *TrackRepository
}

// NewTrackDedup creates a new TrackDedup wrapping the given repository
func NewTrackDedup(repo *TrackRepository) *TrackDedup {
	return &TrackDedup{repo: repo}
}

// GetOrCreate returns the existing CanonicalTrack for track if one is already
// known (by ISRC, then by title/artist), otherwise it creates and returns a new one.
func (d *TrackDedup) GetOrCreate(catalogID string, track models.Track) (*models.CanonicalTrack, error) {
	if track.ISRC != "" {
		if existing, err := d.repo.GetByISRC(track.ISRC); err == nil {
			return existing, nil
		}
	}

	if existing, err := d.repo.GetByTitleArtist(track.Title, track.Artist); err == nil {
		return existing, nil
	}

	created := models.NewCanonicalTrack(0, catalogID, track)

	if err := d.repo.Create(created); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			if track.ISRC != "" {
				if existing, getErr := d.repo.GetByISRC(track.ISRC); getErr == nil {
					return existing, nil
				}
			}
			if existing, getErr := d.repo.GetByTitleArtist(track.Title, track.Artist); getErr == nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create canonical track: %w", err)
	}

	return created, nil
}
