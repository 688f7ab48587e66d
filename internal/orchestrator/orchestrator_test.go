package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/sputnik/internal/acquirer"
	"github.com/desertthunder/sputnik/internal/embedder"
	"github.com/desertthunder/sputnik/internal/lyrics"
	"github.com/desertthunder/sputnik/internal/models"
	"github.com/desertthunder/sputnik/internal/repositories"
	"github.com/desertthunder/sputnik/internal/shared"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

type fakeCatalogA struct {
	playlist      models.PlaylistDTO
	playlistItems []models.Track
	savedItems    []models.Track
}

func (f *fakeCatalogA) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}
func (f *fakeCatalogA) Playlist(ctx context.Context, playlistID string) (models.PlaylistDTO, error) {
	return f.playlist, nil
}
func (f *fakeCatalogA) AllPlaylistItems(ctx context.Context, playlistID string) ([]models.Track, error) {
	return f.playlistItems, nil
}
func (f *fakeCatalogA) AllSavedItems(ctx context.Context) ([]models.Track, error) {
	return f.savedItems, nil
}
func (f *fakeCatalogA) Track(ctx context.Context, trackID string) (models.Track, error) {
	return models.Track{}, nil
}
func (f *fakeCatalogA) Artist(ctx context.Context, artistID string) (string, error) { return "", nil }
func (f *fakeCatalogA) Album(ctx context.Context, albumID string) (string, error)    { return "", nil }
func (f *fakeCatalogA) Name() string                                                { return "catalog-a" }

type fakeCatalogB struct {
	byISRC    map[string][]models.Track
	byQuery   []models.Track
	searchErr error
}

func (f *fakeCatalogB) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}
func (f *fakeCatalogB) Search(ctx context.Context, title, artist string) ([]models.Track, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.byQuery, nil
}
func (f *fakeCatalogB) SearchByISRC(ctx context.Context, isrc string) ([]models.Track, error) {
	return f.byISRC[isrc], nil
}
func (f *fakeCatalogB) Name() string { return "catalog-b" }

func TestIngestPlaylist(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	playlists := repositories.NewPlaylistRepository(db)
	tracks := repositories.NewTrackRepository(db)
	dedup := repositories.NewTrackDedup(tracks)
	links := repositories.NewLinkRepository(db)

	catalogA := &fakeCatalogA{
		playlist: models.PlaylistDTO{ID: "pl1", Name: "Road Trip", TrackCount: 2},
		playlistItems: []models.Track{
			{ID: "t1", Title: "Song A", Artist: "Artist A", ISRC: "ISRC001"},
			{ID: "t2", Title: "Song B", Artist: "Artist B"},
		},
	}

	o := New(catalogA, &fakeCatalogB{}, playlists, tracks, dedup, links, nil, nil, nil)

	n, err := o.IngestPlaylist(context.Background(), "pl1", false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 tracks ingested, got %d", n)
	}

	playlist, err := playlists.GetByCatalogID("pl1")
	if err != nil {
		t.Fatalf("expected playlist to be created: %v", err)
	}

	linked, err := links.ListByPlaylist(playlist.ID())
	if err != nil {
		t.Fatalf("failed to list links: %v", err)
	}
	if len(linked) != 2 {
		t.Fatalf("expected 2 links, got %d", len(linked))
	}

	t.Run("re-ingesting the same playlist does not duplicate links", func(t *testing.T) {
		n, err := o.IngestPlaylist(context.Background(), "pl1", false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n != 2 {
			t.Fatalf("expected 2 tracks ingested again, got %d", n)
		}

		linked, err := links.ListByPlaylist(playlist.ID())
		if err != nil {
			t.Fatalf("failed to list links: %v", err)
		}
		if len(linked) != 2 {
			t.Fatalf("expected still 2 links after re-ingestion, got %d", len(linked))
		}
	})
}

func TestIngestSaved(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	playlists := repositories.NewPlaylistRepository(db)
	tracks := repositories.NewTrackRepository(db)
	dedup := repositories.NewTrackDedup(tracks)
	links := repositories.NewLinkRepository(db)

	catalogA := &fakeCatalogA{
		savedItems: []models.Track{{ID: "s1", Title: "Saved Song", Artist: "Someone"}},
	}

	o := New(catalogA, &fakeCatalogB{}, playlists, tracks, dedup, links, nil, nil, nil)

	n, err := o.IngestSaved(context.Background(), false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 track ingested, got %d", n)
	}

	playlist, err := playlists.GetByCatalogID(models.LikedPlaylistCatalogID)
	if err != nil {
		t.Fatalf("expected a virtual playlist to be created: %v", err)
	}
	if playlist.Name() != models.LikedPlaylistName {
		t.Errorf("expected playlist name %q, got %q", models.LikedPlaylistName, playlist.Name())
	}
}

func TestIngestPlaylistSyncRemovesDepartedLinks(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	playlists := repositories.NewPlaylistRepository(db)
	tracks := repositories.NewTrackRepository(db)
	dedup := repositories.NewTrackDedup(tracks)
	links := repositories.NewLinkRepository(db)

	catalogA := &fakeCatalogA{
		playlist: models.PlaylistDTO{ID: "pl1", Name: "Road Trip", TrackCount: 2},
		playlistItems: []models.Track{
			{ID: "t1", Title: "Song A", Artist: "Artist A", ISRC: "ISRC001"},
			{ID: "t2", Title: "Song B", Artist: "Artist B"},
		},
	}

	o := New(catalogA, &fakeCatalogB{}, playlists, tracks, dedup, links, nil, nil, nil)

	if _, err := o.IngestPlaylist(context.Background(), "pl1", true); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	playlist, err := playlists.GetByCatalogID("pl1")
	if err != nil {
		t.Fatalf("expected playlist to be created: %v", err)
	}

	catalogA.playlistItems = []models.Track{
		{ID: "t1", Title: "Song A", Artist: "Artist A", ISRC: "ISRC001"},
	}

	n, err := o.IngestPlaylist(context.Background(), "pl1", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 track ingested, got %d", n)
	}

	linked, err := links.ListByPlaylist(playlist.ID())
	if err != nil {
		t.Fatalf("failed to list links: %v", err)
	}
	if len(linked) != 1 || linked[0].TrackID() == "" {
		t.Fatalf("expected sync to leave exactly the one surviving link, got %+v", linked)
	}
}

func TestResolveTracks(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	tracks := repositories.NewTrackRepository(db)
	dedup := repositories.NewTrackDedup(tracks)

	resolvable := models.NewCanonicalTrack(0, "catA", models.Track{Title: "Song A", Artist: "Artist A", Duration: 200, ISRC: "ISRC001"})
	if err := tracks.Create(resolvable); err != nil {
		t.Fatalf("failed to seed track: %v", err)
	}

	unmatchable := models.NewCanonicalTrack(0, "catA", models.Track{Title: "Obscure Song", Artist: "Nobody", Duration: 200})
	if err := tracks.Create(unmatchable); err != nil {
		t.Fatalf("failed to seed track: %v", err)
	}

	catalogB := &fakeCatalogB{
		byISRC: map[string][]models.Track{
			"ISRC001": {{ID: "b1", URL: "b1", Title: "Song A", Artist: "Artist A", Duration: 200, Verified: true}},
		},
		byQuery: nil,
	}

	o := New(&fakeCatalogA{}, catalogB, nil, tracks, dedup, nil, nil, nil, nil)

	resolved, failed, err := o.ResolveTracks(context.Background(), false, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resolved != 1 {
		t.Errorf("expected 1 resolved, got %d", resolved)
	}
	if failed != 1 {
		t.Errorf("expected 1 failed, got %d", failed)
	}

	stillPending, err := tracks.ListPendingResolution()
	if err != nil {
		t.Fatalf("failed to list pending: %v", err)
	}
	if len(stillPending) != 0 {
		t.Errorf("expected no tracks still pending resolution, got %d", len(stillPending))
	}

	got, err := tracks.GetByISRC("ISRC001")
	if err != nil {
		t.Fatalf("failed to fetch resolved track: %v", err)
	}
	if got.CatalogBURL() != "b1" {
		t.Errorf("expected resolved URL %q, got %q", "b1", got.CatalogBURL())
	}

	t.Run("a catalog B search error leaves the track unresolved for retry", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		tracks := repositories.NewTrackRepository(db)
		dedup := repositories.NewTrackDedup(tracks)

		flaky := models.NewCanonicalTrack(0, "catA", models.Track{Title: "Flaky", Artist: "Artist", Duration: 200})
		if err := tracks.Create(flaky); err != nil {
			t.Fatalf("failed to seed track: %v", err)
		}

		catalogB := &fakeCatalogB{searchErr: errors.New("rate limited")}
		o := New(&fakeCatalogA{}, catalogB, nil, tracks, dedup, nil, nil, nil, nil)

		resolved, failed, err := o.ResolveTracks(context.Background(), false, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resolved != 0 || failed != 0 {
			t.Errorf("expected neither resolved nor failed, got resolved=%d failed=%d", resolved, failed)
		}

		pending, err := tracks.ListPendingResolution()
		if err != nil {
			t.Fatalf("failed to list pending: %v", err)
		}
		if len(pending) != 1 {
			t.Errorf("expected track to remain pending resolution, got %d", len(pending))
		}
	})

	t.Run("dry run touches nothing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		tracks := repositories.NewTrackRepository(db)
		dedup := repositories.NewTrackDedup(tracks)
		track := models.NewCanonicalTrack(0, "catA", models.Track{Title: "Song", Artist: "Artist", Duration: 200})
		if err := tracks.Create(track); err != nil {
			t.Fatalf("failed to seed track: %v", err)
		}

		o := New(&fakeCatalogA{}, &fakeCatalogB{}, nil, tracks, dedup, nil, nil, nil, nil)

		resolved, failed, err := o.ResolveTracks(context.Background(), true, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resolved != 0 || failed != 0 {
			t.Errorf("expected dry run to report zero, got resolved=%d failed=%d", resolved, failed)
		}

		pending, err := tracks.ListPendingResolution()
		if err != nil {
			t.Fatalf("failed to list pending: %v", err)
		}
		if len(pending) != 1 {
			t.Error("expected the track to remain untouched by the dry run")
		}
	})
}

// compile-time checks that the phase components' constructors still match
// the signatures Orchestrator.New expects, without actually exercising them.
var (
	_ = acquirer.New
	_ = lyrics.New
	_ = embedder.New
)
