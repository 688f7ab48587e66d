package acquirer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/sputnik/internal/filemanager"
	"github.com/desertthunder/sputnik/internal/models"
	"github.com/desertthunder/sputnik/internal/repositories"
	"github.com/desertthunder/sputnik/internal/shared"
)

// fakeExtractor writes an "extracted.m4a" file holding content into the
// output directory instead of shelling out to yt-dlp.
type fakeExtractor struct {
	content string
	err     error
	calls   int
}

func (f *fakeExtractor) Extract(ctx context.Context, req ExtractRequest) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(req.OutputDir, "extracted.m4a")
	if err := os.WriteFile(path, []byte(f.content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeTrackStore struct {
	eligible []*models.CanonicalTrack
	updated  []*models.CanonicalTrack
}

func (f *fakeTrackStore) ListEligibleForAcquisition() ([]*models.CanonicalTrack, error) {
	return f.eligible, nil
}

func (f *fakeTrackStore) Update(track *models.CanonicalTrack) error {
	f.updated = append(f.updated, track)
	return nil
}

type fakeLinkStore struct {
	memberships map[string][]repositories.TrackMembership
}

func (f *fakeLinkStore) ListMembershipsForTrack(trackID string) ([]repositories.TrackMembership, error) {
	return f.memberships[trackID], nil
}

func newResolvedTrack(id, title, artist, url string) *models.CanonicalTrack {
	track := models.NewCanonicalTrack(1, "catalog-a-id", models.Track{Title: title, Artist: artist, Duration: 200})
	track.SetID(id)
	track.SetResolution(url, 90.0, false)
	return track
}

func TestAcquireTrack(t *testing.T) {
	t.Run("downloads, moves to canonical path, and marks acquired", func(t *testing.T) {
		fm := filemanager.NewManager(t.TempDir())
		extractor := &fakeExtractor{content: "audio-bytes"}
		trackStore := &fakeTrackStore{}
		linkStore := &fakeLinkStore{memberships: map[string][]repositories.TrackMembership{}}

		a := New(fm, extractor, trackStore, linkStore, 2, "", "")
		track := newResolvedTrack("t1", "One More Time", "Daft Punk", "https://music.youtube.com/watch?v=abc")

		skipped, err := a.AcquireTrack(context.Background(), track)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if skipped {
			t.Error("expected a fresh download, not a cache hit")
		}
		if !track.Acquired() {
			t.Error("expected track to be marked acquired")
		}

		content, err := os.ReadFile(track.CanonicalPath())
		if err != nil {
			t.Fatalf("expected canonical file to exist: %v", err)
		}
		if string(content) != "audio-bytes" {
			t.Errorf("expected moved content, got %q", content)
		}

		if len(trackStore.updated) != 1 {
			t.Errorf("expected exactly one Update call, got %d", len(trackStore.updated))
		}
	})

	t.Run("treats an existing canonical file as a cache hit", func(t *testing.T) {
		fm := filemanager.NewManager(t.TempDir())
		extractor := &fakeExtractor{content: "should-not-be-used"}
		trackStore := &fakeTrackStore{}
		linkStore := &fakeLinkStore{memberships: map[string][]repositories.TrackMembership{}}

		track := newResolvedTrack("t2", "Track", "Artist", "https://music.youtube.com/watch?v=xyz")
		canonical := fm.CanonicalPath(track.Artist(), track.Title())
		if err := os.MkdirAll(filepath.Dir(canonical), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(canonical, []byte("already-there"), 0o644); err != nil {
			t.Fatal(err)
		}

		a := New(fm, extractor, trackStore, linkStore, 2, "", "")
		skipped, err := a.AcquireTrack(context.Background(), track)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !skipped {
			t.Error("expected a cache hit to be reported as skipped")
		}
		if extractor.calls != 0 {
			t.Error("expected the extractor not to be invoked on a cache hit")
		}
		if !track.Acquired() {
			t.Error("expected cache-hit track to still be marked acquired")
		}
	})

	t.Run("does not mark acquired on extractor failure", func(t *testing.T) {
		fm := filemanager.NewManager(t.TempDir())
		extractor := &fakeExtractor{err: shared.ErrServiceUnavailable}
		trackStore := &fakeTrackStore{}
		linkStore := &fakeLinkStore{memberships: map[string][]repositories.TrackMembership{}}

		a := New(fm, extractor, trackStore, linkStore, 2, "", "")
		track := newResolvedTrack("t3", "Track", "Artist", "https://music.youtube.com/watch?v=bad")

		_, err := a.AcquireTrack(context.Background(), track)
		if err == nil {
			t.Fatal("expected an error from a failing extractor")
		}
		if track.Acquired() {
			t.Error("expected track not to be marked acquired on failure")
		}
		if len(trackStore.updated) != 0 {
			t.Error("expected no Update call on failure")
		}
	})

	t.Run("refreshes links for every playlist the track belongs to", func(t *testing.T) {
		fm := filemanager.NewManager(t.TempDir())
		extractor := &fakeExtractor{content: "audio"}
		trackStore := &fakeTrackStore{}
		linkStore := &fakeLinkStore{memberships: map[string][]repositories.TrackMembership{
			"t4": {{PlaylistName: "Discovery", Position: 1}, {PlaylistName: "Favorites", Position: 5}},
		}}

		a := New(fm, extractor, trackStore, linkStore, 2, "", "")
		track := newResolvedTrack("t4", "Track", "Artist", "https://music.youtube.com/watch?v=abc")

		if _, err := a.AcquireTrack(context.Background(), track); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if _, err := os.Stat(filepath.Join(fm.PlaylistsDir(), "Discovery")); err != nil {
			t.Errorf("expected Discovery playlist link directory: %v", err)
		}
		if _, err := os.Stat(filepath.Join(fm.PlaylistsDir(), "Favorites")); err != nil {
			t.Errorf("expected Favorites playlist link directory: %v", err)
		}
	})
}

func TestRun(t *testing.T) {
	fm := filemanager.NewManager(t.TempDir())
	extractor := &fakeExtractor{content: "audio"}

	tracks := []*models.CanonicalTrack{
		newResolvedTrack("a", "Song A", "Artist", "https://music.youtube.com/watch?v=1"),
		newResolvedTrack("b", "Song B", "Artist", "https://music.youtube.com/watch?v=2"),
		newResolvedTrack("c", "Song C", "Artist", "https://music.youtube.com/watch?v=3"),
	}
	trackStore := &fakeTrackStore{eligible: tracks}
	linkStore := &fakeLinkStore{memberships: map[string][]repositories.TrackMembership{}}

	a := New(fm, extractor, trackStore, linkStore, 2, "", "")

	stats, err := a.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Acquired != 3 {
		t.Errorf("expected 3 acquired, got %+v", stats)
	}

	t.Run("dry run touches neither Registry nor filesystem", func(t *testing.T) {
		fm := filemanager.NewManager(t.TempDir())
		extractor := &fakeExtractor{content: "audio"}
		trackStore := &fakeTrackStore{eligible: tracks}
		linkStore := &fakeLinkStore{memberships: map[string][]repositories.TrackMembership{}}
		a := New(fm, extractor, trackStore, linkStore, 2, "", "")

		stats, err := a.Run(context.Background(), true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if stats != (Stats{}) {
			t.Errorf("expected empty stats for dry run, got %+v", stats)
		}
		if extractor.calls != 0 {
			t.Error("expected extractor not to be invoked during dry run")
		}
		if len(trackStore.updated) != 0 {
			t.Error("expected no Registry updates during dry run")
		}
	})
}
