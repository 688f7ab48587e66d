package embedder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/sputnik/internal/models"
)

type fakeTagger struct {
	calls []WriteTagsRequest
	err   error
}

func (f *fakeTagger) WriteTags(ctx context.Context, req WriteTagsRequest) error {
	f.calls = append(f.calls, req)
	return f.err
}

type fakeCoverFetcher struct {
	path  string
	err   error
	calls int
}

func (f *fakeCoverFetcher) Fetch(ctx context.Context, track *models.CanonicalTrack) (string, func(), error) {
	f.calls++
	if f.err != nil {
		return "", func() {}, f.err
	}
	return f.path, func() {}, nil
}

type fakeTrackStore struct {
	eligible []*models.CanonicalTrack
	updated  []*models.CanonicalTrack
}

func (f *fakeTrackStore) ListEligibleForFinalization() ([]*models.CanonicalTrack, error) {
	return f.eligible, nil
}

func (f *fakeTrackStore) Update(track *models.CanonicalTrack) error {
	f.updated = append(f.updated, track)
	return nil
}

func newAcquiredTrack(t *testing.T, id, title, artist string) *models.CanonicalTrack {
	t.Helper()
	track := models.NewCanonicalTrack(1, "catalog-a-id", models.Track{Title: title, Artist: artist, Duration: 200})
	track.SetID(id)

	path := filepath.Join(t.TempDir(), "track.m4a")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	track.SetAcquired(path, track.CreatedAt())
	return track
}

func TestEmbedTrack(t *testing.T) {
	t.Run("writes tags and marks metadata embedded", func(t *testing.T) {
		tagger := &fakeTagger{}
		cover := &fakeCoverFetcher{}
		store := &fakeTrackStore{}
		e := New(tagger, cover, store, 2)

		track := newAcquiredTrack(t, "t1", "One More Time", "Daft Punk")

		if err := e.EmbedTrack(context.Background(), track); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !track.MetadataEmbedded() {
			t.Error("expected MetadataEmbedded to be true")
		}
		if len(tagger.calls) != 1 {
			t.Fatalf("expected exactly one WriteTags call, got %d", len(tagger.calls))
		}
		if tagger.calls[0].Tags["title"] != "One More Time" {
			t.Errorf("unexpected title tag %q", tagger.calls[0].Tags["title"])
		}
		if len(store.updated) != 1 {
			t.Error("expected exactly one Registry update")
		}
	})

	t.Run("embeds lyrics text when present", func(t *testing.T) {
		tagger := &fakeTagger{}
		store := &fakeTrackStore{}
		e := New(tagger, nil, store, 2)

		track := newAcquiredTrack(t, "t2", "Song", "Artist")
		track.SetLyrics(true, "la la la", false, "genius")

		if err := e.EmbedTrack(context.Background(), track); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tagger.calls[0].Lyrics != "la la la" {
			t.Errorf("expected lyrics to be passed through, got %q", tagger.calls[0].Lyrics)
		}
		if !track.LyricsEmbedded() {
			t.Error("expected LyricsEmbedded to be true")
		}
	})

	t.Run("continues without a cover on fetch failure", func(t *testing.T) {
		tagger := &fakeTagger{}
		cover := &fakeCoverFetcher{err: errors.New("network down")}
		store := &fakeTrackStore{}
		e := New(tagger, cover, store, 2)

		track := newAcquiredTrack(t, "t3", "Song", "Artist")

		if err := e.EmbedTrack(context.Background(), track); err != nil {
			t.Fatalf("expected cover failure to be non-fatal, got %v", err)
		}
		if tagger.calls[0].CoverPath != "" {
			t.Error("expected no cover path on fetch failure")
		}
	})

	t.Run("does not mark embedded on tagger failure", func(t *testing.T) {
		tagger := &fakeTagger{err: errors.New("write failed")}
		store := &fakeTrackStore{}
		e := New(tagger, nil, store, 2)

		track := newAcquiredTrack(t, "t4", "Song", "Artist")

		if err := e.EmbedTrack(context.Background(), track); err == nil {
			t.Fatal("expected an error from a failing tagger")
		}
		if track.MetadataEmbedded() {
			t.Error("expected MetadataEmbedded to remain false")
		}
		if len(store.updated) != 0 {
			t.Error("expected no Registry update on failure")
		}
	})

	t.Run("errors when the canonical file is missing", func(t *testing.T) {
		tagger := &fakeTagger{}
		store := &fakeTrackStore{}
		e := New(tagger, nil, store, 2)

		track := models.NewCanonicalTrack(1, "catalog-a-id", models.Track{Title: "Song", Artist: "Artist"})
		track.SetID("t5")
		track.SetAcquired("/nonexistent/path.m4a", track.CreatedAt())

		if err := e.EmbedTrack(context.Background(), track); err == nil {
			t.Fatal("expected an error for a missing canonical file")
		}
	})
}

func TestRun(t *testing.T) {
	tagger := &fakeTagger{}
	tracks := []*models.CanonicalTrack{
		newAcquiredTrack(t, "a", "Song A", "Artist"),
		newAcquiredTrack(t, "b", "Song B", "Artist"),
	}
	store := &fakeTrackStore{eligible: tracks}
	e := New(tagger, nil, store, 2)

	stats, err := e.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Embedded != 2 {
		t.Errorf("expected 2 embedded, got %+v", stats)
	}

	t.Run("dry run skips tagging entirely", func(t *testing.T) {
		dryTagger := &fakeTagger{}
		dryStore := &fakeTrackStore{eligible: tracks}
		dr := New(dryTagger, nil, dryStore, 2)

		stats, err := dr.Run(context.Background(), true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if stats != (Stats{}) {
			t.Errorf("expected empty stats for dry run, got %+v", stats)
		}
		if len(dryTagger.calls) != 0 {
			t.Error("expected no tagger calls during dry run")
		}
	})
}
