package matcher

import (
	"testing"

	"github.com/desertthunder/sputnik/internal/models"
)

func TestResolve(t *testing.T) {
	source := models.Track{Title: "Harder Better Faster Stronger", Artist: "Daft Punk", Duration: 224}

	t.Run("picks the closest title/artist match", func(t *testing.T) {
		candidates := []models.Track{
			{Title: "Harder Better Faster Stronger", Artist: "Daft Punk", Duration: 224, Verified: true},
			{Title: "Harder Better Faster Stronger (Live)", Artist: "Daft Punk Tribute Band", Duration: 300},
		}

		result := Resolve(source, candidates)
		if result.Best == nil {
			t.Fatal("expected a match")
		}
		if result.Best.Track.Title != "Harder Better Faster Stronger" {
			t.Errorf("expected the exact match to win, got %q", result.Best.Track.Title)
		}
	})

	t.Run("excludes candidates outside duration tolerance", func(t *testing.T) {
		candidates := []models.Track{
			{Title: "Harder Better Faster Stronger", Artist: "Daft Punk", Duration: 224 + 60},
		}

		result := Resolve(source, candidates)
		if result.Best != nil {
			t.Error("expected no match when duration drifts beyond tolerance")
		}
	})

	t.Run("marks ambiguous when top two are within CloseMatchThreshold", func(t *testing.T) {
		candidates := []models.Track{
			{Title: "Harder Better Faster Stronger", Artist: "Daft Punk", Duration: 224},
			{Title: "Harder Better Faster Stronger", Artist: "Daft Punk", Duration: 225},
		}

		result := Resolve(source, candidates)
		if result.Best == nil || result.RunnerUp == nil {
			t.Fatal("expected both a best and a runner-up")
		}
		if !result.Ambiguous {
			t.Error("expected near-identical candidates to be flagged ambiguous")
		}
	})

	t.Run("rejects everything below the acceptance floor", func(t *testing.T) {
		candidates := []models.Track{
			{Title: "Some Completely Different Song", Artist: "Unrelated Artist", Duration: 224},
		}

		result := Resolve(source, candidates)
		if result.Best != nil {
			t.Error("expected no match for an unrelated candidate")
		}
	})

	t.Run("exact ISRC match scores a perfect base", func(t *testing.T) {
		withISRC := source
		withISRC.ISRC = "FR6V81900001"

		candidates := []models.Track{
			{Title: "Totally Different Title", Artist: "Totally Different Artist", Duration: 224, ISRC: "FR6V81900001"},
		}

		result := Resolve(withISRC, candidates)
		if result.Best == nil {
			t.Fatal("expected ISRC match to be accepted regardless of title drift")
		}
	})
}

func TestTokenSetRatio(t *testing.T) {
	cases := []struct {
		a, b string
		min  float64
	}{
		{"the strokes", "strokes, the", 95},
		{"daft punk", "daft punk", 100},
		{"", "", 100},
	}

	for _, c := range cases {
		got := tokenSetRatio(c.a, c.b)
		if got < c.min {
			t.Errorf("tokenSetRatio(%q, %q) = %.2f, want >= %.2f", c.a, c.b, got, c.min)
		}
	}
}
