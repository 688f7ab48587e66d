package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/sputnik/internal/shared"
)

func TestYouTubeClient(t *testing.T) {
	t.Run("NewYouTubeClient", func(t *testing.T) {
		t.Run("creates client with default URL", func(t *testing.T) {
			if c := NewYouTubeClient(""); c == nil {
				t.Fatal("expected client to be created")
			} else if c.baseURL != defaultYTBaseURL {
				t.Errorf("expected baseURL to be %s, got %s", defaultYTBaseURL, c.baseURL)
			}
		})

		t.Run("creates client with custom URL", func(t *testing.T) {
			customURL := "http://localhost:9000"
			if c := NewYouTubeClient(customURL); c.baseURL != customURL {
				t.Errorf("expected baseURL to be %s, got %s", customURL, c.baseURL)
			}
		})
	})

	t.Run("Name", func(t *testing.T) {
		if c := NewYouTubeClient(""); c.Name() != "YouTube Music" {
			t.Errorf("expected name to be 'YouTube Music', got %s", c.Name())
		}
	})

	t.Run("CatalogBClient interface", func(t *testing.T) {
		var _ CatalogBClient = NewYouTubeClient("")
	})

	t.Run("Authenticate", func(t *testing.T) {
		c := NewYouTubeClient("")
		ctx := context.Background()

		t.Run("authenticates with auth_file", func(t *testing.T) {
			credentials := map[string]string{"auth_file": "/path/to/browser.json"}
			if err := c.Authenticate(ctx, credentials); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if c.authFile != credentials["auth_file"] {
				t.Errorf("expected authFile to be %s, got %s", credentials["auth_file"], c.authFile)
			}
		})

		t.Run("fails without auth_file", func(t *testing.T) {
			err := c.Authenticate(ctx, map[string]string{})
			if err == nil {
				t.Fatal("expected error for missing auth_file")
			}
		})
	})

	t.Run("Search", func(t *testing.T) {
		mockResults := []map[string]any{
			{
				"videoId":          "vid123",
				"title":            "Harder Better Faster Stronger",
				"artists":          []map[string]any{{"name": "Daft Punk", "id": "art1"}},
				"album":            map[string]any{"name": "Discovery"},
				"duration_seconds": 224,
				"isrc":             "USVIRGIN01234",
				"is_official":      true,
				"views":            1000000,
			},
			{
				"videoId":          "vid124",
				"title":            "Harder Better Faster Stronger (Cover)",
				"artists":          []map[string]any{{"name": "Some Cover Band"}},
				"duration_seconds": 230,
			},
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/search" {
				t.Errorf("expected path /api/search, got %s", r.URL.Path)
			}

			query := r.URL.Query().Get("q")
			if query != "Harder Better Faster Stronger Daft Punk" {
				t.Errorf("expected query to contain title and artist, got %s", query)
			}
			if filter := r.URL.Query().Get("filter"); filter != "songs" {
				t.Errorf("expected filter 'songs', got %s", filter)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(mockResults)
		}))
		defer server.Close()

		c := NewYouTubeClient(server.URL)
		tracks, err := c.Search(context.Background(), "Harder Better Faster Stronger", "Daft Punk")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 candidates for the Matcher to score, got %d", len(tracks))
		}

		first := tracks[0]
		if first.ID != "vid123" {
			t.Errorf("expected track ID vid123, got %s", first.ID)
		}
		if first.Artist != "Daft Punk" {
			t.Errorf("expected artist 'Daft Punk', got %s", first.Artist)
		}
		if first.Album != "Discovery" {
			t.Errorf("expected album 'Discovery', got %s", first.Album)
		}
		if !first.Verified {
			t.Error("expected first result to be marked verified (is_official)")
		}
		if first.Views != 1000000 {
			t.Errorf("expected views 1000000, got %d", first.Views)
		}
	})

	t.Run("SearchByISRC", func(t *testing.T) {
		t.Run("returns nil for empty ISRC without a request", func(t *testing.T) {
			c := NewYouTubeClient("http://unreachable.invalid")
			tracks, err := c.SearchByISRC(context.Background(), "")
			if err != nil || tracks != nil {
				t.Errorf("expected nil, nil for empty ISRC, got %v, %v", tracks, err)
			}
		})

		t.Run("queries the proxy's isrc filter", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("isrc") != "USVIRGIN01234" {
					t.Errorf("expected isrc query param, got %s", r.URL.RawQuery)
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode([]map[string]any{
					{"videoId": "vid123", "title": "Harder Better Faster Stronger", "isrc": "USVIRGIN01234"},
				})
			}))
			defer server.Close()

			c := NewYouTubeClient(server.URL)
			tracks, err := c.SearchByISRC(context.Background(), "USVIRGIN01234")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 1 || tracks[0].ID != "vid123" {
				t.Fatalf("unexpected result: %+v", tracks)
			}
		})
	})

	t.Run("Error Handling", func(t *testing.T) {
		t.Run("handles 401 unauthorized", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"detail": "Authentication required"})
			}))
			defer server.Close()

			c := NewYouTubeClient(server.URL)
			_, err := c.Search(context.Background(), "Song", "Artist")
			if err == nil {
				t.Fatal("expected error for 401")
			}

			var catErr *shared.CatalogBError
			if !errors.As(err, &catErr) {
				t.Fatalf("expected *shared.CatalogBError, got %T", err)
			}
		})

		t.Run("handles 500 internal error", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"detail": "Internal server error"})
			}))
			defer server.Close()

			c := NewYouTubeClient(server.URL)
			if _, err := c.Search(context.Background(), "Song", "Artist"); err == nil {
				t.Fatal("expected error for 500")
			}
		})
	})
}
