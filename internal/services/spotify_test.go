package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/sputnik/internal/shared"
	"golang.org/x/oauth2"
)

func TestSpotifyClient(t *testing.T) {
	t.Run("NewSpotifyClient", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			credentials := map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
				"redirect_uri":  "DefaultRedirectURI",
			}

			client, err := NewSpotifyClient(credentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if client == nil {
				t.Fatal("expected client to be created")
			}
			if client.Name() != "Spotify" {
				t.Errorf("expected name 'Spotify', got %s", client.Name())
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			credentials := map[string]string{"client_secret": "test_client_secret"}
			if _, err := NewSpotifyClient(credentials); err == nil {
				t.Error("expected error for missing client_id")
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			credentials := map[string]string{"client_id": "test_client_id"}
			if _, err := NewSpotifyClient(credentials); err == nil {
				t.Error("expected error for missing client_secret")
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			credentials := map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
			}

			client, err := NewSpotifyClient(credentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if client.config.RedirectURL != "http://localhost:8080/callback" {
				t.Errorf("expected default redirect URI, got %s", client.config.RedirectURL)
			}
		})
	})

	t.Run("GetAuthURL", func(t *testing.T) {
		credentials := map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		}

		client, err := NewSpotifyClient(credentials)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		authURL := client.GetAuthURL("test_state")
		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("WithAccessToken", func(t *testing.T) {
			client, _ := NewSpotifyClient(map[string]string{
				"client_id": "id", "client_secret": "secret",
			})

			err := client.Authenticate(context.Background(), map[string]string{
				"access_token": "test_access_token",
			})
			if err != nil {
				t.Errorf("expected no error with access token, got %v", err)
			}
			if client.token == nil || client.token.AccessToken != "test_access_token" {
				t.Error("expected token to be set from access_token credential")
			}
		})

		t.Run("is idempotent across repeated calls", func(t *testing.T) {
			client, _ := NewSpotifyClient(map[string]string{
				"client_id": "id", "client_secret": "secret",
			})

			first := client.Authenticate(context.Background(), map[string]string{"access_token": "tok1"})
			second := client.Authenticate(context.Background(), map[string]string{"access_token": "tok2"})
			if first != nil || second != nil {
				t.Fatalf("expected both calls to succeed, got %v / %v", first, second)
			}
			if client.token.AccessToken != "tok1" {
				t.Errorf("expected the first exchange to stick, got %s", client.token.AccessToken)
			}
		})

		t.Run("Missing Credentials", func(t *testing.T) {
			client, _ := NewSpotifyClient(map[string]string{
				"client_id": "id", "client_secret": "secret",
			})
			if err := client.Authenticate(context.Background(), map[string]string{}); err == nil {
				t.Error("expected error for missing credentials")
			}
		})
	})

	t.Run("CatalogAClient interface", func(t *testing.T) {
		client, _ := NewSpotifyClient(map[string]string{
			"client_id": "id", "client_secret": "secret",
		})
		var _ CatalogAClient = client
	})

	t.Run("AllPlaylistItems follows pagination", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch {
			case strings.Contains(r.URL.Path, "/playlists/PL1/tracks"):
				json.NewEncoder(w).Encode(map[string]any{
					"total": 2,
					"items": []map[string]any{
						{"track": map[string]any{"id": "t2", "name": "Song 2", "duration_ms": 200000,
							"artists": []map[string]any{{"name": "Artist 2"}}}},
					},
					"next": nil,
				})
			case strings.HasPrefix(r.URL.Path, "/playlists/PL1"):
				next := "non-nil"
				json.NewEncoder(w).Encode(map[string]any{
					"id": "PL1", "name": "Mix", "snapshot_id": "snap1",
					"tracks": map[string]any{
						"total": 2,
						"items": []map[string]any{
							{"track": map[string]any{"id": "t1", "name": "Song 1", "duration_ms": 180000,
								"artists": []map[string]any{{"name": "Artist 1"}}}},
						},
						"next": next,
					},
				})
			}
		}))
		defer server.Close()

		client, _ := NewSpotifyClient(map[string]string{"client_id": "id", "client_secret": "secret"})
		client.baseURL = server.URL
		client.token = &oauth2.Token{AccessToken: "tok"}
		client.httpClient = http.DefaultClient

		tracks, err := client.AllPlaylistItems(context.Background(), "PL1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks across both pages, got %d", len(tracks))
		}
		if tracks[0].ID != "t1" || tracks[1].ID != "t2" {
			t.Errorf("expected tracks [t1, t2], got [%s, %s]", tracks[0].ID, tracks[1].ID)
		}
	})

	t.Run("Track maps Spotify fields onto models.Track", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id": "t1", "name": "Harder Better Faster Stronger",
				"duration_ms": 224000,
				"artists":     []map[string]any{{"name": "Daft Punk"}},
				"album":       map[string]any{"name": "Discovery"},
				"external_ids": map[string]any{"isrc": "USVIRGIN01234"},
			})
		}))
		defer server.Close()

		client, _ := NewSpotifyClient(map[string]string{"client_id": "id", "client_secret": "secret"})
		client.baseURL = server.URL
		client.token = &oauth2.Token{AccessToken: "tok"}
		client.httpClient = http.DefaultClient

		track, err := client.Track(context.Background(), "t1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if track.Artist != "Daft Punk" || track.Album != "Discovery" || track.ISRC != "USVIRGIN01234" {
			t.Errorf("unexpected track mapping: %+v", track)
		}
		if track.Duration != 224 {
			t.Errorf("expected duration 224 seconds, got %d", track.Duration)
		}
	})

	t.Run("doRequest reports token expiry as an auth error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client, _ := NewSpotifyClient(map[string]string{"client_id": "id", "client_secret": "secret"})
		client.baseURL = server.URL
		client.token = &oauth2.Token{AccessToken: "stale"}
		client.httpClient = http.DefaultClient

		_, err := client.Track(context.Background(), "t1")
		if err == nil {
			t.Fatal("expected an error for a 401 response")
		}

		var catErr *shared.CatalogAError
		if !errors.As(err, &catErr) {
			t.Fatalf("expected *shared.CatalogAError, got %T", err)
		}
		if !catErr.IsAuthError {
			t.Error("expected IsAuthError to be true for an expired token")
		}
	})
}
