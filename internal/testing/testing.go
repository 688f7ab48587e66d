// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/sputnik/internal/models"
)

// MockCatalogA is a test double for [services.CatalogAClient].
type MockCatalogA struct {
	Playlists map[string]models.PlaylistDTO
	Items     map[string][]models.Track
	Saved     []models.Track
}

func (m *MockCatalogA) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}
func (m *MockCatalogA) Playlist(ctx context.Context, playlistID string) (models.PlaylistDTO, error) {
	return m.Playlists[playlistID], nil
}
func (m *MockCatalogA) AllPlaylistItems(ctx context.Context, playlistID string) ([]models.Track, error) {
	return m.Items[playlistID], nil
}
func (m *MockCatalogA) AllSavedItems(ctx context.Context) ([]models.Track, error) {
	return m.Saved, nil
}
func (m *MockCatalogA) Track(ctx context.Context, trackID string) (models.Track, error) {
	return models.Track{ID: trackID}, nil
}
func (m *MockCatalogA) Artist(ctx context.Context, artistID string) (string, error) { return "", nil }
func (m *MockCatalogA) Album(ctx context.Context, albumID string) (string, error)   { return "", nil }
func (m *MockCatalogA) Name() string                                               { return "mock-catalog-a" }

// MockCatalogB is a test double for [services.CatalogBClient].
type MockCatalogB struct {
	Results map[string][]models.Track
}

func (m *MockCatalogB) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}
func (m *MockCatalogB) Search(ctx context.Context, title, artist string) ([]models.Track, error) {
	return m.Results[title+"|"+artist], nil
}
func (m *MockCatalogB) SearchByISRC(ctx context.Context, isrc string) ([]models.Track, error) {
	return m.Results[isrc], nil
}
func (m *MockCatalogB) Name() string { return "mock-catalog-b" }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
