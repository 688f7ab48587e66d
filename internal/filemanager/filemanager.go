// package filemanager owns the on-disk layout of the canonical audio store
// and the per-playlist views materialized over it. It is stateless aside
// from its configured root directory; it never talks to the Registry and
// derives everything it does from the arguments it is given.
//
// Layout rooted at Manager.root:
//
//	root/tracks/{Title}-{Artist}.m4a                       (canonical)
//	root/Playlists/{PlaylistName}/{NNNNN}-{Title}-{Artist}.m4a   (links)
//
// Grounded on the teacher's internal/shared path helpers (ExpandPath,
// AbsolutePath) and on oshokin-zvuk-grabber's internal/service/zvuk/file.go,
// whose explicit os.O_CREATE|os.O_EXCL vs os.O_TRUNC file-option selection
// and truncateFolderName sanitize-then-clip idiom are generalized here from
// folder names to track/artist filenames.
package filemanager

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	tracksDirName    = "tracks"
	playlistsDirName = "Playlists"

	maxFilenameLength = 200
	positionWidth     = 5

	dirPerm  = 0o755
	filePerm = 0o644
)

// forbiddenChars matches the characters spec.md's sanitization rule names:
// the Windows-reserved set plus ASCII control characters.
var forbiddenChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// ErrFileNotFound is returned when CreatePlaylistLink is asked to link a
// canonical path that does not exist on disk.
var ErrFileNotFound = fmt.Errorf("canonical file not found")

// LinkTrack is the minimal shape FileManager needs to place or export a
// track within a playlist view: enough to derive a filename and an M3U
// entry, nothing more.
type LinkTrack struct {
	Position      int
	Title         string
	Artist        string
	Duration      int // seconds, for M3U #EXTINF
	CanonicalPath string
}

// PlaylistExport pairs a playlist name with the tracks it currently
// contains, the unit ExportLibraryM3U iterates over.
type PlaylistExport struct {
	Name   string
	Tracks []LinkTrack
}

// Manager implements the filesystem half of the acquisition pipeline:
// canonical paths are pure functions of (artist, title); playlist views are
// hard links (or, when unsupported, relative symlinks) over those paths.
type Manager struct {
	root string
}

// NewManager creates a Manager rooted at root. The directory tree is
// created lazily by the operations that need it, not here.
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Root returns the manager's configured root directory.
func (m *Manager) Root() string { return m.root }

// TracksDir is the directory canonical files are stored under.
func (m *Manager) TracksDir() string { return filepath.Join(m.root, tracksDirName) }

// PlaylistsDir is the directory playlist view directories live under.
func (m *Manager) PlaylistsDir() string { return filepath.Join(m.root, playlistsDirName) }

// CanonicalPath is a pure function of (artist, title): the same pair always
// derives the same path, which is what lets the Acquirer treat an existing
// file at that path as a cache hit.
func (m *Manager) CanonicalPath(artist, title string) string {
	name := sanitizeFilename(title) + "-" + sanitizeFilename(artist) + ".m4a"
	return filepath.Join(m.TracksDir(), name)
}

func (m *Manager) playlistDir(playlistName string) string {
	return filepath.Join(m.PlaylistsDir(), sanitizeFilename(playlistName))
}

func (m *Manager) linkFilename(position int, title, artist string) string {
	base := sanitizeFilename(fmt.Sprintf("%s-%s", title, artist))
	return fmt.Sprintf("%0*d-%s.m4a", positionWidth, position, base)
}

// sanitizeFilename replaces reserved/control characters with underscores,
// strips leading/trailing whitespace and dots, and clips to
// maxFilenameLength. A result left empty by the trimming becomes "Unknown",
// so neither half of a CanonicalPath name is ever empty; an all-reserved
// input keeps its underscores.
func sanitizeFilename(name string) string {
	cleaned := forbiddenChars.ReplaceAllString(name, "_")
	cleaned = strings.Trim(cleaned, " \t.")

	if len([]rune(cleaned)) > maxFilenameLength {
		cleaned = string([]rune(cleaned)[:maxFilenameLength])
	}

	if cleaned == "" {
		return "Unknown"
	}

	return cleaned
}

// CreatePlaylistLink places a view entry for canonicalPath in
// playlistName/position, atomically replacing any existing entry at that
// target. It tries a hard link first and falls back to a relative symlink
// when the link call fails (cross-device, unsupported filesystem). Returns
// ErrFileNotFound if canonicalPath does not exist.
func (m *Manager) CreatePlaylistLink(canonicalPath, playlistName string, position int, title, artist string) (string, error) {
	if _, err := os.Stat(canonicalPath); err != nil {
		if os.IsNotExist(err) {
			return "", ErrFileNotFound
		}
		return "", fmt.Errorf("stat canonical file: %w", err)
	}

	dir := m.playlistDir(playlistName)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("create playlist directory: %w", err)
	}

	target := filepath.Join(dir, m.linkFilename(position, title, artist))

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("remove existing link: %w", err)
	}

	if err := os.Link(canonicalPath, target); err != nil {
		rel, relErr := filepath.Rel(dir, canonicalPath)
		if relErr != nil {
			rel = canonicalPath
		}
		if symErr := os.Symlink(rel, target); symErr != nil {
			return "", fmt.Errorf("create hard link (%v) and symlink fallback (%w)", err, symErr)
		}
	}

	return target, nil
}

// PlaylistRef names a playlist a track should have its link refreshed in,
// at the position it currently occupies there.
type PlaylistRef struct {
	Name     string
	Position int
}

// UpdateAllPlaylistLinks refreshes canonicalPath's link in every playlist in
// playlists, best-effort: one playlist's failure is collected but does not
// stop the rest.
func (m *Manager) UpdateAllPlaylistLinks(canonicalPath, title, artist string, playlists []PlaylistRef) []error {
	var errs []error
	for _, p := range playlists {
		if _, err := m.CreatePlaylistLink(canonicalPath, p.Name, p.Position, title, artist); err != nil {
			errs = append(errs, fmt.Errorf("playlist %q: %w", p.Name, err))
		}
	}
	return errs
}

// RebuildPlaylistFromTracks deletes playlistName's view directory and
// recreates every link from tracks, used when sync detects position
// changes that CleanupPlaylistOrphans alone cannot resolve.
func (m *Manager) RebuildPlaylistFromTracks(playlistName string, tracks []LinkTrack) error {
	dir := m.playlistDir(playlistName)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear playlist directory: %w", err)
	}

	for _, t := range tracks {
		if _, err := m.CreatePlaylistLink(t.CanonicalPath, playlistName, t.Position, t.Title, t.Artist); err != nil {
			return fmt.Errorf("link track at position %d: %w", t.Position, err)
		}
	}

	return nil
}

// CleanupPlaylistOrphans removes every link file in playlistName whose
// leading zero-padded position prefix is not present in validPositions.
func (m *Manager) CleanupPlaylistOrphans(playlistName string, validPositions map[int]bool) error {
	dir := m.playlistDir(playlistName)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read playlist directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		prefix, _, found := strings.Cut(entry.Name(), "-")
		if !found {
			continue
		}

		var position int
		if _, err := fmt.Sscanf(prefix, "%d", &position); err != nil {
			continue
		}

		if !validPositions[position] {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				return fmt.Errorf("remove orphan link %q: %w", entry.Name(), err)
			}
		}
	}

	return nil
}

// ExportPlaylistM3U writes an extended M3U playlist for tracks to
// exportDir/{playlistName}.m3u, with a #EXTINF line per track and a path
// relative to exportDir.
func (m *Manager) ExportPlaylistM3U(playlistName string, tracks []LinkTrack, exportDir string) error {
	if err := os.MkdirAll(exportDir, dirPerm); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(exportDir, sanitizeFilename(playlistName)+".m3u")

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, t := range sortedByPosition(tracks) {
		rel, err := filepath.Rel(exportDir, t.CanonicalPath)
		if err != nil {
			rel = t.CanonicalPath
		}
		fmt.Fprintf(&b, "#EXTINF:%d,%s - %s\n%s\n", t.Duration, t.Artist, t.Title, rel)
	}

	return os.WriteFile(path, []byte(b.String()), filePerm)
}

// ExportPlaylistCopy copies (rather than links) every track in tracks into
// exportDir/{playlistName}/, so the export survives independently of the
// canonical store.
func (m *Manager) ExportPlaylistCopy(playlistName string, tracks []LinkTrack, exportDir string) error {
	dir := filepath.Join(exportDir, sanitizeFilename(playlistName))
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	for _, t := range sortedByPosition(tracks) {
		dest := filepath.Join(dir, m.linkFilename(t.Position, t.Title, t.Artist))
		if err := copyFile(t.CanonicalPath, dest); err != nil {
			return fmt.Errorf("copy track at position %d: %w", t.Position, err)
		}
	}

	return nil
}

// ExportLibraryM3U exports every playlist in playlists under exportDir,
// generalizing ExportPlaylistM3U across the whole library in one call.
func (m *Manager) ExportLibraryM3U(playlists []PlaylistExport, exportDir string) error {
	for _, p := range playlists {
		if err := m.ExportPlaylistM3U(p.Name, p.Tracks, exportDir); err != nil {
			return fmt.Errorf("playlist %q: %w", p.Name, err)
		}
	}
	return nil
}

func sortedByPosition(tracks []LinkTrack) []LinkTrack {
	sorted := make([]LinkTrack, len(tracks))
	copy(sorted, tracks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	return sorted
}

func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}

	if _, err := out.ReadFrom(in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}
