package shared

import "fmt"

// Sentinel errors wrapped by the typed kinds below; match against these with
// errors.Is regardless of which kind carries them.
var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")

	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")

	ErrRegistry   = fmt.Errorf("registry error")
	ErrAcquisition = fmt.Errorf("acquisition error")
	ErrLyrics      = fmt.Errorf("lyrics error")
	ErrEmbedding   = fmt.Errorf("embedding error")
)

// ConfigError reports a missing or malformed configuration key, naming its
// dotted path so operators can find it in config.yaml without guessing.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config error at %s: %v", e.Path, e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err as a [ConfigError] for the given dotted config path.
func NewConfigError(path string, err error) *ConfigError {
	return &ConfigError{Path: path, Err: err}
}

// RegistryError reports a failure in the persisted-state store, naming the
// operation being performed when it failed.
type RegistryError struct {
	Op  string
	Err error
}

func (e *RegistryError) Error() string { return fmt.Sprintf("registry: %s: %v", e.Op, e.Err) }
func (e *RegistryError) Unwrap() error { return ErrRegistry }

// NewRegistryError wraps err as a [RegistryError] for the named operation.
func NewRegistryError(op string, err error) *RegistryError {
	return &RegistryError{Op: op, Err: err}
}

// CatalogAError reports a failure calling the catalog-A (Spotify-like)
// service. IsAuthError distinguishes a failed credential exchange, which
// aborts the whole ingestion phase, from a per-request failure, which does not.
type CatalogAError struct {
	Op          string
	Err         error
	IsAuthError bool
}

func (e *CatalogAError) Error() string { return fmt.Sprintf("catalog A: %s: %v", e.Op, e.Err) }
func (e *CatalogAError) Unwrap() error { return e.Err }

// NewCatalogAError wraps err as a [CatalogAError] for the named operation.
func NewCatalogAError(op string, err error, isAuth bool) *CatalogAError {
	return &CatalogAError{Op: op, Err: err, IsAuthError: isAuth}
}

// CatalogBError reports a failure calling the catalog-B (YouTube-Music-like) service.
type CatalogBError struct {
	Op  string
	Err error
}

func (e *CatalogBError) Error() string { return fmt.Sprintf("catalog B: %s: %v", e.Op, e.Err) }
func (e *CatalogBError) Unwrap() error { return e.Err }

// NewCatalogBError wraps err as a [CatalogBError] for the named operation.
func NewCatalogBError(op string, err error) *CatalogBError {
	return &CatalogBError{Op: op, Err: err}
}

// AcquisitionError reports a failure downloading or converting a single track.
// Per-track acquisition failures never abort the acquisition phase.
type AcquisitionError struct {
	TrackID string
	Err     error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquisition failed for track %s: %v", e.TrackID, e.Err)
}
func (e *AcquisitionError) Unwrap() error { return ErrAcquisition }

// NewAcquisitionError wraps err as an [AcquisitionError] for the given track.
func NewAcquisitionError(trackID string, err error) *AcquisitionError {
	return &AcquisitionError{TrackID: trackID, Err: err}
}

// LyricsError reports a failure in the lyrics provider chain. The enrichment
// phase still marks the track attempted even when this error is returned.
type LyricsError struct {
	TrackID string
	Err     error
}

func (e *LyricsError) Error() string { return fmt.Sprintf("lyrics failed for track %s: %v", e.TrackID, e.Err) }
func (e *LyricsError) Unwrap() error { return ErrLyrics }

// NewLyricsError wraps err as a [LyricsError] for the given track.
func NewLyricsError(trackID string, err error) *LyricsError {
	return &LyricsError{TrackID: trackID, Err: err}
}

// EmbeddingError reports a failure writing tags into a canonical file.
type EmbeddingError struct {
	TrackID string
	Err     error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed for track %s: %v", e.TrackID, e.Err)
}
func (e *EmbeddingError) Unwrap() error { return ErrEmbedding }

// NewEmbeddingError wraps err as an [EmbeddingError] for the given track.
func NewEmbeddingError(trackID string, err error) *EmbeddingError {
	return &EmbeddingError{TrackID: trackID, Err: err}
}
