package shared

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Package-level structured logger used by every pipeline-phase component.
// [NewLogger]/[NewFileLogger] in shared.go remain the pretty console/CLI surface;
// this is the core's machine-parseable surface, writing the named log files
// (full, errors, download failures, lyrics failures) the registry directory
// carries alongside the SQLite file.
var (
	loggerMu     sync.RWMutex
	globalLogger *zap.Logger
	globalLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	downloadFailureLogger       *zap.Logger
	lyricsFailureLogger         *zap.Logger
	matchCloseAlternativeLogger *zap.Logger
)

func init() {
	globalLogger = New(globalLevel)
}

// New builds a [zap.Logger] writing JSON lines to stderr at the given level.
// A nil level defaults to info.
func New(level zapcore.LevelEnabler) *zap.Logger {
	if level == nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(zapcore.AddSync(os.Stderr)), level)
	return zap.New(core)
}

// ParseLogLevel parses a case-insensitive level name. Returns (info, false)
// for anything it doesn't recognize.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	var level zapcore.Level
	if err := level.Set(strings.ToLower(strings.TrimSpace(s))); err != nil {
		return zapcore.InfoLevel, false
	}
	return level, true
}

// Level returns the global logger's current level.
func Level() zapcore.Level { return globalLevel.Level() }

// Logger returns the current global [zap.Logger].
func Logger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return globalLogger
}

// SetLogger replaces the global logger, e.g. to redirect it at a multi-file
// [zapcore.Tee] core built from the pipeline's named log files.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	globalLogger = l
}

// SetLevel adjusts the global atomic level in place.
func SetLevel(level zapcore.Level) { globalLevel.SetLevel(level) }

// fieldsFromContext builds zap fields from the track id in ctx, if present,
// plus the kv pairs, matching the context-first logging convention every
// call below follows.
func fieldsFromContext(ctx context.Context, kv ...any) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2+1)
	if id, ok := ctx.Value(contextKeyTrackID).(string); ok && id != "" {
		fields = append(fields, zap.String("track_id", id))
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	return fields
}

type contextKey int

const contextKeyTrackID contextKey = iota

// WithTrackID attaches a track id to ctx so downstream log calls tag it
// automatically, used by the worker pools in Acquirer/LyricsResolver/Embedder.
func WithTrackID(ctx context.Context, trackID string) context.Context {
	return context.WithValue(ctx, contextKeyTrackID, trackID)
}

func Debug(ctx context.Context, msg string)      { Logger().Debug(msg, fieldsFromContext(ctx)...) }
func Debugf(ctx context.Context, format string, args ...any) {
	Logger().Sugar().Debugf(tagFormat(ctx, format), args...)
}
func DebugKV(ctx context.Context, msg string, kv ...any) { Logger().Debug(msg, fieldsFromContext(ctx, kv...)...) }

func Info(ctx context.Context, msg string)      { Logger().Info(msg, fieldsFromContext(ctx)...) }
func Infof(ctx context.Context, format string, args ...any) {
	Logger().Sugar().Infof(tagFormat(ctx, format), args...)
}
func InfoKV(ctx context.Context, msg string, kv ...any) { Logger().Info(msg, fieldsFromContext(ctx, kv...)...) }

func Warn(ctx context.Context, msg string)      { Logger().Warn(msg, fieldsFromContext(ctx)...) }
func Warnf(ctx context.Context, format string, args ...any) {
	Logger().Sugar().Warnf(tagFormat(ctx, format), args...)
}
func WarnKV(ctx context.Context, msg string, kv ...any) { Logger().Warn(msg, fieldsFromContext(ctx, kv...)...) }

func Error(ctx context.Context, msg string)      { Logger().Error(msg, fieldsFromContext(ctx)...) }
func Errorf(ctx context.Context, format string, args ...any) {
	Logger().Sugar().Errorf(tagFormat(ctx, format), args...)
}
func ErrorKV(ctx context.Context, msg string, kv ...any) { Logger().Error(msg, fieldsFromContext(ctx, kv...)...) }

// tagFormat prefixes a track id onto formatted log lines since zap's Sugar
// *f variants don't accept structured fields.
func tagFormat(ctx context.Context, format string) string {
	if id, ok := ctx.Value(contextKeyTrackID).(string); ok && id != "" {
		return "[" + id + "] " + format
	}
	return format
}

// PipelineLogFiles are the named log files a run writes into dir, per the
// external log-file layout the registry directory carries alongside the
// SQLite file.
type PipelineLogFiles struct {
	Full                  *os.File
	Errors                *os.File
	DownloadFailures      *os.File
	LyricsFailures        *os.File
	MatchCloseAlternatives *os.File
}

// OpenPipelineLogFiles opens (creating if needed) the five named log files
// under dir, stamped with runStamp (e.g. a run timestamp formatted by the caller).
func OpenPipelineLogFiles(dir, runStamp string) (*PipelineLogFiles, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	open := func(name string) (*os.File, error) {
		return os.OpenFile(dir+"/"+name+"_"+runStamp+".log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	}

	full, err := open("log_full")
	if err != nil {
		return nil, err
	}
	errs, err := open("log_errors")
	if err != nil {
		return nil, err
	}
	dl, err := open("download_failures")
	if err != nil {
		return nil, err
	}
	lyr, err := open("lyrics_failures")
	if err != nil {
		return nil, err
	}
	matchAlt, err := open("match_close_alternatives")
	if err != nil {
		return nil, err
	}

	return &PipelineLogFiles{Full: full, Errors: errs, DownloadFailures: dl, LyricsFailures: lyr, MatchCloseAlternatives: matchAlt}, nil
}

// Close closes every underlying file, returning the first error encountered.
func (f *PipelineLogFiles) Close() error {
	var first error
	for _, file := range []*os.File{f.Full, f.Errors, f.DownloadFailures, f.LyricsFailures, f.MatchCloseAlternatives} {
		if err := file.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewPipelineLogger builds a [zap.Logger] tee-ing every entry into
// log_full, errors into log_errors in addition, and returns it alongside the
// open files so the caller can close them when the run ends. It also points
// the package-level download-failures/lyrics-failures/match-close-alternatives
// loggers at their own named files, so [LogDownloadFailure], [LogLyricsFailure],
// and [LogMatchCloseAlternative] write into them for the remainder of the run.
func NewPipelineLogger(dir, runStamp string, level zapcore.LevelEnabler) (*zap.Logger, *PipelineLogFiles, error) {
	files, err := OpenPipelineLogFiles(dir, runStamp)
	if err != nil {
		return nil, nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	fullCore := zapcore.NewCore(encoder, zapcore.AddSync(files.Full), level)
	errorCore := zapcore.NewCore(encoder, zapcore.AddSync(files.Errors), zapcore.ErrorLevel)

	logger := zap.New(zapcore.NewTee(fullCore, errorCore))

	SetPipelineFailureLoggers(
		zap.New(zapcore.NewCore(encoder, zapcore.AddSync(files.DownloadFailures), zapcore.InfoLevel)),
		zap.New(zapcore.NewCore(encoder, zapcore.AddSync(files.LyricsFailures), zapcore.InfoLevel)),
		zap.New(zapcore.NewCore(encoder, zapcore.AddSync(files.MatchCloseAlternatives), zapcore.InfoLevel)),
	)

	return logger, files, nil
}

// SetPipelineFailureLoggers points the three named failure/ambiguity logs at
// the given loggers. A nil argument makes its corresponding Log* call a
// no-op, so components can call them unconditionally whether or not a
// pipeline run configured file logging.
func SetPipelineFailureLoggers(download, lyricsFailures, matchCloseAlternatives *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	downloadFailureLogger = download
	lyricsFailureLogger = lyricsFailures
	matchCloseAlternativeLogger = matchCloseAlternatives
}

// LogDownloadFailure records a failed acquisition attempt into download_failures.
func LogDownloadFailure(ctx context.Context, msg string, kv ...any) {
	loggerMu.RLock()
	l := downloadFailureLogger
	loggerMu.RUnlock()
	if l == nil {
		return
	}
	l.Warn(msg, fieldsFromContext(ctx, kv...)...)
}

// LogLyricsFailure records an exhausted lyrics provider chain into lyrics_failures.
func LogLyricsFailure(ctx context.Context, msg string, kv ...any) {
	loggerMu.RLock()
	l := lyricsFailureLogger
	loggerMu.RUnlock()
	if l == nil {
		return
	}
	l.Warn(msg, fieldsFromContext(ctx, kv...)...)
}

// LogMatchCloseAlternative records an ambiguous resolution's runner-up into
// match_close_alternatives, for the human review the Matcher's ambiguity
// flag exists to prompt.
func LogMatchCloseAlternative(ctx context.Context, msg string, kv ...any) {
	loggerMu.RLock()
	l := matchCloseAlternativeLogger
	loggerMu.RUnlock()
	if l == nil {
		return
	}
	l.Info(msg, fieldsFromContext(ctx, kv...)...)
}
