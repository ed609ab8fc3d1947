package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
)

// Level is a logging severity, independent of [log/slog.Level] so config
// parsing doesn't leak slog's numeric encoding into the CLI surface.
type Level string

const (
	// LevelError logs only errors.
	LevelError Level = "error"
	// LevelWarn logs warnings and errors.
	LevelWarn Level = "warn"
	// LevelInfo logs informational messages and above.
	LevelInfo Level = "info"
	// LevelDebug logs everything, including per-message probe detail.
	LevelDebug Level = "debug"
)

// Format represents the log output format.
type Format string

const (
	// FormatJSON outputs logs as JSON objects.
	FormatJSON Format = "json"
	// FormatLogfmt outputs logs in logfmt format.
	FormatLogfmt Format = "logfmt"
	// FormatText outputs logs in slog's default human-readable format.
	FormatText Format = "text"
)

var (
	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownLogLevel indicates an unrecognized log level string.
	ErrUnknownLogLevel = errors.New("unknown log level")
	// ErrUnknownLogFormat indicates an unrecognized log format string.
	ErrUnknownLogFormat = errors.New("unknown log format")
)

// NewHandlerFromStrings creates a [slog.Handler] from level/format strings.
func NewHandlerFromStrings(w io.Writer, levelStr, formatStr string) (slog.Handler, error) {
	lvl, err := ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	fmtVal, err := ParseFormat(formatStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return NewHandler(w, lvl, fmtVal), nil
}

// NewHandler creates a [slog.Handler] with the specified level and format.
func NewHandler(w io.Writer, lvl Level, format Format) slog.Handler {
	opts := &slog.HandlerOptions{AddSource: true, Level: slogLevel(lvl)}

	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, opts)
	case FormatLogfmt, FormatText:
		return slog.NewTextHandler(w, opts)
	}

	return nil
}

func slogLevel(lvl Level) slog.Level {
	switch lvl {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// ParseLevel parses a log level string and returns the corresponding Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	}

	return "", ErrUnknownLogLevel
}

// ParseFormat parses a log format string and returns the corresponding Format.
func ParseFormat(format string) (Format, error) {
	f := Format(strings.ToLower(format))
	if slices.Contains(GetAllFormats(), f) {
		return f, nil
	}

	return "", ErrUnknownLogFormat
}

// LevelFromVerbosity maps the CLI's repeatable -v counter onto a Level:
// 0 -> warn, 1 -> info, >=2 -> debug (spec.md §6).
func LevelFromVerbosity(count int) Level {
	switch {
	case count >= 2:
		return LevelDebug
	case count == 1:
		return LevelInfo
	default:
		return LevelWarn
	}
}

// GetAllLevels returns every recognized Level, in severity order.
func GetAllLevels() []Level {
	return []Level{LevelError, LevelWarn, LevelInfo, LevelDebug}
}

// GetAllLevelStrings returns the string form of [GetAllLevels].
func GetAllLevelStrings() []string {
	levels := GetAllLevels()
	out := make([]string, len(levels))

	for i, l := range levels {
		out[i] = string(l)
	}

	return out
}

// GetAllFormats returns every recognized Format.
func GetAllFormats() []Format {
	return []Format{FormatJSON, FormatLogfmt, FormatText}
}

// GetAllFormatStrings returns the string form of [GetAllFormats].
func GetAllFormatStrings() []string {
	formats := GetAllFormats()
	out := make([]string, len(formats))

	for i, f := range formats {
		out[i] = string(f)
	}

	return out
}
