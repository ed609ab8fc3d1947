package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Flags holds CLI flag names for log configuration, allowing callers to
// customize flag names while keeping sensible defaults via [NewConfig].
type Flags struct {
	Level   string
	Format  string
	Verbose string
}

// NewConfig creates a new [Config] embedding these flag names.
func (f Flags) NewConfig() *Config {
	return &Config{Flags: f}
}

// Config holds CLI flag values for log configuration.
//
// Create instances with [NewConfig] and register CLI flags with
// [Config.RegisterFlags]. Use [Config.NewHandler] to create a handler for
// logging. LOG_LEVEL, LOG_FMT, and LOG_DATEFMT environment variables are
// consulted as defaults beneath the CLI flags; the repeatable -v/--verbose
// counter (via [LevelFromVerbosity]) takes precedence over both when given.
type Config struct {
	Level   string
	Format  string
	Verbose int
	Flags   Flags
}

// NewConfig returns a new [Config] seeded from LOG_LEVEL/LOG_FMT, falling
// back to "info"/"text" when unset. Use [Config.RegisterFlags] to add CLI
// flags on top.
func NewConfig() *Config {
	f := Flags{
		Level:   "log-level",
		Format:  "log-format",
		Verbose: "verbose",
	}

	cfg := f.NewConfig()
	cfg.Level = envOr("LOG_LEVEL", "info")
	cfg.Format = envOr("LOG_FMT", "text")

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

// RegisterFlags adds logging flags to the given [*pflag.FlagSet].
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.Level, c.Flags.Level, c.Level,
		fmt.Sprintf("log level, one of: %s", GetAllLevelStrings()))
	flags.StringVar(&c.Format, c.Flags.Format, c.Format,
		fmt.Sprintf("log format, one of: %s", GetAllFormatStrings()))
	flags.CountVarP(&c.Verbose, c.Flags.Verbose, "v",
		"increase verbosity (repeatable); overrides --log-level when given")
}

// RegisterCompletions registers shell completions for log flags on cmd.
func (c *Config) RegisterCompletions(cmd *cobra.Command) error {
	err := cmd.RegisterFlagCompletionFunc(c.Flags.Level,
		cobra.FixedCompletions(GetAllLevelStrings(), cobra.ShellCompDirectiveNoFileComp))
	if err != nil {
		return fmt.Errorf("registering log-level completion: %w", err)
	}

	err = cmd.RegisterFlagCompletionFunc(c.Flags.Format,
		cobra.FixedCompletions(GetAllFormatStrings(), cobra.ShellCompDirectiveNoFileComp))
	if err != nil {
		return fmt.Errorf("registering log-format completion: %w", err)
	}

	return nil
}

// NewHandler builds a [slog.Handler] writing to w, from c.Level/c.Format
// unless c.Verbose is non-zero (in which case [LevelFromVerbosity] wins),
// applying a LOG_DATEFMT-derived timestamp layout when that variable is set.
func (c *Config) NewHandler(w io.Writer) (slog.Handler, error) {
	lvl, err := ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	if c.Verbose > 0 {
		lvl = LevelFromVerbosity(c.Verbose)
	}

	format, err := ParseFormat(c.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	if layout, ok := dateLayout(os.Getenv("LOG_DATEFMT")); ok {
		return withTimeLayout(w, lvl, format, layout), nil
	}

	return NewHandler(w, lvl, format), nil
}

// withTimeLayout rebuilds the handler with a ReplaceAttr hook that
// reformats slog's time attribute using layout.
func withTimeLayout(w io.Writer, lvl Level, format Format, layout string) slog.Handler {
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     slogLevel(lvl),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(layout))
			}

			return a
		},
	}

	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

// dateLayout translates a small, common subset of strftime-style tokens
// (as LOG_DATEFMT carries in the source this is ported from) into a Go
// reference-time layout. Unrecognized or empty input reports ok=false so
// callers fall back to slog's default RFC3339 timestamp.
func dateLayout(strftime string) (string, bool) {
	if strftime == "" {
		return "", false
	}

	replacer := strings.NewReplacer(
		"%Y", "2006",
		"%m", "01",
		"%d", "02",
		"%H", "15",
		"%M", "04",
		"%S", "05",
	)

	return replacer.Replace(strftime), true
}
