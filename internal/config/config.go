// Package config holds the CLI-facing Config/Flags glue that wires the url,
// document template, and probing knobs (spec.md §6) into internal/transport,
// internal/grammar, and internal/wordlist values. It follows the same
// Flags/Config split as log.Config and magicschema.Config: flag names live in
// Flags so callers can rename them, flag values live in Config.
package config

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wraithsec/wraithql/internal/grammar"
	"github.com/wraithsec/wraithql/internal/transport"
)

// ErrInvalidOption indicates a flag value could not be parsed into the form
// its downstream component requires (a malformed header, an unknown profile,
// an unparsable proxy URL).
var ErrInvalidOption = fmt.Errorf("invalid option")

// profilePreset overrides Concurrent/MaxRetries/Backoff before flag values
// are applied on top, per SPEC_FULL.md's -p/--profile supplement.
type profilePreset struct {
	Concurrent int
	MaxRetries int
	Backoff    int
}

var profiles = map[string]profilePreset{
	"fast": {Concurrent: 50, MaxRetries: 3, Backoff: 0},
	"slow": {Concurrent: 1, MaxRetries: 50, Backoff: 2},
}

// Flags holds CLI flag names, allowing callers to customize them while
// keeping sensible defaults via [NewConfig].
type Flags struct {
	InputSchema        string
	Output             string
	Document           string
	Header             string
	ConcurrentRequests string
	Wordlist           string
	Validate           string
	Proxy              string
	NoSSL              string
	MaxRetries         string
	Backoff            string
	Profile            string
	Progress           string
	InferInputSuffix   string
}

// Config holds CLI flag values for the url/document/transport/wordlist
// surface. Create instances with [NewConfig], register flags with
// [Config.RegisterFlags], then build the downstream values with
// [Config.TransportConfig], [Config.GrammarOptions], and [Config.Headers].
type Config struct {
	Flags Flags

	URL                string
	InputSchema        string
	Output             string
	Document           string
	Header             []string
	ConcurrentRequests int
	Wordlist           string
	Validate           bool
	Proxy              string
	NoSSL              bool
	MaxRetries         int
	Backoff            int
	Profile            string
	Progress           bool
	InferInputSuffix   bool
}

// DefaultDocument is the starting template used when -d/--document is not
// given; it must contain the literal FUZZ token.
const DefaultDocument = "query { FUZZ }"

// NewConfig returns a new [Config] seeded with the "fast" profile preset and
// default flag names.
func NewConfig() *Config {
	f := Flags{
		InputSchema:        "input-schema",
		Output:             "output",
		Document:           "document",
		Header:             "header",
		ConcurrentRequests: "concurrent-requests",
		Wordlist:           "wordlist",
		Validate:           "validate",
		Proxy:              "proxy",
		NoSSL:              "no-ssl",
		MaxRetries:         "max-retries",
		Backoff:            "backoff",
		Profile:            "profile",
		Progress:           "progress",
		InferInputSuffix:   "infer-input-suffix",
	}

	preset := profiles["fast"]

	return &Config{
		Flags:              f,
		Document:           DefaultDocument,
		ConcurrentRequests: preset.Concurrent,
		MaxRetries:         preset.MaxRetries,
		Backoff:            preset.Backoff,
		Profile:            "fast",
	}
}

// RegisterFlags adds probing flags to the given [*pflag.FlagSet]. url is
// registered by the caller as a positional argument, not a flag.
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&c.InputSchema, c.Flags.InputSchema, "i", c.InputSchema,
		"resume from a previously emitted schema file")
	flags.StringVarP(&c.Output, c.Flags.Output, "o", c.Output,
		"write schema JSON here each round (else stdout final only)")
	flags.StringVarP(&c.Document, c.Flags.Document, "d", c.Document,
		"starting document template; must contain FUZZ")
	flags.StringArrayVarP(&c.Header, c.Flags.Header, "H", c.Header,
		`HTTP header as "Key: Value" (repeatable)`)
	flags.IntVarP(&c.ConcurrentRequests, c.Flags.ConcurrentRequests, "c", c.ConcurrentRequests,
		"semaphore size bounding in-flight requests")
	flags.StringVarP(&c.Wordlist, c.Flags.Wordlist, "w", c.Wordlist,
		"newline-separated candidate names (else packaged default)")
	flags.BoolVar(&c.Validate, c.Flags.Validate, c.Validate,
		"drop wordlist entries not matching the GraphQL NAME grammar")
	flags.StringVarP(&c.Proxy, c.Flags.Proxy, "x", c.Proxy,
		"HTTP proxy URL")
	flags.BoolVarP(&c.NoSSL, c.Flags.NoSSL, "k", c.NoSSL,
		"disable TLS certificate verification")
	flags.IntVarP(&c.MaxRetries, c.Flags.MaxRetries, "m", c.MaxRetries,
		"retry cap for transport failures")
	flags.IntVarP(&c.Backoff, c.Flags.Backoff, "b", c.Backoff,
		"exponential backoff base; delay = 0.5*base^attempt")
	flags.StringVarP(&c.Profile, c.Flags.Profile, "p", c.Profile,
		fmt.Sprintf("preset overriding concurrency/retries/backoff, one of: %s", profileNames()))
	flags.BoolVar(&c.Progress, c.Flags.Progress, c.Progress,
		"show a live progress view during fan-outs")
	flags.BoolVar(&c.InferInputSuffix, c.Flags.InferInputSuffix, c.InferInputSuffix,
		`infer INPUT_OBJECT kind from an "Input" type name suffix (heuristic, off by default)`)
}

// RegisterCompletions registers shell completions for probing flags on cmd.
func (c *Config) RegisterCompletions(cmd *cobra.Command) error {
	err := cmd.RegisterFlagCompletionFunc(c.Flags.Profile,
		cobra.FixedCompletions(profileNames(), cobra.ShellCompDirectiveNoFileComp))
	if err != nil {
		return fmt.Errorf("registering %s completion: %w", c.Flags.Profile, err)
	}

	fileComp := func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveDefault
	}

	for _, flag := range []string{c.Flags.InputSchema, c.Flags.Output, c.Flags.Wordlist} {
		if regErr := cmd.RegisterFlagCompletionFunc(flag, fileComp); regErr != nil {
			return fmt.Errorf("registering %s completion: %w", flag, regErr)
		}
	}

	return nil
}

func profileNames() []string {
	return []string{"fast", "slow"}
}

// ApplyProfile overwrites ConcurrentRequests/MaxRetries/Backoff from the
// named preset. Call it before RegisterFlags binds the pflag.FlagSet so that
// an explicit -c/-m/-b still wins over the preset, matching "-p presets...
// defaults before flag overrides are applied".
func (c *Config) ApplyProfile(name string) error {
	preset, ok := profiles[name]
	if !ok {
		return fmt.Errorf("%w: unknown profile %q", ErrInvalidOption, name)
	}

	c.Profile = name
	c.ConcurrentRequests = preset.Concurrent
	c.MaxRetries = preset.MaxRetries
	c.Backoff = preset.Backoff

	return nil
}

// ApplyProfileAfterParse re-applies the preset named by c.Profile once
// flags have been parsed, but only to fields the caller didn't explicitly
// override: "-p presets ... before flag overrides are applied" (spec.md §6)
// means an explicit -c/-m/-b always wins over the preset, regardless of
// flag order on the command line.
func (c *Config) ApplyProfileAfterParse(flags *pflag.FlagSet) error {
	preset, ok := profiles[c.Profile]
	if !ok {
		return fmt.Errorf("%w: unknown profile %q", ErrInvalidOption, c.Profile)
	}

	if !flags.Changed(c.Flags.ConcurrentRequests) {
		c.ConcurrentRequests = preset.Concurrent
	}

	if !flags.Changed(c.Flags.MaxRetries) {
		c.MaxRetries = preset.MaxRetries
	}

	if !flags.Changed(c.Flags.Backoff) {
		c.Backoff = preset.Backoff
	}

	return nil
}

// TransportConfig builds a [transport.Config] from targetURL and these flag
// values.
func (c *Config) TransportConfig(targetURL string) (transport.Config, error) {
	headers, err := c.Headers()
	if err != nil {
		return transport.Config{}, err
	}

	cfg := transport.Config{
		URL:                targetURL,
		Headers:            headers,
		MaxRetries:         c.MaxRetries,
		ConcurrentRequests: c.ConcurrentRequests,
		Backoff:            c.Backoff,
		DisableSSLVerify:   c.NoSSL,
	}

	if c.Proxy != "" {
		proxyURL, err := url.Parse(c.Proxy)
		if err != nil {
			return transport.Config{}, fmt.Errorf("%w: proxy: %w", ErrInvalidOption, err)
		}

		cfg.Proxy = proxyURL
	}

	return cfg, nil
}

// Headers parses the repeated -H "Key: Value" flags into an [http.Header].
func (c *Config) Headers() (http.Header, error) {
	if len(c.Header) == 0 {
		return nil, nil
	}

	headers := make(http.Header, len(c.Header))

	for _, h := range c.Header {
		key, value, ok := strings.Cut(h, ": ")
		if !ok {
			return nil, fmt.Errorf("%w: header %q must be \"Key: Value\"", ErrInvalidOption, h)
		}

		headers[key] = append(headers[key], value)
	}

	return headers, nil
}

// GrammarOptions builds the [grammar.Options] these flags select.
func (c *Config) GrammarOptions() grammar.Options {
	return grammar.Options{InferInputSuffix: c.InferInputSuffix}
}
