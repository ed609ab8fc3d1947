// Package main provides the CLI entry point for wraithql, a blind GraphQL
// schema-reconstruction tool driven entirely by validator error messages.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wraithsec/wraithql/internal/config"
	"github.com/wraithsec/wraithql/internal/model"
	"github.com/wraithsec/wraithql/internal/oracle"
	"github.com/wraithsec/wraithql/internal/progress"
	"github.com/wraithsec/wraithql/internal/transport"
	"github.com/wraithsec/wraithql/internal/wordlist"
	"github.com/wraithsec/wraithql/log"
	"github.com/wraithsec/wraithql/profile"
	"github.com/wraithsec/wraithql/version"
)

func main() {
	logCfg := log.NewConfig()
	probeCfg := config.NewConfig()
	profCfg := profile.NewConfig()

	rootCmd := &cobra.Command{
		Use:           "wraithql [flags] <url>",
		Short:         "Reconstruct a GraphQL schema from validator error messages alone",
		Version:       version.Version,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), probeCfg, logCfg, profCfg, cmd.Flags(), args[0])
		},
	}

	logCfg.RegisterFlags(rootCmd.Flags())
	probeCfg.RegisterFlags(rootCmd.Flags())
	profCfg.RegisterFlags(rootCmd.Flags())

	for _, register := range []func(*cobra.Command) error{
		logCfg.RegisterCompletions,
		probeCfg.RegisterCompletions,
		profCfg.RegisterCompletions,
	} {
		if err := register(rootCmd); err != nil {
			fmt.Fprintf(os.Stderr, "register completions: %v\n", err)
		}
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	cfg *config.Config,
	logCfg *log.Config,
	profCfg *profile.Config,
	flags *pflag.FlagSet,
	target string,
) error {
	if err := cfg.ApplyProfileAfterParse(flags); err != nil {
		return err
	}

	var logWriter io.Writer = os.Stderr

	var pub *log.Publisher

	if cfg.Progress {
		pub = log.NewPublisher()
		logWriter = io.MultiWriter(os.Stderr, pub)
	}

	handler, err := logCfg.NewHandler(logWriter)
	if err != nil {
		return err
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	prof := profCfg.NewProfiler()
	if err := prof.Start(); err != nil {
		return fmt.Errorf("start profiler: %w", err)
	}

	defer func() {
		if err := prof.Stop(); err != nil {
			logger.Error("stop profiler", "error", err)
		}
	}()

	words, err := loadWordlist(ctx, cfg)
	if err != nil {
		return err
	}

	transportCfg, err := cfg.TransportConfig(target)
	if err != nil {
		return err
	}

	client := transport.New(transportCfg)
	defer client.Close()

	var reporter *progress.Reporter

	if cfg.Progress {
		var prog *tea.Program

		reporter, prog = progress.New()
		progress.Attach(ctx, prog, pub)

		go func() {
			if _, err := prog.Run(); err != nil {
				logger.Error("progress view", "error", err)
			}
		}()
	}

	o := oracle.New(client, words, 0, cfg.GrammarOptions(), logger)
	o.Progress = reporter

	inputSchema, err := loadInputSchema(cfg)
	if err != nil {
		return err
	}

	persist := outputPersister(cfg)

	schema, err := o.Run(ctx, cfg.Document, inputSchema, persist)
	if err != nil {
		if errors.Is(err, model.ErrTypeNotInSchema) || errors.Is(err, model.ErrUnknownOperationType) {
			return fmt.Errorf("driver bug: %w", err)
		}

		return err
	}

	if cfg.Output == "" {
		raw, err := schema.ToJSON()
		if err != nil {
			return fmt.Errorf("encode final schema: %w", err)
		}

		fmt.Println(raw)
	}

	return nil
}

func loadWordlist(ctx context.Context, cfg *config.Config) ([]string, error) {
	words := wordlist.Default

	if cfg.Wordlist != "" {
		loaded, err := wordlist.Load(ctx, cfg.Wordlist)
		if err != nil {
			return nil, fmt.Errorf("load wordlist: %w", err)
		}

		words = loaded
	}

	if cfg.Validate {
		valid, dropped := wordlist.Validate(words)
		for _, d := range dropped {
			slog.Warn("dropped wordlist entry not matching NAME grammar", "entry", d)
		}

		words = valid
	}

	return words, nil
}

func loadInputSchema(cfg *config.Config) (*model.Schema, error) {
	if cfg.InputSchema == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(cfg.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("read input schema: %w", err)
	}

	schema, err := model.ParseSchemaJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("parse input schema: %w", err)
	}

	return schema, nil
}

func outputPersister(cfg *config.Config) func(string) error {
	if cfg.Output == "" {
		return nil
	}

	return func(raw string) error {
		return os.WriteFile(cfg.Output, []byte(raw), 0o644)
	}
}
