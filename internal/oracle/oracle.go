// Package oracle implements the blind-introspection driver: one
// exploration round over a single document template (Clairvoyance), and the
// outer fixed-point loop that walks the discovered type graph until every
// reachable type has been visited (spec.md §4.4).
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wraithsec/wraithql/internal/grammar"
	"github.com/wraithsec/wraithql/internal/model"
	"github.com/wraithsec/wraithql/internal/probe"
	"github.com/wraithsec/wraithql/internal/progress"
	"github.com/wraithsec/wraithql/internal/transport"
)

// Oracle is the explicit dependency carrier spec.md §9 asks for in place of
// a process-wide context: the HTTP client, probing knobs, and logger are all
// constructed once at startup and threaded through every call instead of
// living behind module-level globals.
type Oracle struct {
	Client         *transport.Client
	Wordlist       []string
	BucketSize     int
	GrammarOptions grammar.Options
	Log            *slog.Logger
	// Progress, when non-nil, receives fan-out phase/task counts for the
	// --progress live view. A nil Progress is the common case and costs
	// nothing: (*progress.Reporter)(nil) methods are no-ops.
	Progress *progress.Reporter
}

// New constructs an Oracle, defaulting BucketSize to probe.DefaultBucketSize
// and Log to slog.Default() when left zero.
func New(client *transport.Client, wordlist []string, bucketSize int, opts grammar.Options, log *slog.Logger) *Oracle {
	if bucketSize == 0 {
		bucketSize = probe.DefaultBucketSize
	}

	if log == nil {
		log = slog.Default()
	}

	return &Oracle{Client: client, Wordlist: wordlist, BucketSize: bucketSize, GrammarOptions: opts, Log: log}
}

type exploredField struct {
	name string
	ref  model.TypeRef
	args []model.InputValue
}

// Clairvoyance runs one introspection round against inputDocument, resuming
// from inputSchema when non-nil, and returns the resulting schema.
func (o *Oracle) Clairvoyance(ctx context.Context, inputDocument string, inputSchema *model.Schema) (*model.Schema, error) {
	roundID := uuid.NewString()
	log := o.Log.With("round", roundID)

	schema := inputSchema

	if schema == nil {
		query, mutation, subscription, err := probe.RootTypenames(ctx, o.Client)
		if err != nil {
			return nil, fmt.Errorf("clairvoyance: %w", err)
		}

		schema = model.New(query, mutation, subscription)
	}

	typename, err := probe.Typename(ctx, o.Client, inputDocument)
	if err != nil {
		return nil, fmt.Errorf("clairvoyance: %w", err)
	}

	log.Debug("resolved typename", "typename", typename)

	o.Progress.NewRound(typename)

	schema.AddType(typename, model.KindObject)

	validFieldSet, err := probe.ValidFields(ctx, o.Client, o.Wordlist, o.BucketSize, inputDocument)
	if err != nil {
		return nil, fmt.Errorf("clairvoyance: %w", err)
	}

	log.Debug("discovered fields", "typename", typename, "count", len(validFieldSet))

	fieldNames := make([]string, 0, len(validFieldSet))
	for name := range validFieldSet {
		fieldNames = append(fieldNames, name)
	}

	sort.Strings(fieldNames)

	o.Progress.StartPhase(progress.PhaseValidFields, "explore fields", len(fieldNames))
	o.Progress.StartPhase(progress.PhaseTypeRef, "resolve typerefs", len(fieldNames))

	explored := make([]*exploredField, len(fieldNames))

	group, gctx := errgroup.WithContext(ctx)

	for i, name := range fieldNames {
		i, name := i, name

		group.Go(func() error {
			f, err := o.exploreField(gctx, name, inputDocument, log)
			if err != nil {
				return err
			}

			explored[i] = f

			o.Progress.Step(progress.PhaseValidFields)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("clairvoyance: %w", err)
	}

	for _, f := range explored {
		if f == nil {
			continue
		}

		args := make([]string, 0, len(f.args))
		for _, a := range f.args {
			args = append(args, a.Name)
			schema.AddType(a.Type.Name, model.KindInputObject)
		}

		field := model.Field{Name: f.name, Type: f.ref, Args: f.args}
		schema.AppendField(typename, field)
		schema.AddType(f.ref.Name, model.KindObject)
	}

	return schema, nil
}

// exploreField implements the per-field body of explore_field: resolve the
// field's own type, then (unless it's a builtin scalar) its argument list
// and each argument's type.
func (o *Oracle) exploreField(ctx context.Context, name, inputDocument string, log *slog.Logger) (*exploredField, error) {
	ref, err := probe.FieldType(ctx, o.Client, name, inputDocument)
	if err != nil {
		return nil, fmt.Errorf("explore field %q: %w", name, err)
	}

	o.Progress.Step(progress.PhaseTypeRef)

	field := &exploredField{name: name, ref: ref}

	if model.BuiltinScalars[ref.Name] {
		log.Debug("skip probe_args for builtin scalar field", "field", name, "type", ref.Name)

		return field, nil
	}

	argNameSet, err := probe.Args(ctx, o.Client, name, o.Wordlist, o.BucketSize, inputDocument)
	if err != nil {
		return nil, fmt.Errorf("explore field %q args: %w", name, err)
	}

	argNames := make([]string, 0, len(argNameSet))
	for n := range argNameSet {
		argNames = append(argNames, n)
	}

	sort.Strings(argNames)

	o.Progress.StartPhase(progress.PhaseArgs, "resolve "+name+" args", len(argNames))

	for _, argName := range argNames {
		argRef, ok, err := probe.ArgTypeRef(ctx, o.Client, name, argName, inputDocument, o.GrammarOptions)
		if err != nil {
			return nil, fmt.Errorf("explore field %q arg %q: %w", name, argName, err)
		}

		o.Progress.Step(progress.PhaseArgs)

		if !ok {
			log.Warn("skip argument because typeref could not be resolved", "field", name, "arg", argName)

			continue
		}

		field.args = append(field.args, model.InputValue{Name: argName, Type: argRef})
	}

	return field, nil
}

// Run implements the outer fixed-point loop (spec.md §4.4): repeatedly run
// Clairvoyance against whichever unresolved type was picked last round,
// until none remain. persist, when non-nil, is called with the schema JSON
// after every round (e.g. to write -o incrementally).
func (o *Oracle) Run(ctx context.Context, inputDocument string, inputSchema *model.Schema, persist func(string) error) (*model.Schema, error) {
	ignored := map[string]bool{}
	for name := range model.BuiltinScalars {
		ignored[name] = true
	}

	schema := inputSchema
	document := inputDocument

	for {
		round, err := o.Clairvoyance(ctx, document, schema)
		if err != nil {
			return nil, err
		}

		raw, err := round.ToJSON()
		if err != nil {
			return nil, fmt.Errorf("oracle run: %w", err)
		}

		if persist != nil {
			if err := persist(raw); err != nil {
				return nil, fmt.Errorf("oracle run: persist: %w", err)
			}
		}

		parsed, err := model.ParseSchemaJSON([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("oracle run: %w", err)
		}

		next := parsed.GetTypeWithoutFields(ignored)
		if next == nil {
			o.Progress.Done()

			return parsed, nil
		}

		ignored[next.Name] = true

		path, err := parsed.GetPathFromRoot(next.Name)
		if err != nil {
			return nil, fmt.Errorf("oracle run: %w", err)
		}

		document, err = parsed.ConvertPathToDocument(path)
		if err != nil {
			return nil, fmt.Errorf("oracle run: %w", err)
		}

		schema = parsed
	}
}
