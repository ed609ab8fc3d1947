// Package probe implements the field/argument/typeref/typename probing
// procedures that sit between the HTTP transport and the oracle driver: each
// one crafts a document from a template, fans the requests out, and folds
// the responses' error messages into schema facts via the grammar package.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wraithsec/wraithql/internal/grammar"
	"github.com/wraithsec/wraithql/internal/model"
	"github.com/wraithsec/wraithql/internal/transport"
)

// DefaultBucketSize is the default wordlist bucket size (spec.md §4.3),
// configurable between 64 and 4096.
const DefaultBucketSize = 512

// WrongFieldSentinel is the literal name substituted for FUZZ when probing
// for the containing type's name.
const WrongFieldSentinel = grammar.WrongFieldSentinel

// ErrEndpointError is fatal: the target never surfaced a field-typeref
// suggestion, so field typing is impossible (spec.md §7).
var ErrEndpointError = errors.New("endpoint does not expose field typeref suggestions")

// Buckets splits words into contiguous slices of at most size words each.
// size is clamped to the inclusive range [64, 4096].
func Buckets(words []string, size int) [][]string {
	switch {
	case size < 64:
		size = 64
	case size > 4096:
		size = 4096
	}

	var out [][]string

	for len(words) > 0 {
		n := size
		if n > len(words) {
			n = len(words)
		}

		out = append(out, words[:n])
		words = words[n:]
	}

	return out
}

func substitute(document, replacement string) string {
	return strings.Replace(document, "FUZZ", replacement, 1)
}

func isNoSubfieldsError(msg string) bool {
	return strings.Contains(msg, "must not have a selection since type") && strings.Contains(msg, "has no subfields")
}

// ValidFields implements probe_valid_fields: fan out one request per bucket,
// each with FUZZ replaced by the bucket's words space-joined into a broken
// selection set, and fold the error messages per spec.md §4.3.
func ValidFields(ctx context.Context, client *transport.Client, wordlist []string, bucketSize int, inputDocument string) (map[string]bool, error) {
	buckets := Buckets(wordlist, bucketSize)

	results := make([]map[string]bool, len(buckets))

	group, gctx := errgroup.WithContext(ctx)

	for i, bucket := range buckets {
		i, bucket := i, bucket

		group.Go(func() error {
			doc := substitute(inputDocument, strings.Join(bucket, " "))

			resp, err := client.Post(gctx, doc)
			if err != nil {
				return fmt.Errorf("probe valid fields bucket %d: %w", i, err)
			}

			results[i] = foldFieldBucket(bucket, resp.Errors)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	union := map[string]bool{}
	for _, r := range results {
		for name := range r {
			union[name] = true
		}
	}

	return union, nil
}

func foldFieldBucket(bucket []string, errs []string) map[string]bool {
	for _, msg := range errs {
		if isNoSubfieldsError(msg) {
			return map[string]bool{}
		}
	}

	valid := make(map[string]bool, len(bucket))
	for _, w := range bucket {
		valid[w] = true
	}

	for _, msg := range errs {
		if invalid, ok := grammar.ExtractInvalidFieldName(msg); ok {
			delete(valid, invalid)
		}
	}

	for _, msg := range errs {
		for name := range grammar.ClassifyFieldErrorSet(msg) {
			valid[name] = true
		}
	}

	return valid
}

// ValidArgsBucket implements probe_valid_args for a single bucket: build
// field(w1: 7, w2: 7, …) and fold the response the way ValidFields folds a
// field bucket, substituting the argument-specific skip/discard rules.
func ValidArgsBucket(ctx context.Context, client *transport.Client, field string, bucket []string, inputDocument string) (map[string]bool, error) {
	frag := make([]string, 0, len(bucket))
	for _, w := range bucket {
		frag = append(frag, fmt.Sprintf("%s: 7", w))
	}

	doc := substitute(inputDocument, fmt.Sprintf("%s(%s)", field, strings.Join(frag, ", ")))

	resp, err := client.Post(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("probe valid args bucket: %w", err)
	}

	for _, msg := range resp.Errors {
		if isNoSubfieldsError(msg) {
			return map[string]bool{}, nil
		}
	}

	valid := make(map[string]bool, len(bucket))
	for _, w := range bucket {
		valid[w] = true
	}

	for _, msg := range resp.Errors {
		if invalid, ok := grammar.ExtractInvalidArgName(msg); ok {
			delete(valid, invalid)
		}

		if dup, ok := grammar.ExtractDuplicateArgName(msg); ok {
			delete(valid, dup)
		}
	}

	for _, msg := range resp.Errors {
		for name := range grammar.ClassifyArgError(msg) {
			valid[name] = true
		}
	}

	return valid, nil
}

// Args implements probe_args: tile ValidArgsBucket over the wordlist and
// union the results.
func Args(ctx context.Context, client *transport.Client, field string, wordlist []string, bucketSize int, inputDocument string) (map[string]bool, error) {
	buckets := Buckets(wordlist, bucketSize)

	results := make([]map[string]bool, len(buckets))

	group, gctx := errgroup.WithContext(ctx)

	for i, bucket := range buckets {
		i, bucket := i, bucket

		group.Go(func() error {
			r, err := ValidArgsBucket(gctx, client, field, bucket, inputDocument)
			if err != nil {
				return err
			}

			results[i] = r

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	union := map[string]bool{}
	for _, r := range results {
		for name := range r {
			union[name] = true
		}
	}

	return union, nil
}

// TypeRef implements probe_typeref: await every document concurrently, then
// scan each response's errors in document order, keeping the last non-null
// extraction. Returns ErrEndpointError when ctx==ContextField and nothing
// was ever extracted; for ContextArgument a miss is reported as ok=false.
func TypeRef(ctx context.Context, client *transport.Client, documents []string, grammarCtx grammar.Context, opts grammar.Options) (model.TypeRef, bool, error) {
	responses := make([]transport.Response, len(documents))

	group, gctx := errgroup.WithContext(ctx)

	for i, doc := range documents {
		i, doc := i, doc

		group.Go(func() error {
			resp, err := client.Post(gctx, doc)
			if err != nil {
				return fmt.Errorf("probe typeref document %d: %w", i, err)
			}

			responses[i] = resp

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return model.TypeRef{}, false, err
	}

	var (
		last  model.TypeRef
		found bool
	)

	for _, resp := range responses {
		for _, msg := range resp.Errors {
			fact, ok := grammar.ExtractTypeRef(msg, grammarCtx, opts)
			if !ok {
				continue
			}

			ref, err := model.NewTypeRef(fact.Name, model.Kind(fact.Kind), fact.IsList, fact.NonNullItem, fact.NonNull)
			if err != nil {
				return model.TypeRef{}, false, fmt.Errorf("probe typeref: %w", err)
			}

			last = ref
			found = true
		}
	}

	if !found {
		if grammarCtx == grammar.ContextField {
			return model.TypeRef{}, false, ErrEndpointError
		}

		return model.TypeRef{}, false, nil
	}

	return last, true, nil
}

// FieldType implements probe_field_type: probes `field` alone and
// `field { lol }`, returning the FIELD-context typeref.
func FieldType(ctx context.Context, client *transport.Client, field, inputDocument string) (model.TypeRef, error) {
	documents := []string{
		substitute(inputDocument, field),
		substitute(inputDocument, fmt.Sprintf("%s { lol }", field)),
	}

	ref, _, err := TypeRef(ctx, client, documents, grammar.ContextField, grammar.Options{})
	if err != nil {
		return model.TypeRef{}, err
	}

	return ref, nil
}

// ArgTypeRef implements probe_arg_typeref: five coercion-provoking
// fragments, probed with ContextArgument. A miss is not an error — the
// caller skips the argument.
func ArgTypeRef(ctx context.Context, client *transport.Client, field, arg, inputDocument string, opts grammar.Options) (model.TypeRef, bool, error) {
	strippedArg := arg
	if len(strippedArg) > 0 {
		strippedArg = strippedArg[:len(strippedArg)-1]
	}

	documents := []string{
		substitute(inputDocument, fmt.Sprintf("%s(%s: 42)", field, arg)),
		substitute(inputDocument, fmt.Sprintf("%s(%s: {})", field, arg)),
		substitute(inputDocument, fmt.Sprintf("%s(%s: 42)", field, strippedArg)),
		substitute(inputDocument, fmt.Sprintf("%s(%s: %s)", field, arg, strconv.Quote("42"))),
		substitute(inputDocument, fmt.Sprintf("%s(%s: false)", field, arg)),
	}

	return TypeRef(ctx, client, documents, grammar.ContextArgument, opts)
}

// Typename implements probe_typename: substitute the wrong-field sentinel
// and extract the containing type's name from the resulting errors.
func Typename(ctx context.Context, client *transport.Client, inputDocument string) (string, error) {
	doc := substitute(inputDocument, WrongFieldSentinel)

	resp, err := client.Post(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("probe typename: %w", err)
	}

	return grammar.ExtractTypeName(resp.Errors), nil
}

// RootTypenames implements fetch_root_typenames: three literal documents,
// sent serially, each contributing data.__typename when present.
func RootTypenames(ctx context.Context, client *transport.Client) (query, mutation, subscription string, err error) {
	type probe struct {
		document string
		dest     *string
	}

	probes := []probe{
		{"query { __typename }", &query},
		{"mutation { __typename }", &mutation},
		{"subscription { __typename }", &subscription},
	}

	for _, p := range probes {
		resp, postErr := client.Post(ctx, p.document)
		if postErr != nil {
			return "", "", "", fmt.Errorf("fetch root typenames: %w", postErr)
		}

		if resp.HasTypename {
			*p.dest = resp.Typename
		}
	}

	return query, mutation, subscription, nil
}
