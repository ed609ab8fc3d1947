// Package grammar implements the closed taxonomy of validator error-message
// regexes that the oracle uses as its only side channel into the target
// schema: a fixed table of anchored regular expressions grouped into
// classifier functions that turn free-text GraphQL error messages into
// structured facts.
package grammar

import (
	"log/slog"
	"regexp"
	"strings"
)

const (
	name     = `[_A-Za-z][_0-9A-Za-z]*`
	typeref  = `[_A-Za-z\[\]!][_0-9a-zA-Z\[\]!]*`
	required = `required(, but it was not provided| but not provided)?\.`
)

// Options tunes optional, non-default classifier behavior.
//
// InferInputSuffix enables the heuristic (seen in one variant of the source
// this grammar is ported from) that treats a captured type name ending in
// "Input" as INPUT_OBJECT even outside ARGUMENT context. Off by default per
// spec: this is a heuristic, not a rule.
type Options struct {
	InferInputSuffix bool
}

var (
	fieldSkipNoSubfields = regexp.MustCompile(
		`^Field ['"]` + name + `['"] must not have a selection since type ['"]` + typeref + `['"] has no subfields\.$`)
	fieldSkipArgRequired = regexp.MustCompile(
		`^Field ['"]` + name + `['"] argument ['"]` + name + `['"] of type ['"]` + typeref + `['"] is ` + required + `$`)
	fieldSkipCannotQuery = regexp.MustCompile(
		`^Cannot query field ['"]` + name + `['"] on type ['"]` + name + `['"]\.( Did you mean inline fragment on ['"]` + name + `['"](, ['"]` + name + `['"])*(, or ['"]` + name + `['"])?\?)?$`)

	fieldSubSelection = regexp.MustCompile(
		`^Field ['"](?P<field>` + name + `)['"] of type ['"](?P<typeref>` + typeref + `)['"] must have a selection of subfields\. Did you mean ['"][_0-9a-zA-Z\[\]!]* \{ \.\.\. \}['"]\?$`)

	fieldSingleSuggestion = regexp.MustCompile(
		`^Cannot query field ['"]` + name + `['"] on type ['"]` + name + `['"]\. Did you mean ['"](?P<field>` + name + `)['"]\?$`)
	fieldDoubleSuggestion = regexp.MustCompile(
		`^Cannot query field ['"]` + name + `['"] on type ['"]` + name + `['"]\. Did you mean ['"](?P<one>` + name + `)['"] or ['"](?P<two>` + name + `)['"]\?$`)
	fieldMultiSuggestion = regexp.MustCompile(
		`^Cannot query field ['"]` + name + `['"] on type ['"]` + name + `['"]\. Did you mean (?P<multi>(['"]` + name + `['"], )+)(or ['"](?P<last>` + name + `)['"])?\?$`)

	invalidFieldExtractor = regexp.MustCompile(
		`Cannot query field ['"](?P<invalid_field>` + name + `)['"]`)
)

// FieldFactKind tags the kind of fact ClassifyFieldError extracted, per
// spec.md §9's "dynamic error dispatch → tagged variant" design note.
type FieldFactKind int

const (
	// FactNoise means the message matched no informative pattern (or
	// matched a known-uninformative one); no names were discovered.
	FactNoise FieldFactKind = iota
	// FactSuggestion means Names holds one or more valid field/argument
	// names discovered from a "did you mean" suggestion.
	FactSuggestion
	// FactNoSubfields means the parent type is scalar and has no
	// subfields at all; callers should abandon the whole bucket.
	FactNoSubfields
)

// FieldFact is the result of classifying a single error message.
type FieldFact struct {
	Kind  FieldFactKind
	Names map[string]bool
}

func suggestionFact(names ...string) FieldFact {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		if n != "" {
			m[n] = true
		}
	}

	return FieldFact{Kind: FactSuggestion, Names: m}
}

func noiseFact() FieldFact {
	return FieldFact{Kind: FactNoise}
}

// ClassifyFieldError converts one validator error message into a FieldFact,
// following the priority order in spec.md §4.1: SKIP patterns first, then
// the sub-selection rule, then single/double/multi suggestion lists, then an
// unconditional noise fallback.
func ClassifyFieldError(msg string) FieldFact {
	switch {
	case fieldSkipNoSubfields.MatchString(msg):
		return FieldFact{Kind: FactNoSubfields}
	case fieldSkipArgRequired.MatchString(msg), fieldSkipCannotQuery.MatchString(msg):
		return noiseFact()
	}

	if m := fieldSubSelection.FindStringSubmatch(msg); m != nil {
		return suggestionFact(m[fieldSubSelection.SubexpIndex("field")])
	}

	if m := fieldSingleSuggestion.FindStringSubmatch(msg); m != nil {
		return suggestionFact(m[fieldSingleSuggestion.SubexpIndex("field")])
	}

	if m := fieldDoubleSuggestion.FindStringSubmatch(msg); m != nil {
		return suggestionFact(
			m[fieldDoubleSuggestion.SubexpIndex("one")],
			m[fieldDoubleSuggestion.SubexpIndex("two")],
		)
	}

	if m := fieldMultiSuggestion.FindStringSubmatch(msg); m != nil {
		multi := m[fieldMultiSuggestion.SubexpIndex("multi")]
		last := m[fieldMultiSuggestion.SubexpIndex("last")]

		var names []string

		for _, part := range strings.Split(multi, ", ") {
			part = strings.Trim(part, `'"`)
			if part != "" {
				names = append(names, part)
			}
		}

		if last != "" {
			names = append(names, last)
		}

		return suggestionFact(names...)
	}

	slog.Debug("unknown field error message", "message", msg)

	return noiseFact()
}

// ClassifyFieldErrorSet is a convenience wrapper returning just the
// discovered names, for callers that only care about the suggestion set.
func ClassifyFieldErrorSet(msg string) map[string]bool {
	fact := ClassifyFieldError(msg)
	if fact.Kind != FactSuggestion {
		return map[string]bool{}
	}

	return fact.Names
}

// ExtractInvalidFieldName finds a "Cannot query field 'X'" prefix anywhere in
// the message (not anchored to the full message), for probes that need to
// discard a single optimistically-assumed-valid name regardless of which
// error-message shape it appears in.
func ExtractInvalidFieldName(msg string) (string, bool) {
	m := invalidFieldExtractor.FindStringSubmatch(msg)
	if m == nil {
		return "", false
	}

	return m[invalidFieldExtractor.SubexpIndex("invalid_field")], true
}

var (
	argSkipUnknownArg = regexp.MustCompile(
		`^Unknown argument ['"]` + name + `['"] on field ['"]` + name + `['"] of type ['"]` + name + `['"]\.$`)
	argSkipSubSelection = regexp.MustCompile(
		`^Field ['"]` + name + `['"] of type ['"][_A-Za-z\[\]!][a-zA-Z\[\]!]*['"] must have a selection of subfields\. Did you mean ['"]` + name + ` \{ \.\.\. \}['"]\?$`)
	argSkipRequired = regexp.MustCompile(
		`^Field ['"]` + name + `['"] argument ['"]` + name + `['"] of type ['"]` + typeref + `['"] is required, but it was not provided\.$`)
	argSkipUnknownArgTrailing = regexp.MustCompile(
		`^Unknown argument ['"]` + name + `['"] on field ['"][_0-9A-Za-z.]*['"]\.$`)

	argSingleSuggestion = regexp.MustCompile(
		`^Unknown argument ['"][_0-9a-zA-Z\[\]!]*['"] on field ['"][_0-9a-zA-Z\[\]!]*['"] of type ['"][_0-9a-zA-Z\[\]!]*['"]\. Did you mean ['"](?P<arg>[_0-9a-zA-Z\[\]!]*)['"]\?$`)
	argDoubleSuggestion = regexp.MustCompile(
		`^Unknown argument ['"][_0-9a-zA-Z\[\]!]*['"] on field ['"][_0-9a-zA-Z\[\]!]*['"] of type ['"]` + typeref + `['"]\. Did you mean ['"](?P<first>[_0-9a-zA-Z\[\]!]*)['"] or ['"](?P<second>[_0-9a-zA-Z\[\]!]*)['"]\?$`)

	invalidArgExtractor = regexp.MustCompile(
		`Unknown argument ['"](?P<invalid_arg>` + name + `)['"] on field ['"]` + name + `['"]`)
	duplicateArgExtractor = regexp.MustCompile(
		`^There can be only one argument named ["](?P<arg>[_0-9a-zA-Z\[\]!]*)["]\.?$`)
)

// ClassifyArgError converts one validator error message into the set of
// valid argument names it reveals (spec.md §4.1's classify_arg_error).
func ClassifyArgError(msg string) map[string]bool {
	switch {
	case argSkipUnknownArg.MatchString(msg),
		argSkipSubSelection.MatchString(msg),
		argSkipRequired.MatchString(msg),
		argSkipUnknownArgTrailing.MatchString(msg):
		return map[string]bool{}
	}

	found := map[string]bool{}

	if m := argSingleSuggestion.FindStringSubmatch(msg); m != nil {
		if v := m[argSingleSuggestion.SubexpIndex("arg")]; v != "" {
			found[v] = true
		}
	}

	if m := argDoubleSuggestion.FindStringSubmatch(msg); m != nil {
		if v := m[argDoubleSuggestion.SubexpIndex("first")]; v != "" {
			found[v] = true
		}

		if v := m[argDoubleSuggestion.SubexpIndex("second")]; v != "" {
			found[v] = true
		}
	}

	if len(found) == 0 {
		slog.Debug("unknown arg error message", "message", msg)
	}

	return found
}

// ExtractInvalidArgName finds an "Unknown argument 'A' on field 'F'" prefix
// anywhere in the message.
func ExtractInvalidArgName(msg string) (string, bool) {
	m := invalidArgExtractor.FindStringSubmatch(msg)
	if m == nil {
		return "", false
	}

	return m[invalidArgExtractor.SubexpIndex("invalid_arg")], true
}

// ExtractDuplicateArgName matches "There can be only one argument named A."
func ExtractDuplicateArgName(msg string) (string, bool) {
	m := duplicateArgExtractor.FindStringSubmatch(msg)
	if m == nil {
		return "", false
	}

	return m[duplicateArgExtractor.SubexpIndex("arg")], true
}

// Context selects which regex family ExtractTypeRef matches against.
type Context int

const (
	// ContextField extracts a typeref from field-selection error messages.
	ContextField Context = iota
	// ContextArgument extracts a typeref from argument-coercion error
	// messages.
	ContextArgument
)

var (
	typerefFieldSubSelection = regexp.MustCompile(
		`^Field ['"][_0-9a-zA-Z\[\]!]*['"] of type ['"](?P<typeref>` + typeref + `)['"] must have a selection of subfields\. Did you mean ['"][_0-9a-zA-Z\[\]!]* \{ \.\.\. \}['"]\?$`)
	typerefFieldNoSubfields = regexp.MustCompile(
		`^Field ['"][_0-9a-zA-Z\[\]!]*['"] must not have a selection since type ['"](?P<typeref>` + typeref + `)['"] has no subfields\.$`)
	typerefFieldCannotQuery = regexp.MustCompile(
		`^Cannot query field ['"][_0-9a-zA-Z\[\]!]*['"] on type ['"](?P<typeref>` + typeref + `)['"]\.$`)
	typerefFieldNoSubSelection = regexp.MustCompile(
		`^Field ['"][_0-9a-zA-Z\[\]!]*['"] of type ['"](?P<typeref>` + typeref + `)['"] must not have a sub selection\.$`)

	typerefArgRequired = regexp.MustCompile(
		`^Field ['"][_0-9a-zA-Z\[\]!]*['"] argument ['"][_0-9a-zA-Z\[\]!]*['"] of type ['"](?P<typeref>` + typeref + `)['"] is ` + required + `$`)
	typerefArgExpectedType = regexp.MustCompile(
		`^Expected type (?P<typeref>` + typeref + `), found .+\.$`)

	typerefArgSkipSubSelection = regexp.MustCompile(
		`^Field ['"][_0-9a-zA-Z\[\]!]*['"] of type ['"]` + typeref + `['"] must have a selection of subfields\. Did you mean ['"][_0-9a-zA-Z\[\]!]* \{ \.\.\. \}['"]\?$`)
)

var fieldTyperefRegexes = []*regexp.Regexp{
	typerefFieldSubSelection,
	typerefFieldNoSubfields,
	typerefFieldCannotQuery,
	typerefFieldNoSubSelection,
}

var argTyperefRegexes = []*regexp.Regexp{
	typerefArgRequired,
	typerefArgExpectedType,
}

var (
	wrongFieldCannotQuery = regexp.MustCompile(
		`^Cannot query field ['"]` + regexp.QuoteMeta(WrongFieldSentinel) + `['"] on type ['"](?P<typename>[_0-9a-zA-Z\[\]!]*)['"]\.$`)
	wrongFieldNoSubfields = regexp.MustCompile(
		`^Field ['"][_0-9a-zA-Z\[\]!]*['"] must not have a selection since type ['"](?P<typename>` + typeref + `)['"] has no subfields\.$`)
)

var wrongFieldRegexes = []*regexp.Regexp{wrongFieldCannotQuery, wrongFieldNoSubfields}

// TypeRefFact is the model.TypeRef-shaped fact ExtractTypeRef derives from a
// captured token, without importing the model package (grammar stays a
// leaf): name, kind, is_list, non_null_item, non_null. Returned as the raw
// fields so callers can build whichever concrete type they use.
type TypeRefFact struct {
	Name        string
	Kind        string
	IsList      bool
	NonNullItem bool
	NonNull     bool
}

// ExtractTypeRef implements spec.md §4.1's extract_typeref. It returns
// ok=false if no regex in the requested context's family matched.
func ExtractTypeRef(msg string, ctx Context, opts Options) (TypeRefFact, bool) {
	var tk string

	switch ctx {
	case ContextArgument:
		if typerefArgSkipSubSelection.MatchString(msg) {
			return TypeRefFact{}, false
		}

		for _, re := range argTyperefRegexes {
			if m := re.FindStringSubmatch(msg); m != nil {
				tk = m[re.SubexpIndex("typeref")]

				break
			}
		}
	case ContextField:
		for _, re := range fieldTyperefRegexes {
			if m := re.FindStringSubmatch(msg); m != nil {
				tk = m[re.SubexpIndex("typeref")]

				break
			}
		}
	}

	if tk == "" {
		slog.Debug("unknown error message for typeref extraction", "message", msg, "context", ctx)

		return TypeRefFact{}, false
	}

	return typeRefFactFromToken(tk, ctx, opts), true
}

func typeRefFactFromToken(tk string, ctx Context, opts Options) TypeRefFact {
	bareName := strings.NewReplacer("!", "", "[", "", "]", "").Replace(tk)

	var kind string

	switch {
	case isBuiltinScalar(bareName):
		kind = "SCALAR"
	case opts.InferInputSuffix && strings.HasSuffix(bareName, "Input"):
		kind = "INPUT_OBJECT"
	case ctx == ContextField:
		kind = "OBJECT"
	default:
		kind = "INPUT_OBJECT"
	}

	isList := strings.Contains(tk, "[") && strings.Contains(tk, "]")
	nonNullItem := isList && strings.Contains(tk, "!]")
	nonNull := strings.HasSuffix(tk, "!")

	return TypeRefFact{Name: bareName, Kind: kind, IsList: isList, NonNullItem: nonNullItem, NonNull: nonNull}
}

func isBuiltinScalar(name string) bool {
	switch name {
	case "Int", "Float", "String", "Boolean", "ID":
		return true
	default:
		return false
	}
}

// WrongFieldSentinel is the deliberately-invalid field name used by
// ExtractTypeName's caller to provoke a "containing type" error message.
const WrongFieldSentinel = "IAmWrongField"

// ExtractTypeName scans error messages from a document probed with
// WrongFieldSentinel in selection position, returning the name of the type
// that was addressed. It falls back to "Query" (and logs a warning) when no
// message matches, since many endpoints silently return that default.
func ExtractTypeName(messages []string) string {
	for _, re := range wrongFieldRegexes {
		for _, msg := range messages {
			if m := re.FindStringSubmatch(msg); m != nil {
				raw := m[re.SubexpIndex("typename")]

				return strings.NewReplacer("[", "", "]", "", "!", "").Replace(raw)
			}
		}
	}

	slog.Warn("no typename suggestion in error messages, falling back to Query", "messages", messages)

	return "Query"
}
