// Package model implements the in-memory schema graph reconstructed by the
// oracle, along with its JSON (de)serialization in the GraphQL introspection
// response format.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Kind is a GraphQL type kind. LIST and NON_NULL only ever appear in
// serialized TypeRef wrappers, never as the Kind of a named Type.
type Kind string

const (
	KindScalar      Kind = "SCALAR"
	KindObject      Kind = "OBJECT"
	KindInterface   Kind = "INTERFACE"
	KindUnion       Kind = "UNION"
	KindEnum        Kind = "ENUM"
	KindInputObject Kind = "INPUT_OBJECT"
	KindList        Kind = "LIST"
	KindNonNull     Kind = "NON_NULL"
)

// BuiltinScalars are the GraphQL spec scalars; the oracle never probes their
// arguments or fields.
var BuiltinScalars = map[string]bool{
	"Int":     true,
	"Float":   true,
	"String":  true,
	"Boolean": true,
	"ID":      true,
}

// Sentinel errors for the driver's fatal conditions (spec.md §7).
var (
	ErrTypeNotInSchema     = errors.New("type not in schema")
	ErrUnknownOperationType = errors.New("unknown operation type")
)

// TypeRef is a reference to a type with list/non-null modifiers.
//
// Invariant: NonNullItem implies IsList. Use [NewTypeRef] to construct a
// validated value.
type TypeRef struct {
	Name        string
	Kind        Kind
	IsList      bool
	NonNullItem bool
	NonNull     bool
}

// NewTypeRef validates the NonNullItem ⇒ IsList invariant before returning a
// TypeRef.
func NewTypeRef(name string, kind Kind, isList, nonNullItem, nonNull bool) (TypeRef, error) {
	if nonNullItem && !isList {
		return TypeRef{}, fmt.Errorf("%w: non_null_item requires is_list", ErrInvalidTypeRef)
	}

	return TypeRef{Name: name, Kind: kind, IsList: isList, NonNullItem: nonNullItem, NonNull: nonNull}, nil
}

// ErrInvalidTypeRef is returned by NewTypeRef when the NonNullItem/IsList
// invariant is violated.
var ErrInvalidTypeRef = errors.New("invalid typeref")

type wireTypeRef struct {
	Kind   Kind         `json:"kind"`
	Name   *string      `json:"name"`
	OfType *wireTypeRef `json:"ofType"`
}

// MarshalJSON nests modifiers outer-to-inner as
// NON_NULL-of-LIST-of-NON_NULL-of-<base>.
func (t TypeRef) MarshalJSON() ([]byte, error) {
	name := t.Name
	w := &wireTypeRef{Kind: t.Kind, Name: &name}

	if t.NonNullItem {
		w = &wireTypeRef{Kind: KindNonNull, OfType: w}
	}
	if t.IsList {
		w = &wireTypeRef{Kind: KindList, OfType: w}
	}
	if t.NonNull {
		w = &wireTypeRef{Kind: KindNonNull, OfType: w}
	}

	return json.Marshal(w)
}

// UnmarshalJSON reverses [TypeRef.MarshalJSON], unwrapping at most one outer
// NON_NULL, then an optional LIST, then an optional inner NON_NULL, down to
// the named base type.
func (t *TypeRef) UnmarshalJSON(data []byte) error {
	var w wireTypeRef
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	cur := &w

	var nonNull, isList, nonNullItem bool

	if cur.Kind == KindNonNull {
		nonNull = true

		if cur.OfType == nil {
			return fmt.Errorf("%w: NON_NULL with no ofType", ErrInvalidTypeRef)
		}

		cur = cur.OfType
	}

	if cur.Kind == KindList {
		isList = true

		if cur.OfType == nil {
			return fmt.Errorf("%w: LIST with no ofType", ErrInvalidTypeRef)
		}

		cur = cur.OfType

		if cur.Kind == KindNonNull {
			nonNullItem = true

			if cur.OfType == nil {
				return fmt.Errorf("%w: NON_NULL with no ofType", ErrInvalidTypeRef)
			}

			cur = cur.OfType
		}
	}

	if cur.Name == nil {
		return fmt.Errorf("%w: base type has no name", ErrInvalidTypeRef)
	}

	ref, err := NewTypeRef(*cur.Name, cur.Kind, isList, nonNullItem, nonNull)
	if err != nil {
		return err
	}

	*t = ref

	return nil
}

// InputValue is an argument of a field.
type InputValue struct {
	Name string
	Type TypeRef
}

type wireInputValue struct {
	Name         string  `json:"name"`
	Type         TypeRef `json:"type"`
	DefaultValue *string `json:"defaultValue"`
	Description  *string `json:"description"`
}

// MarshalJSON adds defaultValue:null, description:null.
func (v InputValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireInputValue{Name: v.Name, Type: v.Type})
}

// UnmarshalJSON reads name/type, ignoring defaultValue/description.
func (v *InputValue) UnmarshalJSON(data []byte) error {
	var w wireInputValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	v.Name = w.Name
	v.Type = w.Type

	return nil
}

// Field is a field of an Object/Interface/InputObject type.
type Field struct {
	Name string
	Type TypeRef
	Args []InputValue
}

type wireField struct {
	Name              string       `json:"name"`
	Type              TypeRef      `json:"type"`
	Args              []InputValue `json:"args"`
	IsDeprecated      bool         `json:"isDeprecated"`
	DeprecationReason *string      `json:"deprecationReason"`
	Description       *string      `json:"description"`
}

// MarshalJSON adds isDeprecated:false, deprecationReason:null, description:null.
func (f Field) MarshalJSON() ([]byte, error) {
	args := f.Args
	if args == nil {
		args = []InputValue{}
	}

	return json.Marshal(wireField{Name: f.Name, Type: f.Type, Args: args})
}

// UnmarshalJSON reads name/type/args, ignoring deprecation and description.
func (f *Field) UnmarshalJSON(data []byte) error {
	var w wireField
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	f.Name = w.Name
	f.Type = w.Type
	f.Args = w.Args

	return nil
}

// dummyField is injected by Type.MarshalJSON for any type left without
// fields, so downstream introspection consumers don't reject empty objects.
// Dropped again by Type.UnmarshalJSON.
var dummyField = Field{Name: "dummy", Type: TypeRef{Name: "String", Kind: KindScalar}}

// Type is a node in the schema graph.
type Type struct {
	Name   string
	Kind   Kind
	Fields []Field
}

type wireType struct {
	Name          string       `json:"name"`
	Kind          Kind         `json:"kind"`
	Description   *string      `json:"description"`
	Fields        []Field      `json:"fields"`
	InputFields   []Field      `json:"inputFields"`
	Interfaces    []string     `json:"interfaces"`
	PossibleTypes *[]string    `json:"possibleTypes"`
	EnumValues    *[]string    `json:"enumValues"`
}

// MarshalJSON routes Fields under "fields" for OBJECT/INTERFACE, under
// "inputFields" for INPUT_OBJECT, and injects the synthetic dummy field when
// Fields is empty.
func (t Type) MarshalJSON() ([]byte, error) {
	fields := t.Fields
	if len(fields) == 0 {
		fields = []Field{dummyField}
	}

	w := wireType{
		Name:       t.Name,
		Kind:       t.Kind,
		Interfaces: []string{},
	}

	switch t.Kind {
	case KindObject, KindInterface:
		w.Fields = fields
	case KindInputObject:
		w.InputFields = fields
	}

	return json.Marshal(w)
}

// UnmarshalJSON reads whichever of fields/inputFields applies to Kind,
// dropping any field named "dummy".
func (t *Type) UnmarshalJSON(data []byte) error {
	var w wireType
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	t.Name = w.Name
	t.Kind = w.Kind

	src := w.Fields
	if w.Kind == KindInputObject {
		src = w.InputFields
	}

	t.Fields = make([]Field, 0, len(src))

	for _, f := range src {
		if f.Name == "dummy" {
			continue
		}

		t.Fields = append(t.Fields, f)
	}

	return nil
}

// Schema is the top-level schema graph, mutated only by the oracle driver
// between fan-outs (spec.md §5).
type Schema struct {
	QueryType        string
	MutationType     string
	SubscriptionType string
	Directives       []json.RawMessage

	types map[string]*Type
	order []string
}

// New creates an empty schema seeded with String/ID scalars and one OBJECT
// type per non-empty declared root.
func New(queryType, mutationType, subscriptionType string) *Schema {
	s := &Schema{
		QueryType:        queryType,
		MutationType:     mutationType,
		SubscriptionType: subscriptionType,
		Directives:       []json.RawMessage{},
		types:            map[string]*Type{},
	}

	s.AddType("String", KindScalar)
	s.AddType("ID", KindScalar)

	if queryType != "" {
		s.AddType(queryType, KindObject)
	}

	if mutationType != "" {
		s.AddType(mutationType, KindObject)
	}

	if subscriptionType != "" {
		s.AddType(subscriptionType, KindObject)
	}

	return s
}

// AddType adds a type to the schema if it does not already exist. It returns
// whether a new type was added.
func (s *Schema) AddType(name string, kind Kind) bool {
	if _, ok := s.types[name]; ok {
		return false
	}

	s.types[name] = &Type{Name: name, Kind: kind}
	s.order = append(s.order, name)

	return true
}

// Type returns the named type, or nil if it is not present.
func (s *Schema) Type(name string) *Type {
	return s.types[name]
}

// AppendField appends a field to the named type's field list. The type must
// already exist.
func (s *Schema) AppendField(typeName string, f Field) {
	t := s.types[typeName]
	if t == nil {
		return
	}

	t.Fields = append(t.Fields, f)
}

// Roots returns the non-empty declared root type names, in
// query/mutation/subscription order.
func (s *Schema) Roots() []string {
	var roots []string

	for _, r := range []string{s.QueryType, s.MutationType, s.SubscriptionType} {
		if r != "" {
			roots = append(roots, r)
		}
	}

	return roots
}

// GetTypeWithoutFields returns the lexically-first (insertion-order) Type
// whose Fields is empty, whose name is not in ignore, and whose Kind is not
// INPUT_OBJECT. It returns nil if every remaining type is resolved or
// ignored.
func (s *Schema) GetTypeWithoutFields(ignore map[string]bool) *Type {
	for _, name := range s.order {
		t := s.types[name]
		if len(t.Fields) == 0 && !ignore[t.Name] && t.Kind != KindInputObject {
			return t
		}
	}

	return nil
}

// GetPathFromRoot walks the type graph in reverse from name back to a root
// operation type, returning the ordered field-name path (root name first).
func (s *Schema) GetPathFromRoot(name string) ([]string, error) {
	if _, ok := s.types[name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrTypeNotInSchema, name)
	}

	roots := map[string]bool{}
	for _, r := range s.Roots() {
		roots[r] = true
	}

	var path []string

	cur := name
	for !roots[cur] {
		found := false

		for _, tn := range s.order {
			t := s.types[tn]

			for _, f := range t.Fields {
				if f.Type.Name == cur {
					path = append([]string{f.Name}, path...)
					cur = t.Name
					found = true

					break
				}
			}

			if found {
				break
			}
		}

		if !found {
			return nil, fmt.Errorf("%w: no path to %q", ErrTypeNotInSchema, name)
		}
	}

	return append([]string{cur}, path...), nil
}

// ConvertPathToDocument wraps a root-to-leaf field path into a document
// template whose innermost selection is the literal token FUZZ.
func (s *Schema) ConvertPathToDocument(path []string) (string, error) {
	if len(path) == 0 {
		return "", fmt.Errorf("%w: empty path", ErrTypeNotInSchema)
	}

	doc := "FUZZ"
	rest := append([]string(nil), path...)

	for len(rest) > 1 {
		last := rest[len(rest)-1]
		rest = rest[:len(rest)-1]
		doc = fmt.Sprintf("%s { %s }", last, doc)
	}

	switch rest[0] {
	case s.QueryType:
		return fmt.Sprintf("query { %s }", doc), nil
	case s.MutationType:
		return fmt.Sprintf("mutation { %s }", doc), nil
	case s.SubscriptionType:
		return fmt.Sprintf("subscription { %s }", doc), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperationType, rest[0])
	}
}

type schemaEnvelope struct {
	Data struct {
		Schema wireSchema `json:"__schema"`
	} `json:"data"`
}

type rootRef struct {
	Name string `json:"name"`
}

type wireSchema struct {
	QueryType        *rootRef          `json:"queryType"`
	MutationType     *rootRef          `json:"mutationType"`
	SubscriptionType *rootRef          `json:"subscriptionType"`
	Directives       []json.RawMessage `json:"directives"`
	Types            []Type            `json:"types"`
}

// ToJSON serializes the schema as a GraphQL-introspection-shaped JSON
// document (data.__schema.*), with types sorted by name and 4-space
// indentation.
func (s *Schema) ToJSON() (string, error) {
	env := schemaEnvelope{}
	env.Data.Schema.Directives = s.Directives

	if s.QueryType != "" {
		env.Data.Schema.QueryType = &rootRef{Name: s.QueryType}
	}

	if s.MutationType != "" {
		env.Data.Schema.MutationType = &rootRef{Name: s.MutationType}
	}

	if s.SubscriptionType != "" {
		env.Data.Schema.SubscriptionType = &rootRef{Name: s.SubscriptionType}
	}

	names := make([]string, 0, len(s.types))
	for n := range s.types {
		names = append(names, n)
	}

	sort.Strings(names)

	env.Data.Schema.Types = make([]Type, 0, len(names))
	for _, n := range names {
		env.Data.Schema.Types = append(env.Data.Schema.Types, *s.types[n])
	}

	out, err := json.MarshalIndent(env, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}

	return string(out), nil
}

// ParseSchemaJSON parses a JSON document in the format produced by ToJSON
// back into a Schema.
func ParseSchemaJSON(raw []byte) (*Schema, error) {
	var env schemaEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse schema json: %w", err)
	}

	s := &Schema{
		Directives: env.Data.Schema.Directives,
		types:      map[string]*Type{},
	}

	if env.Data.Schema.Directives == nil {
		s.Directives = []json.RawMessage{}
	}

	if env.Data.Schema.QueryType != nil {
		s.QueryType = env.Data.Schema.QueryType.Name
	}

	if env.Data.Schema.MutationType != nil {
		s.MutationType = env.Data.Schema.MutationType.Name
	}

	if env.Data.Schema.SubscriptionType != nil {
		s.SubscriptionType = env.Data.Schema.SubscriptionType.Name
	}

	for _, t := range env.Data.Schema.Types {
		t := t
		s.types[t.Name] = &t
		s.order = append(s.order, t.Name)
	}

	return s, nil
}
