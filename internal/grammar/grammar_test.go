package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFieldError(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want map[string]bool
	}{
		{
			name: "multi suggestion with trailing or",
			msg:  `Cannot query field "NameForHome" on type "Mutation". Did you mean "setNameForHome", "setNameForCamera", "setAddressForHome", "setNameForHomeSensor", or "setArmedStateForHome"?`,
			want: set("setNameForHome", "setNameForCamera", "setAddressForHome", "setNameForHomeSensor", "setArmedStateForHome"),
		},
		{
			name: "single suggestion",
			msg:  `Cannot query field "home" on type "Query". Did you mean "homes"?`,
			want: set("homes"),
		},
		{
			name: "double suggestion",
			msg:  `Cannot query field "designer" on type "Query". Did you mean "devices" or "unassigned"?`,
			want: set("devices", "unassigned"),
		},
		{
			name: "sub-selection names the field itself",
			msg:  `Field "address" of type "HomeAddress" must have a selection of subfields. Did you mean "address { ... }"?`,
			want: set("address"),
		},
		{
			name: "no suggestion is noise",
			msg:  `Cannot query field "bogus" on type "Query".`,
			want: set(),
		},
		{
			name: "no subfields abandons the bucket",
			msg:  `Field "isMfaEnabled" must not have a selection since type "Boolean!" has no subfields.`,
			want: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fact := ClassifyFieldError(tc.msg)

			if tc.want == nil {
				assert.Equal(t, FactNoSubfields, fact.Kind)
				return
			}

			assert.Equal(t, tc.want, ClassifyFieldErrorSet(tc.msg))
		})
	}
}

func TestClassifyArgError(t *testing.T) {
	got := ClassifyArgError(`Unknown argument "fasten" on field "filmConnection" of type "Vehicle". Did you mean "after" or "last"?`)
	assert.Equal(t, set("after", "last"), got)
}

func TestExtractTypeRefArgument(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want TypeRefFact
	}{
		{
			name: "required with comma variant",
			msg:  `Field "setArmedStateForHome" argument "input" of type "SetArmedStateForHomeInput!" is required, but it was not provided.`,
			want: TypeRefFact{Name: "SetArmedStateForHomeInput", Kind: "INPUT_OBJECT", NonNull: true},
		},
		{
			name: "required without comma variant",
			msg:  `Field "node" argument "id" of type "ID!" is required but not provided.`,
			want: TypeRefFact{Name: "ID", Kind: "SCALAR", NonNull: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractTypeRef(tc.msg, ContextArgument, Options{})
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractTypeRefFieldFamilyRejectsArgument(t *testing.T) {
	msg := `Field "species" of type "Species" must have a selection of subfields. Did you mean "species { ... }"?`

	_, ok := ExtractTypeRef(msg, ContextArgument, Options{})
	assert.False(t, ok)
}

func TestExtractTypeRefField(t *testing.T) {
	got, ok := ExtractTypeRef(`Field "isMfaEnabled" must not have a selection since type "Boolean!" has no subfields.`, ContextField, Options{})
	assert.True(t, ok)
	assert.Equal(t, TypeRefFact{Name: "Boolean", Kind: "SCALAR", NonNull: true}, got)
}

func TestExtractTypeName(t *testing.T) {
	got := ExtractTypeName([]string{`Cannot query field "IAmWrongField" on type "HomeSettings".`})
	assert.Equal(t, "HomeSettings", got)
}

func TestExtractTypeNameFallback(t *testing.T) {
	got := ExtractTypeName([]string{`some unrelated error`})
	assert.Equal(t, "Query", got)
}

func TestExtractInvalidFieldName(t *testing.T) {
	name, ok := ExtractInvalidFieldName(`Cannot query field "bogus" on type "Query".`)
	assert.True(t, ok)
	assert.Equal(t, "bogus", name)
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}

	return m
}
