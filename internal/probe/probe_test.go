package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wraithsec/wraithql/internal/grammar"
	"github.com/wraithsec/wraithql/internal/transport"
)

func errorsResponse(t *testing.T, messages ...string) string {
	t.Helper()

	type errEntry struct {
		Message string `json:"message"`
	}

	errs := make([]errEntry, len(messages))
	for i, m := range messages {
		errs[i] = errEntry{Message: m}
	}

	raw, err := json.Marshal(map[string]any{"errors": errs})
	require.NoError(t, err)

	return string(raw)
}

func TestBuckets(t *testing.T) {
	words := make([]string, 130)
	for i := range words {
		words[i] = "w"
	}

	b := Buckets(words, 64)
	require.Len(t, b, 3)
	assert.Len(t, b[0], 64)
	assert.Len(t, b[1], 64)
	assert.Len(t, b[2], 2)
}

func TestValidFieldsDiscardsInvalidAndUnionsSuggestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(errorsResponse(t,
			`Cannot query field "bogus" on type "Query".`,
			`Cannot query field "home" on type "Query". Did you mean "homes"?`,
		)))
	}))
	defer srv.Close()

	client := transport.New(transport.Config{URL: srv.URL})
	defer client.Close()

	got, err := ValidFields(context.Background(), client, []string{"bogus", "good"}, 512, "query { FUZZ }")
	require.NoError(t, err)
	assert.True(t, got["good"])
	assert.True(t, got["homes"])
	assert.False(t, got["bogus"])
}

func TestValidFieldsAbandonsBucketOnNoSubfields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(errorsResponse(t, `Field "x" must not have a selection since type "Boolean!" has no subfields.`)))
	}))
	defer srv.Close()

	client := transport.New(transport.Config{URL: srv.URL})
	defer client.Close()

	got, err := ValidFields(context.Background(), client, []string{"a", "b"}, 512, "query { FUZZ }")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestArgsDiscardsUnknownAndUnionsSuggestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(errorsResponse(t, `Unknown argument "bogus" on field "home" of type "Query". Did you mean "id" or "after"?`)))
	}))
	defer srv.Close()

	client := transport.New(transport.Config{URL: srv.URL})
	defer client.Close()

	got, err := Args(context.Background(), client, "home", []string{"bogus"}, 512, "query { FUZZ }")
	require.NoError(t, err)
	assert.True(t, got["id"])
	assert.True(t, got["after"])
	assert.False(t, got["bogus"])
}

func TestFieldTypeReturnsTypeRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(errorsResponse(t, `Field "isMfaEnabled" must not have a selection since type "Boolean!" has no subfields.`)))
	}))
	defer srv.Close()

	client := transport.New(transport.Config{URL: srv.URL})
	defer client.Close()

	ref, err := FieldType(context.Background(), client, "isMfaEnabled", "query { FUZZ }")
	require.NoError(t, err)
	assert.Equal(t, "Boolean", ref.Name)
	assert.True(t, ref.NonNull)
}

func TestFieldTypeFatalWhenNoSuggestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := transport.New(transport.Config{URL: srv.URL})
	defer client.Close()

	_, err := FieldType(context.Background(), client, "home", "query { FUZZ }")
	require.ErrorIs(t, err, ErrEndpointError)
}

func TestArgTypeRefMissIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := transport.New(transport.Config{URL: srv.URL})
	defer client.Close()

	_, ok, err := ArgTypeRef(context.Background(), client, "home", "id", "query { FUZZ }", grammar.Options{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTypenameFallsBackToQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := transport.New(transport.Config{URL: srv.URL})
	defer client.Close()

	name, err := Typename(context.Background(), client, "query { FUZZ }")
	require.NoError(t, err)
	assert.Equal(t, "Query", name)
}

func TestRootTypenames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
		}

		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch body.Query {
		case "query { __typename }":
			w.Write([]byte(`{"data":{"__typename":"Query"}}`))
		case "mutation { __typename }":
			w.Write([]byte(`{"data":{"__typename":"Mutation"}}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	client := transport.New(transport.Config{URL: srv.URL})
	defer client.Close()

	q, m, s, err := RootTypenames(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, "Query", q)
	assert.Equal(t, "Mutation", m)
	assert.Equal(t, "", s)
}
