package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wraithsec/wraithql/internal/grammar"
	"github.com/wraithsec/wraithql/internal/model"
	"github.com/wraithsec/wraithql/internal/transport"
)

// stubServer fakes just enough of a validator to drive one Clairvoyance
// round over a toy schema: Query { home: Home }, Home { id: ID }.
func stubServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
		}

		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		doc := body.Query

		write := func(messages ...string) {
			type errEntry struct {
				Message string `json:"message"`
			}

			errs := make([]errEntry, len(messages))
			for i, m := range messages {
				errs[i] = errEntry{Message: m}
			}

			raw, err := json.Marshal(map[string]any{"errors": errs})
			require.NoError(t, err)
			w.Write(raw)
		}

		switch {
		case doc == "query { __typename }":
			w.Write([]byte(`{"data":{"__typename":"Query"}}`))
			return
		case doc == "mutation { __typename }", doc == "subscription { __typename }":
			w.Write([]byte(`{}`))
			return
		case strings.Contains(doc, "IAmWrongField"):
			write(`Cannot query field "IAmWrongField" on type "Query".`)
			return
		case strings.Contains(doc, "home { lol }"):
			write(`Cannot query field "lol" on type "Home".`)
			return
		case strings.Contains(doc, "home("):
			write(`Unknown argument "id" on field "home" of type "Home".`)
			return
		case strings.HasSuffix(strings.TrimSpace(extractSelection(doc)), "home"):
			write(`Field "home" of type "Home" must have a selection of subfields. Did you mean "home { ... }"?`)
			return
		default:
			// a bucket probe: bogus names are rejected, "home" is suggested
			if strings.Contains(doc, "bogus") {
				write(`Cannot query field "bogus" on type "Query". Did you mean "home"?`)
				return
			}

			write()
		}
	}))
}

// extractSelection pulls the FUZZ-substituted payload out of "query { X }".
func extractSelection(doc string) string {
	start := strings.Index(doc, "{")
	end := strings.LastIndex(doc, "}")

	if start == -1 || end == -1 || end <= start {
		return doc
	}

	return doc[start+1 : end]
}

func TestClairvoyanceSingleRound(t *testing.T) {
	srv := stubServer(t)
	defer srv.Close()

	client := transport.New(transport.Config{URL: srv.URL})
	defer client.Close()

	o := New(client, []string{"bogus"}, 512, grammar.Options{}, nil)

	schema, err := o.Clairvoyance(context.Background(), "query { FUZZ }", nil)
	require.NoError(t, err)

	queryType := schema.Type("Query")
	require.NotNil(t, queryType)
	require.Len(t, queryType.Fields, 1)
	assert.Equal(t, "home", queryType.Fields[0].Name)
	assert.Equal(t, "Home", queryType.Fields[0].Type.Name)
	assert.Equal(t, model.KindObject, queryType.Fields[0].Type.Kind)
	assert.Empty(t, queryType.Fields[0].Args)

	home := schema.Type("Home")
	require.NotNil(t, home)
}
