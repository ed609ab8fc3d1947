package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaultsToFastProfile(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, "fast", c.Profile)
	assert.Equal(t, 50, c.ConcurrentRequests)
	assert.Equal(t, 3, c.MaxRetries)
	assert.Equal(t, 0, c.Backoff)
	assert.Equal(t, DefaultDocument, c.Document)
}

func TestApplyProfileSlow(t *testing.T) {
	c := NewConfig()
	require.NoError(t, c.ApplyProfile("slow"))
	assert.Equal(t, 1, c.ConcurrentRequests)
	assert.Equal(t, 50, c.MaxRetries)
	assert.Equal(t, 2, c.Backoff)
}

func TestApplyProfileUnknown(t *testing.T) {
	c := NewConfig()
	err := c.ApplyProfile("medium")
	require.ErrorIs(t, err, ErrInvalidOption)
}

func TestHeadersParsesKeyValuePairs(t *testing.T) {
	c := NewConfig()
	c.Header = []string{"Authorization: Bearer token", "X-Test: a", "X-Test: b"}

	headers, err := c.Headers()
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer token"}, headers.Values("Authorization"))
	assert.Equal(t, []string{"a", "b"}, headers.Values("X-Test"))
}

func TestHeadersRejectsMalformedEntry(t *testing.T) {
	c := NewConfig()
	c.Header = []string{"no-colon-here"}

	_, err := c.Headers()
	require.ErrorIs(t, err, ErrInvalidOption)
}

func TestHeadersEmptyReturnsNil(t *testing.T) {
	c := NewConfig()

	headers, err := c.Headers()
	require.NoError(t, err)
	assert.Nil(t, headers)
}

func TestTransportConfigWiresProxyAndHeaders(t *testing.T) {
	c := NewConfig()
	c.Header = []string{"X-Test: a"}
	c.Proxy = "http://proxy.example:8080"
	c.NoSSL = true

	tc, err := c.TransportConfig("http://target.example/graphql")
	require.NoError(t, err)
	assert.Equal(t, "http://target.example/graphql", tc.URL)
	assert.Equal(t, []string{"a"}, tc.Headers.Values("X-Test"))
	assert.True(t, tc.DisableSSLVerify)
	require.NotNil(t, tc.Proxy)
	assert.Equal(t, "proxy.example:8080", tc.Proxy.Host)
}

func TestTransportConfigRejectsMalformedProxy(t *testing.T) {
	c := NewConfig()
	c.Proxy = ":not a url"

	_, err := c.TransportConfig("http://target.example")
	require.ErrorIs(t, err, ErrInvalidOption)
}

func TestApplyProfileAfterParseHonorsExplicitOverride(t *testing.T) {
	c := NewConfig()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.RegisterFlags(flags)

	require.NoError(t, flags.Parse([]string{"--profile=slow", "--concurrent-requests=7"}))
	c.Profile = "slow"

	require.NoError(t, c.ApplyProfileAfterParse(flags))
	assert.Equal(t, 7, c.ConcurrentRequests, "explicit -c must win over the slow preset")
	assert.Equal(t, 50, c.MaxRetries, "unset -m takes the slow preset")
	assert.Equal(t, 2, c.Backoff, "unset -b takes the slow preset")
}

func TestGrammarOptionsReflectsInferInputSuffix(t *testing.T) {
	c := NewConfig()
	c.InferInputSuffix = true
	assert.True(t, c.GrammarOptions().InferInputSuffix)
}
