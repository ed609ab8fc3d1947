package wordlist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wraithsec/wraithql/stringtest"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	content := stringtest.JoinLF("home", "", "homes", "  devices  ", "")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"home", "homes", "devices"}, got)
}

func TestLoadFromFileBlobURL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "words.txt"), []byte("a\nb\n"), 0o600))

	got, err := Load(context.Background(), "file://"+dir+"/words.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestValidateDropsNonNameEntries(t *testing.T) {
	valid, dropped := Validate([]string{"home", "2bad", "good_name", "bad-name"})
	assert.Equal(t, []string{"home", "good_name"}, valid)
	assert.Equal(t, []string{"2bad", "bad-name"}, dropped)
}

func TestSplitURL(t *testing.T) {
	scheme, key, ok := splitURL("file:///tmp/wordlist.txt")
	assert.True(t, ok)
	assert.Equal(t, "file:///tmp", scheme)
	assert.Equal(t, "wordlist.txt", key)

	_, _, ok = splitURL("/plain/path")
	assert.False(t, ok)
}
