// Package wordlist loads the candidate name list the oracle fans probe
// requests out against: from a local file, from a blob URL, or the packaged
// default, with optional NAME-shaped filtering.
package wordlist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // registers the file:// scheme
	_ "gocloud.dev/blob/memblob"  // registers the mem:// scheme
)

// NamePattern is the GraphQL NAME production; entries that don't match it
// are dropped by Validate.
var NamePattern = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// Default is the packaged fallback wordlist used when -w/--wordlist is not
// given: common root-field and scalar-ish names that turn up across public
// GraphQL schemas.
var Default = []string{
	"id", "name", "title", "description", "email", "username", "password",
	"user", "users", "me", "node", "nodes", "edges", "cursor", "pageInfo",
	"hasNextPage", "hasPreviousPage", "totalCount", "createdAt", "updatedAt",
	"status", "type", "types", "price", "amount", "currency", "address",
	"city", "country", "zip", "phone", "url", "image", "images", "avatar",
	"owner", "author", "comment", "comments", "post", "posts", "product",
	"products", "order", "orders", "item", "items", "cart", "token",
	"session", "role", "roles", "permission", "permissions", "settings",
	"config", "metadata", "tags", "category", "categories", "parent",
	"children", "home", "homes", "device", "devices", "sensor", "sensors",
}

// Load reads newline-separated names from a local path or, when path looks
// like a URL ("scheme://..."), from the corresponding blob bucket.
func Load(ctx context.Context, path string) ([]string, error) {
	if scheme, key, ok := splitURL(path); ok {
		return loadBlob(ctx, scheme, key)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load wordlist: %w", err)
	}
	defer f.Close()

	return scanLines(f)
}

func loadBlob(ctx context.Context, scheme, key string) ([]string, error) {
	bucket, err := blob.OpenBucket(ctx, scheme)
	if err != nil {
		return nil, fmt.Errorf("open wordlist bucket %q: %w", scheme, err)
	}
	defer bucket.Close()

	raw, err := bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read wordlist key %q: %w", key, err)
	}

	return scanLines(strings.NewReader(string(raw)))
}

// splitURL splits a "scheme://bucket/path/to/key" wordlist location into
// the bucket root ("scheme://bucket/path/to") blob.OpenBucket expects and
// the object key ("key") relative to it.
func splitURL(path string) (bucketURL, key string, ok bool) {
	if !strings.Contains(path, "://") {
		return "", "", false
	}

	slash := strings.LastIndex(path, "/")
	if slash < 0 {
		return "", "", false
	}

	return path[:slash], path[slash+1:], true
}

func scanLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)

	var words []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		words = append(words, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan wordlist: %w", err)
	}

	return words, nil
}

// Validate drops entries that don't match NamePattern, returning the
// surviving list and the dropped entries (for a caller to log.Warn, per
// spec.md §7's "wordlist entries removed by validation" user-visible
// behavior).
func Validate(words []string) (valid, dropped []string) {
	for _, w := range words {
		if NamePattern.MatchString(w) {
			valid = append(valid, w)
		} else {
			dropped = append(dropped, w)
		}
	}

	return valid, dropped
}
