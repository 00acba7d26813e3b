// Package fetch defines the single seam between the package cache and an
// external transport: conda never embeds an HTTP client of its own in this
// module, so callers supply a Provider. A filesystem-backed implementation and an
// in-memory test double ship here; a real HTTP client is wired by the
// caller's own process.
package fetch

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Provider retrieves the bytes at url, returning a stream the caller must
// Close. Implementations may interpret "url" however their transport
// requires (an http(s) URL, a local path, a test fixture key).
type Provider interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// FileProvider serves fetches from a local directory tree, used for
// file:// channels and for tests; it never performs network I/O.
type FileProvider struct {
	Root string
}

// Fetch opens Root-joined url as a local file. url is treated as a
// slash-separated path relative to Root regardless of OS.
func (p FileProvider) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(p.Root, filepath.FromSlash(url))
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", url)
	}
	return f, nil
}

// MapProvider serves fetches from an in-memory map, keyed by url, used in
// tests that don't want filesystem fixtures.
type MapProvider map[string][]byte

// Fetch returns a reader over the byte slice registered at url.
func (p MapProvider) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := p[url]
	if !ok {
		return nil, errors.Errorf("no fixture registered for %s", url)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
