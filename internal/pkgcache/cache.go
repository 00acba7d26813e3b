// Package pkgcache implements the content-addressed package cache: fetch
// (via internal/fetch) plus checksum verification, single-writer
// extraction with a marker file and lock, and the link-type decision for
// materializing a cached package into a prefix: one directory per
// artifact, with a lock serializing the writer across processes; archive
// formats are parsed then verified against the manifest's declared
// checksum, using the stdlib and klauspost readers named in the
// per-format files.
package pkgcache

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	flock "github.com/theckman/go-flock"
	"github.com/pkg/errors"

	"github.com/gonda-project/gonda/internal/fetch"
	"github.com/gonda-project/gonda/internal/fsutil"
	"github.com/gonda-project/gonda/internal/gondaerrors"
	"github.com/gonda-project/gonda/internal/record"
)

// Cache is one shared package cache directory, usable by multiple
// prefixes concurrently.
type Cache struct {
	Dir      string
	Provider fetch.Provider
}

// New returns a Cache rooted at dir, creating it if necessary.
func New(dir string, provider fetch.Provider) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating cache dir %s", dir)
	}
	return &Cache{Dir: dir, Provider: provider}, nil
}

// ArchivePath returns the stable archive path for rec within the cache,
// regardless of whether it has been fetched yet.
func (c *Cache) ArchivePath(rec *record.PackageRecord) string {
	return filepath.Join(c.Dir, rec.Fn())
}

// ExtractedDir returns the stable extraction directory for rec, keyed by
// name-version-build.
func (c *Cache) ExtractedDir(rec *record.PackageRecord) string {
	return filepath.Join(c.Dir, rec.Name+"-"+rec.Version.String()+"-"+rec.Build)
}

func (c *Cache) structuralLock() *flock.Flock {
	return flock.NewFlock(filepath.Join(c.Dir, ".cache-lock"))
}

// Fetch ensures rec's archive is present locally and sha256/md5-verified,
// returning its path. A checksum mismatch deletes the file and returns
// CorruptDownload.
func (c *Cache) Fetch(ctx context.Context, rec *record.PackageRecord) (string, error) {
	path := c.ArchivePath(rec)
	if fsutil.Exists(path) {
		if err := verify(path, rec); err != nil {
			os.Remove(path)
		} else {
			return path, nil
		}
	}

	if c.Provider == nil {
		return "", errors.New("pkgcache: no fetch provider configured")
	}
	src, err := c.Provider.Fetch(ctx, rec.URL)
	if err != nil {
		return "", errors.Wrapf(err, "fetching %s", rec.Fn())
	}
	defer src.Close()

	tmp, err := os.CreateTemp(c.Dir, ".tmp-fetch-")
	if err != nil {
		return "", errors.Wrap(err, "creating temp download file")
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", errors.Wrapf(err, "downloading %s", rec.Fn())
	}
	tmp.Close()

	if err := fsutil.RenameWithFallback(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", errors.Wrapf(err, "placing %s into cache", rec.Fn())
	}
	if err := verify(path, rec); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func verify(path string, rec *record.PackageRecord) error {
	algo, want := rec.Hash()
	if want == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var h hash.Hash
	switch algo {
	case "sha256":
		h = sha256.New()
	default:
		h = md5.New()
	}
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return &gondaerrors.CorruptDownload{Path: path, Expected: want, Actual: got}
	}
	return nil
}

// Extract materializes rec's archive into its ExtractedDir, using a
// `.extracting` marker file plus a file lock so only one caller across
// all processes performs the work; concurrent callers wait on the lock
// rather than busy-looping.
func (c *Cache) Extract(ctx context.Context, rec *record.PackageRecord) (string, error) {
	dest := c.ExtractedDir(rec)
	marker := dest + ".extracting"

	if fsutil.Exists(dest) && !fsutil.Exists(marker) {
		return dest, nil
	}

	lock := flock.NewFlock(dest + ".lock")
	for {
		ok, err := lock.TryLock()
		if err != nil {
			return "", errors.Wrap(err, "acquiring extraction lock")
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	defer lock.Unlock()

	if fsutil.Exists(dest) && !fsutil.Exists(marker) {
		return dest, nil
	}
	if fsutil.Exists(marker) {
		// a previous writer died mid-extraction; retry once from scratch.
		os.RemoveAll(dest)
		os.Remove(marker)
	}

	archive := c.ArchivePath(rec)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(marker, []byte(time.Now().UTC().Format(time.RFC3339)), 0o644); err != nil {
		return "", errors.Wrap(err, "writing extraction marker")
	}

	tmpDest := dest + ".tmp"
	os.RemoveAll(tmpDest)
	if err := extractArchive(archive, tmpDest, rec.Fn()); err != nil {
		os.RemoveAll(tmpDest)
		os.Remove(marker)
		return "", &gondaerrors.BadArchive{Path: archive, Cause: err}
	}

	if err := fsutil.RenameWithFallback(tmpDest, dest); err != nil {
		os.RemoveAll(tmpDest)
		os.Remove(marker)
		return "", err
	}
	os.Remove(marker)
	return dest, nil
}

// Reap deletes extracted directories not referenced by any record in
// referenced. Reaping never removes an archive file, only extracted
// directories, and skips anything currently marked `.extracting`.
// Reaping is advisory housekeeping, never required for correctness.
func (c *Cache) Reap(referenced map[string]bool) error {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if fsutil.Exists(filepath.Join(c.Dir, name+".extracting")) {
			continue
		}
		if referenced[name] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(c.Dir, name)); err != nil {
			return err
		}
	}
	return nil
}
