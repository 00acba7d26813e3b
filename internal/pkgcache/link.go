package pkgcache

import (
	"os"
	"path/filepath"

	shutil "github.com/termie/go-shutil"

	"github.com/gonda-project/gonda/internal/fsutil"
)

// LinkType identifies how a cached file was materialized into a prefix.
type LinkType string

const (
	LinkHard LinkType = "hardlink"
	LinkSoft LinkType = "softlink"
	LinkCopy LinkType = "copy"
)

// LinkFile materializes src (a file inside an extracted cache directory)
// at dest inside a prefix, choosing hardlink if same filesystem and
// allowed, symlink if explicitly requested and possible, otherwise a
// plain copy. allowSoftlink mirrors conda's
// always_softlink/allow_softlinks config; noLink forces a copy
// regardless (conda's no_link package metadata).
func LinkFile(src, dest string, allowSoftlink, noLink bool) (LinkType, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	os.Remove(dest)

	if allowSoftlink && !noLink {
		if err := os.Symlink(src, dest); err == nil {
			return LinkSoft, nil
		}
	}

	if !noLink {
		if err := os.Link(src, dest); err == nil {
			return LinkHard, nil
		}
		// cross-device or filesystem without hardlink support: fall
		// through to copy.
	}

	if err := shutil.CopyFile(src, dest, false); err != nil {
		if err := fsutil.CopyFile(src, dest); err != nil {
			return "", err
		}
	}
	return LinkCopy, nil
}
