// Package fsutil collects the small filesystem primitives shared by
// internal/prefixdata, internal/history, internal/pkgcache and internal/link:
// atomic temp-file-then-rename writes, existence checks, and a
// cross-device-safe rename fallback, factored into one reusable package
// rather than duplicated per caller.
package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
)

// IsDir reports whether name exists and is a directory.
func IsDir(name string) (bool, error) {
	fi, err := os.Stat(name)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

// IsRegular reports whether name exists and is a regular file.
func IsRegular(name string) (bool, error) {
	fi, err := os.Stat(name)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if fi.IsDir() {
		return false, errors.Errorf("%q is a directory, expected a regular file", name)
	}
	return true, nil
}

// Exists reports whether name exists at all (file, dir, or other).
func Exists(name string) bool {
	_, err := os.Lstat(name)
	return err == nil
}

// AtomicWriteFile writes data to path by writing to a sibling temp file in
// the same directory and renaming it over path, so readers never observe a
// partially-written file; prefix records and history entries must never
// be torn. mode is applied to the temp file before rename.
func AtomicWriteFile(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return errors.Wrapf(err, "creating temp file for %s", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing temp file for %s", path)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "chmod temp file for %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "fsync temp file for %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing temp file for %s", path)
	}
	if err := RenameWithFallback(tmpName, path); err != nil {
		return errors.Wrapf(err, "renaming into place %s", path)
	}
	return nil
}

// RenameWithFallback attempts os.Rename, falling back to copy+remove on a
// cross-device link error (e.g. the cache and the prefix live on different
// filesystems).
func RenameWithFallback(src, dest string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if runtime.GOOS == "windows" && fi.IsDir() {
		if err := CopyDir(src, dest); err != nil {
			return err
		}
		return os.RemoveAll(src)
	}

	err = os.Rename(src, dest)
	if err == nil {
		return nil
	}

	terr, ok := err.(*os.LinkError)
	if !ok {
		return err
	}

	var cerr error
	if errno, ok := terr.Err.(syscall.Errno); ok && errno == syscall.EXDEV {
		if fi.IsDir() {
			cerr = CopyDir(src, dest)
		} else {
			cerr = CopyFile(src, dest)
		}
	} else {
		return terr
	}

	if cerr != nil {
		return cerr
	}
	return os.RemoveAll(src)
}

// CopyFile copies src to dest, preserving the source's permission bits.
func CopyFile(src, dest string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	destFile, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, srcFile); err != nil {
		return err
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dest, srcInfo.Mode())
}

// CopyDir recursively copies src to dest, preserving file modes. Symlinks
// within src are skipped rather than followed.
func CopyDir(src, dest string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dest, fi.Mode()); err != nil {
		return err
	}

	dir, err := os.Open(src)
	if err != nil {
		return err
	}
	defer dir.Close()

	entries, err := dir.Readdir(-1)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.Mode()&os.ModeSymlink != 0 {
			continue
		}
		srcPath := filepath.Join(src, entry.Name())
		destPath := filepath.Join(dest, entry.Name())
		if entry.IsDir() {
			if err := CopyDir(srcPath, destPath); err != nil {
				return err
			}
			continue
		}
		if err := CopyFile(srcPath, destPath); err != nil {
			return err
		}
	}
	return nil
}
