package pkgcache

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// extractArchive dispatches on fn's extension: legacy packages are a
// bzip2-compressed tar (stdlib compress/bzip2 — conda's .tar.bz2 format
// predates any need for a third-party bzip2 decoder, and the stdlib one
// is read-only, which is all extraction needs); the current .conda format
// is a zip container holding inner zstd-compressed tars, per the format
// datawire-ocibuild's bdist/pep427 siblings model for wheel archives.
func extractArchive(archivePath, destDir, fn string) error {
	if strings.HasSuffix(fn, ".tar.bz2") {
		return extractTarBz2(archivePath, destDir)
	}
	if strings.HasSuffix(fn, ".conda") {
		return extractConda(archivePath, destDir)
	}
	return errors.Errorf("unrecognized archive format: %s", fn)
}

func extractTarBz2(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	return extractTar(tar.NewReader(bzip2.NewReader(f)), destDir)
}

// extractConda unpacks the outer zip (which holds an "info-<pkg>.tar.zst"
// and a "pkg-<pkg>.tar.zst" member, per the .conda format) and inflates
// each inner zstd tar into destDir.
func extractConda(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, member := range zr.File {
		if !strings.HasSuffix(member.Name, ".tar.zst") {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return err
		}
		zr2, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return err
		}
		err = extractTar(tar.NewReader(zr2.IOReadCloser()), destDir)
		zr2.Close()
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTar(tr *tar.Reader, destDir string) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		// the .conda/.tar.bz2 "info/" metadata directory is retained
		// alongside the package's own files; callers that only want the
		// payload filter it out at a higher layer.
		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}
