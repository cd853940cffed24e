package extraction

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/pkg/errors"
)

// ErrNoModel is returned when an archive holds no .glb file.
var ErrNoModel = errors.New("no .glb model found in archive")

// ErrMultipleModels is returned when an archive holds more than one .glb file.
var ErrMultipleModels = errors.New("multiple .glb models found in archive")

// A bare .gz holds one compressed file rather than a directory tree, so it is
// not listed; compressed tarballs use .tgz.
var archiveExtensions = map[string]bool{
	".zip": true, ".rar": true, ".7z": true, ".tar": true, ".tgz": true,
}

// IsArchive reports whether filename looks like an archive we can unpack.
func IsArchive(filename string) bool {
	return archiveExtensions[strings.ToLower(filepath.Ext(filename))]
}

// shouldIgnore skips macOS resource forks and other hidden entries.
func shouldIgnore(name string) bool {
	base := path.Base(name)
	return strings.HasPrefix(base, ".") || strings.HasPrefix(name, "__MACOSX/")
}

// ExtractGLB copies the single .glb model contained in the archive at
// archivePath into a fresh temporary directory. The caller removes destDir.
func ExtractGLB(ctx context.Context, archivePath string) (glbPath, destDir string, err error) {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return "", "", errors.Wrap(err, "could not open archive")
	}

	var found []string
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || shouldIgnore(p) {
			return nil
		}
		if path.Ext(p) == ".glb" {
			found = append(found, p)
		}
		return nil
	})
	if err != nil {
		return "", "", errors.Wrap(err, "could not read archive")
	}

	switch len(found) {
	case 0:
		return "", "", ErrNoModel
	case 1:
	default:
		return "", "", fmt.Errorf("%w: %v", ErrMultipleModels, found)
	}

	destDir, err = os.MkdirTemp("", "extract-*")
	if err != nil {
		return "", "", errors.Wrap(err, "could not create extraction directory")
	}

	glbPath = filepath.Join(destDir, path.Base(found[0]))
	if err := copyEntry(fsys, found[0], glbPath); err != nil {
		os.RemoveAll(destDir)
		return "", "", err
	}
	return glbPath, destDir, nil
}

func copyEntry(fsys fs.FS, name, dest string) error {
	reader, err := fsys.Open(name)
	if err != nil {
		return errors.Wrapf(err, "could not open %s in archive", name)
	}
	defer reader.Close()

	outFile, err := os.Create(dest)
	if err != nil {
		return errors.Wrap(err, "could not create extracted file")
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, reader); err != nil {
		return errors.Wrapf(err, "failed to extract %s", name)
	}
	return nil
}
