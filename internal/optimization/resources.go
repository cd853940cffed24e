package optimization

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ResourceDirFunc returns the directory bundled assets are installed in.
type ResourceDirFunc func() (string, error)

// ExecutableDir resolves the resource directory as the directory holding the
// running binary, which is where installers place the sidecar folder.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "could not locate executable")
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// StaticDir returns a ResourceDirFunc for a configured directory. The
// directory must exist; a missing one is a packaging error, not a missing script.
func StaticDir(dir string) ResourceDirFunc {
	return func() (string, error) {
		info, err := os.Stat(dir)
		if err != nil {
			return "", errors.Wrapf(err, "resource directory %s", dir)
		}
		if !info.IsDir() {
			return "", errors.Errorf("resource path %s is not a directory", dir)
		}
		return dir, nil
	}
}
