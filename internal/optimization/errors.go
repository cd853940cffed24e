package optimization

import "github.com/pkg/errors"

// Caller input errors, detected before any process is spawned.
var (
	ErrInputNotFound = errors.New("input file does not exist")
	ErrNotGLB        = errors.New("input file must have a .glb extension")
	ErrInvalidConfig = errors.New("invalid config JSON")
)

// Packaging and environment errors.
var (
	ErrResourceDir    = errors.New("failed to get resource dir")
	ErrScriptNotFound = errors.New("optimization script not found at")
	ErrSpawn          = errors.New("failed to run")
)

// ErrScriptFailed wraps the helper's stderr when it exits non-zero.
var ErrScriptFailed = errors.New("optimization script failed")

// IsInputError reports whether err was caused by the caller's arguments.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInputNotFound) || errors.Is(err, ErrNotGLB) || errors.Is(err, ErrInvalidConfig)
}
