package optimization

import (
	"os/exec"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_CapturesStreams(t *testing.T) {
	requireShell(t)

	res, err := ExecRunner{}.Run("sh", "-c", "printf out; printf err >&2")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out", string(res.Stdout))
	assert.Equal(t, "err", string(res.Stderr))
}

func TestExecRunner_ExitCode(t *testing.T) {
	requireShell(t)

	res, err := ExecRunner{}.Run("sh", "-c", "echo boom >&2; exit 7")
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
	assert.Equal(t, "boom\n", string(res.Stderr))
}

func TestExecRunner_NotFound(t *testing.T) {
	_, err := ExecRunner{}.Run("glb-optimizer-no-such-binary")
	require.Error(t, err)
	assert.ErrorIs(t, err, exec.ErrNotFound)
}
