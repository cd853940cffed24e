package optimization

import (
	"bytes"
	"os/exec"

	"github.com/pkg/errors"
)

// Result is the captured outcome of a finished child process.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner starts a program, waits for it and captures its output streams.
// An error means the program could not be started at all; a program that
// ran and failed is reported through Result.ExitCode.
type Runner interface {
	Run(name string, args ...string) (Result, error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(name string, args ...string) (Result, error) {
	cmd := exec.Command(name, args...) //nolint:gosec // interpreter and script come from configuration

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// -1 when the child was killed by a signal.
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return Result{}, err
}
