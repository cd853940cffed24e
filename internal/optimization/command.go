package optimization

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultInterpreter is the executable used to run the helper script.
	DefaultInterpreter = "node"
	// DefaultScriptPath is the helper script location relative to the resource directory.
	DefaultScriptPath = "sidecar/optimize-glb.js"
	// OutputFileName is the fixed name of the optimized file inside the temp directory.
	OutputFileName = "glb_optimized_output.glb"

	glbExtension = ".glb"
)

// Command validates an optimization request and delegates the work to the
// external helper script.
//
// The output file lives at a fixed location in the temp directory and is
// overwritten by every run. Concurrent callers race on it.
type Command struct {
	Interpreter string
	ScriptPath  string
	ResourceDir ResourceDirFunc
	Runner      Runner
	TempDir     func() string
}

// NewCommand creates a Command that runs interpreter against the script found
// at scriptPath below the directory returned by resourceDir. Empty values fall
// back to the defaults.
func NewCommand(interpreter, scriptPath string, resourceDir ResourceDirFunc) *Command {
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}
	if scriptPath == "" {
		scriptPath = DefaultScriptPath
	}
	if resourceDir == nil {
		resourceDir = ExecutableDir
	}
	return &Command{
		Interpreter: interpreter,
		ScriptPath:  scriptPath,
		ResourceDir: resourceDir,
		Runner:      ExecRunner{},
		TempDir:     os.TempDir,
	}
}

// OutputPath returns the location the helper script writes the optimized GLB to.
func (c *Command) OutputPath() string {
	tempDir := os.TempDir
	if c.TempDir != nil {
		tempDir = c.TempDir
	}
	return filepath.Join(tempDir(), OutputFileName)
}

// Execute validates inputPath and config, runs the helper script and returns
// its standard output untouched.
func (c *Command) Execute(inputPath, config string) (string, error) {
	if err := validateInput(inputPath); err != nil {
		return "", err
	}
	if err := validateConfig(config); err != nil {
		return "", err
	}

	scriptPath, err := c.locateScript()
	if err != nil {
		return "", err
	}

	outputPath := c.OutputPath()
	runner := c.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	res, err := runner.Run(c.Interpreter, scriptPath, inputPath, config, outputPath)
	if err != nil {
		return "", fmt.Errorf("%w %s: %v\nMake sure %s is installed and available in PATH.",
			ErrSpawn, c.Interpreter, err, runtimeName(c.Interpreter))
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%w:\n%s", ErrScriptFailed, lossyString(res.Stderr))
	}

	return lossyString(res.Stdout), nil
}

func validateInput(inputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("%w: %s", ErrInputNotFound, inputPath)
	}
	// The check is case-sensitive, so "model.GLB" is rejected.
	if filepath.Ext(inputPath) != glbExtension {
		return ErrNotGLB
	}
	return nil
}

// validateConfig checks config against the strict JSON grammar: leading zeros,
// "1." and raw control characters inside strings are syntax errors.
func validateConfig(config string) error {
	var v any
	if err := json.Unmarshal([]byte(config), &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Command) locateScript() (string, error) {
	resolve := c.ResourceDir
	if resolve == nil {
		resolve = ExecutableDir
	}
	dir, err := resolve()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResourceDir, err)
	}

	scriptPath := filepath.Join(dir, filepath.FromSlash(c.ScriptPath))
	if _, err := os.Stat(scriptPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrScriptNotFound, scriptPath)
	}
	return scriptPath, nil
}

// runtimeName names the runtime the user has to install for interpreter.
func runtimeName(interpreter string) string {
	base := strings.TrimSuffix(filepath.Base(interpreter), filepath.Ext(interpreter))
	if base == DefaultInterpreter {
		return "Node.js"
	}
	return interpreter
}

// lossyString decodes b as UTF-8, replacing each maximal invalid
// subsequence with one U+FFFD.
func lossyString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r != utf8.RuneError || size > 1 {
			sb.Write(b[:size])
			b = b[size:]
			continue
		}
		sb.WriteRune(utf8.RuneError)
		b = b[invalidPrefixLen(b):]
	}
	return sb.String()
}

// invalidPrefixLen returns the length of the maximal prefix of b that starts
// a well-formed sequence but does not complete one. It is at least 1.
func invalidPrefixLen(b []byte) int {
	var need int
	lo, hi := byte(0x80), byte(0xBF)
	switch c := b[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 1
	case c == 0xE0:
		need, lo = 2, 0xA0
	case c == 0xED:
		need, hi = 2, 0x9F
	case c >= 0xE1 && c <= 0xEF:
		need = 2
	case c == 0xF0:
		need, lo = 3, 0x90
	case c == 0xF4:
		need, hi = 3, 0x8F
	case c >= 0xF1 && c <= 0xF3:
		need = 3
	default:
		return 1
	}
	n := 1
	for ; n <= need && n < len(b); n++ {
		if b[n] < lo || b[n] > hi {
			break
		}
		lo, hi = 0x80, 0xBF
	}
	return n
}
