package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// resolveConfigArg turns the CLI config argument into config text. "@path"
// reads the file; YAML files are converted to JSON, anything else is passed
// through unchanged so the optimizer reports syntax errors itself.
func resolveConfigArg(arg string) (string, error) {
	path, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return arg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "could not read config file")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return "", errors.Wrapf(err, "could not parse %s", path)
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return "", errors.Wrapf(err, "could not convert %s to JSON", path)
		}
		return string(out), nil
	default:
		return string(data), nil
	}
}
