// Package configutil reads json5 config files with optional local overlays, and the
// environment variables that override them.
package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// LocalPath is the overlay of a config file: "realitease.json5" -> "realitease.local.json5".
func LocalPath(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

// decodeFile decodes path into out, found is false when the file is missing or empty.
func decodeFile(path string, out any) (found bool, err error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(strings.TrimSpace(string(contents))) == 0 {
		return false, nil
	}
	if err := json5.Unmarshal(contents, out); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// ReadConfig reads name and merges its local overlay (see LocalPath) over it, fields set
// in the overlay win. It returns os.ErrNotExist when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T
	found := 0
	for _, path := range []string{name, LocalPath(name)} {
		var layer T
		ok, err := decodeFile(path, &layer)
		if err != nil {
			return out, err
		}
		if !ok {
			continue
		}
		if err := mergo.Merge(&out, layer, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("merge %s: %w", path, err)
		}
		slog.Debug("read config", "file", path)
		found++
	}
	if found == 0 {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadConfigOr is ReadConfig where missing files are not an error, fields the files leave
// empty are taken from defaults.
func ReadConfigOr[T any](name string, defaults T) (T, error) {
	read, err := ReadConfig[T](name)
	if errors.Is(err, os.ErrNotExist) {
		return defaults, nil
	}
	if err != nil {
		return defaults, err
	}
	if err := mergo.Merge(&read, defaults); err != nil {
		return defaults, err
	}
	return read, nil
}

// ReadRecursively looks for name in the working directory and then in every parent
// directory, the first one found is read with ReadConfig.
func ReadRecursively[T any](name string) (T, error) {
	var zero T
	dir, err := os.Getwd()
	if err != nil {
		return zero, err
	}
	for {
		config, err := ReadConfig[T](filepath.Join(dir, name))
		if !errors.Is(err, os.ErrNotExist) {
			return config, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return zero, os.ErrNotExist
		}
		dir = parent
	}
}
