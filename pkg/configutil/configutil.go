// Package configutil reads json5 config files. Every file may be accompanied
// by an uncommitted "<name>.local.<ext>" sibling that is applied on top of it.
package configutil

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
)

// LocalName is the override file of name, app.json5 becomes app.local.json5.
func LocalName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

// Decode unmarshals name and then its local override onto out. Keys that a
// file does not mention keep whatever out already holds, so out can be
// prefilled with defaults. os.ErrNotExist is returned when neither file exists.
func Decode(name string, out any) error {
	found := false
	for i, path := range []string{name, LocalName(name)} {
		contents, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}
		found = true

		if len(bytes.TrimSpace(contents)) == 0 {
			continue
		}
		err = json5.Unmarshal(contents, out)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if i > 0 {
			slog.Debug("applied local config overrides", "file", path)
		}
	}
	if !found {
		return os.ErrNotExist
	}
	return nil
}

// DecodeRecursively looks for name in the working directory and then in
// each of its parents, the first directory that has it is decoded.
func DecodeRecursively(name string, out any) error {
	current, err := os.Getwd()
	if err != nil {
		return err
	}
	for {
		err := Decode(filepath.Join(current, name), out)
		if !os.IsNotExist(err) {
			return err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return os.ErrNotExist
		}
		current = parent
	}
}

// ReadConfig decodes name onto the zero value of T.
func ReadConfig[T any](name string) (T, error) {
	var out T
	err := Decode(name, &out)
	return out, err
}

// ReadRecursively decodes the closest name onto the zero value of T.
func ReadRecursively[T any](name string) (T, error) {
	var out T
	err := DecodeRecursively(name, &out)
	return out, err
}
