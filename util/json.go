// util/json.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DuplicateJSONKey represents a duplicate key found in JSON.
type DuplicateJSONKey struct {
	Path string // dotted path of the object holding the key, e.g. "airports"
	Key  string
}

// FindDuplicateJSONKeys returns every key that appears more than once in
// the same object. encoding/json silently keeps the last one, which hides
// copy-and-paste mistakes in hand-written scenarios.
func FindDuplicateJSONKeys(data []byte) []DuplicateJSONKey {
	dec := json.NewDecoder(bytes.NewReader(data))
	var dups []DuplicateJSONKey

	var walk func(path []string) error
	walk = func(path []string) error {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		delim, ok := tok.(json.Delim)
		if !ok {
			return nil
		}

		switch delim {
		case '{':
			seen := make(map[string]bool)
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return err
				}
				key, _ := kt.(string)
				if seen[key] {
					dups = append(dups, DuplicateJSONKey{Path: strings.Join(path, "."), Key: key})
				}
				seen[key] = true
				if err := walk(append(path, key)); err != nil {
					return err
				}
			}
		case '[':
			for dec.More() {
				if err := walk(path); err != nil {
					return err
				}
			}
		}

		// Consume the closing delimiter.
		_, err = dec.Token()
		return err
	}

	// Syntax errors are reported by DecodeJSON.
	_ = walk(nil)

	return dups
}

// DecodeJSON unmarshals data into out, rejecting unknown fields and
// duplicate keys. Problems are reported to e with the line and character
// where they were found; it returns false if there were any.
func DecodeJSON[T any](data []byte, out *T, e *ErrorLogger) bool {
	defer e.CheckDepth(e.CurrentDepth())

	ok := true
	for _, dup := range FindDuplicateJSONKeys(data) {
		if dup.Path == "" {
			e.ErrorString("duplicate key %q", dup.Key)
		} else {
			e.ErrorString("%s: duplicate key %q", dup.Path, dup.Key)
		}
		ok = false
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		e.Error(describeJSONError(data, err))
		return false
	}
	if dec.More() {
		e.ErrorString("unexpected data after the top-level value")
		return false
	}
	return ok
}

// ReadJSON is DecodeJSON for an io.Reader.
func ReadJSON[T any](r io.Reader, out *T, e *ErrorLogger) bool {
	b, err := io.ReadAll(r)
	if err != nil {
		e.Error(err)
		return false
	}
	return DecodeJSON(b, out, e)
}

// describeJSONError adds the line and character of syntax and type
// errors; encoding/json only gives a byte offset.
func describeJSONError(b []byte, err error) error {
	position := func(offset int64) (line, char int) {
		line, char = 1, 1
		for i := 0; i < int(offset) && i < len(b); i++ {
			if b[i] == '\n' {
				line++
				char = 1
			} else {
				char++
			}
		}
		return
	}

	var serr *json.SyntaxError
	var terr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &serr):
		line, char := position(serr.Offset)
		return fmt.Errorf("Error at line %d, character %d: %v", line, char, serr)
	case errors.As(err, &terr):
		line, char := position(terr.Offset)
		return fmt.Errorf("Error at line %d, character %d: %s value for %q invalid for type %s",
			line, char, terr.Value, terr.Field, terr.Type)
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		field := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return fmt.Errorf("The entry %s is not an expected JSON object. Is it misspelled?", field)
	default:
		return err
	}
}
