package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Common errors for loading expectation files.
var (
	ErrFileNotFound     = errors.New("expectation file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidJSON      = errors.New("invalid JSON syntax")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("expectation file is empty")
	ErrSchema           = errors.New("expectation file does not match schema")
	ErrNoFiles          = errors.New("no expectation files matched")
)

// LoadFromFile reads an expectation file. The format is picked from the
// extension: .yaml and .yml are YAML, anything else is JSON.
func LoadFromFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	var file *File
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		file, err = ParseYAML(data)
	} else {
		file, err = ParseJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// ParseJSON parses and validates a JSON expectation file.
func ParseJSON(data []byte) (*File, error) {
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return normalize(&file), nil
}

// ParseYAML parses and validates a YAML expectation file.
func ParseYAML(data []byte) (*File, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	doc, jsonData, err := toJSONDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	// Decode from the JSON form so both formats share one set of rules,
	// including nil versus empty bodies.
	var file File
	if err := json.Unmarshal(jsonData, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return normalize(&file), nil
}

func normalize(f *File) *File {
	if f.Version == "" {
		f.Version = "1.0"
	}
	return f
}

// LoadGlob loads and merges every file matching the patterns, in pattern
// order and then lexical path order. Patterns support ** via doublestar.
// A pattern without glob metacharacters must name an existing file.
func LoadGlob(patterns ...string) (*File, error) {
	merged := &File{Version: "1.0"}
	seen := make(map[string]bool)
	total := 0

	for _, pattern := range patterns {
		matches, err := expandGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding glob pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)

		for _, path := range matches {
			if seen[path] {
				continue
			}
			seen[path] = true

			f, err := LoadFromFile(path)
			if err != nil {
				return nil, err
			}
			merged.Merge(f)
			total++
		}
	}

	if total == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, strings.Join(patterns, ", "))
	}
	return merged, nil
}

func expandGlob(pattern string) ([]string, error) {
	if !hasMeta(pattern) {
		return []string{pattern}, nil
	}
	return doublestar.FilepathGlob(pattern)
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// ToYAML renders f as YAML.
func ToYAML(f *File) ([]byte, error) {
	if f == nil {
		return nil, errors.New("file cannot be nil")
	}
	return yaml.Marshal(f)
}
