// Package classes provides the ordered traffic sign label list shipped with
// exported models.
package classes

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Count is the number of categories the classifier predicts.
const Count = 43

// FileName is the companion file written next to the model artifacts.
const FileName = "classes.json"

//go:embed classes.yaml
var defaultDocument []byte

// ErrWrongCount is returned when a list does not hold exactly Count names.
var ErrWrongCount = errors.New("class list must contain exactly 43 names")

type document struct {
	Version int      `yaml:"version"`
	Classes []string `yaml:"classes"`
}

// Default returns a copy of the bundled class list.
func Default() []string {
	names, err := parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("bundled classes.yaml is invalid: %v", err))
	}
	return names
}

// Load reads a YAML class list from path and validates it.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read class list: %w", err)
	}
	return parse(data)
}

// Validate checks the length and that no entry is blank.
func Validate(names []string) error {
	if len(names) != Count {
		return fmt.Errorf("%w, got %d", ErrWrongCount, len(names))
	}
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("class %d is empty", i)
		}
	}
	return nil
}

// WriteJSON writes {"classes": names} to dir/classes.json and returns its path.
func WriteJSON(dir string, names []string) (string, error) {
	if err := Validate(names); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(struct {
		Classes []string `json:"classes"`
	}{Classes: names}, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", FileName, err)
	}
	return path, nil
}

func parse(data []byte) ([]string, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse class list: %w", err)
	}
	if err := Validate(doc.Classes); err != nil {
		return nil, err
	}
	return doc.Classes, nil
}
