// Package jsonio is the two-function JSON read/write utility the engine
// treats as out-of-scope-but-needed plumbing (spec.md §1), generalizing
// the original Python fspx.utils (readJson/writeJson) onto the same
// jsoniter-backed codec the teacher uses for its own request logging
// (registry/logging.go's `var json = jsoniter.ConfigCompatibleWithStandardLibrary`).
package jsonio

import (
	"os"

	jsoniter "github.com/json-iterator/go"
)

var std = jsoniter.ConfigCompatibleWithStandardLibrary

// Read decodes the JSON document at path into v.
func Read(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return std.Unmarshal(data, v)
}

// Write encodes v as JSON and writes it to path, overwriting any existing
// content. Used for artifacts (project.json, config.json) that are read
// wholesale rather than updated incrementally; manifests use
// internal/manifest's atomic rename instead.
func Write(path string, v any) error {
	data, err := std.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
