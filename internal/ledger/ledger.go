// Package ledger reads and writes the credentials ledger: the JSON file
// mapping instance names to their connection credentials, which is the only
// durable state this tool owns.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tty47/aurafleet/internal/logger"
)

// Record holds the persisted credentials for a single instance. These are
// the canonical fields; anything else is dropped on save.
type Record struct {
	DBID          string `json:"db_id"`
	ConnectionURL string `json:"connection_url"`
	Username      string `json:"username"`
	Password      string `json:"password"`
}

// IOError indicates the ledger file could not be written or removed. It is
// fatal to the operation, unlike per-instance provisioning failures.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("ledger file '%s': %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Load reads the ledger at path. It is deliberately tolerant: an absent file
// or malformed JSON yields an empty mapping (with a logged report), so every
// operation mode can start from "nothing known". Legacy files written as a
// concatenation of single-key JSON objects without enclosing brackets are
// detected and normalized.
func Load(path string) map[string]Record {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from a CLI flag
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("Credentials file '%s' not found", path)
		} else {
			logger.Errorf("Failed to read credentials file '%s': %v", path, err)
		}
		return map[string]Record{}
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return map[string]Record{}
	}

	records := map[string]Record{}
	if err := json.Unmarshal([]byte(content), &records); err == nil {
		return records
	}

	records, err = parseLegacy(content)
	if err != nil {
		logger.Errorf("Invalid JSON in credentials file '%s': %v", path, err)
		return map[string]Record{}
	}

	logger.Warnf("Credentials file '%s' uses the legacy concatenated format; the next save rewrites it canonically", path)
	return records
}

// parseLegacy normalizes a concatenation of single-key JSON objects
// (newline and/or comma separated) by wrapping it in an array and merging
// the entries into one mapping.
func parseLegacy(content string) (map[string]Record, error) {
	trimmed := strings.TrimRight(content, ",\n\r\t ")

	// Two candidates: the content as-is (objects already comma separated),
	// and the content with separators inserted at top-level object
	// boundaries. Nested boundaries never match because saved records are
	// indented.
	withSeparators := strings.ReplaceAll(trimmed, "}\r\n{", "},{")
	withSeparators = strings.ReplaceAll(withSeparators, "}\n{", "},{")

	var lastErr error
	for _, candidate := range []string{"[" + trimmed + "]", "[" + withSeparators + "]"} {
		var items []map[string]Record
		if err := json.Unmarshal([]byte(candidate), &items); err != nil {
			lastErr = err
			continue
		}

		merged := map[string]Record{}
		for _, item := range items {
			for name, record := range item {
				merged[name] = record
			}
		}
		return merged, nil
	}

	return nil, lastErr
}

// Save writes the mapping to path, overwriting any previous content. Write
// failures are returned as *IOError and are fatal to the caller.
func Save(records map[string]Record, path string) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return &IOError{Path: path, Err: err}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return &IOError{Path: path, Err: err}
	}

	logger.Infof("Stored credentials for %d instances in '%s'", len(records), path)
	return nil
}

// Remove deletes the ledger file, used when a delete run empties it.
func Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return &IOError{Path: path, Err: err}
	}
	logger.Infof("Removed empty credentials file '%s'", path)
	return nil
}
