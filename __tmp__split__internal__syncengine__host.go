package syncengine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// readHostJSONArray reads and validates a JSON array file under home,
// relative to relPath. Missing files and invalid JSON are both reported as
// errors so the caller's transform can warn-and-skip per spec §4.6.
func readHostJSONArray(home, relPath string) ([]interface{}, error) {
	data, err := os.ReadFile(filepath.Join(home, relPath))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", relPath, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s is not valid JSON", relPath)
	}
	var arr []interface{}
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, fmt.Errorf("%s is not a JSON array: %w", relPath, err)
	}
	return arr, nil
}

// readHostJSONObject is readHostJSONArray's object-shaped counterpart.
func readHostJSONObject(home, relPath string) (map[string]interface{}, error) {
	data, err := os.ReadFile(filepath.Join(home, relPath))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", relPath, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s is not valid JSON", relPath)
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%s is not a JSON object: %w", relPath, err)
	}
	return obj, nil
}


