// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

// WriteReport saves a report to path. Files ending in .json are written as
// indented JSON; anything else is YAML.
func WriteReport(path string, r *types.SearchReport) error {
	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(r, "", "  ")
	} else {
		data, err = yaml.Marshal(r)
	}
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadReport loads a previously saved report.
func ReadReport(path string) (*types.SearchReport, error) {
	var r types.SearchReport
	if err := readFile(path, &r); err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	return &r, nil
}

// ReadCase loads the search input: bibliographic dates plus the technical
// report, as YAML or JSON.
func ReadCase(path string) (types.Case, error) {
	var c types.Case
	if err := readFile(path, &c); err != nil {
		return c, fmt.Errorf("reading case file: %w", err)
	}
	if len(c.Report.Features) == 0 {
		return c, fmt.Errorf("case file %s: report lists no features", path)
	}
	return c, nil
}

func readFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if isJSON(path) {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
