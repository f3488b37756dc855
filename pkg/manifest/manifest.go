// Package manifest assembles statistics records into a versioned manifest
// document and validates it against a JSON schema.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	pkgerrors "github.com/EmanuelaBoros/impresso-essentials/pkg/errors"
)

// Manifest is the corpus-level roll-up of one pipeline run: every
// statistics record grouped by source, ready to publish alongside the data
// it describes.
type Manifest struct {
	Version     string       `json:"version"`
	Kind        string       `json:"kind"`
	GeneratedAt string       `json:"generated_at"`
	MediaList   []MediaStats `json:"media_list"`
}

// MediaStats groups the per-year statistics records of one source.
type MediaStats struct {
	NpID  string           `json:"np_id"`
	Stats []map[string]any `json:"stats"`
}

// Assemble builds a Manifest from a statistics sequence, grouping records
// by source id in sorted order. Records without a source column (year-only
// grouping) land under an empty id.
func Assemble(version, kind string, records []map[string]any) Manifest {
	bySource := make(map[string][]map[string]any)
	for _, rec := range records {
		npID, _ := rec["np_id"].(string)
		bySource[npID] = append(bySource[npID], rec)
	}
	sources := make([]string, 0, len(bySource))
	for npID := range bySource {
		sources = append(sources, npID)
	}
	sort.Strings(sources)

	media := make([]MediaStats, 0, len(sources))
	for _, npID := range sources {
		media = append(media, MediaStats{NpID: npID, Stats: bySource[npID]})
	}
	return Manifest{
		Version:     version,
		Kind:        kind,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		MediaList:   media,
	}
}

// Validate checks the manifest against the JSON schema at schemaPath and
// returns a schema-validation error on failure. Validation failures are
// propagated, never retried.
func Validate(m Manifest, schemaPath string) error {
	compiler := jsonschema.NewCompiler()
	sch, err := compiler.Compile(schemaPath)
	if err != nil {
		return fmt.Errorf("compiling schema %s: %w", schemaPath, err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding manifest for validation: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return pkgerrors.SchemaValidation(err)
	}
	return nil
}

// WriteFile validates the manifest and writes it as indented JSON.
func WriteFile(m Manifest, path, schemaPath string) error {
	if schemaPath != "" {
		if err := Validate(m, schemaPath); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}
