package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	pkgerrors "github.com/EmanuelaBoros/impresso-essentials/pkg/errors"
)

const schemaPath = "../../schemas/manifest.schema.json"

func sampleRecords() []map[string]any {
	return []map[string]any{
		{"np_id": "NZZ", "year": "1870", "issues": 2, "pages": 5},
		{"np_id": "GDL", "year": "1900", "issues": 1, "pages": 3},
		{"np_id": "NZZ", "year": "1871", "issues": 4, "pages": 12},
	}
}

func TestAssembleGroupsBySource(t *testing.T) {
	m := Assemble("v1", "canonical", sampleRecords())

	if m.Version != "v1" || m.Kind != "canonical" {
		t.Fatalf("manifest header = %s/%s", m.Version, m.Kind)
	}
	if m.GeneratedAt == "" {
		t.Fatal("manifest has no generated_at timestamp")
	}
	if len(m.MediaList) != 2 {
		t.Fatalf("media list has %d entries, want 2", len(m.MediaList))
	}
	// sources sorted
	if m.MediaList[0].NpID != "GDL" || m.MediaList[1].NpID != "NZZ" {
		t.Fatalf("media order = %s, %s", m.MediaList[0].NpID, m.MediaList[1].NpID)
	}
	if len(m.MediaList[1].Stats) != 2 {
		t.Fatalf("NZZ has %d stats records, want 2", len(m.MediaList[1].Stats))
	}
}

func TestValidateAcceptsWellFormedManifest(t *testing.T) {
	m := Assemble("v1", "canonical", sampleRecords())
	if err := Validate(m, schemaPath); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	m := Assemble("v1", "canonical", sampleRecords())
	m.Kind = "mystery"
	err := Validate(m, schemaPath)
	if !errors.Is(err, pkgerrors.ErrSchemaValidation) {
		t.Fatalf("Validate() error = %v, want ErrSchemaValidation", err)
	}
}

func TestValidateRejectsRecordWithoutYear(t *testing.T) {
	m := Assemble("v1", "canonical", []map[string]any{{"np_id": "NZZ", "issues": 1}})
	err := Validate(m, schemaPath)
	if !errors.Is(err, pkgerrors.ErrSchemaValidation) {
		t.Fatalf("Validate() error = %v, want ErrSchemaValidation", err)
	}
}

func TestWriteFile(t *testing.T) {
	m := Assemble("v1", "rebuilt", []map[string]any{
		{"np_id": "GDL", "year": "1900", "issues": 2, "content_items_out": 3, "ft_tokens": 22},
	})
	path := filepath.Join(t.TempDir(), "manifest.json")

	if err := WriteFile(m, path, schemaPath); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("manifest file is empty")
	}
}

func TestWriteFileRefusesInvalidManifest(t *testing.T) {
	m := Assemble("v1", "rebuilt", sampleRecords())
	m.Version = ""
	path := filepath.Join(t.TempDir(), "manifest.json")

	if err := WriteFile(m, path, schemaPath); err == nil {
		t.Fatal("WriteFile() accepted an invalid manifest")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("invalid manifest was written anyway")
	}
}
