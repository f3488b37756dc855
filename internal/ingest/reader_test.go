package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeJSONL(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestReadFiles(t *testing.T) {
	dir := t.TempDir()
	p1 := writeJSONL(t, dir, "a.jsonl", `{"id": "NZZ-1870-01-05-a"}
{"id": "NZZ-1870-01-06-a"}
`)
	p2 := writeJSONL(t, dir, "b.jsonl", `{"id": "GDL-1900-06-15-a"}
`)

	b, err := NewReader().ReadFiles([]string{p1, p2}, 2)
	if err != nil {
		t.Fatalf("ReadFiles() error: %v", err)
	}
	if got := b.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	if got := b.NPartitions(); got != 2 {
		t.Fatalf("NPartitions() = %d, want 2", got)
	}
	if b.Items()[0]["id"] != "NZZ-1870-01-05-a" {
		t.Fatalf("first record = %v", b.Items()[0])
	}
}

func TestReadFilesSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := writeJSONL(t, dir, "gaps.jsonl", `{"id": "NZZ-1870-01-05-a"}


{"id": "NZZ-1870-01-06-a"}
`)
	b, err := NewReader().ReadFiles([]string{path}, 1)
	if err != nil {
		t.Fatalf("ReadFiles() error: %v", err)
	}
	if got := b.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
}

func TestReadFilesReportsLineOfBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeJSONL(t, dir, "bad.jsonl", `{"id": "ok-1900"}
{broken
`)
	_, err := NewReader().ReadFiles([]string{path}, 1)
	if err == nil {
		t.Fatal("ReadFiles() accepted invalid JSON")
	}
}

func TestGlob(t *testing.T) {
	dir := t.TempDir()
	writeJSONL(t, dir, "x.jsonl", "{}\n")
	writeJSONL(t, dir, "y.jsonl", "{}\n")

	paths, err := Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		t.Fatalf("Glob() error: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("Glob() matched %d files, want 2", len(paths))
	}

	if _, err := Glob(filepath.Join(dir, "*.missing")); err == nil {
		t.Fatal("Glob() succeeded for a pattern matching nothing")
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := writeJSONL(t, dir, "f.jsonl", "{}\n")

	fp1, err := Fingerprint([]string{path})
	if err != nil {
		t.Fatalf("Fingerprint() error: %v", err)
	}
	fp2, err := Fingerprint([]string{path})
	if err != nil {
		t.Fatalf("Fingerprint() error: %v", err)
	}
	if fp1 != fp2 {
		t.Fatal("fingerprint of unchanged file differs")
	}

	if err := os.WriteFile(path, []byte("{}\n{}\n"), 0o644); err != nil {
		t.Fatalf("rewriting file: %v", err)
	}
	fp3, err := Fingerprint([]string{path})
	if err != nil {
		t.Fatalf("Fingerprint() error: %v", err)
	}
	if fp3 == fp1 {
		t.Fatal("fingerprint did not change after rewrite")
	}
}
