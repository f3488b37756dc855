package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Executor.Partitions != 16 || cfg.Executor.Workers != 8 {
		t.Errorf("Executor = %+v, want 16 partitions / 8 workers", cfg.Executor)
	}
	if cfg.Kafka.Topics.RecordsIngest != "records-ingest" {
		t.Errorf("RecordsIngest topic = %q", cfg.Kafka.Topics.RecordsIngest)
	}
	if len(cfg.Corpus.KnownSources) == 0 {
		t.Error("default config has no known sources")
	}
	if cfg.Manifest.SchemaPath == "" {
		t.Error("default config has no manifest schema path")
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
server:
  port: 9999
executor:
  partitions: 4
  workers: 2
corpus:
  knownSources: [NZZ, GDL]
  rejectUnknown: true
redis:
  cacheTTL: 1m
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Executor.Partitions != 4 || cfg.Executor.Workers != 2 {
		t.Errorf("Executor = %+v, want 4/2", cfg.Executor)
	}
	if len(cfg.Corpus.KnownSources) != 2 || !cfg.Corpus.RejectUnknown {
		t.Errorf("Corpus = %+v", cfg.Corpus)
	}
	if cfg.Redis.CacheTTL != time.Minute {
		t.Errorf("Redis.CacheTTL = %v, want 1m", cfg.Redis.CacheTTL)
	}
	// untouched sections keep their defaults
	if cfg.Postgres.Port != 5432 {
		t.Errorf("Postgres.Port = %d, want 5432", cfg.Postgres.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatal("Load() succeeded for a missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CS_SERVER_PORT", "7001")
	t.Setenv("CS_POSTGRES_HOST", "db.internal")
	t.Setenv("CS_EXECUTOR_WORKERS", "32")
	t.Setenv("CS_CORPUS_KNOWN_SOURCES", "NZZ,GDL,JDG")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("Server.Port = %d, want 7001", cfg.Server.Port)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("Postgres.Host = %q", cfg.Postgres.Host)
	}
	if cfg.Executor.Workers != 32 {
		t.Errorf("Executor.Workers = %d, want 32", cfg.Executor.Workers)
	}
	if len(cfg.Corpus.KnownSources) != 3 {
		t.Errorf("Corpus.KnownSources = %v", cfg.Corpus.KnownSources)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "h", Port: 5, User: "u", Password: "pw", Database: "d", SSLMode: "disable"}
	want := "host=h port=5 user=u password=pw dbname=d sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}
