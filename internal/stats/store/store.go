// Package store persists statistics records to PostgreSQL, one row per
// (kind, source, year) group.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/EmanuelaBoros/impresso-essentials/internal/bag"
	"github.com/EmanuelaBoros/impresso-essentials/internal/stats"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS corpus_stats (
	kind        TEXT        NOT NULL,
	np_id       TEXT        NOT NULL,
	year        TEXT        NOT NULL,
	stats       JSONB       NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (kind, np_id, year)
)`

const upsert = `
INSERT INTO corpus_stats (kind, np_id, year, stats, computed_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (kind, np_id, year)
DO UPDATE SET stats = EXCLUDED.stats, computed_at = EXCLUDED.computed_at`

// Store writes statistics records to PostgreSQL.
type Store struct {
	client *postgres.Client
	logger *slog.Logger
}

// New creates a Store on top of an open postgres client.
func New(client *postgres.Client) *Store {
	return &Store{
		client: client,
		logger: slog.Default().With("component", "stats-store"),
	}
}

// EnsureSchema creates the stats table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.client.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating corpus_stats table: %w", err)
	}
	return nil
}

// UpsertBatch writes one batch of statistics records for the given kind in
// a single transaction: either every row lands or none does.
func (s *Store) UpsertBatch(ctx context.Context, kind stats.Kind, records []bag.Record) error {
	now := time.Now().UTC()
	err := s.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsert)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			npID, _ := rec[stats.FieldNpID].(string)
			year, _ := rec[stats.FieldYear].(string)
			if year == "" {
				return fmt.Errorf("statistics record without year column")
			}
			payload, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshaling stats for (%s, %s): %w", npID, year, err)
			}
			if _, err := stmt.ExecContext(ctx, string(kind), npID, year, payload, now); err != nil {
				return fmt.Errorf("upserting stats for (%s, %s): %w", npID, year, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("stats persisted", "kind", kind, "rows", len(records))
	return nil
}
