// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store persists prediction records to Postgres. The sink is
// optional; runs without a DSN skip it entirely. A failed insert aborts
// the run, nothing is retried.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/antflydb/weaktag/pkg/weaktag/lib/visualize"
)

const schema = `
CREATE SCHEMA IF NOT EXISTS weaktag;

CREATE TABLE IF NOT EXISTS weaktag.predictions (
	run_id TEXT NOT NULL,
	instance_index INT NOT NULL,
	record JSONB NOT NULL,
	created_at TIMESTAMPTZ DEFAULT NOW(),
	PRIMARY KEY (run_id, instance_index)
);
`

const insertRecord = `
INSERT INTO weaktag.predictions (run_id, instance_index, record)
VALUES ($1, $2, $3)
ON CONFLICT (run_id, instance_index) DO NOTHING`

// Config configures a Sink.
type Config struct {
	// DSN is the Postgres connection string.
	DSN string

	// Logger for sink activity.
	Logger *zap.Logger
}

// Sink writes prediction records to Postgres.
type Sink struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to Postgres and ensures the prediction table exists.
func Open(ctx context.Context, config Config) (*Sink, error) {
	// Validate config
	if config.DSN == "" {
		return nil, fmt.Errorf("store DSN is required")
	}

	// Apply defaults for zero values
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure prediction table: %w", err)
	}

	config.Logger.Info("prediction sink ready")
	return &Sink{db: db, logger: config.Logger}, nil
}

// Write inserts one row per record inside a single transaction. Rows
// already present for the run are left untouched.
func (s *Sink) Write(ctx context.Context, runID string, records []visualize.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin prediction insert: %w", err)
	}
	defer tx.Rollback()

	inserted := int64(0)
	for i, rec := range records {
		row, err := recordRow(rec)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		res, err := tx.ExecContext(ctx, insertRecord, runID, i, row)
		if err != nil {
			return fmt.Errorf("insert prediction %d: %w", i, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit prediction insert: %w", err)
	}
	s.logger.Info("stored predictions",
		zap.String("run_id", runID),
		zap.Int("records", len(records)),
		zap.Int64("inserted", inserted))
	return nil
}

// Close releases the database connection.
func (s *Sink) Close() error {
	return s.db.Close()
}

// recordRow is the JSONB payload for one prediction record.
func recordRow(rec visualize.Record) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	return string(data), nil
}
