/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	applog "herixworkbench/internal/log"
	"herixworkbench/internal/workbench"
)

// Dialect selects the SQL flavour of a store.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d Dialect) rebind(q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func ensureSchema(ctx context.Context, db *sql.DB, d Dialect) error {
	idCol := "id INTEGER PRIMARY KEY"
	refType := "INTEGER"
	if d == Postgres {
		idCol = "id BIGSERIAL PRIMARY KEY"
		refType = "BIGINT"
	}
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS files (
			` + idCol + `,
			path      TEXT NOT NULL UNIQUE,
			scans     INTEGER NOT NULL DEFAULT 0,
			loaded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scans (
			file_id   ` + refType + ` NOT NULL REFERENCES files(id) ON DELETE CASCADE,
			scan_key  TEXT    NOT NULL,
			seq       INTEGER NOT NULL,
			number    INTEGER NOT NULL,
			command   TEXT    NOT NULL,
			scan_type TEXT    NOT NULL,
			scan_date TEXT,
			axis      TEXT,
			points    INTEGER NOT NULL,
			data      TEXT    NOT NULL,
			PRIMARY KEY (file_id, scan_key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scans_type ON scans(scan_type);`,
		`CREATE TABLE IF NOT EXISTS detectors (
			file_id  ` + refType + ` NOT NULL,
			scan_key TEXT    NOT NULL,
			position INTEGER NOT NULL,
			name     TEXT    NOT NULL,
			PRIMARY KEY (file_id, scan_key, position),
			FOREIGN KEY (file_id, scan_key) REFERENCES scans(file_id, scan_key) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_detectors_name ON detectors(name);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure %s schema: %w", d, err)
		}
	}
	return nil
}

// Stats counts what SaveCatalog wrote.
type Stats struct {
	Scans     int
	Detectors int
}

// SaveCatalog replaces everything stored for cat's source file with its
// current scans, in one transaction.
func SaveCatalog(ctx context.Context, db *sql.DB, d Dialect, cat *workbench.Catalog) (Stats, error) {
	var st Stats
	if cat == nil {
		return st, fmt.Errorf("no catalog to save")
	}
	l := applog.WithFile(applog.WithOperation(applog.WithComponent("storage"), "save_catalog"), cat.Path()).
		With(slog.String("dialect", d.String()))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return st, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	var fileID int64
	err = tx.QueryRowContext(ctx, d.rebind(`INSERT INTO files (path, scans, loaded_at) VALUES (?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET scans = excluded.scans, loaded_at = excluded.loaded_at
		RETURNING id`), cat.Path(), cat.Len(), now).Scan(&fileID)
	if err != nil {
		return st, fmt.Errorf("upsert file: %w", err)
	}

	purge := []string{
		`DELETE FROM detectors WHERE file_id = ?`,
		`DELETE FROM scans WHERE file_id = ?`,
	}
	for _, q := range purge {
		if _, err := tx.ExecContext(ctx, d.rebind(q), fileID); err != nil {
			return st, fmt.Errorf("clear previous scans: %w", err)
		}
	}
	if d == SQLite {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fts_scans WHERE path = ?`, cat.Path()); err != nil {
			return st, fmt.Errorf("clear search index: %w", err)
		}
	}

	insScan, err := tx.PrepareContext(ctx, d.rebind(`INSERT INTO scans
		(file_id, scan_key, seq, number, command, scan_type, scan_date, axis, points, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return st, fmt.Errorf("prepare scans: %w", err)
	}
	defer insScan.Close()
	insDet, err := tx.PrepareContext(ctx, d.rebind(`INSERT INTO detectors (file_id, scan_key, position, name) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return st, fmt.Errorf("prepare detectors: %w", err)
	}
	defer insDet.Close()

	for i, r := range cat.Records() {
		data, err := json.Marshal(scanData{Labels: r.Labels(), Rows: r.Rows()})
		if err != nil {
			return st, fmt.Errorf("encode scan %s: %w", r.Key, err)
		}
		if _, err := insScan.ExecContext(ctx, fileID, r.Key, i, r.Number, r.Command, r.Type(), r.Date, r.Axis(), r.Len(), string(data)); err != nil {
			return st, fmt.Errorf("insert scan %s: %w", r.Key, err)
		}
		for pos, name := range r.Detectors() {
			if _, err := insDet.ExecContext(ctx, fileID, r.Key, pos, name); err != nil {
				return st, fmt.Errorf("insert detector %s/%s: %w", r.Key, name, err)
			}
			st.Detectors++
		}
		if d == SQLite {
			if _, err := tx.ExecContext(ctx, `INSERT INTO fts_scans (path, scan_key, command) VALUES (?, ?, ?)`, cat.Path(), r.Key, r.Command); err != nil {
				return st, fmt.Errorf("index scan %s: %w", r.Key, err)
			}
		}
		st.Scans++
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit: %w", err)
	}
	l.Info("catalog saved", slog.Int("scans", st.Scans), slog.Int("detectors", st.Detectors))
	return st, nil
}

type scanData struct {
	Labels []string    `json:"labels"`
	Rows   [][]float64 `json:"rows"`
}

// LoadCatalog rebuilds a catalog for path from the store, in original scan order.
func LoadCatalog(ctx context.Context, db *sql.DB, d Dialect, path string) (*workbench.Catalog, error) {
	rows, err := db.QueryContext(ctx, d.rebind(`SELECT s.scan_key, s.number, s.command, COALESCE(s.scan_date, ''), s.data
		FROM scans s JOIN files f ON f.id = s.file_id
		WHERE f.path = ? ORDER BY s.seq`), path)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()
	var recs []workbench.ScanRecord
	for rows.Next() {
		var key, cmd, date, raw string
		var num int
		if err := rows.Scan(&key, &num, &cmd, &date, &raw); err != nil {
			return nil, err
		}
		var sd scanData
		if err := json.Unmarshal([]byte(raw), &sd); err != nil {
			return nil, fmt.Errorf("decode scan %s: %w", key, err)
		}
		recs = append(recs, workbench.NewScanRecord(key, num, cmd, date, sd.Labels, sd.Rows))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return workbench.NewCatalog(path, recs)
}

// CountScans returns the number of scans stored for path.
func CountScans(ctx context.Context, db *sql.DB, d Dialect, path string) (scans, detectors int, err error) {
	q := d.rebind(`SELECT
		(SELECT COUNT(*) FROM scans s JOIN files f ON f.id = s.file_id WHERE f.path = ?),
		(SELECT COUNT(*) FROM detectors t JOIN files f ON f.id = t.file_id WHERE f.path = ?)`)
	err = db.QueryRowContext(ctx, q, path, path).Scan(&scans, &detectors)
	return scans, detectors, err
}
